package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"companion/candidate"
	"companion/dispatch"
)

const helpText = `Commands:
  /trigger <id>   run a generator now (partial ids are fine)
  /random         run a random eligible generator now
  /reset          forget the conversation
  /persona [id]   list personas or switch to one
  /copy           copy the last reply to the clipboard
  /quit           exit
Keys 1-4 on an empty line send a suggested reply.`

// resolveCandidate maps a possibly partial id to a registered one. An exact
// match wins; otherwise the best fuzzy match does.
func resolveCandidate(query string, ids []string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}
	for _, id := range ids {
		if strings.EqualFold(id, query) {
			return id, true
		}
	}
	matches := fuzzy.Find(query, ids)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Str, true
}

func (a App) runCommand(line string) (App, tea.Cmd) {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "/quit", "/exit":
		return a, tea.Quit

	case "/help":
		a = a.addEntry(entry{kind: entryInfo, text: helpText})
		return a, nil

	case "/reset":
		a.dispatcher.ResetHistory()
		a.quickReplies = nil
		a = a.addEntry(entry{kind: entryInfo, text: "Conversation reset."})
		return a, nil

	case "/copy":
		if a.lastReply == "" {
			a.status = "Nothing to copy yet"
			return a, nil
		}
		if err := a.copy(a.lastReply); err != nil {
			a.status = "Copy failed: " + err.Error()
			return a, nil
		}
		a.status = "Copied last reply"
		return a, nil

	case "/persona":
		return a.switchPersona(args)

	case "/trigger":
		if len(args) == 0 {
			a = a.addEntry(entry{kind: entryInfo, text: "Generators: " + strings.Join(a.candidateIDs, ", ")})
			return a, nil
		}
		id, ok := resolveCandidate(strings.Join(args, " "), a.candidateIDs)
		if !ok {
			a = a.addEntry(entry{kind: entryError, text: fmt.Sprintf("No generator matches %q", strings.Join(args, " "))})
			return a, nil
		}
		a.status = "Triggering " + id
		return a, a.triggerCandidate(id)

	case "/random":
		a.status = "Picking a generator"
		return a, a.triggerRandom()
	}

	a = a.addEntry(entry{kind: entryError, text: fmt.Sprintf("Unknown command %s, try /help", name)})
	return a, nil
}

func (a App) switchPersona(args []string) (App, tea.Cmd) {
	personas := a.dispatcher.Personas()
	known := map[string]dispatch.Persona{dispatch.DefaultPersona.ID: dispatch.DefaultPersona}
	for _, p := range personas {
		known[p.ID] = p
	}

	if len(args) == 0 {
		ids := make([]string, 0, len(known))
		for id := range known {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		a = a.addEntry(entry{kind: entryInfo, text: fmt.Sprintf("Active persona: %s. Available: %s", a.dispatcher.Persona().ID, strings.Join(ids, ", "))})
		return a, nil
	}

	p, ok := known[args[0]]
	if !ok {
		a = a.addEntry(entry{kind: entryError, text: fmt.Sprintf("Unknown persona %q", args[0])})
		return a, nil
	}
	a.dispatcher.SetPersona(p.ID)
	a.quickReplies = nil
	a = a.addEntry(entry{kind: entryInfo, text: fmt.Sprintf("%s is here now. Conversation reset.", p.Name)})
	return a, nil
}

func (a App) triggerCandidate(id string) tea.Cmd {
	d, ctx := a.dispatcher, a.ctx
	return func() tea.Msg {
		return triggerResultMsg{ID: id, Err: d.TriggerCandidate(ctx, id)}
	}
}

func (a App) triggerRandom() tea.Cmd {
	d, ctx := a.dispatcher, a.ctx
	return func() tea.Msg {
		return triggerResultMsg{Err: d.TriggerRandomEligible(ctx)}
	}
}

// describeTriggerError turns a trigger error into a transcript line. Model
// failures already arrived as dispatch events, so only generator problems
// are reported here.
func describeTriggerError(err error) (string, bool) {
	var candErr *candidate.Error
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, context.Canceled):
		return "", false
	case errors.As(err, &candErr):
		return candErr.Error(), true
	}
	return "", false
}
