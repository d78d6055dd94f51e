package candidates

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"companion/candidate"
)

const critiqueExcerptLines = 120

// Critique comments on the active document, at most once per interval for
// each file.
type Critique struct {
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewCritique(s candidate.Settings) *Critique {
	return &Critique{
		interval: s.Minutes("interval_minutes", 5*time.Minute),
		last:     make(map[string]time.Time),
	}
}

func (g *Critique) ID() string { return CritiqueID }

// Weight favours critique over the ambient generators.
func (g *Critique) Weight(candidate.Settings) float64 { return 2 }

func (g *Critique) ShouldTrigger(_ context.Context, c *candidate.Context) bool {
	doc := c.Document
	if doc == nil || doc.Path == "" || strings.TrimSpace(doc.Text) == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.last[doc.Path]
	return !ok || c.Now.Sub(last) >= g.interval
}

func (g *Critique) Generate(_ context.Context, c *candidate.Context) (*candidate.Payload, error) {
	doc := c.Document
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}

	g.mu.Lock()
	g.last[doc.Path] = c.Now
	g.mu.Unlock()

	excerpt, truncated := headLines(doc.Text, critiqueExcerptLines)
	lang := doc.LanguageID
	if lang == "" {
		lang = strings.TrimPrefix(filepath.Ext(doc.Path), ".")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The user is editing %s (%s). ", filepath.Base(doc.Path), lang)
	if others := otherFiles(c.RecentFiles, doc.Path); len(others) > 0 {
		fmt.Fprintf(&b, "Other recently touched files: %s. ", strings.Join(others, ", "))
	}
	b.WriteString("Give one specific, constructive remark about the code below: a bug risk, a naming issue or a simplification. ")
	b.WriteString("Do not rewrite the file.\n\n")
	fmt.Fprintf(&b, "```%s\n%s\n```", lang, excerpt)
	if truncated {
		fmt.Fprintf(&b, "\n(only the first %d lines are shown)", critiqueExcerptLines)
	}
	return candidate.Text(b.String()), nil
}

func headLines(text string, n int) (string, bool) {
	lines := strings.SplitN(text, "\n", n+1)
	if len(lines) <= n {
		return strings.TrimRight(text, "\n"), false
	}
	return strings.Join(lines[:n], "\n"), true
}

func otherFiles(paths []string, active string) []string {
	var out []string
	for _, p := range paths {
		if p != active {
			out = append(out, filepath.Base(p))
		}
	}
	return out
}
