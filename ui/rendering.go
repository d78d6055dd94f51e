package ui

import (
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"
)

var (
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	inlineCodeRegex = regexp.MustCompile(`\x1b\[44;3m(.*?)\x1b\[0m`)
)

// renderMarkdown renders content for a terminal width columns wide.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	// [text](url) becomes a bare url the terminal can make clickable
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	// Autolink stays off so urls remain plain text.
	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	r := markdown.NewRenderer(width-4, 0)
	rendered := string(gomarkdown.Render(p.Parse([]byte(content)), r))

	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	return strings.TrimRight(rendered, "\n")
}

func renderMarkdownAsync(index, width int, content string) tea.Cmd {
	return func() tea.Msg {
		return markdownRenderedMsg{Index: index, Width: width, Rendered: renderMarkdown(content, width)}
	}
}

// wordWrap wraps plain text to width columns.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			switch {
			case line == "":
				line = word
			case runewidth.StringWidth(line)+1+runewidth.StringWidth(word) > width:
				out = append(out, line)
				line = word
			default:
				line += " " + word
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// quickReplyLine lays out numbered replies on one line, shrinking each
// reply to fit width.
func quickReplyLine(replies []string, width int) string {
	if len(replies) == 0 {
		return ""
	}
	per := width/len(replies) - 4
	if per < 6 {
		per = 6
	}
	parts := make([]string, len(replies))
	for i, r := range replies {
		parts[i] = QuickReplyStyle.Render(fmt.Sprintf("%d", i+1)) + " " + runewidth.Truncate(r, per, "…")
	}
	return strings.Join(parts, "  ")
}

func (a App) renderTranscript() string {
	var b strings.Builder
	width := a.viewport.Width
	for i, e := range a.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.kind {
		case entryUser:
			b.WriteString(UserStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(wordWrap(e.text, width))
		case entryCompanion:
			b.WriteString(AssistantStyle.Bold(true).Render(e.speaker))
			b.WriteString("\n")
			if e.rendered != "" && e.renderedWidth == width {
				b.WriteString(e.rendered)
			} else {
				b.WriteString(wordWrap(e.text, width))
			}
			if e.appended != "" {
				b.WriteString("\n")
				b.WriteString(DimStyle.Render(wordWrap(e.appended, width)))
			}
		case entryError:
			b.WriteString(ErrorStyle.Render(wordWrap("✗ "+e.text, width)))
		case entryInfo:
			b.WriteString(DimStyle.Render(wordWrap(e.text, width)))
		}
	}
	return b.String()
}

func (a App) headerView() string {
	title := TitleStyle.Render("companion") + DimStyle.Render(" · ") + HighlightStyle.Render(a.dispatcher.Persona().Name)
	if a.modelName != "" {
		title += DimStyle.Render(" · " + a.modelName)
	}
	if a.thinking {
		title += "  " + a.spinner.View() + DimStyle.Render(" thinking")
	}
	return lipgloss.NewStyle().MaxWidth(a.width).Render(title)
}

func (a App) bannerView() string {
	if a.banner == "" {
		return ""
	}
	return BannerStyle.Width(max(a.width-4, 10)).Render(ErrorStyle.Bold(true).Render("Setup needed") + "\n" + a.banner)
}

func (a App) footerView() string {
	if a.status != "" {
		return StatusStyle.Render(runewidth.Truncate(a.status, a.width, "…"))
	}
	return StatusStyle.Render(FormatFooter(
		"Enter", "Send",
		"/help", "Commands",
		a.keys.DisplayActionKey("copy_last_reply"), "Copy",
		a.keys.DisplayActionKey("quit"), "Quit",
	))
}
