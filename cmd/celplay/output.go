package main

import (
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var profile = termenv.ColorProfile()

// errorStyle renders text the way the playground output box shows errors
func errorStyle(text string) termenv.Style {
	return termenv.String(text).Foreground(profile.Color("#e53e3e"))
}

func successStyle(text string) termenv.Style {
	return termenv.String(text).Foreground(profile.Color("#38a169"))
}

func faint(text string) termenv.Style {
	return termenv.String(text).Faint()
}

// renderMarkdown renders listings for the terminal. Pipes and renderer
// failures get the plain markdown.
func renderMarkdown(markdown string) string {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return markdown
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
