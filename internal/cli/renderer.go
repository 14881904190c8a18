package cli

import (
	"os"
	"strconv"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/propapanda/dinky"
)

// NewRenderer returns a paragraph renderer for the terminal: markdown via
// glamour, wrapped to the terminal width. Falls back to plain wrapping when
// the output profile has no color support.
func NewRenderer() dinky.ContentRenderer {
	width := terminalWidth()

	if termenv.DefaultOutput().Profile == termenv.Ascii {
		return func(text string) (string, error) {
			return wordwrap.String(text, width), nil
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return func(text string) (string, error) {
			return wordwrap.String(text, width), nil
		}
	}
	return func(text string) (string, error) {
		return r.Render(text)
	}
}

var (
	menuNumberStyle = lipgloss.NewStyle().Bold(true)
	menuTitleStyle  = lipgloss.NewStyle().Italic(true)
)

// MenuRenderer formats one choice line for the terminal menu.
func MenuRenderer(index int, c dinky.Choice) string {
	return menuNumberStyle.Render(strconv.Itoa(index)+")") + " " + menuTitleStyle.Render(c.Title)
}

func terminalWidth() int {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}
	if width > 100 {
		width = 100
	}
	return width
}
