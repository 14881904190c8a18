package dinky

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Runner drives a story session over plain reader/writer IO, which keeps it
// testable and frontend-agnostic (terminal, pipe, test buffer).
type Runner struct {
	Input  io.Reader
	Output io.Writer

	// Headless suppresses prompts and decoration for scripted runs.
	Headless bool

	// Renderer optionally transforms paragraph text before output (e.g.
	// markdown to ANSI). Errors fall back to the raw text.
	Renderer ContentRenderer

	// MenuRenderer optionally formats one menu line; the default is
	// "N) title".
	MenuRenderer func(index int, c Choice) string
}

// ContentRenderer transforms content before it is written.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner; callers set Input/Output (usually os.Stdin and
// os.Stdout).
func NewRunner() *Runner {
	return &Runner{}
}

// Run plays the story until it ends, input is exhausted, or the reader
// closes. Begin is called only when the session has nothing pending, no menu
// and has not ended (a restored session with pending paragraphs or choices
// resumes in place).
func (r *Runner) Run(story *Story) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	in := bufio.NewReader(r.Input)

	if !story.CanContinue() && !story.CanChoose() && !story.IsOver() {
		if err := story.Begin(); err != nil {
			return fmt.Errorf("begin error: %w", err)
		}
	}

	for {
		for _, p := range story.Continue(0) {
			text := p.Text
			if r.Renderer != nil {
				if rendered, err := r.Renderer(text); err == nil {
					text = rendered
				}
			}
			fmt.Fprintln(r.Output, strings.TrimRight(text, "\n"))
		}

		if !story.CanChoose() {
			break
		}

		choices := story.Choices()
		for i, c := range choices {
			line := fmt.Sprintf("%d) %s", i+1, c.Title)
			if r.MenuRenderer != nil {
				line = r.MenuRenderer(i+1, c)
			}
			fmt.Fprintln(r.Output, line)
		}

		idx, err := r.readSelection(in, len(choices))
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if idx == 0 {
			// quit command
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		}
		if err := story.Choose(idx); err != nil {
			return fmt.Errorf("choose error: %w", err)
		}
	}
	return nil
}

// readSelection prompts until a valid 1-based selection arrives. It returns
// 0 for an explicit quit.
func (r *Runner) readSelection(in *bufio.Reader, count int) (int, error) {
	for {
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := in.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(text) == "" {
				return 0, io.EOF
			}
			if err != io.EOF {
				return 0, fmt.Errorf("input error: %w", err)
			}
		}
		input := strings.TrimSpace(text)
		switch input {
		case "exit", "quit":
			return 0, nil
		}
		if n, convErr := strconv.Atoi(input); convErr == nil && n >= 1 && n <= count {
			return n, nil
		}
		if !r.Headless {
			fmt.Fprintf(r.Output, "Pick a number between 1 and %d.\n", count)
		}
		if err == io.EOF {
			return 0, io.EOF
		}
	}
}
