// Package cli holds the command implementations behind cmd/dinky: the
// interactive player, script validation, and the serve bootstrap.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/propapanda/dinky"
	"github.com/propapanda/dinky/internal/adapters/file"
	"github.com/propapanda/dinky/internal/logging"
	"github.com/propapanda/dinky/pkg/domain"
)

// PlayOptions configures an interactive run.
type PlayOptions struct {
	// SessionID enables resumable play persisted under .dinky/sessions.
	SessionID string
	// Headless strips prompts and terminal rendering for scripted runs.
	Headless bool
	// Debug enables logging to stderr.
	Debug bool
	// Seed fixes the session RNG (0 keeps the default).
	Seed int64
}

// Play compiles the script at path and runs it interactively on
// stdin/stdout, saving the session snapshot after the run when a session ID
// is set.
func Play(path string, opts PlayOptions) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read script: %w", err)
	}

	logger := logging.NewNop()
	if opts.Debug {
		logger = logging.New(slog.LevelDebug)
	}

	storyOpts := []dinky.Option{dinky.WithLogger(logger)}
	if opts.Seed != 0 {
		storyOpts = append(storyOpts, dinky.WithSeed(opts.Seed))
	}
	story, err := dinky.Compile(string(source), storyOpts...)
	if err != nil {
		return err
	}

	var store *file.Store
	if opts.SessionID != "" {
		store = file.New("")
		snap, err := store.Load(context.Background(), opts.SessionID)
		switch {
		case err == nil:
			if err := story.Restore(snap); err != nil {
				return fmt.Errorf("cannot resume session %q: %w", opts.SessionID, err)
			}
			logger.Info("session resumed", "session_id", opts.SessionID)
		case errors.Is(err, domain.ErrSessionNotFound):
			// Fresh session; saved on exit.
		default:
			return err
		}
	}

	runner := dinky.NewRunner()
	runner.Input = os.Stdin
	runner.Output = os.Stdout
	runner.Headless = opts.Headless
	if !opts.Headless {
		runner.Renderer = NewRenderer()
		runner.MenuRenderer = MenuRenderer
	}

	runErr := runner.Run(story)

	if store != nil {
		if err := store.Save(context.Background(), opts.SessionID, story.Snapshot()); err != nil {
			logger.Warn("failed to save session", "session_id", opts.SessionID, "err", err)
		}
	}
	return runErr
}
