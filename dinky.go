package dinky

import (
	"io"
	"log/slog"

	"github.com/propapanda/dinky/internal/compiler"
	"github.com/propapanda/dinky/internal/runtime"
	"github.com/propapanda/dinky/pkg/domain"
)

// Re-exported session types, so simple hosts only import the root package.
type (
	// Paragraph is one unit of narrative output.
	Paragraph = domain.Paragraph
	// Choice is one menu entry.
	Choice = domain.Choice
	// State is a full session snapshot.
	State = domain.State
	// HostFunc is a bound host function: scalars in, scalar or list out.
	HostFunc = runtime.HostFunc
	// Observer is notified when a persistent variable changes.
	Observer = runtime.Observer
	// Migrator upgrades snapshots from older story versions.
	Migrator = runtime.Migrator
)

// Story is a compiled script together with one running session: the
// high-level entry point of the library.
type Story struct {
	model  *domain.Story
	engine *runtime.Engine

	logger   *slog.Logger
	seed     *int64
	migrator Migrator
}

// Option configures a Story.
type Option func(*Story)

// WithLogger sets a structured logger (default: discard).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Story) {
		s.logger = logger
	}
}

// WithSeed fixes the session's random source for reproducible shuffles.
func WithSeed(seed int64) Option {
	return func(s *Story) {
		s.seed = &seed
	}
}

// WithMigrator registers the snapshot migration hook used by Restore.
func WithMigrator(m Migrator) Option {
	return func(s *Story) {
		s.migrator = m
	}
}

// Compile parses source text and prepares a fresh session over it.
func Compile(source string, opts ...Option) (*Story, error) {
	model, err := compiler.Parse(source)
	if err != nil {
		return nil, err
	}
	return New(model, opts...), nil
}

// New prepares a session over an already-compiled model.
func New(model *domain.Story, opts ...Option) *Story {
	s := &Story{
		model:  model,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	engineOpts := []runtime.Option{runtime.WithLogger(s.logger)}
	if s.seed != nil {
		engineOpts = append(engineOpts, runtime.WithSeed(*s.seed))
	}
	if s.migrator != nil {
		engineOpts = append(engineOpts, runtime.WithMigrator(s.migrator))
	}
	s.engine = runtime.NewEngine(s.model, engineOpts...)
	return s
}

// Model returns the compiled story model.
func (s *Story) Model() *domain.Story { return s.model }

// Begin starts narration at the top of the script. Calling it on a session
// that already produced output (or has ended) is an error and has no effect.
func (s *Story) Begin() error { return s.engine.Begin() }

// CanContinue reports whether paragraphs are pending.
func (s *Story) CanContinue() bool { return s.engine.CanContinue() }

// Continue consumes up to n pending paragraphs (all of them when n <= 0) and
// returns them. With nothing pending it returns an empty, non-nil slice.
func (s *Story) Continue(n int) []Paragraph { return s.engine.Continue(n) }

// CanChoose reports whether the menu is ready: no pending paragraphs and at
// least one choice.
func (s *Story) CanChoose() bool { return s.engine.CanChoose() }

// Choices returns the pending menu, or nil while paragraphs are pending.
func (s *Story) Choices() []Choice { return s.engine.Choices() }

// Choose selects menu entry i (1-based) and resumes narration behind it.
func (s *Story) Choose(i int) error { return s.engine.Choose(i) }

// IsOver reports that the story reached END or DONE.
func (s *Story) IsOver() bool { return s.engine.IsOver() }

// Observe registers a change observer for a persistent variable. Observers
// must not re-enter the session.
func (s *Story) Observe(name string, fn Observer) { s.engine.Observe(name, fn) }

// Bind registers a host function callable from script expressions. Host
// functions must not re-enter the session.
func (s *Story) Bind(name string, fn HostFunc) { s.engine.Bind(name, fn) }

// Snapshot returns a deep copy of the session state for persistence.
func (s *Story) Snapshot() *State { return s.engine.Snapshot() }

// Restore loads a snapshot. Older snapshots go through the migrator; newer
// ones are refused.
func (s *Story) Restore(snap *State) error { return s.engine.Restore(snap) }
