// Package runtime is the story interpreter: a re-entrant walker over the
// compiled block tree that accumulates pending paragraphs and choices under a
// small read-mode state machine, tracks visit counts per address, and
// snapshots its whole state for persistence.
package runtime

import (
	"log/slog"
	"math/rand"
	"reflect"
	"strings"

	"github.com/propapanda/dinky/internal/eval"
	"github.com/propapanda/dinky/internal/logging"
	"github.com/propapanda/dinky/pkg/domain"
	"github.com/propapanda/dinky/pkg/lists"
)

// EngineVersion is the snapshot format version of this runtime.
const EngineVersion = 1

// HostFunc is a function bound by the host: scalars in, scalar or list value
// out. Host functions must not re-enter the session.
type HostFunc func(args []any) (any, error)

// Observer is notified when a persistent variable changes value.
type Observer func(name string, value any)

// Migrator upgrades a snapshot from an older version. It receives the raw
// decoded snapshot and returns the migrated form.
type Migrator func(snapshot map[string]any, from domain.Version) (map[string]any, error)

// Engine drives one story session. It is single-threaded and synchronous:
// every call returns once interpretation reaches the next paragraph/choice
// boundary or the story ends.
type Engine struct {
	story *domain.Story
	state *domain.State
	reg   *lists.Registry
	ev    *eval.Evaluator

	logger    *slog.Logger
	rng       *rand.Rand
	observers map[string][]Observer
	functions map[string]HostFunc
	migrator  Migrator

	// fallback holds the first fallback choice seen during the current read
	// pass; it fires after the pass unwinds with no visible choices.
	fallback *domain.Choice

	// readErr carries the first divert failure out of a pass, since the
	// walker itself reports read modes, not errors.
	readErr error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a structured logger (default: no-op).
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSeed fixes the random source so shuffles and RANDOM are reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithMigrator registers the snapshot migration hook.
func WithMigrator(m Migrator) Option {
	return func(e *Engine) {
		e.migrator = m
	}
}

// NewEngine creates a session over a compiled story and seeds its state from
// the declaration tables.
func NewEngine(story *domain.Story, opts ...Option) *Engine {
	e := &Engine{
		story:     story,
		reg:       lists.NewRegistry(story.Lists, story.ListOrder),
		ev:        eval.New(),
		logger:    logging.NewNop(),
		rng:       rand.New(rand.NewSource(1)),
		observers: make(map[string][]Observer),
		functions: make(map[string]HostFunc),
	}
	for _, opt := range opts {
		opt(e)
	}

	version := domain.Version{Engine: EngineVersion, Tree: story.Version.Tree}
	e.state = domain.NewState(version)

	// Lists first: a LIST declaration doubles as a variable holding the
	// initially-active subset.
	for _, name := range story.ListOrder {
		e.state.Variables[name] = e.reg.Initial(name)
	}
	for name, raw := range story.Constants {
		v, err := e.ev.Eval(raw, e)
		if err != nil {
			e.logger.Warn("constant failed to evaluate", "name", name, "err", err)
			continue
		}
		e.state.Constants[name] = v
	}
	for name, raw := range story.Variables {
		v, err := e.ev.Eval(raw, e)
		if err != nil {
			e.logger.Warn("variable failed to evaluate", "name", name, "err", err)
			continue
		}
		e.state.Variables[name] = v
	}
	return e
}

// State exposes the live session state (read-only by convention).
func (e *Engine) State() *domain.State { return e.state }

// Story exposes the compiled model.
func (e *Engine) Story() *domain.Story { return e.story }

// Begin starts narration at the implicit root scope. It is an error to begin
// a session that has already produced output or has ended.
func (e *Engine) Begin() error {
	if len(e.state.Output) > 0 {
		return domain.ErrAlreadyBegun
	}
	if e.state.IsOver {
		return domain.ErrStoryOver
	}
	return e.read(domain.RootKnot + "." + domain.RootStitch)
}

// CanContinue reports pending paragraphs.
func (e *Engine) CanContinue() bool { return e.state.CanContinue() }

// CanChoose reports a ready choice menu.
func (e *Engine) CanChoose() bool { return e.state.CanChoose() }

// IsOver reports that the story reached END or DONE. Pending paragraphs are
// still consumable first, so exactly one of CanContinue/CanChoose/IsOver
// holds for a session that was terminated mid-output.
func (e *Engine) IsOver() bool { return e.state.IsOver && !e.state.CanContinue() }

// Continue dequeues up to n pending paragraphs (all of them when n <= 0)
// into the output log and returns them. When nothing is pending it returns
// the empty sentinel rather than an error.
func (e *Engine) Continue(n int) []domain.Paragraph {
	if !e.state.CanContinue() {
		return []domain.Paragraph{}
	}
	if n <= 0 || n > len(e.state.Paragraphs) {
		n = len(e.state.Paragraphs)
	}
	out := make([]domain.Paragraph, 0, n)
	for _, p := range e.state.Paragraphs[:n] {
		p.Text = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(p.Text, "<>"), "<>"))
		out = append(out, p)
	}
	e.state.Paragraphs = e.state.Paragraphs[n:]
	e.state.Output = append(e.state.Output, out...)
	return out
}

// Choices returns the pending menu. The menu is only visible once all
// paragraphs have been consumed.
func (e *Engine) Choices() []domain.Choice {
	if e.state.CanContinue() {
		return nil
	}
	return e.state.Choices
}

// Choose selects menu entry i (1-based): queues are cleared, the choice's
// narrated text becomes a paragraph, the selection is visit-counted, and
// reading resumes at the choice's divert or inside its block.
func (e *Engine) Choose(i int) error {
	if i < 1 || i > len(e.state.Choices) {
		return &domain.OutOfRangeError{Index: i, Count: len(e.state.Choices)}
	}
	c := e.state.Choices[i-1]
	e.state.Choices = nil
	e.state.Paragraphs = nil

	if c.Text != "" {
		e.state.Paragraphs = append(e.state.Paragraphs, domain.Paragraph{Text: c.Text})
	}
	e.state.Visits[c.Path]++
	if b := e.blockAt(c.Path); b != nil && b.Label != "" {
		addr, _, _ := splitChoicePath(c.Path)
		e.state.Visits[addr+"."+b.Label]++
	}

	target := c.Divert
	if target == "" {
		target = c.Path
	}
	return e.read(target)
}

// Observe registers a change observer for a persistent variable.
func (e *Engine) Observe(name string, fn Observer) {
	e.observers[name] = append(e.observers[name], fn)
}

// Bind registers a host function for the expression sandbox.
func (e *Engine) Bind(name string, fn HostFunc) {
	e.functions[name] = fn
}

// assign evaluates an assignment block. Writes to constants are refused,
// temp-flagged names (or names already living in temp) go to the temp scope,
// and observers fire only when a persistent value actually changes.
func (e *Engine) assign(b *domain.Block) {
	if b.Var == "" {
		if _, err := e.ev.Eval(b.Value, e); err != nil {
			e.logger.Warn("statement failed", "expr", b.Value, "err", err)
		}
		return
	}
	if _, isConst := e.state.Constants[b.Var]; isConst {
		e.logger.Warn("refusing to overwrite constant", "name", b.Var)
		return
	}
	val, err := e.ev.Eval(b.Value, e)
	if err != nil {
		e.logger.Warn("assignment failed", "name", b.Var, "expr", b.Value, "err", err)
		return
	}
	if _, inTemp := e.state.Temp[b.Var]; b.Temp || inTemp {
		e.state.Temp[b.Var] = val
		return
	}
	old, had := e.state.Variables[b.Var]
	e.state.Variables[b.Var] = val
	if !had || !reflect.DeepEqual(old, val) {
		for _, fn := range e.observers[b.Var] {
			fn(b.Var, val)
		}
	}
}

// --- eval.Env ---

// LookupVar resolves temp, then variables, then constants.
func (e *Engine) LookupVar(name string) (any, bool) {
	if v, ok := e.state.Temp[name]; ok {
		return v, true
	}
	if v, ok := e.state.Variables[name]; ok {
		return v, true
	}
	if v, ok := e.state.Constants[name]; ok {
		return v, true
	}
	return nil, false
}

// Registry exposes the list declarations to the evaluator.
func (e *Engine) Registry() *lists.Registry { return e.reg }

// CallHost invokes a bound host function.
func (e *Engine) CallHost(name string, args []any) (any, bool, error) {
	fn, ok := e.functions[name]
	if !ok {
		return nil, false, nil
	}
	out, err := fn(args)
	return out, true, err
}

// RNG returns the session random source.
func (e *Engine) RNG() *rand.Rand { return e.rng }

// SeedRandom reseeds the session random source (SEED_RANDOM builtin).
func (e *Engine) SeedRandom(seed int64) {
	e.rng = rand.New(rand.NewSource(seed))
}
