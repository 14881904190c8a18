package runtime

import (
	"strings"

	"github.com/propapanda/dinky/pkg/domain"
)

// resolve implements address resolution: 1-3 dotted parts interpreted
// against the current path. Three parts are literal; shorter forms are
// disambiguated by membership (knot, then stitch of the current knot, then
// label in scope).
func (e *Engine) resolve(target string) (domain.Path, error) {
	target = strings.TrimSpace(target)
	cur := e.state.Current
	fail := func() (domain.Path, error) {
		return domain.Path{}, &domain.AddressError{Target: target, Knot: cur.Knot, Stitch: cur.Stitch}
	}

	parts := strings.Split(target, ".")
	switch len(parts) {
	case 1:
		name := parts[0]
		if name == domain.EndKnot || name == domain.DoneKnot {
			return domain.Path{Knot: name, Stitch: domain.RootStitch}, nil
		}
		if e.story.HasKnot(name) {
			return domain.Path{Knot: name, Stitch: domain.RootStitch}, nil
		}
		if e.hasStitch(cur.Knot, name) {
			return domain.Path{Knot: cur.Knot, Stitch: name}, nil
		}
		if e.hasLabel(cur.Knot, cur.Stitch, name) {
			return domain.Path{Knot: cur.Knot, Stitch: cur.Stitch, Label: name}, nil
		}
		return fail()
	case 2:
		first, second := parts[0], parts[1]
		if e.story.HasKnot(first) {
			if e.hasStitch(first, second) {
				return domain.Path{Knot: first, Stitch: second}, nil
			}
			if e.hasLabel(first, domain.RootStitch, second) {
				return domain.Path{Knot: first, Stitch: domain.RootStitch, Label: second}, nil
			}
			return fail()
		}
		if e.hasStitch(cur.Knot, first) && e.hasLabel(cur.Knot, first, second) {
			return domain.Path{Knot: cur.Knot, Stitch: first, Label: second}, nil
		}
		return fail()
	case 3:
		if !e.story.HasKnot(parts[0]) || !e.hasStitch(parts[0], parts[1]) {
			return fail()
		}
		return domain.Path{Knot: parts[0], Stitch: parts[1], Label: parts[2]}, nil
	}
	return fail()
}

func (e *Engine) hasStitch(knot, stitch string) bool {
	_, ok := e.story.Stitch(knot, stitch)
	return ok
}

// hasLabel searches a stitch's whole subtree so nested gather labels are
// addressable by visit-count expressions.
func (e *Engine) hasLabel(knot, stitch, label string) bool {
	st, ok := e.story.Stitch(knot, stitch)
	if !ok {
		return false
	}
	return findLabel(st.Blocks, label)
}

func findLabel(items []*domain.Block, label string) bool {
	for _, b := range items {
		if b.Label == label {
			return true
		}
		if findLabel(b.Node, label) {
			return true
		}
		for _, branch := range b.Success {
			if findLabel(branch, label) {
				return true
			}
		}
		if findLabel(b.Failure, label) {
			return true
		}
		for _, alt := range b.Alts {
			if findLabel(alt, label) {
				return true
			}
		}
	}
	return false
}

// VisitCount resolves a bare expression identifier as an address and returns
// its visit counter. Valid-but-unvisited addresses report zero; names that
// resolve to nothing report ok=false so the evaluator treats them as
// undefined.
func (e *Engine) VisitCount(name string) (int, bool) {
	path, err := e.resolve(name)
	if err != nil {
		return 0, false
	}
	key := path.Knot
	if parts := strings.Split(name, "."); len(parts) == 1 && e.story.HasKnot(name) {
		// A bare knot reference counts knot entries, not stitch entries.
		return e.state.Visits[key], true
	}
	key = path.Knot + "." + path.Stitch
	if path.Label != "" {
		key += "." + path.Label
	}
	return e.state.Visits[key], true
}
