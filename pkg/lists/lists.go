// Package lists implements the multi-typed set values behind LIST
// declarations: a Value maps list names to the subset of items currently
// enabled, and a Registry built from the story's declarations supplies the
// raw ordinals that drive ordering, ranges, and rendering.
package lists

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/propapanda/dinky/pkg/domain"
)

// Value is a multi-typed set: list name to enabled items.
type Value map[string]map[string]bool

// New returns an empty value.
func New() Value { return make(Value) }

// FromItem builds a single-element value.
func FromItem(list, item string) Value {
	return Value{list: {item: true}}
}

// Add enables item in list.
func (v Value) Add(list, item string) {
	set, ok := v[list]
	if !ok {
		set = make(map[string]bool)
		v[list] = set
	}
	set[item] = true
}

// Clone returns an independent copy.
func (v Value) Clone() Value {
	out := New()
	for list, set := range v {
		for item, on := range set {
			if on {
				out.Add(list, item)
			}
		}
	}
	return out
}

// Count returns the number of enabled items across all lists.
func (v Value) Count() int {
	n := 0
	for _, set := range v {
		for _, on := range set {
			if on {
				n++
			}
		}
	}
	return n
}

// Empty reports whether no item is enabled.
func (v Value) Empty() bool { return v.Count() == 0 }

// Union returns v ∪ o.
func (v Value) Union(o Value) Value {
	out := v.Clone()
	for list, set := range o {
		for item, on := range set {
			if on {
				out.Add(list, item)
			}
		}
	}
	return out
}

// Minus returns v ∖ o.
func (v Value) Minus(o Value) Value {
	out := New()
	for list, set := range v {
		for item, on := range set {
			if on && !o.has(list, item) {
				out.Add(list, item)
			}
		}
	}
	return out
}

// Intersect returns v ∩ o.
func (v Value) Intersect(o Value) Value {
	out := New()
	for list, set := range v {
		for item, on := range set {
			if on && o.has(list, item) {
				out.Add(list, item)
			}
		}
	}
	return out
}

// Contains reports o ⊆ v. The empty set is contained in nothing, matching
// the author-facing `has` operator.
func (v Value) Contains(o Value) bool {
	if o.Empty() {
		return false
	}
	for list, set := range o {
		for item, on := range set {
			if on && !v.has(list, item) {
				return false
			}
		}
	}
	return true
}

// Equal reports identical contents across all list names.
func (v Value) Equal(o Value) bool {
	return v.Count() == o.Count() && (o.Empty() || v.Contains(o))
}

func (v Value) has(list, item string) bool {
	set, ok := v[list]
	return ok && set[item]
}

// Registry resolves items against the story's LIST declarations. Declaration
// order breaks ties and orders rendering.
type Registry struct {
	decls map[string]*domain.ListDecl
	order []string
}

// NewRegistry wraps the model's declaration table.
func NewRegistry(decls map[string]*domain.ListDecl, order []string) *Registry {
	if decls == nil {
		decls = map[string]*domain.ListDecl{}
	}
	return &Registry{decls: decls, order: order}
}

// Decl returns the declaration for a list name.
func (r *Registry) Decl(name string) (*domain.ListDecl, bool) {
	d, ok := r.decls[name]
	return d, ok
}

// Has reports whether name is a declared list.
func (r *Registry) Has(name string) bool {
	_, ok := r.decls[name]
	return ok
}

// FindItem resolves a bare item name by scanning declarations in order.
func (r *Registry) FindItem(item string) (string, bool) {
	for _, name := range r.order {
		if r.decls[name].Ordinal(item) > 0 {
			return name, true
		}
	}
	return "", false
}

// Resolve turns an author reference into a value: "List.item" is qualified,
// a bare name searches all declarations.
func (r *Registry) Resolve(ref string) (Value, bool) {
	if list, item, ok := strings.Cut(ref, "."); ok {
		d, found := r.decls[list]
		if !found || d.Ordinal(item) == 0 {
			return nil, false
		}
		return FromItem(list, item), true
	}
	list, ok := r.FindItem(ref)
	if !ok {
		return nil, false
	}
	return FromItem(list, ref), true
}

// Initial returns the declared initially-active subset of a list.
func (r *Registry) Initial(name string) Value {
	out := New()
	if d, ok := r.decls[name]; ok {
		for _, item := range d.Active {
			out.Add(name, item)
		}
	}
	return out
}

// Nth returns the value holding the n-th (1-based) item of list.
func (r *Registry) Nth(list string, n int) (Value, bool) {
	d, ok := r.decls[list]
	if !ok || n < 1 || n > len(d.Items) {
		return nil, false
	}
	return FromItem(list, d.Items[n-1]), true
}

// MinOrdinal returns the smallest raw ordinal in v, or 0 for the empty set.
func (r *Registry) MinOrdinal(v Value) int {
	best := 0
	for ord := range r.ordinals(v) {
		if best == 0 || ord < best {
			best = ord
		}
	}
	return best
}

// MaxOrdinal returns the largest raw ordinal in v, or 0 for the empty set.
func (r *Registry) MaxOrdinal(v Value) int {
	best := 0
	for ord := range r.ordinals(v) {
		if ord > best {
			best = ord
		}
	}
	return best
}

// Min returns the single-element value with the smallest ordinal.
func (r *Registry) Min(v Value) Value {
	return r.extreme(v, func(a, b int) bool { return a < b })
}

// Max returns the single-element value with the largest ordinal.
func (r *Registry) Max(v Value) Value {
	return r.extreme(v, func(a, b int) bool { return a > b })
}

// All returns the full declared set of every list v draws from.
func (r *Registry) All(v Value) Value {
	out := New()
	for list := range v {
		d, ok := r.decls[list]
		if !ok {
			continue
		}
		for _, item := range d.Items {
			out.Add(list, item)
		}
	}
	return out
}

// RawValue returns the raw ordinal of a single-element value, or 0.
func (r *Registry) RawValue(v Value) int {
	if v.Count() != 1 {
		return 0
	}
	return r.MaxOrdinal(v)
}

// Range keeps the items of v's declaring lists whose ordinals fall in
// [min, max].
func (r *Registry) Range(v Value, min, max int) Value {
	out := New()
	all := r.All(v)
	for list, set := range all {
		d := r.decls[list]
		for item := range set {
			if ord := d.Ordinal(item); ord >= min && ord <= max {
				out.Add(list, item)
			}
		}
	}
	return out
}

// Invert returns the declared items of v's lists that v does not contain.
func (r *Registry) Invert(v Value) Value {
	return r.All(v).Minus(v)
}

// Random picks one enabled item uniformly using the supplied source.
func (r *Registry) Random(v Value, rng *rand.Rand) Value {
	items := r.sorted(v)
	if len(items) == 0 {
		return New()
	}
	pick := items[rng.Intn(len(items))]
	return FromItem(pick.list, pick.item)
}

// String renders the enabled items comma-separated in declaration order,
// lists ordered by declaration, unknown lists last alphabetically.
func (r *Registry) String(v Value) string {
	items := r.sorted(v)
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.item
	}
	return strings.Join(names, ", ")
}

type entry struct {
	list string
	item string
	ord  int
}

func (r *Registry) sorted(v Value) []entry {
	var out []entry
	rank := make(map[string]int, len(r.order))
	for i, name := range r.order {
		rank[name] = i
	}
	for list, set := range v {
		for item, on := range set {
			if !on {
				continue
			}
			ord := 0
			if d, ok := r.decls[list]; ok {
				ord = d.Ordinal(item)
			}
			out = append(out, entry{list: list, item: item, ord: ord})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iOK := rank[out[i].list]
		rj, jOK := rank[out[j].list]
		if iOK != jOK {
			return iOK
		}
		if ri != rj {
			return ri < rj
		}
		if out[i].ord != out[j].ord {
			return out[i].ord < out[j].ord
		}
		return out[i].item < out[j].item
	})
	return out
}

func (r *Registry) ordinals(v Value) map[int]bool {
	out := make(map[int]bool)
	for _, e := range r.sorted(v) {
		if e.ord > 0 {
			out[e.ord] = true
		}
	}
	return out
}

func (r *Registry) extreme(v Value, better func(a, b int) bool) Value {
	var bestEntry *entry
	entries := r.sorted(v)
	for i := range entries {
		e := &entries[i]
		if e.ord == 0 {
			continue
		}
		if bestEntry == nil || better(e.ord, bestEntry.ord) {
			bestEntry = e
		}
	}
	if bestEntry == nil {
		return New()
	}
	return FromItem(bestEntry.list, bestEntry.item)
}
