package runtime

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/propapanda/dinky/pkg/domain"
	"github.com/propapanda/dinky/pkg/lists"
)

// Snapshot returns a deep copy of the session state, suitable for a
// StateStore. The current label is cleared on store.
func (e *Engine) Snapshot() *domain.State {
	s := e.state
	out := &domain.State{
		Temp:      cloneScope(s.Temp),
		Variables: cloneScope(s.Variables),
		Constants: cloneScope(s.Constants),
		Visits:    make(map[string]int, len(s.Visits)),
		Seeds:     make(map[string]int64, len(s.Seeds)),
		Current:   domain.Path{Knot: s.Current.Knot, Stitch: s.Current.Stitch},
		IsOver:    s.IsOver,
		Version:   s.Version,
	}
	for k, v := range s.Visits {
		out.Visits[k] = v
	}
	for k, v := range s.Seeds {
		out.Seeds[k] = v
	}
	out.Paragraphs = append([]domain.Paragraph(nil), s.Paragraphs...)
	out.Output = append([]domain.Paragraph(nil), s.Output...)
	out.Choices = append([]domain.Choice(nil), s.Choices...)
	return out
}

// Restore loads a snapshot into the session. Same-version snapshots load
// directly; older ones go through the registered migrator; newer ones are
// refused rather than silently proceeding.
func (e *Engine) Restore(snap *domain.State) error {
	want := domain.Version{Engine: EngineVersion, Tree: e.story.Version.Tree}

	switch {
	case snap.Version == want:
		e.adopt(snap)
		return nil
	case snap.Version.Newer(want):
		return &domain.MigrationError{Have: snap.Version, Want: want, Msg: "snapshot is newer than this story"}
	case e.migrator == nil:
		return &domain.MigrationError{Have: snap.Version, Want: want, Msg: "no migrator registered"}
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	migrated, err := e.migrator(decoded, snap.Version)
	if err != nil {
		return &domain.MigrationError{Have: snap.Version, Want: want, Msg: err.Error()}
	}

	next := domain.NewState(want)
	cfg := &mapstructure.DecoderConfig{
		Result:           next,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(migrated); err != nil {
		return &domain.MigrationError{Have: snap.Version, Want: want, Msg: err.Error()}
	}
	next.Version = want
	e.adopt(next)
	return nil
}

// adopt installs a snapshot as live state, re-typing serialized list values.
func (e *Engine) adopt(snap *domain.State) {
	cp := &domain.State{
		Temp:      normalizeScope(snap.Temp),
		Variables: normalizeScope(snap.Variables),
		Constants: normalizeScope(snap.Constants),
		Visits:    make(map[string]int, len(snap.Visits)),
		Seeds:     make(map[string]int64, len(snap.Seeds)),
		Current:   domain.Path{Knot: snap.Current.Knot, Stitch: snap.Current.Stitch},
		IsOver:    snap.IsOver,
		Version:   snap.Version,
	}
	for k, v := range snap.Visits {
		cp.Visits[k] = v
	}
	for k, v := range snap.Seeds {
		cp.Seeds[k] = v
	}
	cp.Paragraphs = append([]domain.Paragraph(nil), snap.Paragraphs...)
	cp.Output = append([]domain.Paragraph(nil), snap.Output...)
	cp.Choices = append([]domain.Choice(nil), snap.Choices...)
	e.state = cp
}

func cloneScope(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if lv, ok := v.(lists.Value); ok {
			out[k] = lv.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// normalizeScope re-types values that lost their Go type through JSON or
// migration: nested string->bool maps become list values again.
func normalizeScope(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case lists.Value:
		return t.Clone()
	case map[string]map[string]bool:
		return lists.Value(t).Clone()
	case map[string]any:
		lv := lists.New()
		for list, set := range t {
			items, ok := set.(map[string]any)
			if !ok {
				return v
			}
			for item, on := range items {
				b, ok := on.(bool)
				if !ok {
					return v
				}
				if b {
					lv.Add(list, item)
				}
			}
		}
		return lv
	}
	return v
}
