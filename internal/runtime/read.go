package runtime

import (
	"strconv"
	"strings"

	"github.com/propapanda/dinky/internal/eval"
	"github.com/propapanda/dinky/pkg/domain"
)

// readMode is the interpreter's narration mode while walking a block list.
type readMode int

const (
	// modeText accepts any block and emits narration.
	modeText readMode = iota
	// modeChoices collects choice blocks; the first non-choice quits the
	// pass, leaving the rest unread.
	modeChoices
	// modeGathers skips choice blocks until narration resumes at a gather.
	modeGathers
	// modeQuit aborts the walk (divert taken or menu boundary reached).
	modeQuit
)

// read is the public entry of a pass: it resolves the target, follows the
// divert, and fires pending fallback choices once the pass has unwound with
// no visible menu.
func (e *Engine) read(target string) error {
	e.fallback = nil
	e.readErr = nil
	if err := e.readTarget(target); err != nil {
		return err
	}
	for e.fallback != nil && len(e.state.Choices) == 0 && !e.state.IsOver {
		fb := e.fallback
		e.fallback = nil
		next := fb.Divert
		if next == "" {
			next = fb.Path
		}
		if err := e.readTarget(next); err != nil {
			return err
		}
	}
	err := e.readErr
	e.readErr = nil
	return err
}

// readTarget resolves an address (optionally carrying a `>chain` descent),
// records the visit, and walks the stitch.
func (e *Engine) readTarget(target string) error {
	addrPart := target
	var resume []string
	if i := strings.IndexByte(target, '>'); i >= 0 {
		addrPart = target[:i]
		if rest := target[i+1:]; rest != "" {
			resume = strings.Split(rest, ".")
		}
	}

	path, err := e.resolve(addrPart)
	if err != nil {
		return err
	}
	if path.Knot == domain.EndKnot || path.Knot == domain.DoneKnot {
		e.state.IsOver = true
		e.state.Choices = nil
		return nil
	}

	st, ok := e.story.Stitch(path.Knot, path.Stitch)
	if !ok {
		return &domain.AddressError{Target: target, Knot: e.state.Current.Knot, Stitch: e.state.Current.Stitch}
	}

	e.visit(path)

	start := 0
	if path.Label != "" && len(resume) == 0 {
		if idx := labelIndex(st.Blocks, path.Label); idx >= 0 {
			start = idx
		}
	}
	e.readItems(st.Blocks, path, resume, nil, modeText, start)
	return nil
}

// visit records the boundary crossing: the knot counter bumps only when the
// knot changes, the stitch counter always; temp is cleared on either change.
func (e *Engine) visit(path domain.Path) {
	knotChanged := path.Knot != e.state.Current.Knot
	stitchChanged := path.Stitch != e.state.Current.Stitch
	if knotChanged {
		e.state.Visits[path.Knot]++
	}
	e.state.Visits[path.Knot+"."+path.Stitch]++
	if knotChanged || stitchChanged {
		e.state.Temp = make(map[string]any)
	}
	e.state.Current = domain.Path{Knot: path.Knot, Stitch: path.Stitch}
}

// readItems walks one block list. resume holds the remainder of a saved
// chain to descend through before normal iteration; trail is the chain from
// the stitch root to this list, used to address registered choices.
func (e *Engine) readItems(items []*domain.Block, at domain.Path, resume, trail []string, mode readMode, start int) readMode {
	i := start
	if len(resume) > 0 {
		idx, err := strconv.Atoi(resume[0])
		if err == nil && idx >= 0 && idx < len(items) {
			b := items[idx]
			m := modeText
			descended := false
			switch {
			case b.Kind == domain.BlockChoice:
				m = e.readItems(b.Node, at, resume[1:], append(trail, resume[0]), modeText, 0)
				descended = true
			case b.Kind == domain.BlockCondition && len(resume) > 1:
				branch := armByToken(b, resume[1])
				m = e.readItems(branch, at, resume[2:], append(trail, resume[0], resume[1]), modeText, 0)
				descended = true
			default:
				// Chain no longer matches the tree; re-read from the block.
				i = idx
			}
			if m == modeQuit {
				return modeQuit
			}
			if descended {
				i = idx + 1
				mode = modeGathers
			}
		}
	}

	for ; i < len(items); i++ {
		b := items[i]

		if b.Kind == domain.BlockChoice {
			if mode == modeGathers {
				continue
			}
			mode = modeChoices
			e.registerChoice(b, at, append(trail, strconv.Itoa(i)))
			continue
		}

		// First non-choice block after a menu ends the pass.
		if mode == modeChoices {
			return modeQuit
		}
		if mode == modeGathers {
			mode = modeText
		}

		if b.Label != "" {
			e.visitLabel(at, b.Label)
		}

		switch b.Kind {
		case domain.BlockParagraph:
			e.emit(b)
			if b.Divert != "" {
				if err := e.readTarget(b.Divert); err != nil {
					e.logger.Warn("divert failed", "target", b.Divert, "err", err)
					if e.readErr == nil {
						e.readErr = err
					}
				}
				return modeQuit
			}
		case domain.BlockAlts:
			alt := e.pickAlt(b, at)
			if alt != nil {
				m := e.readItems(alt, at, nil, append(trail, strconv.Itoa(i)), modeText, 0)
				if m == modeQuit {
					return modeQuit
				}
				mode = m
			}
		case domain.BlockCondition:
			branch, token := e.pickBranch(b)
			m := e.readItems(branch, at, nil, append(trail, strconv.Itoa(i), token), modeText, 0)
			if m == modeQuit {
				return modeQuit
			}
			mode = m
		case domain.BlockAssign:
			e.assign(b)
		}
	}
	return mode
}

// registerChoice evaluates the guard and queues a visible choice, remembers
// a fallback, or filters an exhausted one-shot.
func (e *Engine) registerChoice(b *domain.Block, at domain.Path, trail []string) {
	if b.Guard != "" && !e.ev.Truthy(b.Guard, e) {
		return
	}
	path := at.Knot + "." + at.Stitch + ">" + strings.Join(trail, ".")

	if b.Fallback {
		if e.fallback == nil {
			e.fallback = &domain.Choice{Divert: b.Divert, Path: path}
		}
		return
	}
	if !b.Sticky && e.state.Visits[path] > 0 {
		return
	}
	e.state.Choices = append(e.state.Choices, domain.Choice{
		Title:  e.expand(b.Caption),
		Text:   e.expand(b.Text),
		Divert: b.Divert,
		Path:   path,
	})
}

// pickBranch evaluates a condition block. The returned token records the
// taken arm ("t", "tN" or "f") so chain resumption is exact. Evaluation
// errors count as a failed condition.
func (e *Engine) pickBranch(b *domain.Block) ([]*domain.Block, string) {
	if len(b.Conds) == 1 {
		if e.ev.Truthy(b.Conds[0], e) {
			return b.Success[0], "t"
		}
		return b.Failure, "f"
	}
	for i, cond := range b.Conds {
		if e.ev.Truthy(cond, e) {
			return b.Success[i], "t" + strconv.Itoa(i)
		}
	}
	return b.Failure, "f"
}

// armByToken maps a chain token back to a condition branch.
func armByToken(b *domain.Block, token string) []*domain.Block {
	switch {
	case token == "f":
		return b.Failure
	case token == "t":
		if len(b.Success) > 0 {
			return b.Success[0]
		}
	case strings.HasPrefix(token, "t"):
		if n, err := strconv.Atoi(token[1:]); err == nil && n >= 0 && n < len(b.Success) {
			return b.Success[n]
		}
	}
	return nil
}

// emit expands a paragraph's inline expressions and queues it, honoring
// glue: when the previous paragraph ends with `<>` or this text starts with
// it, the two merge (markers stripped, tag lists unioned). Paragraphs that
// expand to nothing and carry no tags are dropped.
func (e *Engine) emit(b *domain.Block) {
	text := e.expand(b.Text)
	if strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "<>"), "<>")) == "" && len(b.Tags) == 0 {
		return
	}

	q := e.state.Paragraphs
	if len(q) > 0 {
		prev := &q[len(q)-1]
		if strings.HasSuffix(prev.Text, "<>") || strings.HasPrefix(text, "<>") {
			prev.Text = glueJoin(strings.TrimSuffix(prev.Text, "<>"), strings.TrimPrefix(text, "<>"))
			prev.Tags = unionTags(prev.Tags, b.Tags)
			return
		}
	}
	e.state.Paragraphs = append(e.state.Paragraphs, domain.Paragraph{Text: text, Tags: append([]string(nil), b.Tags...)})
}

// glueJoin concatenates two glued segments with a single separating space
// when both carry text.
func glueJoin(a, b string) string {
	a = strings.TrimRight(a, " \t")
	b = strings.TrimLeft(b, " \t")
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func unionTags(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, t := range b {
		seen := false
		for _, have := range out {
			if have == t {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, t)
		}
	}
	return out
}

// expand replaces inline `{expr}` spans with the string form of their value
// at emit time. `{{}}` escapes to literal braces; evaluation errors become
// the empty string.
func (e *Engine) expand(text string) string {
	if !strings.Contains(text, "{") {
		return text
	}
	var out strings.Builder
	for i := 0; i < len(text); {
		if strings.HasPrefix(text[i:], "{{}}") {
			out.WriteString("{}")
			i += 4
			continue
		}
		if text[i] != '{' {
			out.WriteByte(text[i])
			i++
			continue
		}
		depth := 0
		j := i
		for ; j < len(text); j++ {
			if text[j] == '{' {
				depth++
			} else if text[j] == '}' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		if j >= len(text) {
			out.WriteString(text[i:])
			break
		}
		expr := text[i+1 : j]
		v, err := e.ev.Eval(expr, e)
		if err != nil {
			e.logger.Warn("inline expression failed", "expr", expr, "err", err)
		} else {
			out.WriteString(eval.Format(v, e.reg))
		}
		i = j + 1
	}
	return out.String()
}

// visitLabel records a label-scoped visit and tracks it as the most recent
// address.
func (e *Engine) visitLabel(at domain.Path, label string) {
	e.state.Visits[at.Knot+"."+at.Stitch+"."+label]++
	e.state.Current = domain.Path{Knot: at.Knot, Stitch: at.Stitch, Label: label}
}

// labelIndex finds the top-level block carrying the label.
func labelIndex(items []*domain.Block, label string) int {
	for i, b := range items {
		if b.Label == label {
			return i
		}
	}
	return -1
}

// blockAt walks a choice path ("knot.stitch>0.t.2") back to its block.
func (e *Engine) blockAt(path string) *domain.Block {
	addr, chain, ok := splitChoicePath(path)
	if !ok {
		return nil
	}
	knot, stitch, ok := strings.Cut(addr, ".")
	if !ok {
		return nil
	}
	st, ok := e.story.Stitch(knot, stitch)
	if !ok {
		return nil
	}
	items := st.Blocks
	var cur *domain.Block
	for i := 0; i < len(chain); i++ {
		tok := chain[i]
		if tok == "f" || strings.HasPrefix(tok, "t") {
			if cur == nil {
				return nil
			}
			items = armByToken(cur, tok)
			cur = nil
			continue
		}
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 0 || idx >= len(items) {
			return nil
		}
		cur = items[idx]
		items = cur.Node
	}
	return cur
}

// splitChoicePath separates "knot.stitch>chain" into its halves.
func splitChoicePath(path string) (addr string, chain []string, ok bool) {
	i := strings.IndexByte(path, '>')
	if i < 0 {
		return "", nil, false
	}
	addr = path[:i]
	if rest := path[i+1:]; rest != "" {
		chain = strings.Split(rest, ".")
	}
	return addr, chain, true
}
