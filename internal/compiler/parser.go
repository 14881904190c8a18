// Package compiler turns narrative source text into the story model. The
// grammar is line-oriented: headers, declarations, choices, gathers and
// statements are classified per line, while brace groups (alternatives,
// conditions) may span lines and are folded by the lexer.
//
// Parsing is best-effort: a line that matches no rule is skipped. Only an
// unterminated block comment or brace group aborts with a ParseError.
package compiler

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/propapanda/dinky/pkg/domain"
)

var (
	identRe  = `[A-Za-z_][A-Za-z0-9_]*`
	knotRe   = regexp.MustCompile(`^(={2,})\s*(` + identRe + `)\s*=*\s*$`)
	stitchRe = regexp.MustCompile(`^=\s*(` + identRe + `)\s*=*\s*$`)
	declRe   = regexp.MustCompile(`^(INCLUDE|LIST|CONST|VAR)\s+(.*)$`)
	assignRe = regexp.MustCompile(`^(` + identRe + `)\s*=\s*(.+)$`)
	opEqRe   = regexp.MustCompile(`^(` + identRe + `)\s*(\+\+|--|\+=|-=)\s*(.*)$`)
	divertRe = regexp.MustCompile(`^` + identRe + `(\.` + identRe + `){0,2}$`)
	labelRe  = regexp.MustCompile(`^` + identRe + `$`)
	seqRe    = regexp.MustCompile(`^(stopping|cycle|once|shuffle)(?:\s+(stopping|cycle|once))?$`)
)

// Parse compiles source text into a story model.
func Parse(src string) (*domain.Story, error) {
	lines, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{
		story:  domain.NewStory(),
		knot:   domain.RootKnot,
		stitch: domain.RootStitch,
	}
	p.resetChain()

	for _, ln := range lines {
		p.line(ln)
	}

	if raw, ok := p.story.Constants["tree"]; ok {
		if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			p.story.Version.Tree = v
		}
	}
	return p.story, nil
}

// parser holds the node chain: a stack of open block lists whose top is the
// current insertion point. Choices push their nested node list; gathers and
// headers truncate it.
type parser struct {
	story  *domain.Story
	knot   string
	stitch string
	chain  []*[]*domain.Block
}

func (p *parser) resetChain() {
	st, _ := p.story.Stitch(p.knot, p.stitch)
	p.chain = []*[]*domain.Block{&st.Blocks}
}

func (p *parser) line(ln line) {
	text := strings.TrimSpace(ln.text)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "TODO:") {
		p.story.Todos = append(p.story.Todos, domain.Todo{
			Line: ln.num,
			Text: strings.TrimSpace(strings.TrimPrefix(text, "TODO:")),
		})
		return
	}

	if m := declRe.FindStringSubmatch(text); m != nil && !strings.Contains(m[2], "\n") {
		if p.declaration(m[1], m[2]) {
			return
		}
	}

	if m := knotRe.FindStringSubmatch(text); m != nil {
		p.openKnot(m[2])
		return
	}
	if m := stitchRe.FindStringSubmatch(text); m != nil {
		p.openStitch(m[1])
		return
	}

	if strings.HasPrefix(text, "~") {
		if b := parseStatement(strings.TrimSpace(text[1:])); b != nil {
			p.insert(0, b)
		}
		return
	}

	if level, sticky, rest, ok := choiceMarks(text); ok {
		p.choice(level, sticky, rest)
		return
	}

	level, rest := gatherMarks(text)
	p.paragraph(level, rest)
}

func (p *parser) declaration(kind, rest string) bool {
	rest = strings.TrimSpace(rest)
	switch kind {
	case "INCLUDE":
		p.story.Includes = append(p.story.Includes, rest)
		return true
	case "LIST":
		m := assignRe.FindStringSubmatch(rest)
		if m == nil {
			return false
		}
		decl := &domain.ListDecl{Name: m[1]}
		for _, item := range strings.Split(m[2], ",") {
			item = strings.TrimSpace(item)
			if active := strings.HasPrefix(item, "(") && strings.HasSuffix(item, ")"); active {
				item = strings.TrimSpace(item[1 : len(item)-1])
				decl.Active = append(decl.Active, item)
			}
			if item != "" {
				decl.Items = append(decl.Items, item)
			}
		}
		p.story.Lists[decl.Name] = decl
		p.story.ListOrder = append(p.story.ListOrder, decl.Name)
		return true
	case "CONST":
		m := assignRe.FindStringSubmatch(rest)
		if m == nil {
			return false
		}
		p.story.Constants[m[1]] = strings.TrimSpace(m[2])
		return true
	case "VAR":
		m := assignRe.FindStringSubmatch(rest)
		if m == nil {
			return false
		}
		p.story.Variables[m[1]] = strings.TrimSpace(m[2])
		return true
	}
	return false
}

func (p *parser) openKnot(name string) {
	if _, ok := p.story.Knots[name]; !ok {
		p.story.Knots[name] = &domain.Knot{
			Stitches: map[string]*domain.Stitch{domain.RootStitch: {}},
		}
	}
	p.knot = name
	p.stitch = domain.RootStitch
	p.resetChain()
}

func (p *parser) openStitch(name string) {
	k := p.story.Knots[p.knot]
	if _, ok := k.Stitches[name]; !ok {
		k.Stitches[name] = &domain.Stitch{}
	}
	p.stitch = name
	p.resetChain()
}

// insert places a block at gather/choice level. Level 0 appends to the chain
// top; level L resets the chain to length L first.
func (p *parser) insert(level int, b *domain.Block) {
	if level > 0 {
		if level > len(p.chain) {
			level = len(p.chain)
		}
		p.chain = p.chain[:level]
	}
	top := p.chain[len(p.chain)-1]
	*top = append(*top, b)
}

func (p *parser) choice(level int, sticky bool, rest string) {
	b := &domain.Block{Kind: domain.BlockChoice, Sticky: sticky}

	for strings.HasPrefix(rest, "{") {
		inner, after, ok := cutGroup(rest)
		if !ok {
			break
		}
		if b.Guard == "" {
			b.Guard = inner
		} else {
			b.Guard += " && " + inner
		}
		rest = strings.TrimSpace(after)
	}

	b.Label, rest = cutLabel(rest)

	if target, ok := cutDivertOnly(rest); ok {
		b.Fallback = true
		b.Divert = target
	} else {
		caption, divert, tags := splitContent(rest)
		b.Divert = divert
		b.Tags = tags
		b.Caption, b.Text = splitCaption(caption)
	}

	if level > len(p.chain) {
		level = len(p.chain)
	}
	p.chain = p.chain[:level]
	top := p.chain[len(p.chain)-1]
	*top = append(*top, b)
	p.chain = append(p.chain, &b.Node)
}

func (p *parser) paragraph(level int, rest string) {
	label, rest := cutLabel(rest)

	if b := parseGroup(rest); b != nil {
		b.Label = label
		p.insert(level, b)
		return
	}

	text, divert, tags := splitContent(rest)
	if text == "" && label == "" && divert == "" && len(tags) == 0 {
		return
	}
	p.insert(level, &domain.Block{
		Kind:   domain.BlockParagraph,
		Label:  label,
		Text:   text,
		Divert: divert,
		Tags:   tags,
	})
}

// parseStatement handles `~` lines: assignment with ++/--/+=/-= desugaring,
// optional `temp` scoping, or a bare expression evaluated for side effects.
func parseStatement(s string) *domain.Block {
	if s == "" {
		return nil
	}
	b := &domain.Block{Kind: domain.BlockAssign}
	if rest, ok := strings.CutPrefix(s, "temp "); ok {
		b.Temp = true
		s = strings.TrimSpace(rest)
	}
	if m := opEqRe.FindStringSubmatch(s); m != nil {
		b.Var = m[1]
		switch m[2] {
		case "++":
			b.Value = m[1] + " + 1"
		case "--":
			b.Value = m[1] + " - 1"
		case "+=":
			b.Value = m[1] + " + (" + strings.TrimSpace(m[3]) + ")"
		case "-=":
			b.Value = m[1] + " - (" + strings.TrimSpace(m[3]) + ")"
		}
		return b
	}
	if assignTargetOnly(s) {
		if m := assignRe.FindStringSubmatch(s); m != nil {
			b.Var = m[1]
			b.Value = strings.TrimSpace(m[2])
			return b
		}
	}
	b.Value = s
	return b
}

// assignTargetOnly guards against classifying `x == y` comparisons as
// assignments when a `~` line is really a bare expression.
func assignTargetOnly(s string) bool {
	i := strings.IndexByte(s, '=')
	return i > 0 && i+1 < len(s) && s[i+1] != '='
}

// choiceMarks counts leading `*`/`+` marks. Sticky follows the first mark.
func choiceMarks(s string) (level int, sticky bool, rest string, ok bool) {
	i := 0
	for i < len(s) {
		switch s[i] {
		case '*', '+':
			if level == 0 {
				sticky = s[i] == '+'
			}
			level++
			i++
		case ' ', '\t':
			i++
		default:
			return level, sticky, strings.TrimSpace(s[i:]), level > 0
		}
	}
	return level, sticky, "", level > 0
}

// gatherMarks counts leading `-` marks, careful not to eat a `->` divert.
func gatherMarks(s string) (level int, rest string) {
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '-' && !(i+1 < len(s) && s[i+1] == '>'):
			level++
			i++
		case s[i] == ' ' || s[i] == '\t':
			i++
		default:
			return level, strings.TrimSpace(s[i:])
		}
	}
	return level, ""
}

// cutLabel extracts a leading `(name)` label.
func cutLabel(s string) (label, rest string) {
	if !strings.HasPrefix(s, "(") {
		return "", s
	}
	end := strings.IndexByte(s, ')')
	if end < 0 {
		return "", s
	}
	name := strings.TrimSpace(s[1:end])
	if !labelRe.MatchString(name) {
		return "", s
	}
	return name, strings.TrimSpace(s[end+1:])
}

// cutGroup splits a leading brace group into its inner text and the rest.
func cutGroup(s string) (inner, after string, ok bool) {
	if !strings.HasPrefix(s, "{") {
		return "", s, false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[1:i]), s[i+1:], true
			}
		}
	}
	return "", s, false
}

// cutDivertOnly matches a line that is nothing but a divert (the fallback
// choice form and pure-divert paragraphs).
func cutDivertOnly(s string) (string, bool) {
	rest, ok := strings.CutPrefix(s, "->")
	if !ok {
		return "", false
	}
	target := strings.TrimSpace(rest)
	if divertRe.MatchString(target) {
		return target, true
	}
	return "", false
}

// splitContent divides a paragraph tail into text, divert target and tags,
// honoring brace nesting.
func splitContent(s string) (text, divert string, tags []string) {
	parts := splitTop(s, '#')
	content := parts[0]
	for _, t := range parts[1:] {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if i := indexTop(content, "->"); i >= 0 {
		target := strings.TrimSpace(content[i+2:])
		if divertRe.MatchString(target) {
			divert = target
			content = content[:i]
		}
	}
	return strings.TrimSpace(content), divert, tags
}

// splitCaption applies the `prefix [middle] suffix` rule: the menu title is
// prefix+middle, the narrated text after selection is prefix+suffix.
func splitCaption(caption string) (title, text string) {
	open := indexTop(caption, "[")
	if open < 0 {
		return caption, caption
	}
	close := strings.IndexByte(caption[open:], ']')
	if close < 0 {
		return caption, caption
	}
	close += open
	prefix := caption[:open]
	middle := caption[open+1 : close]
	suffix := caption[close+1:]
	return joinHalves(prefix, middle), joinHalves(prefix, suffix)
}

// joinHalves glues two caption halves with a single space when both sides
// carry text.
func joinHalves(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// parseGroup recognizes a line-level brace group as an alternatives or
// condition block. Smaller inline groups stay in paragraph text and are
// evaluated at emit time, so nil means "not a block".
func parseGroup(s string) *domain.Block {
	inner, after, ok := cutGroup(s)
	if !ok || strings.TrimSpace(after) != "" {
		return nil
	}

	if colon := indexTop(inner, ":"); colon >= 0 {
		head := strings.TrimSpace(inner[:colon])
		if m := seqRe.FindStringSubmatch(head); m != nil {
			return altsBlock(m, splitArms(inner[colon+1:]))
		}
		return conditionBlock(splitArms(inner))
	}

	if len(splitTop(inner, '|')) > 1 || strings.Contains(inner, "\n") {
		if arms := splitArms(inner); len(arms) > 1 {
			return altsBlock(nil, arms)
		}
	}
	return nil
}

// splitArms divides group content into alternatives/branches: top-level `|`
// separators in the single-line form, leading `-` lines in the multi-line
// form.
func splitArms(s string) []string {
	var arms []string
	for _, part := range splitTop(s, '|') {
		cur := ""
		flush := func() {
			if strings.TrimSpace(cur) != "" {
				arms = append(arms, strings.TrimSpace(cur))
			}
			cur = ""
		}
		for _, ln := range strings.Split(part, "\n") {
			t := strings.TrimSpace(ln)
			if strings.HasPrefix(t, "-") && !strings.HasPrefix(t, "->") {
				flush()
				cur = strings.TrimSpace(strings.TrimPrefix(t, "-"))
				continue
			}
			if cur == "" {
				cur = t
			} else {
				cur += "\n" + t
			}
		}
		flush()
	}
	return arms
}

func altsBlock(seqMatch []string, arms []string) *domain.Block {
	b := &domain.Block{Kind: domain.BlockAlts, Seq: domain.SeqStopping}
	if seqMatch != nil {
		switch seqMatch[1] {
		case "shuffle":
			b.Shuffle = true
			b.Seq = domain.SeqCycle
			if seqMatch[2] != "" {
				b.Seq = domain.SeqMode(seqMatch[2])
			}
		default:
			b.Seq = domain.SeqMode(seqMatch[1])
		}
	}
	for _, arm := range arms {
		b.Alts = append(b.Alts, parseBranch(arm))
	}
	return b
}

func conditionBlock(arms []string) *domain.Block {
	b := &domain.Block{Kind: domain.BlockCondition}
	for _, arm := range arms {
		colon := indexTop(arm, ":")
		if colon < 0 {
			// Bare trailing arm is the else branch of the `{c: a|b}` form.
			b.Failure = parseBranch(arm)
			continue
		}
		cond := strings.TrimSpace(arm[:colon])
		body := arm[colon+1:]
		if cond == "else" {
			b.Failure = parseBranch(body)
			continue
		}
		b.Conds = append(b.Conds, cond)
		b.Success = append(b.Success, parseBranch(body))
	}
	if len(b.Conds) == 0 {
		return nil
	}
	return b
}

// parseBranch turns branch/alternative content into a block sequence:
// one block per line, statements included, choices not (a branch re-joins the
// surrounding flow, it does not open a new menu level).
func parseBranch(s string) []*domain.Block {
	var out []*domain.Block
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(ln, "~"); ok {
			if b := parseStatement(strings.TrimSpace(rest)); b != nil {
				out = append(out, b)
			}
			continue
		}
		label, rest := cutLabel(ln)
		text, divert, tags := splitContent(rest)
		if text == "" && label == "" && divert == "" && len(tags) == 0 {
			continue
		}
		out = append(out, &domain.Block{
			Kind:   domain.BlockParagraph,
			Label:  label,
			Text:   text,
			Divert: divert,
			Tags:   tags,
		})
	}
	return out
}
