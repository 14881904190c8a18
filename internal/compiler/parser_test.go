package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propapanda/dinky/pkg/domain"
)

func mustParse(t *testing.T, src string) *domain.Story {
	t.Helper()
	story, err := Parse(src)
	require.NoError(t, err)
	return story
}

func rootBlocks(t *testing.T, story *domain.Story) []*domain.Block {
	t.Helper()
	st, ok := story.Stitch(domain.RootKnot, domain.RootStitch)
	require.True(t, ok)
	return st.Blocks
}

func TestKnotsAndStitches(t *testing.T) {
	story := mustParse(t, `
Intro paragraph.

=== park ===
At the park.

= gate =
At the gate.

=== lake ===
At the lake.
`)

	require.Contains(t, story.Knots, "park")
	require.Contains(t, story.Knots, "lake")

	root := rootBlocks(t, story)
	require.Len(t, root, 1)
	assert.Equal(t, "Intro paragraph.", root[0].Text)

	park, ok := story.Stitch("park", domain.RootStitch)
	require.True(t, ok)
	require.Len(t, park.Blocks, 1)
	assert.Equal(t, "At the park.", park.Blocks[0].Text)

	gate, ok := story.Stitch("park", "gate")
	require.True(t, ok)
	require.Len(t, gate.Blocks, 1)
	assert.Equal(t, "At the gate.", gate.Blocks[0].Text)
}

func TestDeclarations(t *testing.T) {
	story := mustParse(t, `
INCLUDE chapter2.ink
CONST speed = 42
CONST tree = 3
VAR health = 100
LIST colors = red, (green), blue
`)

	assert.Equal(t, []string{"chapter2.ink"}, story.Includes)
	assert.Equal(t, "42", story.Constants["speed"])
	assert.Equal(t, "100", story.Variables["health"])
	assert.Equal(t, 3, story.Version.Tree)

	decl := story.Lists["colors"]
	require.NotNil(t, decl)
	assert.Equal(t, []string{"red", "green", "blue"}, decl.Items)
	assert.Equal(t, []string{"green"}, decl.Active)
	assert.Equal(t, []string{"colors"}, story.ListOrder)
}

func TestParagraphParts(t *testing.T) {
	story := mustParse(t, "(start) Hello there -> park #mood #calm")

	root := rootBlocks(t, story)
	require.Len(t, root, 1)
	b := root[0]
	assert.Equal(t, domain.BlockParagraph, b.Kind)
	assert.Equal(t, "start", b.Label)
	assert.Equal(t, "Hello there", b.Text)
	assert.Equal(t, "park", b.Divert)
	assert.Equal(t, []string{"mood", "calm"}, b.Tags)
}

func TestChoiceNesting(t *testing.T) {
	story := mustParse(t, `
* First
* * Deep one
* * Deep two
* Second
- Gather line.
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 3) // two choices plus the gather

	first := root[0]
	assert.Equal(t, domain.BlockChoice, first.Kind)
	assert.False(t, first.Sticky)
	require.Len(t, first.Node, 2)
	assert.Equal(t, "Deep one", first.Node[0].Caption)

	second := root[1]
	assert.Equal(t, "Second", second.Caption)
	assert.Empty(t, second.Node)

	assert.Equal(t, domain.BlockParagraph, root[2].Kind)
	assert.Equal(t, "Gather line.", root[2].Text)
}

func TestGatherResetsChain(t *testing.T) {
	story := mustParse(t, `
* Top
* * Inner
- - Inner gather
- Outer gather
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 2)

	top := root[0]
	require.Len(t, top.Node, 2)
	assert.Equal(t, "Inner", top.Node[0].Caption)
	assert.Equal(t, "Inner gather", top.Node[1].Text)
	assert.Equal(t, "Outer gather", root[1].Text)
}

func TestChoiceVariants(t *testing.T) {
	story := mustParse(t, `
+ {visited > 2} (again) Ask [again] politely -> loop
* -> fallthrough
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 2)

	sticky := root[0]
	assert.True(t, sticky.Sticky)
	assert.Equal(t, "visited > 2", sticky.Guard)
	assert.Equal(t, "again", sticky.Label)
	assert.Equal(t, "Ask again", sticky.Caption)
	assert.Equal(t, "Ask politely", sticky.Text)
	assert.Equal(t, "loop", sticky.Divert)
	assert.False(t, sticky.Fallback)

	fb := root[1]
	assert.True(t, fb.Fallback)
	assert.Equal(t, "fallthrough", fb.Divert)
	assert.Empty(t, fb.Caption)
}

func TestCaptionSplitEdges(t *testing.T) {
	story := mustParse(t, `
* [Only menu]
* Only both
`)
	root := rootBlocks(t, story)

	assert.Equal(t, "Only menu", root[0].Caption)
	assert.Equal(t, "", root[0].Text)
	assert.Equal(t, "Only both", root[1].Caption)
	assert.Equal(t, "Only both", root[1].Text)
}

func TestStatements(t *testing.T) {
	story := mustParse(t, `
~ x = 1
~ temp y = x + 1
~ x++
~ x -= 2
~ ring()
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 5)
	for _, b := range root {
		assert.Equal(t, domain.BlockAssign, b.Kind)
	}

	assert.Equal(t, "x", root[0].Var)
	assert.Equal(t, "1", root[0].Value)
	assert.False(t, root[0].Temp)

	assert.Equal(t, "y", root[1].Var)
	assert.True(t, root[1].Temp)

	assert.Equal(t, "x + 1", root[2].Value)
	assert.Equal(t, "x - (2)", root[3].Value)

	assert.Equal(t, "", root[4].Var)
	assert.Equal(t, "ring()", root[4].Value)
}

func TestAltsGroups(t *testing.T) {
	story := mustParse(t, `
{stopping: first|second|third}
{a|b}
{shuffle: x|y}
{shuffle once: p|q}
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 4)

	stopping := root[0]
	assert.Equal(t, domain.BlockAlts, stopping.Kind)
	assert.Equal(t, domain.SeqStopping, stopping.Seq)
	require.Len(t, stopping.Alts, 3)
	assert.Equal(t, "second", stopping.Alts[1][0].Text)

	plain := root[1]
	assert.Equal(t, domain.BlockAlts, plain.Kind)
	assert.Equal(t, domain.SeqStopping, plain.Seq)

	shuffled := root[2]
	assert.True(t, shuffled.Shuffle)
	assert.Equal(t, domain.SeqCycle, shuffled.Seq)

	shuffleOnce := root[3]
	assert.True(t, shuffleOnce.Shuffle)
	assert.Equal(t, domain.SeqOnce, shuffleOnce.Seq)
}

func TestConditionGroups(t *testing.T) {
	story := mustParse(t, `
{x > 0: positive}
{x > 0: yes|no}
{x == 1: one | x == 2: two | else: many}
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 3)

	ifOnly := root[0]
	assert.Equal(t, domain.BlockCondition, ifOnly.Kind)
	assert.Equal(t, []string{"x > 0"}, ifOnly.Conds)
	assert.Empty(t, ifOnly.Failure)

	ifElse := root[1]
	assert.Equal(t, []string{"x > 0"}, ifElse.Conds)
	require.Len(t, ifElse.Failure, 1)
	assert.Equal(t, "no", ifElse.Failure[0].Text)

	sw := root[2]
	assert.Equal(t, []string{"x == 1", "x == 2"}, sw.Conds)
	require.Len(t, sw.Success, 2)
	assert.Equal(t, "two", sw.Success[1][0].Text)
	require.Len(t, sw.Failure, 1)
	assert.Equal(t, "many", sw.Failure[0].Text)
}

func TestMultilineCondition(t *testing.T) {
	story := mustParse(t, `
{x > 0:
    all good
    ~ y = 1
- else:
    bad news -> END
}
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 1)
	b := root[0]
	assert.Equal(t, domain.BlockCondition, b.Kind)
	require.Len(t, b.Success, 1)
	require.Len(t, b.Success[0], 2)
	assert.Equal(t, "all good", b.Success[0][0].Text)
	assert.Equal(t, domain.BlockAssign, b.Success[0][1].Kind)
	require.Len(t, b.Failure, 1)
	assert.Equal(t, "END", b.Failure[0].Divert)
}

func TestInlineExpressionsStayInText(t *testing.T) {
	story := mustParse(t, "You have {count} coins.")
	root := rootBlocks(t, story)
	require.Len(t, root, 1)
	assert.Equal(t, domain.BlockParagraph, root[0].Kind)
	assert.Equal(t, "You have {count} coins.", root[0].Text)
}

func TestComments(t *testing.T) {
	story := mustParse(t, `
First. // trailing comment
/* block
   comment */Second.
TODO: polish the intro
`)

	root := rootBlocks(t, story)
	require.Len(t, root, 2)
	assert.Equal(t, "First.", root[0].Text)
	assert.Equal(t, "Second.", root[1].Text)

	require.Len(t, story.Todos, 1)
	assert.Equal(t, "polish the intro", story.Todos[0].Text)
	assert.Equal(t, 5, story.Todos[0].Line)
}

func TestUnterminatedBlockCommentFails(t *testing.T) {
	_, err := Parse("Fine.\n/* never closed")
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Line)
}

func TestUnterminatedGroupFails(t *testing.T) {
	_, err := Parse("ok\n{x > 0: never closed")
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Line)
}

func TestDivertOnlyParagraph(t *testing.T) {
	story := mustParse(t, "-> END")
	root := rootBlocks(t, story)
	require.Len(t, root, 1)
	assert.Equal(t, "END", root[0].Divert)
	assert.Empty(t, root[0].Text)
}

func TestMalformedDeclarationsFallBackToText(t *testing.T) {
	story := mustParse(t, `
LIST broken
CONST also broken
Real text.
`)
	root := rootBlocks(t, story)
	require.Len(t, root, 3)
	assert.Equal(t, "Real text.", root[2].Text)
}
