package dinky_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propapanda/dinky"
)

const doorStory = `
VAR mood = 1
-> door
=== door ===
You face a door.
+ [Knock] Knock knock. -> door
* [Walk away] You leave. -> END
`

func TestCompileErrors(t *testing.T) {
	_, err := dinky.Compile("fine\n/* broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block comment")
}

func TestSessionLifecycle(t *testing.T) {
	story, err := dinky.Compile(doorStory)
	require.NoError(t, err)

	require.NoError(t, story.Begin())
	require.True(t, story.CanContinue())

	got := story.Continue(0)
	require.Len(t, got, 1)
	assert.Equal(t, "You face a door.", got[0].Text)

	require.True(t, story.CanChoose())
	menu := story.Choices()
	require.Len(t, menu, 2)
	assert.Equal(t, "Knock", menu[0].Title)
	assert.Equal(t, "Walk away", menu[1].Title)

	require.NoError(t, story.Choose(1))
	got = story.Continue(0)
	require.Len(t, got, 2)
	assert.Equal(t, "Knock knock.", got[0].Text)
	assert.Equal(t, "You face a door.", got[1].Text)

	require.NoError(t, story.Choose(2))
	got = story.Continue(0)
	require.Len(t, got, 1)
	assert.Equal(t, "You leave.", got[0].Text)
	assert.True(t, story.IsOver())
	assert.False(t, story.CanContinue())
	assert.False(t, story.CanChoose())
}

func TestGlueEndToEnd(t *testing.T) {
	story, err := dinky.Compile("Hello<>\n world.")
	require.NoError(t, err)
	require.NoError(t, story.Begin())

	got := story.Continue(0)
	require.Len(t, got, 1)
	assert.Equal(t, "Hello world.", got[0].Text)
}

func TestSnapshotRestoreAcrossInstances(t *testing.T) {
	story, err := dinky.Compile(doorStory)
	require.NoError(t, err)
	require.NoError(t, story.Begin())
	story.Continue(0)
	require.NoError(t, story.Choose(1))
	story.Continue(0)

	snap := story.Snapshot()

	resumed, err := dinky.Compile(doorStory)
	require.NoError(t, err)
	require.NoError(t, resumed.Restore(snap))

	require.True(t, resumed.CanChoose())
	require.NoError(t, resumed.Choose(2))
	got := resumed.Continue(0)
	require.Len(t, got, 1)
	assert.Equal(t, "You leave.", got[0].Text)
	assert.True(t, resumed.IsOver())
}

func TestObserveAndBind(t *testing.T) {
	story, err := dinky.Compile(`
VAR gold = 0
~ gold = loot(7)
You pocket {gold} gold. -> END
`)
	require.NoError(t, err)

	story.Bind("loot", func(args []any) (any, error) {
		return args[0].(float64) * 3, nil
	})
	var observed []any
	story.Observe("gold", func(name string, value any) {
		observed = append(observed, value)
	})

	require.NoError(t, story.Begin())
	got := story.Continue(0)
	require.Len(t, got, 1)
	assert.Equal(t, "You pocket 21 gold.", got[0].Text)
	assert.Equal(t, []any{float64(21)}, observed)
}

func TestTagsSurviveToOutput(t *testing.T) {
	story, err := dinky.Compile("A quiet night. #mood #calm\n-> END")
	require.NoError(t, err)
	require.NoError(t, story.Begin())

	got := story.Continue(0)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"mood", "calm"}, got[0].Tags)
}

func TestRunnerPlaysToTheEnd(t *testing.T) {
	story, err := dinky.Compile(doorStory)
	require.NoError(t, err)

	runner := dinky.NewRunner()
	runner.Input = strings.NewReader("1\n2\n")
	var out bytes.Buffer
	runner.Output = &out
	runner.Headless = true

	require.NoError(t, runner.Run(story))

	text := out.String()
	assert.Contains(t, text, "You face a door.")
	assert.Contains(t, text, "1) Knock")
	assert.Contains(t, text, "2) Walk away")
	assert.Contains(t, text, "Knock knock.")
	assert.Contains(t, text, "You leave.")
	assert.True(t, story.IsOver())
}

func TestRunnerStopsOnQuit(t *testing.T) {
	story, err := dinky.Compile(doorStory)
	require.NoError(t, err)

	runner := dinky.NewRunner()
	runner.Input = strings.NewReader("quit\n")
	var out bytes.Buffer
	runner.Output = &out
	runner.Headless = true

	require.NoError(t, runner.Run(story))
	assert.False(t, story.IsOver())
}
