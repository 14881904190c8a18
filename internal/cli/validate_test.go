package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "story.ink")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestValidateReportsShape(t *testing.T) {
	path := writeScript(t, `
VAR hp = 10
LIST moods = calm, angry
TODO: tune the numbers
-> park
=== park ===
Hello. -> missing_target
`)

	var out bytes.Buffer
	require.NoError(t, Validate(path, &out))

	report := out.String()
	assert.Contains(t, report, "2 knots")
	assert.Contains(t, report, "1 variables")
	assert.Contains(t, report, "1 lists")
	assert.Contains(t, report, "missing_target")
	assert.Contains(t, report, "tune the numbers")
}

func TestValidateCleanScript(t *testing.T) {
	path := writeScript(t, `
-> park
=== park ===
Hello. -> END
`)

	var out bytes.Buffer
	require.NoError(t, Validate(path, &out))
	report := out.String()
	assert.NotContains(t, report, "unresolved diverts")
	assert.NotContains(t, report, "TODO")
}

func TestValidateParseError(t *testing.T) {
	path := writeScript(t, "/* broken")
	var out bytes.Buffer
	assert.Error(t, Validate(path, &out))
}
