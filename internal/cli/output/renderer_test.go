package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_AutoMode(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, &buf, ModeAuto)
	assert.Equal(t, ModeJSON, r.Mode(), "a buffer is not a terminal")
	assert.True(t, r.IsJSON())

	r = NewRenderer(&buf, &buf, ModeTable)
	assert.Equal(t, ModeTable, r.Mode())
}

func TestRenderer_Table(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, &buf, ModeTable)

	r.Table([]string{"id", "name"}, [][]any{{1, "alpha"}, {2, FormatValue(nil)}})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows)")
}

func TestRenderer_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, &buf, ModeTable).Table([]string{"id"}, nil)
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, &buf, ModeJSON)
	require.NoError(t, r.JSON(map[string]int{"rows": 2}))
	assert.JSONEq(t, `{"rows": 2}`, buf.String())
}

func TestRenderer_Warnf(t *testing.T) {
	var out, errOut bytes.Buffer
	NewRenderer(&out, &errOut, ModeTable).Warnf("rate for %s missing", "LABOR-X")
	assert.Empty(t, out.String())
	assert.Equal(t, "warning: rate for LABOR-X missing\n", errOut.String())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", FormatValue(nil))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
	assert.Equal(t, "12.5", FormatValue(12.5))
}
