package output

import (
	"bytes"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func newTest(mode Mode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"JSON", ModeJSON, false},
		{"md", ModeMarkdown, false},
		{"csv", ModeCSV, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	r, _, _ := newTest(ModeAuto, true)
	assert.Equal(t, ModeText, r.EffectiveMode())

	r, _, _ = newTest(ModeAuto, false)
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())

	r, _, _ = newTest(ModeJSON, true)
	assert.Equal(t, ModeJSON, r.EffectiveMode())
}

func TestTable_Modes(t *testing.T) {
	cols := []string{"sku", "weight"}
	rows := [][]any{{"A-1", 12.5}, {"B-2", nil}}

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		require.NoError(t, r.Table(cols, rows))
		assert.Contains(t, out.String(), "| A-1 | 12.5 |")
		assert.Contains(t, out.String(), "NULL")
		assert.False(t, ansi.MatchString(out.String()))
	})

	t.Run("csv", func(t *testing.T) {
		r, out, _ := newTest(ModeCSV, false)
		require.NoError(t, r.Table(cols, rows))
		assert.Contains(t, out.String(), "A-1,12.5")
	})

	t.Run("json", func(t *testing.T) {
		r, out, _ := newTest(ModeJSON, false)
		require.NoError(t, r.Table(cols, rows))
		var got []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "A-1", got[0]["sku"])
		assert.Nil(t, got[1]["weight"])
	})

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		require.NoError(t, r.Table(cols, rows))
		assert.Contains(t, out.String(), "B-2")
		assert.Contains(t, out.String(), "(2 rows)")
	})

	t.Run("empty", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		require.NoError(t, r.Table(cols, nil))
		assert.Equal(t, "(0 rows)\n", out.String())
	})
}

func TestWarnf_GoesToStderr(t *testing.T) {
	r, out, errOut := newTest(ModeMarkdown, false)
	r.Warnf("%d duplicates", 3)
	assert.Empty(t, out.String())
	assert.Equal(t, "warning: 3 duplicates\n", errOut.String())
}

func TestKeyValues(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.KeyValues([][2]string{{"records", "3"}})
	assert.Contains(t, out.String(), "- **records**: 3")

	r, out, _ = newTest(ModeText, false)
	r.KeyValues([][2]string{{"a", "1"}, {"longer", "2"}})
	assert.Contains(t, out.String(), "  a:       1\n")
}

func TestFormatValue(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	n := 4
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{[]byte("x"), "x"},
		{0.1, "0.1"},
		{day, "2024-01-02"},
		{day.Add(90 * time.Minute), "2024-01-02T01:30:00Z"},
		{&n, "4"},
		{(*float64)(nil), "NULL"},
		{int64(7), "7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}
