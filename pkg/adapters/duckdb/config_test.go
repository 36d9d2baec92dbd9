package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name   string
		input  map[string]any
		want   *Params
		errMsg string
	}{
		{name: "no params", want: &Params{}},
		{
			name:  "extensions as list or comma string",
			input: map[string]any{"extensions": "httpfs,json"},
			want:  &Params{Extensions: []string{"httpfs", "json"}},
		},
		{
			name: "numeric setting",
			input: map[string]any{
				"settings": map[string]any{"memory_limit": "4GB", "threads": 4},
			},
			want: &Params{Settings: map[string]string{"memory_limit": "4GB", "threads": "4"}},
		},
		{
			name: "csv sniffing",
			input: map[string]any{
				"csv": map[string]any{"delimiter": ";", "sample_size": "-1", "ignore_errors": true},
			},
			want: &Params{CSV: CSVParams{Delimiter: ";", SampleSize: -1, IgnoreErrors: true}},
		},
		{
			name:   "multi-character delimiter",
			input:  map[string]any{"csv": map[string]any{"delimiter": "||"}},
			errMsg: "single character",
		},
		{
			name:   "negative sample size",
			input:  map[string]any{"csv": map[string]any{"sample_size": -5}},
			errMsg: "sample_size",
		},
		{
			name:   "unknown key",
			input:  map[string]any{"secrets": []any{}},
			errMsg: "invalid duckdb params",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCSVParams_Options(t *testing.T) {
	assert.Equal(t, "header=true, all_varchar=true", CSVParams{}.options())
	assert.Equal(t,
		"header=true, all_varchar=true, delim=';', sample_size=-1, ignore_errors=true",
		CSVParams{Delimiter: ";", SampleSize: -1, IgnoreErrors: true}.options())
	assert.Equal(t, "header=true, all_varchar=true, delim=''''", CSVParams{Delimiter: "'"}.options())
}
