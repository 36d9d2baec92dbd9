package duckdb

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Params are the DuckDB settings accepted under target.params.
type Params struct {
	// Extensions to install and load, e.g. httpfs to read sources from object storage.
	Extensions []string `mapstructure:"extensions"`

	// Settings are applied with SET after connecting (memory_limit, threads).
	Settings map[string]string `mapstructure:"settings"`

	// CSV tunes how source files are sniffed when staged.
	CSV CSVParams `mapstructure:"csv"`
}

// CSVParams override read_csv_auto sniffing.
type CSVParams struct {
	Delimiter string `mapstructure:"delimiter"`
	// SampleSize is the number of rows sniffed; -1 reads the whole file.
	SampleSize   int  `mapstructure:"sample_size"`
	IgnoreErrors bool `mapstructure:"ignore_errors"`
}

// options renders the read_csv_auto arguments after the file path.
func (c CSVParams) options() string {
	opts := []string{"header=true", "all_varchar=true"}
	if c.Delimiter != "" {
		opts = append(opts, "delim='"+strings.ReplaceAll(c.Delimiter, "'", "''")+"'")
	}
	if c.SampleSize != 0 {
		opts = append(opts, fmt.Sprintf("sample_size=%d", c.SampleSize))
	}
	if c.IgnoreErrors {
		opts = append(opts, "ignore_errors=true")
	}
	return strings.Join(opts, ", ")
}

func (c CSVParams) validate() error {
	if len([]rune(c.Delimiter)) > 1 {
		return fmt.Errorf("csv delimiter must be a single character, got %q", c.Delimiter)
	}
	if c.SampleSize < -1 {
		return fmt.Errorf("csv sample_size must be -1 or positive, got %d", c.SampleSize)
	}
	return nil
}

// ParseParams decodes target.params. Numeric settings become strings and
// unknown keys are rejected.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	if err := p.CSV.validate(); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}
