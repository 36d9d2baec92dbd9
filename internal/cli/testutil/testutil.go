// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/skuhub/internal/cli/output"
)

// ProjectConfig is the skuhub.yaml written by SetupTestProject. Stores are
// file-backed inside the project directory.
const ProjectConfig = `state_path: .skuhub/state.db
output: markdown
target:
  type: duckdb
  database: .skuhub/master.duckdb
sources:
  invoice:
    path: invoice.csv
  flow:
    path: flow.csv
  stock:
    path: stock.csv
`

// SampleSources is one SKU seen by all three reports that reconciles
// cleanly and arrives at a site.
var SampleSources = map[string]string{
	"flow.csv": "SKU,Pkg,GW,CBM,Vendor,flow_code,final_location,Port,DSV Indoor,MOSB,SHU,flow_history\n" +
		"X-001,1,100,2.0,HITACHI,4,SHU,2024-01-01,2024-01-05,,2024-01-10,\"0,1,2,4\"\n",
	"invoice.csv": "Case No.,match_status,weight_error,volume_error,invoice_weight,invoice_volume\n" +
		"x-001,,5,0.1,,\n",
	"stock.csv": "SKU,first_seen,last_seen,warehouse,status\n" +
		"X-001,2024-01-05,2024-01-10,SHU,delivered\n",
}

// SetupTestProject creates a temporary project with a skuhub.yaml and the
// given source files. It returns the project directory and config path.
func SetupTestProject(t *testing.T, files map[string]string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	path := filepath.Join(dir, "skuhub.yaml")
	if err := os.WriteFile(path, []byte(ProjectConfig), 0600); err != nil {
		t.Fatalf("failed to create skuhub.yaml: %v", err)
	}
	return dir, path
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
