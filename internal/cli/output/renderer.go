// Package output renders command results for terminals, scripts and agents.
//
// Auto mode picks styled text on a TTY and markdown otherwise. JSON and CSV
// are always available explicitly.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeCSV      Mode = "csv"
)

// Modes lists the accepted --output values.
var Modes = []Mode{ModeAuto, ModeText, ModeMarkdown, ModeJSON, ModeCSV}

// ParseMode validates an --output value. Empty means auto.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeAuto, nil
	}
	m := Mode(strings.ToLower(s))
	if m == "md" {
		return ModeMarkdown, nil
	}
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want auto, text, markdown, json or csv)", s)
}

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	r := &Renderer{out: out, errOut: errOut, mode: mode, isTTY: isTTY, styles: PlainStyles()}
	if isTTY && r.EffectiveMode() == ModeText {
		r.styles = DefaultStyles()
	}
	return r
}

// EffectiveMode resolves auto to text or markdown.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Styles returns the active styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to standard output.
func (r *Renderer) Println(a ...any) { _, _ = fmt.Fprintln(r.out, a...) }

// Printf writes formatted output to standard output.
func (r *Renderer) Printf(format string, a ...any) { _, _ = fmt.Fprintf(r.out, format, a...) }

// Warnf writes a warning line to standard error.
func (r *Renderer) Warnf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("warning: "+msg))
}

// Header writes a section title.
func (r *Renderer) Header(level int, title string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Printf("%s %s\n\n", strings.Repeat("#", level), title)
		return
	}
	r.Println(r.styles.Header.Render(title))
}

// Success styles s for a positive outcome.
func (r *Renderer) Success(s string) string { return r.styles.Success.Render(s) }

// Fail styles s for a negative outcome.
func (r *Renderer) Fail(s string) string { return r.styles.Error.Render(s) }

// Muted styles s as secondary information.
func (r *Renderer) Muted(s string) string { return r.styles.Muted.Render(s) }

// ID styles an identifier.
func (r *Renderer) ID(s string) string { return r.styles.ID.Render(s) }

// Status styles a PASS/FAIL or run status word.
func (r *Renderer) Status(s string) string {
	switch strings.ToLower(s) {
	case "pass", "completed":
		return r.Success(s)
	case "fail", "failed":
		return r.Fail(s)
	default:
		return r.Muted(s)
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under cols in the effective mode. JSON mode emits an
// array of objects keyed by column.
func (r *Renderer) Table(cols []string, rows [][]any) error {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		objs := make([]map[string]any, len(rows))
		for i, row := range rows {
			obj := make(map[string]any, len(cols))
			for j, col := range cols {
				if j < len(row) {
					obj[col] = jsonValue(row[j])
				}
			}
			objs[i] = obj
		}
		return r.JSON(objs)
	}

	if len(rows) == 0 && mode != ModeCSV {
		r.Println("(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = FormatValue(v)
		}
		t.AppendRow(tr)
	}

	switch mode {
	case ModeCSV:
		t.RenderCSV()
	case ModeMarkdown:
		t.RenderMarkdown()
		r.Println()
	default:
		t.SetStyle(table.StyleLight)
		t.Render()
		r.Println(r.Muted(fmt.Sprintf("(%d rows)", len(rows))))
	}
	return nil
}

// KeyValues writes an aligned two-column summary.
func (r *Renderer) KeyValues(pairs [][2]string) {
	if r.EffectiveMode() == ModeMarkdown {
		for _, p := range pairs {
			r.Printf("- **%s**: %s\n", p[0], p[1])
		}
		r.Println()
		return
	}
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0])+1)
	}
	for _, p := range pairs {
		r.Printf("  %-*s  %s\n", width, p[0]+":", p[1])
	}
}

// FormatValue renders a scanned database value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case *float64:
		if x == nil {
			return "NULL"
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case *int:
		if x == nil {
			return "NULL"
		}
		return strconv.Itoa(*x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return "NULL"
		}
		return FormatValue(*x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func jsonValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
