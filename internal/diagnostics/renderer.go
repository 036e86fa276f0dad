package diagnostics

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/zulon-lang/zulon/internal/position"
)

// Renderer formats diagnostics as human-readable error blocks: a
// file:line:col header, a source-line excerpt, and a caret underline
// (spec.md section 6). Colorization is disabled automatically when NO_COLOR
// is set, matching fatih/color's own convention, which is what spec.md
// section 6 asks the compiler to honor.
type Renderer struct {
	Source *position.SourceFile

	errColor  *color.Color
	warnColor *color.Color
	noteColor *color.Color
}

// NewRenderer creates a Renderer bound to the given source file for
// excerpting. src may be nil if only the header line should be printed.
func NewRenderer(src *position.SourceFile) *Renderer {
	r := &Renderer{
		Source:    src,
		errColor:  color.New(color.FgRed, color.Bold),
		warnColor: color.New(color.FgYellow, color.Bold),
		noteColor: color.New(color.FgBlue),
	}

	if os.Getenv("NO_COLOR") != "" {
		r.errColor.DisableColor()
		r.warnColor.DisableColor()
		r.noteColor.DisableColor()
	}

	return r
}

func (r *Renderer) colorFor(sev Severity) *color.Color {
	switch sev {
	case SeverityError:
		return r.errColor
	case SeverityWarning:
		return r.warnColor
	default:
		return r.noteColor
	}
}

// RenderAll writes every diagnostic in the bag to w, in order.
func (r *Renderer) RenderAll(w io.Writer, b *Bag) {
	for _, d := range b.Items() {
		r.Render(w, d)
	}
}

// Render writes a single diagnostic block to w.
func (r *Renderer) Render(w io.Writer, d Diagnostic) {
	c := r.colorFor(d.Severity)

	header := fmt.Sprintf("%s: %s: %s", d.Span.Start.String(), d.Severity, d.Message)
	fmt.Fprintln(w, c.Sprint(header))

	if r.Source != nil && d.Span.Start.Line > 0 {
		line := r.Source.GetLine(d.Span.Start.Line)
		if line != "" {
			fmt.Fprintf(w, "  %4d | %s\n", d.Span.Start.Line, line)

			caretCol := d.Span.Start.Column
			width := d.Span.End.Column - d.Span.Start.Column
			if d.Span.End.Line != d.Span.Start.Line || width < 1 {
				width = 1
			}

			pad := strings.Repeat(" ", caretCol-1)
			caret := strings.Repeat("^", width)
			fmt.Fprintf(w, "       | %s%s\n", pad, c.Sprint(caret))
		}
	}

	for _, n := range d.Notes {
		fmt.Fprintf(w, "  note: %s\n", n)
	}

	if d.Hint != "" {
		fmt.Fprintf(w, "  hint: %s\n", d.Hint)
	}
}
