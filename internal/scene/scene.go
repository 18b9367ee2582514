// Package scene renders deterministic scene sources for the fast-path
// domains (sorting, convolution, attention) from embedded templates.
//
// Layout is computed here rather than left to generated code. Every
// position that reaches a template passes through ClampPosition, and every
// color through ColorName, which is what lets the validators ignore
// geometry ranges and color names.
package scene

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/roach88/vizgen/internal/sanitize"
)

// Safe frame bounds in scene units.
const (
	XMin = -6.5
	XMax = 6.5
	YMin = -3.5
	YMax = 3.5
)

//go:embed templates/*.py.tmpl
var files embed.FS

var templates = template.Must(template.New("scene").Funcs(template.FuncMap{
	"py": pyLiteral,
	"f":  formatFloat,
}).ParseFS(files, "templates/*.py.tmpl"))

// ClampPosition returns p as an (x, y, z) triple inside the safe frame.
// Missing coordinates are zero; z is passed through.
func ClampPosition(p []float64) [3]float64 {
	var out [3]float64
	copy(out[:], p)
	out[0] = clamp(out[0], XMin, XMax)
	out[1] = clamp(out[1], YMin, YMax)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

var colorIdent = regexp.MustCompile(`^[A-Z]+(?:_[A-Z]+)*(?:_[A-E])?$`)

// ColorName maps a generated color to an engine constant. Disallowed names
// go through the sanitizer table; anything else that is not a plain
// constant name becomes sanitize.SafeColor.
func ColorName(name string) string {
	c := strings.ToUpper(strings.TrimSpace(name))
	if c == "" || !colorIdent.MatchString(c) {
		return sanitize.SafeColor
	}
	return sanitize.ReplaceColors(c)
}

// RowLayout spaces n items of the given width along y, shrinking them to
// fit maxWidth. It returns the centers and the possibly reduced width.
func RowLayout(n int, width, maxWidth, y float64) ([][3]float64, float64) {
	if n <= 0 {
		return nil, width
	}
	if float64(n)*width > maxWidth {
		width = maxWidth / float64(n)
	}
	gap := width * 0.1
	total := (width+gap)*float64(n) - gap
	start := -total / 2
	out := make([][3]float64, n)
	for i := range out {
		x := start + float64(i)*(width+gap) + width/2
		out[i] = ClampPosition([]float64{x, y, 0})
	}
	return out, width
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("scene: %s: %w", name, err)
	}
	return sanitize.Sanitize(buf.String()), nil
}

// pyLiteral renders a value as a Python literal. JSON strings, numbers and
// lists of them are valid Python.
func pyLiteral(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
