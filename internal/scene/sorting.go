package scene

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/vizgen/internal/ir"
)

type sortingItem struct {
	X, Y  float64
	Label string
	Color string
}

type sortingEvent struct {
	Op   string
	I, J int
}

type sortingData struct {
	Title  string
	Radius float64
	Items  []sortingItem
	Events []sortingEvent
}

// Sorting renders a sequence document of compare and swap events.
// Components keep their seq_pos when it is a full triple and are laid out
// on a row otherwise. Events whose endpoints do not resolve are dropped.
func Sorting(seq ir.SequenceIR) (string, error) {
	n := len(seq.Components)
	if n == 0 {
		return "", fmt.Errorf("scene: sorting: no components")
	}
	row, width := RowLayout(n, 1.2, 12, 0)

	data := sortingData{Title: title(seq.Metadata, "Sorting"), Radius: round(width * 0.4)}
	index := make(map[string]int, n)
	for i, c := range seq.Components {
		index[c.ID] = i
		pos := row[i]
		if len(c.SeqPos) == 3 {
			pos = ClampPosition(c.SeqPos)
		}
		label := c.Label
		if label == "" && c.Value != nil {
			label = fmt.Sprint(c.Value)
		}
		data.Items = append(data.Items, sortingItem{
			X: round(pos[0]), Y: round(pos[1]), Label: label, Color: colorOr(c.Color, "YELLOW"),
		})
	}

	for _, e := range seq.Events {
		i, okI := resolveIndex(index, e.From)
		j, okJ := resolveIndex(index, e.To)
		if !okI || !okJ || i == j {
			continue
		}
		op := e.Op
		if op == "" {
			op = e.Type
		}
		data.Events = append(data.Events, sortingEvent{Op: op, I: i, J: j})
	}
	return render("sorting.py.tmpl", data)
}

func resolveIndex(index map[string]int, id string) (int, bool) {
	if i, ok := index[id]; ok {
		return i, true
	}
	if rest, ok := strings.CutPrefix(id, "arr"); ok {
		if i, err := strconv.Atoi(rest); err == nil && i >= 0 && i < len(index) {
			return i, true
		}
	}
	return 0, false
}

func colorOr(c, def string) string {
	if c == "" {
		return def
	}
	return ColorName(c)
}

func title(meta map[string]any, def string) string {
	if t, ok := meta["title"].(string); ok && t != "" {
		return t
	}
	if a, ok := meta["algorithm"].(string); ok && a != "" {
		return cases.Title(language.English).String(strings.ReplaceAll(a, "_", " "))
	}
	return def
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
