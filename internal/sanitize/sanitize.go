// Package sanitize rewrites generated scene source into a known-safe
// vocabulary before it is executed.
//
// Sanitize never fails and is idempotent: no rewrite produces text that
// another rewrite (or the same one) would change again.
package sanitize

import (
	"regexp"
	"strings"
)

// SceneName is the entry-point class every rendered script must define.
const SceneName = "AlgorithmScene"

// NoOp replaces calls to undefined helpers; it keeps the pacing of the scene.
const NoOp = "self.wait(0.1)"

// SafeColor replaces literal hex colors.
const SafeColor = "BLUE"

// UnknownHelpers are names generators invent that the engine does not define.
var UnknownHelpers = []string{
	"AddPointToGraph", "PlotPoint", "CreateGraph", "AnimateCurvePoint",
	"DrawArrowBetween", "ShowValueOnPlot",
}

// ColorSubstitution maps a disallowed color constant to an allowed one.
type ColorSubstitution struct {
	From, To string
}

// ColorTable lists disallowed constants and their replacements.
// No To value appears as a From value.
var ColorTable = []ColorSubstitution{
	{"LIGHT_BLUE", "BLUE_B"},
	{"DARK_BLUE", "BLUE_D"},
	{"LIGHT_RED", "RED_B"},
	{"DARK_RED", "RED_D"},
	{"LIGHT_GREEN", "GREEN_B"},
	{"DARK_GREEN", "GREEN_D"},
	{"LIGHT_YELLOW", "YELLOW_B"},
	{"DARK_YELLOW", "YELLOW_D"},
	{"CYAN", "TEAL"},
	{"MAGENTA", "PINK"},
	{"VIOLET", "PURPLE"},
	{"INDIGO", "PURPLE_D"},
	{"BROWN", "MAROON"},
	{"LIME", "GREEN_B"},
	{"NAVY", "BLUE_D"},
}

var (
	fencePattern  = regexp.MustCompile("```[A-Za-z0-9_+-]*")
	hexPattern    = regexp.MustCompile(`["']#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3,4})["']`)
	scenePattern  = regexp.MustCompile(`(?m)^(\s*)class\s+(\w+)\s*\(([^)]*Scene[^)]*)\)\s*:`)
	colorPattern  *regexp.Regexp
	colorLookup   = map[string]string{}
	helperPattern *regexp.Regexp
)

func init() {
	names := make([]string, len(ColorTable))
	for i, c := range ColorTable {
		names[i] = regexp.QuoteMeta(c.From)
		colorLookup[c.From] = c.To
	}
	colorPattern = regexp.MustCompile(`\b(?:` + strings.Join(names, "|") + `)\b`)
	helperPattern = regexp.MustCompile(`\b(?:` + strings.Join(UnknownHelpers, "|") + `)\s*\(`)
}

// Sanitize applies every rewrite in a fixed order.
func Sanitize(source string) string {
	s := StripFences(source)
	s = ReplaceHelpers(s)
	// Hex first: a replaced literal can complete an identifier like LIGHT_BLUE.
	s = ReplaceHexColors(s)
	s = ReplaceColors(s)
	s = ForceSceneName(s)
	return strings.TrimSpace(s) + "\n"
}

// StripFences removes markdown code fences and their language tags.
func StripFences(s string) string {
	return fencePattern.ReplaceAllString(s, "")
}

// ReplaceColors maps disallowed color constants, whether used as a keyword
// argument value (color=CYAN) or as a bare identifier.
func ReplaceColors(s string) string {
	return colorPattern.ReplaceAllStringFunc(s, func(m string) string {
		return colorLookup[m]
	})
}

// ReplaceHexColors turns quoted hex literals into SafeColor.
func ReplaceHexColors(s string) string {
	return hexPattern.ReplaceAllString(s, SafeColor)
}

// engineClasses are base classes whose name must survive a rename.
var engineClasses = map[string]bool{
	"Scene": true, "MovingCameraScene": true, "ThreeDScene": true, "ZoomedScene": true,
}

// ForceSceneName renames the first scene class to SceneName and updates
// references to its old name. The base classes are kept.
func ForceSceneName(s string) string {
	m := scenePattern.FindStringSubmatchIndex(s)
	if m == nil {
		return s
	}
	indent, old, bases := s[m[2]:m[3]], s[m[4]:m[5]], s[m[6]:m[7]]
	if old == SceneName {
		return s
	}
	s = s[:m[0]] + indent + "class " + SceneName + "(" + bases + "):" + s[m[1]:]
	if engineClasses[old] {
		return s
	}
	return regexp.MustCompile(`\b`+regexp.QuoteMeta(old)+`\b`).ReplaceAllString(s, SceneName)
}

// ReplaceHelpers replaces every statement that calls an unknown helper with
// NoOp at the statement's indentation. A statement spans continuation lines
// until its parentheses balance. Definitions are left alone.
func ReplaceHelpers(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimLeft(line, " \t")
		if !helperPattern.MatchString(line) || strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "class ") {
			out = append(out, line)
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		depth := parenDepth(line)
		for depth > 0 && i+1 < len(lines) {
			i++
			depth += parenDepth(lines[i])
		}
		out = append(out, indent+NoOp)
	}
	return strings.Join(out, "\n")
}

func parenDepth(line string) int {
	return strings.Count(line, "(") - strings.Count(line, ")")
}
