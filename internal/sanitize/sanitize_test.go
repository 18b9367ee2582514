package sanitize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	inputs, err := filepath.Glob("testdata/input/*.py")
	require.NoError(t, err)
	require.NotEmpty(t, inputs)

	for _, path := range inputs {
		name := strings.TrimSuffix(filepath.Base(path), ".py")
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(path)
			require.NoError(t, err)
			g.Assert(t, name, []byte(Sanitize(string(src))))
		})
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	cases := []string{
		"",
		"   \n\n",
		"```",
		"````python\n`````",
		"``` ```py```",
		"x = LIGHT_\"#fff\"",
		"color=DARK_BLUE_SHADE, fill=NAVY)",
		"class Scene(Scene):\n    pass",
		"class A(Scene):\n    pass\nclass B(Scene):\n    x = A()",
		"self.play(PlotPoint(\n",
		"def PlotPoint(x):\n    return PlotPoint(x)",
		"\tCreateGraph( (1, 2) )\n\tself.wait(1)",
		"fill='#ABCDEF80' stroke=\"#abc\" bad=\"#12345\"",
		"Text(\"CYAN MAGENTA\")",
		"class Foo ( ThreeDScene ) :\n  def construct(self):\n    Foo.bar()",
	}
	for _, dir := range []string{"testdata/input", "testdata/golden"} {
		files, err := filepath.Glob(filepath.Join(dir, "*"))
		require.NoError(t, err)
		for _, f := range files {
			b, err := os.ReadFile(f)
			require.NoError(t, err)
			cases = append(cases, string(b))
		}
	}

	for i, in := range cases {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "case %d: %q", i, in)
	}
}

func TestReplaceColors(t *testing.T) {
	for _, c := range ColorTable {
		assert.Equal(t, "color="+c.To, ReplaceColors("color="+c.From), c.From)
		assert.Equal(t, "["+c.To+", RED]", ReplaceColors("["+c.From+", RED]"), c.From)
	}
	assert.Equal(t, "DARK_BLUE_E", ReplaceColors("DARK_BLUE_E"), "longer identifiers are untouched")
}

func TestReplaceHexColors(t *testing.T) {
	assert.Equal(t, `Square(color=BLUE)`, ReplaceHexColors(`Square(color="#ff0000")`))
	assert.Equal(t, `c = BLUE`, ReplaceHexColors(`c = '#abc'`))
	assert.Equal(t, `x = "#12345"`, ReplaceHexColors(`x = "#12345"`), "not a color length")
}

func TestForceSceneName(t *testing.T) {
	assert.Equal(t, "class AlgorithmScene(Scene):\n    pass", ForceSceneName("class Foo(Scene):\n    pass"))
	assert.Equal(t, "class AlgorithmScene(Scene):", ForceSceneName("class Scene(Scene):"))
	assert.Equal(t, "class Helper(object):", ForceSceneName("class Helper(object):"), "non-scene classes are kept")
	assert.Equal(t, "  class AlgorithmScene(ZoomedScene):", ForceSceneName("  class Z (ZoomedScene) :"))
}

func TestReplaceHelpersKeepsIndent(t *testing.T) {
	in := "def construct(self):\n\tself.play(DrawArrowBetween(a, b))\n\tself.wait(1)"
	want := "def construct(self):\n\tself.wait(0.1)\n\tself.wait(1)"
	assert.Equal(t, want, ReplaceHelpers(in))
}

// ---------------------------------------------------------------------------
// Check
// ---------------------------------------------------------------------------

func TestCheckCleanSource(t *testing.T) {
	src, err := os.ReadFile("testdata/golden/clean.golden")
	require.NoError(t, err)
	assert.Empty(t, Check(string(src)))
}

func TestCheckReportsEveryProblem(t *testing.T) {
	src := "class Demo(Scene):\n    def build(self):\n        c = \"#ff00ff\"\n        PlotPoint(1, 2))\n"
	issues := Check(src)

	kinds := map[string]int{}
	for _, is := range issues {
		kinds[is.Kind]++
	}
	assert.Equal(t, 3, kinds[IssueSyntax], Messages(issues))
	assert.Equal(t, 1, kinds[IssueClassName])
	assert.Equal(t, 1, kinds[IssueColor])
	assert.Equal(t, 1, kinds[IssueUnknownHelper])
	assert.Contains(t, Messages(issues), "[unknown_helper] uses undefined helper PlotPoint")
}

func TestCheckBrackets(t *testing.T) {
	head := "from manim import *\n\nclass AlgorithmScene(Scene):\n    def construct(self):\n"
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"balanced", "        self.play(Create(Square()))\n", false},
		{"opener in a string", "        t = Text(\"step (1 of 3\")\n        self.add(t)\n", false},
		{"surplus paren", "        self.add(Square()))\n", true},
		{"surplus bracket", "        xs = [1, 2]]\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Check(head + tt.body)
			if tt.want {
				assert.Contains(t, Messages(issues), "[syntax] possible unmatched closing bracket")
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestCheckAfterSanitize(t *testing.T) {
	src, err := os.ReadFile("testdata/input/fenced_colors.py")
	require.NoError(t, err)
	assert.NotEmpty(t, Check(string(src)))
	assert.Empty(t, Check(Sanitize(string(src))))
}
