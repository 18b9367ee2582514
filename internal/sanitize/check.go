package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// Issue kinds reported by Check.
const (
	IssueSyntax        = "syntax"
	IssueClassName     = "class_name"
	IssueColor         = "color"
	IssueUnknownHelper = "unknown_helper"
)

// Issue is a problem found in generated source.
type Issue struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (i Issue) String() string { return fmt.Sprintf("[%s] %s", i.Kind, i.Message) }

var (
	sceneClass   = regexp.MustCompile(`class\s+` + SceneName + `\s*\([^)]*Scene[^)]*\)\s*:`)
	constructDef = regexp.MustCompile(`def\s+construct\s*\(\s*self\s*\)\s*:`)
	bareHex      = regexp.MustCompile(`#[0-9A-Fa-f]{6}\b`)
)

// Check runs lightweight post-generation checks. An empty result means the
// source is worth rendering; a non-empty one is fed back to the generator.
func Check(source string) []Issue {
	var issues []Issue
	if !strings.Contains(source, "from manim import *") {
		issues = append(issues, Issue{IssueSyntax, "missing 'from manim import *'"})
	}
	if !sceneClass.MatchString(source) {
		issues = append(issues, Issue{IssueClassName, SceneName + "(Scene) not defined"})
	}
	if !constructDef.MatchString(source) {
		issues = append(issues, Issue{IssueSyntax, "construct(self) not found"})
	}
	if bareHex.MatchString(source) {
		issues = append(issues, Issue{IssueColor, "hex color literal detected"})
	}
	if m := helperPattern.FindString(source); m != "" {
		name := strings.TrimSpace(strings.TrimSuffix(m, "("))
		issues = append(issues, Issue{IssueUnknownHelper, "uses undefined helper " + name})
	}
	// Only surplus closers: string literals may hold a lone "(" or "[".
	if strings.Count(source, "(") < strings.Count(source, ")") ||
		strings.Count(source, "[") < strings.Count(source, "]") {
		issues = append(issues, Issue{IssueSyntax, "possible unmatched closing bracket"})
	}
	return issues
}

// Messages renders issues for a feedback prompt.
func Messages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.String()
	}
	return out
}
