// Package prompts renders the system and user prompts for each generation stage.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// Stage names a generation step.
type Stage string

const (
	Domain       Stage = "domain"
	Pattern      Stage = "pattern"
	Pseudocode   Stage = "pseudocode"
	Animation    Stage = "animation"
	Codegen      Stage = "codegen"
	Baseline     Stage = "baseline"
	CNNParam     Stage = "cnn_param"
	SortingTrace Stage = "sorting_trace"
	SeqAttention Stage = "seq_attention"
)

// Stages lists every stage with a template.
var Stages = []Stage{Domain, Pattern, Pseudocode, Animation, Codegen, Baseline, CNNParam, SortingTrace, SeqAttention}

//go:embed templates/*.txt templates/*.tmpl
var files embed.FS

var (
	systems = map[Stage]string{}
	users   = map[Stage]*template.Template{}
)

func init() {
	for _, s := range Stages {
		sys, err := files.ReadFile("templates/" + string(s) + ".system.txt")
		if err != nil {
			panic(fmt.Sprintf("prompts: %s: %v", s, err))
		}
		systems[s] = strings.TrimSpace(string(sys))
		users[s] = template.Must(template.New(string(s)).ParseFS(files, "templates/"+string(s)+".user.tmpl")).
			Lookup(string(s) + ".user.tmpl")
	}
}

// Data feeds a user template. Text is the request text; Document is a prior
// stage's output rendered as indented JSON.
type Data struct {
	Text     string
	Document string
}

// Prompt is a rendered system and user prompt pair.
type Prompt struct {
	System string
	User   string
}

// Build renders the prompt for stage.
func Build(stage Stage, data Data) (Prompt, error) {
	tmpl, ok := users[stage]
	if !ok {
		return Prompt{}, fmt.Errorf("prompts: unknown stage %q", stage)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("prompts: render %s: %w", stage, err)
	}
	return Prompt{System: systems[stage], User: strings.TrimSpace(buf.String())}, nil
}

// Feedback renders a list of problems as a correction request appended to
// the next attempt's user prompt.
func Feedback(problems []string) string {
	var b strings.Builder
	b.WriteString("Correct these issues:\n")
	for _, p := range problems {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteByte('\n')
	}
	b.WriteString("Return valid JSON only.")
	return b.String()
}

// CodeFeedback is Feedback for stages that return source instead of JSON.
func CodeFeedback(problems []string) string {
	var b strings.Builder
	b.WriteString("The previous script has these problems:\n")
	for _, p := range problems {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteByte('\n')
	}
	b.WriteString("Fix them. Use only core Manim classes and animations, no custom helpers. Return Python code only.")
	return b.String()
}

// WithFeedback appends feedback to a user prompt.
func WithFeedback(user, feedback string) string {
	if feedback == "" {
		return user
	}
	return user + "\n\n" + feedback
}
