package render

import (
	"errors"
	"regexp"
	"strings"
)

// Failure tags.
const (
	TagRuntimeName     = "runtime_name"
	TagRuntimeEnv      = "runtime_env"
	TagResource        = "resource"
	TagTimeout         = "timeout"
	TagMissingArtifact = "missing_artifact"
	TagRuntime         = "runtime"
)

// Failure is a classified render failure.
type Failure struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
	// Detail carries the extracted specific, e.g. the undefined name.
	Detail string `json:"detail,omitempty"`
}

var undefinedName = regexp.MustCompile(`NameError: name '([^']+)' is not defined`)

// Classify maps engine diagnostics to a Failure.
func Classify(stderr string) Failure {
	switch {
	case strings.Contains(stderr, "NameError"):
		name := "<unknown>"
		if m := undefinedName.FindStringSubmatch(stderr); m != nil {
			name = m[1]
		}
		return Failure{Tag: TagRuntimeName, Message: "undefined name: " + name, Detail: name}
	case strings.Contains(stderr, "ImportError"), strings.Contains(stderr, "ModuleNotFoundError"):
		return Failure{Tag: TagRuntimeEnv, Message: "import error"}
	case strings.Contains(stderr, "MemoryError"):
		return Failure{Tag: TagResource, Message: "out of memory"}
	case strings.Contains(stderr, "Timeout"), strings.Contains(stderr, "timed out"):
		return Failure{Tag: TagTimeout, Message: "render timeout"}
	}
	return Failure{Tag: TagRuntime, Message: "unknown runtime error"}
}

// ClassifyError classifies an engine error, honoring the timed-out flag.
func ClassifyError(err error) Failure {
	var ee *ExecError
	if errors.As(err, &ee) {
		if ee.TimedOut {
			return Failure{Tag: TagTimeout, Message: "render timeout"}
		}
		return Classify(ee.Stderr)
	}
	return Failure{Tag: TagRuntime, Message: err.Error()}
}
