package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/vizgen/internal/pipeline"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // artifact rendered
	ExitFailure      = 1 // IR validation failed, scenarios failed, invalid document
	ExitCommandError = 2 // bad flags, missing files, service unreachable
	ExitDegraded     = 3 // only the fallback scene rendered
	ExitRenderFailed = 4 // nothing rendered
)

// ExitCodeFor maps a request status to the process exit code.
func ExitCodeFor(status pipeline.Status) int {
	switch status {
	case pipeline.StatusOK:
		return ExitSuccess
	case pipeline.StatusDegraded:
		return ExitDegraded
	case pipeline.StatusRenderFailed:
		return ExitRenderFailed
	default:
		return ExitFailure
	}
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the JSON envelope every command writes in json format.
type CLIResponse struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// CLIError is the error half of CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // E_VALIDATION, E_RENDER, ...
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result writes a pipeline result. In json format the envelope status
// follows the request status, so degraded and failed runs are visible
// without inspecting the payload.
func (f *OutputFormatter) Result(requestID string, status pipeline.Status, data any) error {
	if f.Format != "json" {
		fmt.Fprintln(f.Writer, data)
		return nil
	}
	resp := CLIResponse{Status: "ok", Data: data, RequestID: requestID}
	if status != pipeline.StatusOK && status != pipeline.StatusDegraded {
		resp.Status = "error"
		resp.Error = &CLIError{Code: errorCode(status), Message: string(status)}
	}
	return f.encode(resp)
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func errorCode(status pipeline.Status) string {
	switch status {
	case pipeline.StatusValidationFailed:
		return ErrCodeValidation
	case pipeline.StatusRenderFailed:
		return ErrCodeRender
	default:
		return ErrCodeGeneric
	}
}

// Error codes carried in CLIError.
const (
	ErrCodeGeneric    = "E_ERROR"
	ErrCodeValidation = "E_VALIDATION"
	ErrCodeRender     = "E_RENDER"
	ErrCodeInput      = "E_INPUT"
	ErrCodeNotFound   = "E_NOT_FOUND"
)

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes to ErrWriter (or Writer) when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
