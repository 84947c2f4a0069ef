package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
)

// asSemError returns the first SemError in err's chain, or wraps err as
// an internal error.
func asSemError(err error) *SemError {
	var se *SemError
	if stderrors.As(err, &se) {
		return se
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	se := asSemError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", se.Message))
	if se.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", se.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", se.Code))
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON renders err as {"error": {...}} for commands whose output is
// read by scripts.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	se := asSemError(err)

	je := jsonError{
		Code:       se.Code,
		Message:    se.Message,
		Category:   string(se.Category),
		Severity:   string(se.Severity),
		Details:    se.Details,
		Suggestion: se.Suggestion,
		Retryable:  se.Retryable,
	}
	if se.Cause != nil {
		je.Cause = se.Cause.Error()
	}
	return json.MarshalIndent(map[string]jsonError{"error": je}, "", "  ")
}

// LogAttr returns err as a structured log attribute. A SemError becomes an
// "error" group carrying its code and category; other errors are logged
// as a plain string.
func LogAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	var se *SemError
	if !stderrors.As(err, &se) {
		return slog.String("error", err.Error())
	}

	attrs := []any{
		slog.String("code", se.Code),
		slog.String("message", se.Message),
		slog.String("category", string(se.Category)),
		slog.Bool("retryable", se.Retryable),
	}
	if se.Cause != nil {
		attrs = append(attrs, slog.String("cause", se.Cause.Error()))
	}
	return slog.Group("error", attrs...)
}
