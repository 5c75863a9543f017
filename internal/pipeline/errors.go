package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mtzanidakis/scenegen/internal/llm"
	"github.com/mtzanidakis/scenegen/internal/response"
)

// ErrCancelled is returned when the caller cancels a run or its deadline
// passes before the terminal step completes.
var ErrCancelled = errors.New("pipeline cancelled")

// MissingInputError means an agent ran before a key it reads was published.
type MissingInputError struct {
	Agent string
	Keys  []Key
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: missing input %s", e.Agent, joinKeys(e.Keys))
}

// IncompleteStateError means the assembler found required fragments absent
// or empty.
type IncompleteStateError struct {
	Keys []Key
}

func (e *IncompleteStateError) Error() string {
	return "incomplete state: " + joinKeys(e.Keys)
}

// GraphConfigurationError reports an invalid agent graph.
type GraphConfigurationError struct {
	Reason string
}

func (e *GraphConfigurationError) Error() string {
	return "invalid pipeline graph: " + e.Reason
}

func graphErrorf(format string, args ...any) error {
	return &GraphConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsRecoverable reports whether err is a failure an agent degrades on:
// a model call failure or an unusable model response.
func IsRecoverable(err error) bool {
	var gf *llm.GenerationFailure
	var pe *response.ParseError
	return errors.As(err, &gf) || errors.As(err, &pe)
}

// IsFatal reports whether err aborts the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var mi *MissingInputError
	var is *IncompleteStateError
	var gc *GraphConfigurationError
	switch {
	case errors.As(err, &mi), errors.As(err, &is), errors.As(err, &gc):
		return true
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrAlreadyWritten):
		return true
	}
	return !IsRecoverable(err)
}

func joinKeys(keys []Key) string {
	s := make([]string, len(keys))
	for i, k := range keys {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}
