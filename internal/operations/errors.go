package operations

import (
	"errors"
	"fmt"
)

// ErrNotFound marks lookups of unknown identifiers, and artifact fetches for
// jobs that have not succeeded.
var ErrNotFound = errors.New("not found")

// ErrGone marks access to state an earlier cleanup already removed.
var ErrGone = errors.New("gone")

// ValidationError reports a rejected request: empty moment or language sets,
// unknown moment indexes, or duplicate (moment, language) pairs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ErrorClassifier lets error types declare their own failure kind without
// importing this package. Matched structurally via errors.As.
type ErrorClassifier interface {
	error
	ErrorKind() string
}

// Classify maps a job error to its failure kind. Errors that declare a kind
// win; everything else retries and the attempt budget decides when to give
// up, so a misclassified transient error costs attempts instead of losing a
// job that could have succeeded.
func Classify(err error) FailureKind {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) && classifier.ErrorKind() == string(FailureTerminal) {
		return FailureTerminal
	}
	return FailureTransient
}
