// Package extract pulls plain text out of uploaded PDF documents
// using pdfcpu. Extraction failures are classified so callers can
// report unreadable, empty, and password-protected files distinctly.
package extract

import (
	"errors"
	"fmt"
)

// Kind classifies extraction failures.
type Kind string

const (
	KindCorrupt   Kind = "corrupt"
	KindEmpty     Kind = "empty"
	KindEncrypted Kind = "encrypted"
)

// ExtractionError wraps an extraction failure with its classification.
type ExtractionError struct {
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s document: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extract: %s document", e.Kind)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError builds a classified extraction error.
func NewExtractionError(kind Kind, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Err: err}
}

// ErrKind returns the classification of err, or "" when err is not an
// ExtractionError.
func ErrKind(err error) Kind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}
