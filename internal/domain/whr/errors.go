package whr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/okian/climbratings/internal/domain/bradleyterry"
)

// Sentinel kinds for estimator errors. These allow errors.Is from callers.
var (
	// ErrPrecondition marks malformed input: ragged arrays, bad slices,
	// out-of-range indices or non-positive variances.
	ErrPrecondition = errors.New("precondition failed")
	// ErrNumerical marks a derivative or rating that became non-finite.
	ErrNumerical = errors.New("numerical failure")
)

// Pass names used in errors, logs and metrics.
const (
	PassInit  = "init"
	PassRoute = "route"
	PassPage  = "page"
)

// SubjectError attributes a failure to one subject of one pass.
type SubjectError struct {
	Kind    error  // ErrPrecondition or ErrNumerical
	Pass    string // PassInit, PassRoute or PassPage
	Subject string // "route", "page" or "climber"
	Index   int    // -1 when no single subject is at fault
	Err     error // underlying cause, may be nil
}

func (e *SubjectError) Error() string {
	msg := fmt.Sprintf("%v in %s pass", e.Kind, e.Pass)
	if e.Index >= 0 {
		msg += fmt.Sprintf(": %s %d", e.Subject, e.Index)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *SubjectError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func precondition(pass, subject string, index int, cause error) error {
	return &SubjectError{Kind: ErrPrecondition, Pass: pass, Subject: subject, Index: index, Err: cause}
}

func numerical(pass, subject string, index int, cause error) error {
	return &SubjectError{Kind: ErrNumerical, Pass: pass, Subject: subject, Index: index, Err: cause}
}

// kernelError attributes a Bradley-Terry failure to the subject whose slice
// holds the offending ascent.
func kernelError(pass, subject string, err error) error {
	kind := ErrPrecondition
	if errors.Is(err, bradleyterry.ErrNonFinite) {
		kind = ErrNumerical
	}
	index := -1
	var se *bradleyterry.SubjectError
	if errors.As(err, &se) {
		index = se.Subject
	}
	return &SubjectError{Kind: kind, Pass: pass, Subject: subject, Index: index, Err: err}
}
