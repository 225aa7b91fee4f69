package bradleyterry

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel kinds for Bradley-Terry kernel errors.
var (
	ErrInvalidInput = errors.New("invalid bradley-terry input")
	ErrNonFinite    = errors.New("non-finite bradley-terry term")
)

// SubjectError attributes a kernel failure to the slice whose subject is at
// fault. Subject is the slice index, or -1 when no single slice is at fault.
type SubjectError struct {
	Kind    error // ErrInvalidInput or ErrNonFinite
	Subject int
	Err     error
}

func (e *SubjectError) Error() string {
	msg := e.Kind.Error()
	if e.Subject >= 0 {
		msg = fmt.Sprintf("subject %d: %s", e.Subject, msg)
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
