package errs

import (
	"errors"
	"fmt"
)

// Kind sentinels classify failures for callers and transport adapters.
// Match with errors.Is(err, errs.ErrNotFound).
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInternal        = errors.New("internal")
	ErrUpstream        = errors.New("upstream")
)

var kinds = []error{ErrInvalidArgument, ErrNotFound, ErrConflict, ErrInternal, ErrUpstream}

// kindError carries a human message and the kind it belongs to.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// E builds an error of the given kind. The kind is not part of the message.
func E(kind error, format string, args ...any) error {
	return &kindError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the first kind sentinel the error chain matches, or ErrInternal.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
