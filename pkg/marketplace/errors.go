package marketplace

import (
	"github.com/pkg/errors"

	"github.com/emergent/skillsmarket/pkg/store"
	"github.com/emergent/skillsmarket/pkg/upload"
)

// ErrorKind classifies service failures.
type ErrorKind string

const (
	// KindValidation is a structural problem with the request or upload.
	KindValidation ErrorKind = "validation"
	// KindNotFound is an unknown skill, agent, rule, project or client.
	KindNotFound ErrorKind = "not_found"
	// KindConflict is a name or path that is already taken.
	KindConflict ErrorKind = "conflict"
	// KindExternal is a file store failure. The index was not touched.
	KindExternal ErrorKind = "external"
	// KindPartial means files were committed but the index was not updated.
	KindPartial ErrorKind = "partial"
)

// Error is a classified service failure. Message is safe to show to users.
type Error struct {
	Kind     ErrorKind
	Message  string
	Revision string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func invalid(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// classify turns store and upload errors into an *Error. notFoundMessage is
// used when err is store.ErrNotFound. Unknown errors pass through unchanged.
func classify(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}

	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}

	var validationErr *upload.ValidationError
	var storeErr *upload.StoreError
	var persistErr *upload.PersistError

	switch {
	case errors.As(err, &validationErr):
		return &Error{Kind: KindValidation, Message: validationErr.Error(), Err: err}
	case errors.Is(err, upload.ErrEmptyBatch):
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	case errors.As(err, &storeErr):
		return &Error{Kind: KindExternal, Message: "failed to commit files to the file store", Err: storeErr.Err}
	case errors.As(err, &persistErr):
		return &Error{Kind: KindPartial, Message: persistErr.Error(), Revision: persistErr.Revision, Err: persistErr.Err}
	case errors.Is(err, store.ErrNotFound) && notFoundMessage != "":
		return &Error{Kind: KindNotFound, Message: notFoundMessage, Err: err}
	case errors.Is(err, store.ErrConflict):
		return &Error{Kind: KindConflict, Message: err.Error(), Err: err}
	}
	return err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var svcErr *Error
	return errors.As(err, &svcErr) && svcErr.Kind == kind
}
