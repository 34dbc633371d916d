package fetcher

import (
	"errors"
	"fmt"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Kind classifies a fetch failure for observability. The reconciler handles
// every kind the same way.
type Kind string

// Fetch failure kinds.
const (
	KindNotFound      Kind = "not_found"
	KindUnreachable   Kind = "unreachable"
	KindMalformed     Kind = "malformed"
	KindInvalidHandle Kind = "invalid_handle"
)

// ErrFetch matches every *FetchError via errors.Is.
var ErrFetch = errors.New("fetch failed")

// FetchError reports why a source could not produce a profile.
type FetchError struct {
	Source model.Source
	Handle string
	Kind   Kind
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s fetch %q: %s", e.Source, e.Handle, e.Kind)
	}
	return fmt.Sprintf("%s fetch %q: %s: %v", e.Source, e.Handle, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func newFetchError(source model.Source, handle string, kind Kind, err error) *FetchError {
	return &FetchError{Source: source, Handle: handle, Kind: kind, Err: err}
}

// KindOf extracts the failure kind of err, defaulting to unreachable for
// errors that did not originate from a fetcher (for example a timeout
// imposed by the caller).
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnreachable
}
