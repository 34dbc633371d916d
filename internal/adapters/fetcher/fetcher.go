package fetcher

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
)

// Fetcher retrieves the current statistics of one handle on one source.
// Implementations are safe for concurrent use and return either a profile or
// a *FetchError, never both.
type Fetcher interface {
	Source() model.Source
	Fetch(ctx context.Context, memberID int64, handle string) (model.Profile, error)
}

var errEmptyHandle = errors.New("empty handle")

// normalizeHandle trims the handle. Handles are opaque: anything non-empty is
// passed to the judge, which decides whether it exists.
func normalizeHandle(source model.Source, handle string) (string, error) {
	h := strings.TrimSpace(handle)
	if h == "" {
		return "", newFetchError(source, handle, KindInvalidHandle, errEmptyHandle)
	}
	return h, nil
}
