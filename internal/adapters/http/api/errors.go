package api

import (
	"errors"
	"net/http"

	"github.com/okian/judgeboard/internal/adapters/repository"
	service "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/app/reconcile"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrLimitExceeded  = errors.New("limit exceeds maximum")
	ErrUnknownSource  = errors.New("unknown source")
	ErrInvalidPayload = errors.New("invalid payload")
)

// errorStatus maps an upstream error onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrUnknownSource), errors.Is(err, ErrLimitExceeded),
		errors.Is(err, repository.ErrInvalidInput), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case isNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, reconcile.ErrCycleInProgress):
		return http.StatusConflict, "cycle_in_progress"
	case errors.Is(err, service.ErrRefreshBacklog):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, reconcile.ErrRosterUnavailable),
		errors.Is(err, reconcile.ErrStorageUnavailable),
		errors.Is(err, repository.ErrStorage):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
