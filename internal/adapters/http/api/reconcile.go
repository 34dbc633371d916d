package api

import (
	"net/http"

	"github.com/okian/judgeboard/pkg/logger"
)

type refreshResponse struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id,omitempty"`
	MemberID  int64  `json:"member_id"`
	Coalesced bool   `json:"coalesced"`
}

// ReconcileHandler triggers reconciliation work.
type ReconcileHandler struct {
	deps   ReconcileDependencies
	logger logger.Logger
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(deps ReconcileDependencies, log logger.Logger) *ReconcileHandler {
	return &ReconcileHandler{deps: deps, logger: log}
}

// HandleReconcile handles POST /reconcile: one cycle, run synchronously.
func (h *ReconcileHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.RunCycle(r.Context())
	if err != nil {
		h.logger.Warn(r.Context(), "manual cycle rejected", logger.Error(err))
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleRefresh handles POST /refresh/{member_id}: queue one member.
func (h *ReconcileHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	job, coalesced, err := h.deps.RequestRefresh(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	status := "accepted"
	if coalesced {
		status = "coalesced"
	}
	writeJSON(w, http.StatusAccepted, refreshResponse{Status: status, JobID: job.ID, MemberID: id, Coalesced: coalesced})
}
