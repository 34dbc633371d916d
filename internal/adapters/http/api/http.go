// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	service "github.com/okian/judgeboard/internal/app"
	"github.com/okian/judgeboard/internal/app/reconcile"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/okian/judgeboard/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	RankDependencies
	MemberDependencies
	ReconcileDependencies
	StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	memberHandler      *MemberHandler
	reconcileHandler   *ReconcileHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// leaderboard page size.
func NewServer(deps Dependencies, maxLimit int, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	v := validator.New()
	return &Server{
		healthHandler:      NewHealthHandler(deps),
		statsHandler:       NewStatsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		memberHandler:      NewMemberHandler(deps, v),
		reconcileHandler:   NewReconcileHandler(deps, log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /rank/{member_id}", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("POST /members", MetricsMiddleware(s.memberHandler.HandleAddMember, "members"))
	mux.HandleFunc("GET /members/{member_id}/profiles", MetricsMiddleware(s.memberHandler.HandleGetProfiles, "profiles"))
	mux.HandleFunc("PUT /members/{member_id}/handles/{source}", MetricsMiddleware(s.memberHandler.HandleSetHandle, "handles"))
	mux.HandleFunc("POST /attendance", MetricsMiddleware(s.memberHandler.HandleAddAttendance, "attendance"))
	mux.HandleFunc("POST /reconcile", MetricsMiddleware(s.reconcileHandler.HandleReconcile, "reconcile"))
	mux.HandleFunc("POST /refresh/{member_id}", MetricsMiddleware(s.reconcileHandler.HandleRefresh, "refresh"))
}

// ReconcileDependencies triggers cycles and single-member refreshes.
type ReconcileDependencies interface {
	RunCycle(ctx context.Context) (reconcile.CycleSummary, error)
	RequestRefresh(ctx context.Context, memberID int64) (model.RefreshJob, bool, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) service.Stats
	Ready(ctx context.Context) error
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks the status for err and writes it.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, err)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// memberIDParam parses the {member_id} path segment.
func memberIDParam(r *http.Request) (int64, error) {
	raw := r.PathValue("member_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: member id %q", ErrBadRequest, raw)
	}
	return id, nil
}
