package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/types"
)

const dateLayout = "2006-01-02"

// MemberDependencies defines the member directory operations.
type MemberDependencies interface {
	AddMember(ctx context.Context, m model.Member, handles map[model.Source]string) (int64, error)
	SetHandle(ctx context.Context, memberID int64, source model.Source, handle string) error
	AddAttendance(ctx context.Context, a model.Attendance) error
	Profiles(ctx context.Context, memberID int64) (types.Profiles, error)
}

type memberRequest struct {
	RollNo           string  `json:"roll_no" validate:"required,max=32"`
	Name             string  `json:"name" validate:"required,max=128"`
	Hostel           string  `json:"hostel" validate:"max=64"`
	Email            string  `json:"email" validate:"required,email"`
	Sex              string  `json:"sex" validate:"max=16"`
	Year             int     `json:"year" validate:"gte=0"`
	MACAddress       string  `json:"mac_address" validate:"omitempty,mac"`
	DiscordID        *string `json:"discord_id" validate:"omitempty,max=64"`
	GroupID          int     `json:"group_id" validate:"gte=0"`
	LeetCodeUsername string  `json:"leetcode_username"`
	CodeforcesHandle string  `json:"codeforces_handle"`
}

type attendanceRequest struct {
	MemberID int64  `json:"member_id" validate:"required,gt=0"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeIn   string `json:"time_in" validate:"omitempty,datetime=15:04:05"`
	TimeOut  string `json:"time_out" validate:"omitempty,datetime=15:04:05"`
}

type handleRequest struct {
	Handle string `json:"handle" validate:"required"`
}

type memberCreated struct {
	MemberID int64 `json:"member_id"`
}

type handleSet struct {
	MemberID int64        `json:"member_id"`
	Source   model.Source `json:"source"`
	Handle   string       `json:"handle"`
}

// MemberHandler handles member directory requests.
type MemberHandler struct {
	deps     MemberDependencies
	validate *validator.Validate
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(deps MemberDependencies, v *validator.Validate) *MemberHandler {
	if v == nil {
		v = validator.New()
	}
	return &MemberHandler{deps: deps, validate: v}
}

func (h *MemberHandler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, w, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		return false
	}
	return true
}

// HandleAddMember handles POST /members requests.
func (h *MemberHandler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !h.bind(w, r, &req) {
		return
	}
	m := model.Member{
		RollNo:     req.RollNo,
		Name:       req.Name,
		Hostel:     req.Hostel,
		Email:      req.Email,
		Sex:        req.Sex,
		Year:       req.Year,
		MACAddress: req.MACAddress,
		DiscordID:  req.DiscordID,
		GroupID:    req.GroupID,
	}
	handles := map[model.Source]string{
		model.SourceLeetCode:   req.LeetCodeUsername,
		model.SourceCodeforces: req.CodeforcesHandle,
	}
	id, err := h.deps.AddMember(r.Context(), m, handles)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, memberCreated{MemberID: id})
}

// HandleGetProfiles handles GET /members/{member_id}/profiles requests.
func (h *MemberHandler) HandleGetProfiles(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	p, err := h.deps.Profiles(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleSetHandle handles PUT /members/{member_id}/handles/{source} requests.
func (h *MemberHandler) HandleSetHandle(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	src, err := model.ParseSource(r.PathValue("source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrUnknownSource, err))
		return
	}
	var req handleRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.deps.SetHandle(r.Context(), id, src, req.Handle); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, handleSet{MemberID: id, Source: src, Handle: req.Handle})
}

// HandleAddAttendance handles POST /attendance requests.
func (h *MemberHandler) HandleAddAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if !h.bind(w, r, &req) {
		return
	}
	day, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrInvalidPayload, err))
		return
	}
	a := model.Attendance{MemberID: req.MemberID, Date: day, TimeIn: req.TimeIn, TimeOut: req.TimeOut}
	if err := h.deps.AddAttendance(r.Context(), a); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
