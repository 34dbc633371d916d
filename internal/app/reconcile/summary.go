package reconcile

import (
	"encoding/json"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
)

// SourceState says where a member's score for one source came from.
type SourceState string

// Source states.
const (
	SourceFetched  SourceState = "fetched"
	SourceFallback SourceState = "fallback"
	SourceAbsent   SourceState = "absent"
)

// SourceResult is the per-source part of a member outcome.
type SourceResult struct {
	State    SourceState `json:"state"`
	Score    int         `json:"score"`
	FetchErr error       `json:"-"`
}

// MarshalJSON renders FetchErr as its message.
func (r SourceResult) MarshalJSON() ([]byte, error) {
	type plain SourceResult
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r), Error: errString(r.FetchErr)})
}

// HasScore reports whether the source contributed to the unified score.
func (r SourceResult) HasScore() bool {
	return r.State == SourceFetched || r.State == SourceFallback
}

// MemberStatus is the final state of one member in a cycle.
type MemberStatus string

// Member statuses.
const (
	MemberScored  MemberStatus = "scored"
	MemberSkipped MemberStatus = "skipped"
	MemberFailed  MemberStatus = "failed"
)

// MemberOutcome reports what happened to one member.
type MemberOutcome struct {
	MemberID int64                         `json:"member_id"`
	Status   MemberStatus                  `json:"status"`
	Sources  map[model.Source]SourceResult `json:"sources"`
	Unified  int                           `json:"unified_score"`
	Err      error                         `json:"-"`
}

// MarshalJSON renders Err as its message.
func (o MemberOutcome) MarshalJSON() ([]byte, error) {
	type plain MemberOutcome
	return json.Marshal(struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(o), Error: errString(o.Err)})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// CycleSummary reports one reconciliation cycle.
type CycleSummary struct {
	ID             string               `json:"id"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
	Scored         int                  `json:"scored"`
	Skipped        int                  `json:"skipped"`
	Failed         int                  `json:"failed"`
	Cancelled      bool                 `json:"cancelled"`
	SourceFailures map[model.Source]int `json:"source_failures"`
	Members        []MemberOutcome      `json:"members"`
}

// Duration returns how long the cycle ran.
func (s CycleSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
