package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
)

// DefaultCodeforcesBaseURL is the public Codeforces origin.
const DefaultCodeforcesBaseURL = "https://codeforces.com"

// cfEnvelope is the common Codeforces API response wrapper.
type cfEnvelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

type cfUser struct {
	Handle    string `json:"handle"`
	Rating    int    `json:"rating"`
	MaxRating int    `json:"maxRating"`
}

type cfRatingChange struct {
	ContestID int `json:"contestId"`
}

// Codeforces fetches rating and participation through the public REST API.
type Codeforces struct {
	client  *Client
	baseURL string
}

// NewCodeforces creates a Codeforces fetcher. An empty baseURL selects the
// public origin.
func NewCodeforces(client *Client, baseURL string) *Codeforces {
	if client == nil {
		client = NewClient()
	}
	if baseURL == "" {
		baseURL = DefaultCodeforcesBaseURL
	}
	return &Codeforces{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Source implements Fetcher.
func (c *Codeforces) Source() model.Source { return model.SourceCodeforces }

// Fetch implements Fetcher.
func (c *Codeforces) Fetch(ctx context.Context, memberID int64, handle string) (model.Profile, error) {
	h, err := normalizeHandle(model.SourceCodeforces, handle)
	if err != nil {
		return nil, err
	}

	var users []cfUser
	if err := c.call(ctx, h, "user.info", url.Values{"handles": {h}}, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, newFetchError(model.SourceCodeforces, h, KindNotFound, errors.New("empty result"))
	}

	var changes []cfRatingChange
	if err := c.call(ctx, h, "user.rating", url.Values{"handle": {h}}, &changes); err != nil {
		return nil, err
	}

	u := users[0]
	if u.Handle != "" {
		h = u.Handle
	}
	return model.CodeforcesStats{
		MemberID:             memberID,
		Handle:               h,
		Rating:               u.Rating,
		MaxRating:            u.MaxRating,
		ContestsParticipated: len(changes),
	}, nil
}

func (c *Codeforces) call(ctx context.Context, handle, method string, q url.Values, out any) error {
	resp, err := c.client.get(ctx, c.baseURL+"/api/"+method, q)
	if err != nil {
		return newFetchError(model.SourceCodeforces, handle, KindUnreachable, err)
	}

	var env cfEnvelope
	decodeErr := json.Unmarshal(resp.body, &env)

	if resp.status < 200 || resp.status > 299 {
		// Codeforces answers 400 with a FAILED envelope for unknown handles.
		if decodeErr == nil && env.Status == "FAILED" && strings.Contains(strings.ToLower(env.Comment), "not found") {
			return newFetchError(model.SourceCodeforces, handle, KindNotFound, errors.New(env.Comment))
		}
		kind := classifyStatus(resp.status)
		if resp.status == http.StatusBadRequest {
			kind = KindInvalidHandle
		}
		return newFetchError(model.SourceCodeforces, handle, kind, fmt.Errorf("%s: status %d", method, resp.status))
	}

	if decodeErr != nil {
		return newFetchError(model.SourceCodeforces, handle, KindMalformed, fmt.Errorf("%s: %w", method, decodeErr))
	}
	if env.Status != "OK" {
		return newFetchError(model.SourceCodeforces, handle, KindMalformed, fmt.Errorf("%s: status %q: %s", method, env.Status, env.Comment))
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return newFetchError(model.SourceCodeforces, handle, KindMalformed, fmt.Errorf("%s result: %w", method, err))
	}
	return nil
}
