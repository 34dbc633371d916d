package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/tidwall/gjson"
)

// DefaultLeetCodeBaseURL is the public LeetCode origin.
const DefaultLeetCodeBaseURL = "https://leetcode.com"

const leetCodeQuery = `query userStats($username: String!) {
  matchedUser(username: $username) {
    username
    submitStats: submitStatsGlobal {
      acSubmissionNum { difficulty count }
    }
  }
  userContestRanking(username: $username) {
    attendedContestsCount
  }
  userContestRankingHistory(username: $username) {
    attended
    ranking
  }
}`

var errUserMissing = errors.New("user does not exist")

// LeetCode fetches solved-problem and contest statistics through the public
// GraphQL endpoint.
type LeetCode struct {
	client  *Client
	baseURL string
}

// NewLeetCode creates a LeetCode fetcher. An empty baseURL selects the public
// origin.
func NewLeetCode(client *Client, baseURL string) *LeetCode {
	if client == nil {
		client = NewClient()
	}
	if baseURL == "" {
		baseURL = DefaultLeetCodeBaseURL
	}
	return &LeetCode{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Source implements Fetcher.
func (l *LeetCode) Source() model.Source { return model.SourceLeetCode }

// Fetch implements Fetcher.
func (l *LeetCode) Fetch(ctx context.Context, memberID int64, handle string) (model.Profile, error) {
	username, err := normalizeHandle(model.SourceLeetCode, handle)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"query":     leetCodeQuery,
		"variables": map[string]string{"username": username},
	})
	if err != nil {
		return nil, newFetchError(model.SourceLeetCode, username, KindMalformed, err)
	}

	resp, err := l.client.postJSON(ctx, l.baseURL+"/graphql", payload)
	if err != nil {
		return nil, newFetchError(model.SourceLeetCode, username, KindUnreachable, err)
	}
	if resp.status < 200 || resp.status > 299 {
		return nil, newFetchError(model.SourceLeetCode, username, classifyStatus(resp.status),
			fmt.Errorf("status %d", resp.status))
	}

	stats, err := parseLeetCode(resp.body, memberID, username)
	if err != nil {
		kind := KindMalformed
		if errors.Is(err, errUserMissing) {
			kind = KindNotFound
		}
		return nil, newFetchError(model.SourceLeetCode, username, kind, err)
	}
	return stats, nil
}

func parseLeetCode(body []byte, memberID int64, username string) (model.LeetCodeStats, error) {
	if !gjson.ValidBytes(body) {
		return model.LeetCodeStats{}, errors.New("invalid json")
	}
	doc := gjson.ParseBytes(body)

	user := doc.Get("data.matchedUser")
	if !user.Exists() || user.Type == gjson.Null {
		if msg := doc.Get("errors.0.message"); msg.Exists() {
			return model.LeetCodeStats{}, fmt.Errorf("%w: %s", errUserMissing, msg.String())
		}
		if !doc.Get("data").Exists() {
			return model.LeetCodeStats{}, errors.New("missing data")
		}
		return model.LeetCodeStats{}, errUserMissing
	}

	nums := user.Get("submitStats.acSubmissionNum")
	if !nums.IsArray() {
		return model.LeetCodeStats{}, errors.New("missing acSubmissionNum")
	}

	stats := model.LeetCodeStats{MemberID: memberID, Username: username}
	for _, n := range nums.Array() {
		count := int(n.Get("count").Int())
		switch strings.ToLower(n.Get("difficulty").String()) {
		case "all":
			stats.ProblemsSolved = count
		case "easy":
			stats.EasySolved = count
		case "medium":
			stats.MediumSolved = count
		case "hard":
			stats.HardSolved = count
		}
	}

	stats.ContestsParticipated = int(doc.Get("data.userContestRanking.attendedContestsCount").Int())
	for _, h := range doc.Get("data.userContestRankingHistory").Array() {
		stats.TotalContests++
		if !h.Get("attended").Bool() {
			continue
		}
		rank := int(h.Get("ranking").Int())
		if rank > 0 && (stats.BestRank == 0 || rank < stats.BestRank) {
			stats.BestRank = rank
		}
	}
	return stats, nil
}
