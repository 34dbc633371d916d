package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/domain/types"
	"github.com/okian/judgeboard/pkg/logger"
	"github.com/okian/judgeboard/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

const leetCodeBody = `{"data":{
  "matchedUser":{"submitStats":{"acSubmissionNum":[
    {"difficulty":"All","count":50},{"difficulty":"Easy","count":20},
    {"difficulty":"Medium","count":25},{"difficulty":"Hard","count":5}]}},
  "userContestRanking":{"attendedContestsCount":3},
  "userContestRankingHistory":[{"attended":true,"ranking":1000}]}}`

func judgeServers() (lc, cf *httptest.Server) {
	lc = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, leetCodeBody)
	}))
	cf = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	return lc, cf
}

func call(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, r))
	return w
}

func TestBuildServesTheAPI(t *testing.T) {
	convey.Convey("Given an application wired over a memory store and fake judges", t, func() {
		lc, cf := judgeServers()
		defer lc.Close()
		defer cf.Close()

		ctx := context.Background()
		cfg := config.New(ctx)
		cfg.StorageDriver = "memory"
		cfg.LeetCodeBaseURL = lc.URL
		cfg.CodeforcesBaseURL = cf.URL
		cfg.RefreshIntervalS = 0
		cfg.FetchRatePerSec = 0
		convey.So(config.Validate(cfg), convey.ShouldBeNil)

		a, err := build(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		defer a.close(ctx)
		convey.So(a.svc.Start(ctx), convey.ShouldBeNil)
		defer a.svc.Stop(ctx)

		w := call(a.handler, http.MethodPost, "/members",
			`{"roll_no":"B21CS001","name":"Asha","email":"asha@example.com","leetcode_username":"asha","codeforces_handle":"asha_cf"}`)
		convey.So(w.Code, convey.ShouldEqual, http.StatusCreated)
		var created struct {
			MemberID int64 `json:"member_id"`
		}
		convey.So(json.Unmarshal(w.Body.Bytes(), &created), convey.ShouldBeNil)
		id := strconv.FormatInt(created.MemberID, 10)

		convey.Convey("When a cycle runs with one judge down", func() {
			w := call(a.handler, http.MethodPost, "/reconcile", "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

			var sum struct {
				Scored         int            `json:"scored"`
				SourceFailures map[string]int `json:"source_failures"`
			}
			convey.So(json.Unmarshal(w.Body.Bytes(), &sum), convey.ShouldBeNil)

			convey.Convey("Then the member is scored from the reachable judge", func() {
				convey.So(sum.Scored, convey.ShouldEqual, 1)
				convey.So(sum.SourceFailures["codeforces"], convey.ShouldEqual, 1)

				w := call(a.handler, http.MethodGet, "/leaderboard?limit=5", "")
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var rows []types.Entry
				convey.So(json.Unmarshal(w.Body.Bytes(), &rows), convey.ShouldBeNil)
				convey.So(len(rows), convey.ShouldEqual, 1)
				convey.So(rows[0].Rank, convey.ShouldEqual, 1)
				convey.So(rows[0].UnifiedScore, convey.ShouldEqual, 250)
				convey.So(rows[0].CodeforcesScore, convey.ShouldBeNil)

				convey.So(call(a.handler, http.MethodGet, "/rank/"+id, "").Code, convey.ShouldEqual, http.StatusOK)
				convey.So(call(a.handler, http.MethodGet, "/members/"+id+"/profiles", "").Body.String(),
					convey.ShouldContainSubstring, `"problems_solved":50`)
			})
		})

		convey.Convey("When a refresh is requested", func() {
			w := call(a.handler, http.MethodPost, "/refresh/"+id, "")
			convey.So(w.Code, convey.ShouldEqual, http.StatusAccepted)
			convey.So(call(a.handler, http.MethodPost, "/refresh/999", "").Code, convey.ShouldEqual, http.StatusNotFound)
		})

		convey.Convey("Then readiness and stats are served", func() {
			convey.So(call(a.handler, http.MethodGet, "/readyz", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(call(a.handler, http.MethodGet, "/stats", "").Body.String(), convey.ShouldContainSubstring, `"started":true`)
			convey.So(call(a.handler, http.MethodGet, "/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given storage settings", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("A SQLite file is created and migrated", func() {
			cfg.DatabasePath = filepath.Join(t.TempDir(), "judgeboard.db")
			s, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.Ping(ctx), convey.ShouldBeNil)
			n, err := s.CountLeaderboard(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(n, convey.ShouldEqual, 0)
			convey.So(s.Close(), convey.ShouldBeNil)
		})

		convey.Convey("An unknown driver is a configuration error", func() {
			cfg.StorageDriver = "postgres"
			_, err := openStore(ctx, cfg)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestMetricsOptions(t *testing.T) {
	convey.Convey("Given metrics settings in the config", t, func() {
		cfg := config.New(context.Background())
		cfg.MetricsNamespace = "club"
		cfg.MetricsSubsystem = "lab"
		cfg.MetricsLabels = map[string]string{"campus": "north"}
		cfg.MetricsLatencyBucketsMS = []float64{10, 100}
		convey.So(config.Validate(cfg), convey.ShouldBeNil)

		metrics.Configure(metricsOptions(cfg)...)
		convey.Reset(func() { metrics.Configure() })
		metrics.UpdateLeaderboardSize(3)

		convey.Convey("Then the registry exposes metrics under the configured names", func() {
			families, err := metrics.GetRegistry().Gather()
			convey.So(err, convey.ShouldBeNil)
			found := false
			for _, f := range families {
				if f.GetName() == "club_lab_entries" {
					found = true
					convey.So(f.GetMetric()[0].GetGauge().GetValue(), convey.ShouldEqual, 3)
					convey.So(f.GetMetric()[0].GetLabel()[0].GetName(), convey.ShouldEqual, "campus")
				}
			}
			convey.So(found, convey.ShouldBeTrue)
		})
	})
}
