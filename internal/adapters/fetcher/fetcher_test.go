package fetcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/judgeboard/internal/adapters/fetcher"
	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const leetCodeOK = `{"data":{
  "matchedUser":{"username":"alice","submitStats":{"acSubmissionNum":[
    {"difficulty":"All","count":50},{"difficulty":"Easy","count":20},
    {"difficulty":"Medium","count":25},{"difficulty":"Hard","count":5}]}},
  "userContestRanking":{"attendedContestsCount":3},
  "userContestRankingHistory":[
    {"attended":true,"ranking":2400},{"attended":false,"ranking":0},
    {"attended":true,"ranking":1000},{"attended":true,"ranking":1800}]}}`

func kindOf(err error) fetcher.Kind {
	var fe *fetcher.FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func TestLeetCodeFetch(t *testing.T) {
	Convey("Given a LeetCode GraphQL server", t, func() {
		var body string
		var status int32 = http.StatusOK
		var gotUser atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			var req struct {
				Variables map[string]string `json:"variables"`
			}
			_ = json.Unmarshal(raw, &req)
			gotUser.Store(req.Variables["username"])
			w.WriteHeader(int(atomic.LoadInt32(&status)))
			_, _ = io.WriteString(w, body)
		}))
		defer srv.Close()

		lc := fetcher.NewLeetCode(fetcher.NewClient(), srv.URL)
		So(lc.Source(), ShouldEqual, model.SourceLeetCode)

		Convey("When the user exists", func() {
			body = leetCodeOK
			p, err := lc.Fetch(context.Background(), 7, " alice ")

			Convey("Then the profile carries the parsed statistics", func() {
				So(err, ShouldBeNil)
				So(gotUser.Load(), ShouldEqual, "alice")
				st, ok := p.(model.LeetCodeStats)
				So(ok, ShouldBeTrue)
				So(st.MemberID, ShouldEqual, 7)
				So(st.Username, ShouldEqual, "alice")
				So(st.ProblemsSolved, ShouldEqual, 50)
				So(st.EasySolved, ShouldEqual, 20)
				So(st.MediumSolved, ShouldEqual, 25)
				So(st.HardSolved, ShouldEqual, 5)
				So(st.ContestsParticipated, ShouldEqual, 3)
				So(st.BestRank, ShouldEqual, 1000)
				So(st.TotalContests, ShouldEqual, 4)
			})
		})

		Convey("When the user has never entered a contest", func() {
			body = `{"data":{"matchedUser":{"submitStats":{"acSubmissionNum":[{"difficulty":"All","count":4}]}},
			  "userContestRanking":null,"userContestRankingHistory":null}}`
			p, err := lc.Fetch(context.Background(), 1, "bob")
			So(err, ShouldBeNil)
			st := p.(model.LeetCodeStats)
			So(st.ProblemsSolved, ShouldEqual, 4)
			So(st.BestRank, ShouldEqual, 0)
			So(st.ContestsParticipated, ShouldEqual, 0)
		})

		Convey("When the user does not exist", func() {
			body = `{"errors":[{"message":"That user does not exist."}],"data":{"matchedUser":null}}`
			_, err := lc.Fetch(context.Background(), 1, "ghost")
			So(errors.Is(err, fetcher.ErrFetch), ShouldBeTrue)
			So(kindOf(err), ShouldEqual, fetcher.KindNotFound)
		})

		Convey("When the response is not JSON", func() {
			body = `<html>maintenance</html>`
			_, err := lc.Fetch(context.Background(), 1, "alice")
			So(kindOf(err), ShouldEqual, fetcher.KindMalformed)
		})

		Convey("When the server fails", func() {
			atomic.StoreInt32(&status, http.StatusBadGateway)
			_, err := lc.Fetch(context.Background(), 1, "alice")
			So(kindOf(err), ShouldEqual, fetcher.KindUnreachable)
		})

		Convey("When the handle is blank", func() {
			_, err := lc.Fetch(context.Background(), 1, "   ")
			So(kindOf(err), ShouldEqual, fetcher.KindInvalidHandle)
			So(gotUser.Load(), ShouldBeNil)
		})

		Convey("When the handle has unusual characters or length", func() {
			body = leetCodeOK
			for _, h := range []string{"josé", "a+b", "user@x", "not a handle", strings.Repeat("a", 65)} {
				_, err := lc.Fetch(context.Background(), 1, h)
				So(err, ShouldBeNil)
				So(gotUser.Load(), ShouldEqual, h)
			}
		})
	})
}

func TestCodeforcesFetch(t *testing.T) {
	Convey("Given a Codeforces API server", t, func() {
		var info, rating string
		var infoStatus int32 = http.StatusOK
		var calls int32
		mux := http.NewServeMux()
		mux.HandleFunc("/api/user.info", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(int(atomic.LoadInt32(&infoStatus)))
			_, _ = io.WriteString(w, info)
		})
		mux.HandleFunc("/api/user.rating", func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			_, _ = io.WriteString(w, rating)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		cf := fetcher.NewCodeforces(fetcher.NewClient(), srv.URL+"/")
		So(cf.Source(), ShouldEqual, model.SourceCodeforces)

		Convey("When the handle is rated", func() {
			info = `{"status":"OK","result":[{"handle":"Tourist","rating":1500,"maxRating":1600}]}`
			rating = `{"status":"OK","result":[{"contestId":1},{"contestId":2},{"contestId":3},{"contestId":4}]}`
			p, err := cf.Fetch(context.Background(), 9, "tourist")

			Convey("Then rating and contest count are mapped", func() {
				So(err, ShouldBeNil)
				st := p.(model.CodeforcesStats)
				So(st.MemberID, ShouldEqual, 9)
				So(st.Handle, ShouldEqual, "Tourist")
				So(st.Rating, ShouldEqual, 1500)
				So(st.MaxRating, ShouldEqual, 1600)
				So(st.ContestsParticipated, ShouldEqual, 4)
			})
		})

		Convey("When the handle is unrated", func() {
			info = `{"status":"OK","result":[{"handle":"newbie"}]}`
			rating = `{"status":"OK","result":[]}`
			p, err := cf.Fetch(context.Background(), 2, "newbie")
			So(err, ShouldBeNil)
			st := p.(model.CodeforcesStats)
			So(st.Rating, ShouldEqual, 0)
			So(st.ContestsParticipated, ShouldEqual, 0)
		})

		Convey("When the handle does not exist", func() {
			atomic.StoreInt32(&infoStatus, http.StatusBadRequest)
			info = `{"status":"FAILED","comment":"handles: User with handle ghost not found"}`
			_, err := cf.Fetch(context.Background(), 2, "ghost")

			Convey("Then the failure is not_found and rating is never requested", func() {
				So(kindOf(err), ShouldEqual, fetcher.KindNotFound)
				So(atomic.LoadInt32(&calls), ShouldEqual, 1)
			})
		})

		Convey("When the API reports a failure with OK transport", func() {
			info = `{"status":"FAILED","comment":"Call limit exceeded"}`
			_, err := cf.Fetch(context.Background(), 2, "tourist")
			So(kindOf(err), ShouldEqual, fetcher.KindMalformed)
		})

		Convey("When the judge rejects an opaque handle", func() {
			atomic.StoreInt32(&infoStatus, http.StatusBadRequest)
			info = `{"status":"FAILED","comment":"handles: Field should contain only Latin letters"}`
			_, err := cf.Fetch(context.Background(), 2, "josé")

			Convey("Then the request reached the server and the 400 is classified", func() {
				So(atomic.LoadInt32(&calls), ShouldEqual, 1)
				So(kindOf(err), ShouldEqual, fetcher.KindInvalidHandle)
			})
		})

		Convey("When the API is down", func() {
			atomic.StoreInt32(&infoStatus, http.StatusServiceUnavailable)
			info = `oops`
			_, err := cf.Fetch(context.Background(), 2, "tourist")
			So(kindOf(err), ShouldEqual, fetcher.KindUnreachable)
		})
	})
}

func TestClientRateLimitAndCancellation(t *testing.T) {
	Convey("Given a slow server", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		cf := fetcher.NewCodeforces(fetcher.NewClient(fetcher.WithRateLimit(100, 1)), srv.URL)

		Convey("When the caller's deadline expires", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := cf.Fetch(ctx, 1, "tourist")

			Convey("Then the failure is unreachable", func() {
				So(err, ShouldNotBeNil)
				So(kindOf(err), ShouldEqual, fetcher.KindUnreachable)
				So(fetcher.KindOf(context.DeadlineExceeded), ShouldEqual, fetcher.KindUnreachable)
			})
		})
	})
}
