package model_test

import (
	"testing"

	"github.com/okian/judgeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseSource(t *testing.T) {
	Convey("Given source names", t, func() {
		Convey("When they are known in any case", func() {
			lc, err1 := model.ParseSource(" LeetCode ")
			cf, err2 := model.ParseSource("codeforces")

			Convey("Then they parse", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(lc, ShouldEqual, model.SourceLeetCode)
				So(cf, ShouldEqual, model.SourceCodeforces)
			})
		})

		Convey("When the name is unknown", func() {
			_, err := model.ParseSource("atcoder")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestProfiles(t *testing.T) {
	Convey("Given stats of both sources", t, func() {
		var lc model.Profile = model.LeetCodeStats{MemberID: 1, Username: "alice"}
		var cf model.Profile = model.CodeforcesStats{MemberID: 2, Handle: "tourist"}

		Convey("Then they expose owner, source and handle", func() {
			So(lc.Owner(), ShouldEqual, 1)
			So(lc.Source(), ShouldEqual, model.SourceLeetCode)
			So(lc.SourceHandle(), ShouldEqual, "alice")
			So(cf.Owner(), ShouldEqual, 2)
			So(cf.Source(), ShouldEqual, model.SourceCodeforces)
			So(cf.SourceHandle(), ShouldEqual, "tourist")
		})
	})
}

func TestLeaderboardEntrySourceScore(t *testing.T) {
	Convey("Given an empty leaderboard entry", t, func() {
		var e model.LeaderboardEntry

		Convey("Then no source score is present", func() {
			_, ok := e.SourceScore(model.SourceLeetCode)
			So(ok, ShouldBeFalse)
			So(e.CodeforcesScore, ShouldBeNil)
		})

		Convey("When a score is set", func() {
			e.SetSourceScore(model.SourceCodeforces, 170)

			Convey("Then only that field is populated", func() {
				v, ok := e.SourceScore(model.SourceCodeforces)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 170)
				So(e.LeetCodeScore, ShouldBeNil)
			})
		})
	})
}

func TestRosterMemberHandle(t *testing.T) {
	Convey("Given a roster member without handles", t, func() {
		r := model.RosterMember{MemberID: 3}
		So(r.Handle(model.SourceLeetCode), ShouldEqual, "")

		Convey("When a handle is registered", func() {
			r.Handles = map[model.Source]string{model.SourceLeetCode: "bob"}
			So(r.Handle(model.SourceLeetCode), ShouldEqual, "bob")
			So(r.Handle(model.SourceCodeforces), ShouldEqual, "")
		})
	})
}
