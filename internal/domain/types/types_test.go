package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/okian/judgeboard/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryJSON(t *testing.T) {
	Convey("Given an entry with only a LeetCode score", t, func() {
		lc := 180
		entry := types.Entry{
			Rank:          1,
			MemberID:      7,
			LeetCodeScore: &lc,
			UnifiedScore:  180,
			LastUpdated:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}

		Convey("When encoding it", func() {
			b, err := json.Marshal(entry)
			So(err, ShouldBeNil)

			var got map[string]any
			So(json.Unmarshal(b, &got), ShouldBeNil)

			Convey("Then the absent source encodes as null", func() {
				So(got["codeforces_score"], ShouldBeNil)
				So(got["leetcode_score"], ShouldEqual, 180)
				So(got["unified_score"], ShouldEqual, 180)
				So(got["member_id"], ShouldEqual, 7)
				So(got["last_updated"], ShouldEqual, "2026-01-02T03:04:05Z")
			})
		})
	})
}
