package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a dedicated registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("lb"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then its collectors are registered on that registry", func() {
				So(m, ShouldNotBeNil)
				m.cycleInProgress.Set(1)
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_lb_reconcile_cycle_in_progress"], ShouldBeTrue)
			})
		})
	})
}

func TestPackageLevelRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording fetch activity", func() {
			before := testutil.ToFloat64(globalManager.fetchErrors.WithLabelValues("leetcode", "not_found"))
			RecordFetch("leetcode", 12)
			RecordFetchError("leetcode", "not_found")

			Convey("Then the error counter advances by one", func() {
				after := testutil.ToFloat64(globalManager.fetchErrors.WithLabelValues("leetcode", "not_found"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When toggling the cycle gauge", func() {
			SetCycleInProgress(true)
			So(testutil.ToFloat64(globalManager.cycleInProgress), ShouldEqual, 1)
			SetCycleInProgress(false)
			So(testutil.ToFloat64(globalManager.cycleInProgress), ShouldEqual, 0)
		})

		Convey("When setting the leaderboard size", func() {
			UpdateLeaderboardSize(42)
			So(testutil.ToFloat64(globalManager.leaderboardSize), ShouldEqual, 42)
		})

		Convey("When recording outcomes", func() {
			before := testutil.ToFloat64(globalManager.memberOutcomes.WithLabelValues("scored"))
			RecordMemberOutcome("scored")
			RecordMemberOutcome("scored")
			So(testutil.ToFloat64(globalManager.memberOutcomes.WithLabelValues("scored"))-before, ShouldEqual, 2)
		})

		Convey("When recording an HTTP error", func() {
			c := globalManager.httpErrors.WithLabelValues("rank", "not_found", "medium")
			before := testutil.ToFloat64(c)
			RecordHTTPError("rank", "not_found", "medium")
			So(testutil.ToFloat64(c)-before, ShouldEqual, 1)
		})

		Convey("Then GetRegistry exposes the custom registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}

func TestConfigure(t *testing.T) {
	Convey("Given the process-wide manager", t, func() {
		Reset(func() { Configure() })

		Convey("When it is reconfigured with a namespace and labels", func() {
			Configure(
				WithNamespace("jb"),
				WithSubsystem("ci"),
				WithConstLabels(map[string]string{"instance": "a"}),
				WithHistogramBuckets([]float64{50, 5, 50}),
			)
			SetCycleInProgress(true)
			RecordFetch("leetcode", 7)

			Convey("Then recorders write to the new registry under the new names", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				byName := map[string]bool{}
				for _, f := range families {
					byName[f.GetName()] = true
					if f.GetName() == "jb_ci_reconcile_cycle_in_progress" {
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "a")
					}
				}
				So(byName["jb_ci_reconcile_cycle_in_progress"], ShouldBeTrue)
				So(byName["judgeboard_leaderboard_reconcile_cycle_in_progress"], ShouldBeFalse)
				So(globalManager.histogramBuckets, ShouldResemble, []float64{5, 50})
			})
		})
	})
}
