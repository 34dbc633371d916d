package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	dedupe "github.com/okian/judgeboard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a key is recorded for the first time", func() {
			seen := d.SeenAndRecord(ctx, "member:1")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the same key is recorded again", func() {
				So(d.SeenAndRecord(ctx, "member:1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And the key is released", func() {
				d.Unrecord(ctx, "member:1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, "member:1"), ShouldBeFalse)
				})
			})
		})

		Convey("When an unknown key is released", func() {
			d.Unrecord(ctx, "never")
			So(d.Size(), ShouldEqual, 0)
		})
	})
}

func TestBoundedDeduper(t *testing.T) {
	Convey("Given a deduper bounded to three keys", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 4; i++ {
			So(d.SeenAndRecord(ctx, fmt.Sprint(i)), ShouldBeFalse)
		}

		Convey("Then the oldest key was forgotten", func() {
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "4"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "2"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "1"), ShouldBeFalse)
		})
	})
}

func TestConcurrentRecording(t *testing.T) {
	Convey("Given many goroutines recording the same key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var fresh int32
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(context.Background(), "member:7") {
					atomic.AddInt32(&fresh, 1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one of them wins", func() {
			So(atomic.LoadInt32(&fresh), ShouldEqual, 1)
		})
	})
}
