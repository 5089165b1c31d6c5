package usecase

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLockArena(t *testing.T) {
	Convey("Given a lock arena", t, func() {
		arena := newLockArena()

		Convey("Acquiring a free id succeeds, a held id fails fast", func() {
			So(arena.TryAcquire("wf1"), ShouldBeTrue)
			So(arena.TryAcquire("wf1"), ShouldBeFalse)
			So(arena.TryAcquire("wf2"), ShouldBeTrue)

			arena.Release("wf1")
			So(arena.TryAcquire("wf1"), ShouldBeTrue)
		})
	})
}
