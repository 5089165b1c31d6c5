package domain

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestVersion(t *testing.T) {
	Convey("Given semantic version triples", t, func() {
		Convey("Next bumps the requested component and resets lower ones", func() {
			v := Version{Major: 1, Minor: 2, Patch: 3}
			So(v.Next(BumpPatch).String(), ShouldEqual, "1.2.4")
			So(v.Next(BumpMinor).String(), ShouldEqual, "1.3.0")
			So(v.Next(BumpMajor).String(), ShouldEqual, "2.0.0")
		})

		Convey("Next always moves forward", func() {
			v := Version{Major: 1, Minor: 2, Patch: 3}
			for _, bump := range []Bump{BumpPatch, BumpMinor, BumpMajor} {
				So(v.Next(bump).Compare(v), ShouldEqual, 1)
			}
		})

		Convey("Compare orders component by component", func() {
			So(Version{Major: 1}.Compare(Version{Patch: 9}), ShouldEqual, 1)
			So(Version{Minor: 1}.Compare(Version{Minor: 1}), ShouldEqual, 0)
			So(Version{Patch: 1}.Compare(Version{Patch: 2}), ShouldEqual, -1)
		})

		Convey("ParseVersion round-trips and accepts a v prefix", func() {
			v, err := ParseVersion("1.2.3")
			So(err, ShouldBeNil)
			So(v, ShouldResemble, Version{Major: 1, Minor: 2, Patch: 3})

			v, err = ParseVersion("v0.4.0")
			So(err, ShouldBeNil)
			So(v.String(), ShouldEqual, "0.4.0")
		})

		Convey("ParseVersion rejects malformed input", func() {
			for _, input := range []string{"", "1.2", "1.2.x", "a.b.c"} {
				_, err := ParseVersion(input)
				So(err, ShouldNotBeNil)
			}
		})
	})
}
