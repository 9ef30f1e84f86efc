package morph

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDiff(t *testing.T) {
	Convey("Differ", t, func() {
		roundTrip := func(old, new DynamicValue) {
			p := Diff(old, new)
			out, err := p.Apply(old, Strict)
			So(err, ShouldBeNil)
			So(Equal(out, new), ShouldBeTrue)
		}

		Convey("identical values produce the empty patch", func() {
			v := NewRecord(F("a", Int32(1)))
			So(Diff(v, v).IsEmpty(), ShouldBeTrue)
		})

		Convey("numeric primitives diff as deltas", func() {
			p := Diff(Int32(40), Int32(42))
			So(len(p.Ops), ShouldEqual, 1)
			_, isDelta := p.Ops[0].Op.(PrimitiveDelta)
			So(isDelta, ShouldBeTrue)
			roundTrip(Int32(40), Int32(42))
		})

		Convey("NaN forces a set", func() {
			p := Diff(Float64(nan()), Float64(1))
			_, isSet := p.Ops[0].Op.(Set)
			So(isSet, ShouldBeTrue)
		})

		Convey("records, sequences and deltas compose", func() {
			old := NewRecord(
				F("name", String("Alice")),
				F("age", Int32(30)),
				F("tags", NewSequence(String("a"), String("b"), String("c"))),
			)
			updated := NewRecord(
				F("name", String("Alice")),
				F("age", Int32(31)),
				F("tags", NewSequence(String("a"), String("X"), String("b"), String("c"))),
			)
			roundTrip(old, updated)
		})

		Convey("new-only record fields become sets; old-only fields are ignored", func() {
			old := NewRecord(F("keep", Int32(1)), F("gone", Int32(2)))
			updated := NewRecord(F("keep", Int32(1)), F("fresh", Int32(3)))
			p := Diff(old, updated)
			So(len(p.Ops), ShouldEqual, 1)
			So(EqualOptic(p.Ops[0].Path, Root().Field("fresh")), ShouldBeTrue)
			set, isSet := p.Ops[0].Op.(Set)
			So(isSet, ShouldBeTrue)
			So(Equal(set.Value, Int32(3)), ShouldBeTrue)

			// The old record has no "fresh" field to navigate to, so strict
			// application rejects the set as a missing field.
			_, err := p.Apply(old, Strict)
			So(err, ShouldNotBeNil)
			So(TypeOf(err), ShouldEqual, ErrMissingField)
		})

		Convey("sequence edge cases", func() {
			roundTrip(NewSequence(), NewSequence(Int32(1), Int32(2)))
			roundTrip(NewSequence(Int32(1), Int32(2)), NewSequence())
			roundTrip(NewSequence(Int32(1), Int32(2), Int32(3)), NewSequence(Int32(3), Int32(1)))
			roundTrip(
				NewSequence(Int32(3), Int32(1), Int32(4), Int32(1), Int32(5)),
				NewSequence(Int32(1), Int32(4), Int32(5), Int32(9)),
			)

			Convey("an empty-to-any diff is a single append", func() {
				p := Diff(NewSequence(), NewSequence(Int32(1)))
				So(len(p.Ops), ShouldEqual, 1)
				edit := p.Ops[0].Op.(SequenceEdit)
				So(len(edit.Ops), ShouldEqual, 1)
				_, isAppend := edit.Ops[0].(SeqAppend)
				So(isAppend, ShouldBeTrue)
			})

			Convey("an any-to-empty diff is a single delete", func() {
				p := Diff(NewSequence(Int32(1), Int32(2)), NewSequence())
				edit := p.Ops[0].Op.(SequenceEdit)
				So(len(edit.Ops), ShouldEqual, 1)
				del, isDelete := edit.Ops[0].(SeqDelete)
				So(isDelete, ShouldBeTrue)
				So(del.Index, ShouldEqual, 0)
				So(del.Count, ShouldEqual, 2)
			})
		})

		Convey("map diffs add, remove and modify", func() {
			old := NewMap(
				E(String("a"), Int32(1)),
				E(String("b"), Int32(2)),
				E(String("c"), Int32(3)),
			)
			updated := NewMap(
				E(String("a"), Int32(1)),
				E(String("c"), Int32(30)),
				E(String("d"), Int32(4)),
			)
			roundTrip(old, updated)
		})

		Convey("variants diff within a shared case and set across cases", func() {
			roundTrip(NewVariant("Ok", Int32(1)), NewVariant("Ok", Int32(2)))
			p := Diff(NewVariant("Ok", Int32(1)), NewVariant("Err", String("boom")))
			_, isSet := p.Ops[0].Op.(Set)
			So(isSet, ShouldBeTrue)
		})

		Convey("type mismatches fall back to set", func() {
			roundTrip(Int32(1), String("one"))
		})

		Convey("string diffs apply back regardless of edit-vs-set choice", func() {
			cases := [][2]string{
				{"Hello World", "WorldAtlas"},
				{"", "abc"},
				{"abc", ""},
				{"same", "same2"},
				{"kitten", "sitting"},
				{"completely", "different"},
			}
			for _, c := range cases {
				roundTrip(String(c[0]), String(c[1]))
			}
		})

		Convey("temporal primitives diff as deltas", func() {
			t0 := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
			roundTrip(Instant(t0), Instant(t0.Add(90*time.Minute)))
			roundTrip(Duration(time.Second), Duration(time.Minute))
			roundTrip(LocalDate(2024, time.March, 1), LocalDate(2024, time.March, 15))
			roundTrip(NewPeriod(1, 2, 3), NewPeriod(2, 0, 1))
		})
	})
}

func nan() float64 {
	f := 0.0
	return f / f
}
