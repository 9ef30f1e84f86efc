package morph

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPatchApply(t *testing.T) {
	Convey("Patch application", t, func() {
		Convey("an empty patch is the identity", func() {
			v := NewRecord(F("name", String("Alice")), F("age", Int32(30)))
			out, err := EmptyPatch().Apply(v, Strict)
			So(err, ShouldBeNil)
			So(Equal(out, v), ShouldBeTrue)
		})

		Convey("a numeric delta adds in place", func() {
			out, err := Patch{}.Append(Root(), PrimitiveDelta{Op: Int32Delta{Delta: 10}}).Apply(Int32(42), Strict)
			So(err, ShouldBeNil)
			So(Equal(out, Int32(52)), ShouldBeTrue)
		})

		Convey("a string edit rewrites through delete and append", func() {
			p := Patch{}.Append(Root(), PrimitiveDelta{Op: StringEdit{Ops: []StringOp{
				StringDelete{Index: 0, Length: 6},
				StringAppend{Text: "Atlas"},
			}}})
			out, err := p.Apply(String("Hello World"), Strict)
			So(err, ShouldBeNil)
			So(Equal(out, String("WorldAtlas")), ShouldBeTrue)
		})

		Convey("a delta lands through record, sequence and map navigation", func() {
			doc := NewRecord(F("data", NewSequence(
				NewMap(E(String("value"), Int32(100))),
			)))
			path := MustParseOptic(`.data[0]@"value"`)
			out, err := Patch{}.Append(path, PrimitiveDelta{Op: Int32Delta{Delta: 50}}).Apply(doc, Strict)
			So(err, ShouldBeNil)

			sel, err := Select(out, path)
			So(err, ShouldBeNil)
			leaf, err := sel.One()
			So(err, ShouldBeNil)
			So(Equal(leaf, Int32(150)), ShouldBeTrue)
		})

		Convey("operations see the state of prior operations", func() {
			p := Patch{}.
				Append(Root(), PrimitiveDelta{Op: Int64Delta{Delta: 1}}).
				Append(Root(), PrimitiveDelta{Op: Int64Delta{Delta: 2}})
			out, err := p.Apply(Int64(0), Strict)
			So(err, ShouldBeNil)
			So(Equal(out, Int64(3)), ShouldBeTrue)
		})

		Convey("patch concatenation is associative", func() {
			p1 := Patch{}.Append(Root(), PrimitiveDelta{Op: Int64Delta{Delta: 1}})
			p2 := Patch{}.Append(Root(), PrimitiveDelta{Op: Int64Delta{Delta: 2}})
			p3 := Patch{}.Append(Root(), PrimitiveDelta{Op: Int64Delta{Delta: 3}})

			left := p1.Concat(p2).Concat(p3)
			right := p1.Concat(p2.Concat(p3))
			So(len(left.Ops), ShouldEqual, len(right.Ops))

			a, err := left.Apply(Int64(0), Strict)
			So(err, ShouldBeNil)
			b, err := right.Apply(Int64(0), Strict)
			So(err, ShouldBeNil)
			So(Equal(a, b), ShouldBeTrue)
		})
	})
}

func TestPatchModes(t *testing.T) {
	Convey("Patch modes", t, func() {
		doc := NewRecord(F("age", Int32(30)))
		p := Patch{}.Append(Root().Field("missing"), Set{Value: Int32(99)})

		Convey("strict aborts on a missing field", func() {
			_, err := p.Apply(doc, Strict)
			So(err, ShouldNotBeNil)
			So(TypeOf(err), ShouldEqual, ErrMissingField)
		})

		Convey("lenient skips the op and keeps the document", func() {
			out, err := p.Apply(doc, Lenient)
			So(err, ShouldBeNil)
			So(Equal(out, doc), ShouldBeTrue)
		})

		Convey("clobber cannot navigate to a missing field either", func() {
			out, err := p.Apply(doc, Clobber)
			So(err, ShouldBeNil)
			So(Equal(out, doc), ShouldBeTrue)
		})

		Convey("strict stops before later operations run", func() {
			two := p.Append(Root().Field("age"), PrimitiveDelta{Op: Int32Delta{Delta: 1}})
			_, err := two.Apply(doc, Strict)
			So(err, ShouldNotBeNil)
		})

		Convey("lenient keeps going after the failed op", func() {
			two := p.Append(Root().Field("age"), PrimitiveDelta{Op: Int32Delta{Delta: 1}})
			out, err := two.Apply(doc, Lenient)
			So(err, ShouldBeNil)
			age, _ := out.(*Record).Get("age")
			So(Equal(age, Int32(31)), ShouldBeTrue)
		})

		Convey("clobber clamps out-of-range sequence indices", func() {
			seq := NewSequence(Int32(1), Int32(2))
			p := Patch{}.Append(Root(), SequenceEdit{Ops: []SeqOp{
				SeqInsert{Index: 10, Values: []DynamicValue{Int32(3)}},
			}})
			_, err := p.Apply(seq, Strict)
			So(err, ShouldNotBeNil)

			out, err := p.Apply(seq, Clobber)
			So(err, ShouldBeNil)
			So(Equal(out, NewSequence(Int32(1), Int32(2), Int32(3))), ShouldBeTrue)
		})

		Convey("clobber overwrites on map add and ignores missing removes", func() {
			m := NewMap(E(String("a"), Int32(1)))
			p := Patch{}.Append(Root(), MapEdit{Ops: []MapOp{
				MapAdd{Key: String("a"), Value: Int32(2)},
				MapRemove{Key: String("zzz")},
			}})
			_, err := p.Apply(m, Strict)
			So(err, ShouldNotBeNil)

			out, err := p.Apply(m, Clobber)
			So(err, ShouldBeNil)
			So(Equal(out, NewMap(E(String("a"), Int32(2)))), ShouldBeTrue)
		})
	})
}

func TestPatchTraversal(t *testing.T) {
	Convey("Traversal semantics", t, func() {
		Convey("elements applies to every entry", func() {
			seq := NewSequence(Int32(1), Int32(2), Int32(3))
			p := Patch{}.Append(Root().Elements(), PrimitiveDelta{Op: Int32Delta{Delta: 10}})
			out, err := p.Apply(seq, Strict)
			So(err, ShouldBeNil)
			So(Equal(out, NewSequence(Int32(11), Int32(12), Int32(13))), ShouldBeTrue)
		})

		Convey("elements over an empty sequence fails strict, passes lenient", func() {
			p := Patch{}.Append(Root().Elements(), Set{Value: Int32(0)})
			_, err := p.Apply(NewSequence(), Strict)
			So(err, ShouldNotBeNil)

			out, err := p.Apply(NewSequence(), Lenient)
			So(err, ShouldBeNil)
			So(Equal(out, NewSequence()), ShouldBeTrue)
		})

		Convey("a case mismatch under elements skips the element, even strict", func() {
			seq := NewSequence(
				NewVariant("Ok", Int32(1)),
				NewVariant("Err", String("boom")),
				NewVariant("Ok", Int32(2)),
			)
			p := Patch{}.Append(Root().Elements().CaseOf("Ok"), PrimitiveDelta{Op: Int32Delta{Delta: 100}})
			out, err := p.Apply(seq, Strict)
			So(err, ShouldBeNil)
			So(Equal(out, NewSequence(
				NewVariant("Ok", Int32(101)),
				NewVariant("Err", String("boom")),
				NewVariant("Ok", Int32(102)),
			)), ShouldBeTrue)
		})

		Convey("a case mismatch outside a traversal is structural", func() {
			p := Patch{}.Append(Root().CaseOf("Ok"), Set{Value: Int32(1)})
			_, err := p.Apply(NewVariant("Err", String("x")), Strict)
			So(err, ShouldNotBeNil)
			So(TypeOf(err), ShouldEqual, ErrCaseMismatch)
		})

		Convey("multi-select nodes are unsupported in application", func() {
			p := Patch{}.Append(Root().MapKeys(), Set{Value: Int32(1)})
			_, err := p.Apply(NewMap(E(String("a"), Int32(1))), Strict)
			So(err, ShouldNotBeNil)
			So(TypeOf(err), ShouldEqual, ErrUnsupportedNode)
		})

		Convey("schema search rewrites every matching subvalue", func() {
			doc := NewRecord(
				F("a", Int32(1)),
				F("nested", NewRecord(F("b", Int32(2)), F("s", String("keep")))),
			)
			p := Patch{}.Append(Root().Search(PrimitivePattern{Name: "int32"}), PrimitiveDelta{Op: Int32Delta{Delta: 1}})
			out, err := p.Apply(doc, Strict)
			So(err, ShouldBeNil)
			So(Equal(out, NewRecord(
				F("a", Int32(2)),
				F("nested", NewRecord(F("b", Int32(3)), F("s", String("keep")))),
			)), ShouldBeTrue)
		})

		Convey("a search with no matches fails strict and passes lenient", func() {
			doc := NewRecord(F("s", String("x")))
			p := Patch{}.Append(Root().Search(PrimitivePattern{Name: "int32"}), Set{Value: Int32(0)})
			_, err := p.Apply(doc, Strict)
			So(err, ShouldNotBeNil)

			out, err := p.Apply(doc, Lenient)
			So(err, ShouldBeNil)
			So(Equal(out, doc), ShouldBeTrue)
		})

		Convey("a wildcard search at the root replaces the whole tree", func() {
			p := Patch{}.Append(Root().Search(WildcardPattern{}), Set{Value: String("gone")})
			out, err := p.Apply(NewRecord(F("a", Int32(1))), Strict)
			So(err, ShouldBeNil)
			So(Equal(out, String("gone")), ShouldBeTrue)
		})

		Convey("a nominal search needs schema context", func() {
			p := Patch{}.Append(Root().Search(NominalPattern{Name: "User"}), Set{Value: Int32(0)})
			_, err := p.Apply(NewRecord(F("a", Int32(1))), Strict)
			So(err, ShouldNotBeNil)

			out, err := p.Apply(NewRecord(F("a", Int32(1))), Lenient)
			So(err, ShouldBeNil)
			So(Equal(out, NewRecord(F("a", Int32(1)))), ShouldBeTrue)
		})
	})
}

func TestPatchRender(t *testing.T) {
	Convey("Patch rendering", t, func() {
		Convey("set and delta operations render one line each", func() {
			p := Patch{}.
				Append(Root().Field("name"), Set{Value: String("Alice")}).
				Append(Root().Field("age"), PrimitiveDelta{Op: Int32Delta{Delta: 1}}).
				Append(Root().Field("score"), PrimitiveDelta{Op: Int32Delta{Delta: -3}})
			rendered := p.Render()
			So(rendered, ShouldContainSubstring, `.name = "Alice"`)
			So(rendered, ShouldContainSubstring, ".age += 1")
			So(rendered, ShouldContainSubstring, ".score -= 3")
		})

		Convey("string edits render their op stream indented", func() {
			p := Patch{}.Append(Root(), PrimitiveDelta{Op: StringEdit{Ops: []StringOp{
				StringInsert{Index: 0, Text: "hi"},
				StringDelete{Index: 2, Length: 3},
				StringAppend{Text: "end"},
			}}})
			rendered := p.Render()
			So(rendered, ShouldContainSubstring, `+ [0: "hi"]`)
			So(rendered, ShouldContainSubstring, "- [2, 3]")
			So(rendered, ShouldContainSubstring, `+ "end"`)
		})

		Convey("rendering is deterministic", func() {
			p := Patch{}.Append(Root().Field("x"), Set{Value: Int32(1)})
			So(p.Render(), ShouldEqual, p.Render())
		})
	})
}
