package morph

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJSONCodecs(t *testing.T) {
	Convey("JSON round-trips", t, func() {
		Convey("the root optic serializes as an empty object", func() {
			data, err := json.Marshal(Root())
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "{}")

			var o Optic
			So(json.Unmarshal([]byte("{}"), &o), ShouldBeNil)
			So(len(o.Nodes), ShouldEqual, 0)
		})

		Convey("path nodes round-trip through their tagged encoding", func() {
			original := Root().
				Field("age").
				AtIndex(3).
				Elements().
				CaseOf("Ok").
				AtKey(String("k")).
				MapValues().
				Search(RecordPattern{Fields: []PatternField{{Name: "id", Pattern: PrimitivePattern{Name: "int32"}}}})

			data, err := json.Marshal(original)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"Field"`)
			So(string(data), ShouldContainSubstring, `"AtIndex"`)

			var decoded Optic
			So(json.Unmarshal(data, &decoded), ShouldBeNil)
			So(EqualOptic(decoded, original), ShouldBeTrue)
		})

		Convey("values round-trip, exotic primitives included", func() {
			values := []DynamicValue{
				Unit(),
				Bool(true),
				Int8(-5),
				Int64(1 << 40),
				Float64(3.25),
				Char('x'),
				String("hello\nworld"),
				Null{},
				NewRecord(F("a", Int32(1)), F("b", NewSequence(String("x")))),
				NewMap(E(Int32(1), String("one"))),
				NewVariant("Some", NewRecord(F("value", Int32(9)))),
				Duration(90 * time.Second),
				NewPeriod(1, 2, 3),
				LocalDate(2024, 3, 15),
			}
			for _, v := range values {
				data, err := MarshalValue(v)
				So(err, ShouldBeNil)
				back, err := UnmarshalValue(data)
				So(err, ShouldBeNil)
				So(Equal(back, v), ShouldBeTrue)
			}
		})

		Convey("NaN floats survive the trip", func() {
			data, err := MarshalValue(Float64(nan()))
			So(err, ShouldBeNil)
			back, err := UnmarshalValue(data)
			So(err, ShouldBeNil)
			So(back.(*Primitive).IsNaN(), ShouldBeTrue)
		})

		Convey("patches round-trip and stay apply-equivalent", func() {
			original := Patch{}.
				Append(Root().Field("age"), PrimitiveDelta{Op: Int32Delta{Delta: 1}}).
				Append(Root().Field("tags"), SequenceEdit{Ops: []SeqOp{
					SeqInsert{Index: 1, Values: []DynamicValue{String("X")}},
					SeqDelete{Index: 3, Count: 1},
				}}).
				Append(Root().Field("attrs"), MapEdit{Ops: []MapOp{
					MapAdd{Key: String("k"), Value: Int32(1)},
					MapModify{Key: String("j"), Patch: Patch{}.Append(Root(), Set{Value: Bool(true)})},
				}}).
				Append(Root(), NestedPatch{Patch: Patch{}.Append(Root().Field("name"), Set{Value: String("x")})})

			data, err := json.Marshal(original)
			So(err, ShouldBeNil)

			var decoded Patch
			So(json.Unmarshal(data, &decoded), ShouldBeNil)

			doc := NewRecord(
				F("name", String("old")),
				F("age", Int32(30)),
				F("tags", NewSequence(String("a"), String("b"), String("c"))),
				F("attrs", NewMap(E(String("j"), Bool(false)))),
			)
			a, err := original.Apply(doc, Strict)
			So(err, ShouldBeNil)
			b, err := decoded.Apply(doc, Strict)
			So(err, ShouldBeNil)
			So(Equal(a, b), ShouldBeTrue)
		})

		Convey("string edits round-trip", func() {
			original := Patch{}.Append(Root(), PrimitiveDelta{Op: StringEdit{Ops: []StringOp{
				StringInsert{Index: 0, Text: "a"},
				StringDelete{Index: 1, Length: 2},
				StringModify{Index: 0, Length: 1, Text: "z"},
				StringAppend{Text: "!"},
			}}})
			data, err := json.Marshal(original)
			So(err, ShouldBeNil)
			var decoded Patch
			So(json.Unmarshal(data, &decoded), ShouldBeNil)

			a, err := original.Apply(String("hello"), Strict)
			So(err, ShouldBeNil)
			b, err := decoded.Apply(String("hello"), Strict)
			So(err, ShouldBeNil)
			So(Equal(a, b), ShouldBeTrue)
		})

		Convey("migrations round-trip through the type/data envelope", func() {
			original := Migration{Actions: []Action{
				AddField{Path: Root(), Name: "age", Default: Literal{Value: Int32(0)}},
				Rename{Path: Root(), From: "n", To: "name"},
				Join{
					Path:        Root().Field("full"),
					SourcePaths: []Optic{Root().Field("first"), Root().Field("last")},
					Combiner: Concat{Parts: []Resolved{
						OpticAccess{Path: Root().Field("first"), Inner: Identity{}},
						OpticAccess{Path: Root().Field("last"), Inner: Identity{}},
					}, Sep: " "},
					Splitter: SplitString{Sep: " ", Inner: Identity{}},
				},
				TransformCase{Path: Root().Field("status"), CaseName: "Ok", Actions: []Action{
					DropField{Path: Root(), Name: "junk"},
				}},
			}}

			data, err := json.Marshal(original)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"type":"AddField"`)

			var decoded Migration
			So(json.Unmarshal(data, &decoded), ShouldBeNil)
			So(len(decoded.Actions), ShouldEqual, 4)

			doc := NewRecord(
				F("n", String("Alice Smith")),
				F("first", String("Alice")),
				F("last", String("Smith")),
				F("status", NewVariant("Ok", NewRecord(F("junk", Int32(1))))),
			)
			a, err := original.Run(doc)
			So(err, ShouldBeNil)
			b, err := decoded.Run(doc)
			So(err, ShouldBeNil)
			So(Equal(a, b), ShouldBeTrue)
		})

		Convey("expressions round-trip including nil inverses", func() {
			exprs := []Resolved{
				Literal{Value: Int32(1)},
				Identity{},
				FieldAccess{Name: "x", Inner: Identity{}},
				RootAccess{Path: Root().Field("y")},
				Convert{From: "int32", To: "string", Inner: Identity{}},
				Concat{Parts: []Resolved{Identity{}, Literal{Value: String("!")}}, Sep: ""},
				SplitString{Sep: ",", Inner: Identity{}},
				At{Index: 2, Inner: Identity{}},
				WrapSome{Inner: Identity{}},
				UnwrapOption{Inner: Identity{}, Fallback: Literal{Value: Null{}}},
				Compose{Outer: Identity{}, Inner: Identity{}},
				Fail{Msg: "nope"},
				Construct{Fields: []ConstructField{{Name: "a", Value: Identity{}}}},
				ConstructSeq{Elements: []Resolved{Identity{}}},
				Head{Inner: Identity{}},
				JoinStrings{Sep: "-", Inner: Identity{}},
				Coalesce{Alts: []Resolved{Identity{}}},
				GetOrElse{Primary: Identity{}, Fallback: Literal{Value: Int32(0)}},
				Calc{Expr: "value * 2"},
				DefaultValue{Value: Int32(7)},
				DefaultValue{Msg: "no default"},
			}
			for _, e := range exprs {
				data, err := MarshalExpr(e)
				So(err, ShouldBeNil)
				back, err := UnmarshalExpr(data)
				So(err, ShouldBeNil)
				rt, err := MarshalExpr(back)
				So(err, ShouldBeNil)
				So(string(rt), ShouldEqual, string(data))
			}
		})

		Convey("unknown tags are rejected", func() {
			_, err := UnmarshalValue([]byte(`{"Bogus":{}}`))
			So(err, ShouldNotBeNil)

			var o Optic
			err = json.Unmarshal([]byte(`{"nodes":[{"Nope":{}}]}`), &o)
			So(err, ShouldNotBeNil)
		})
	})
}
