package morph

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestResolvedEvaluation(t *testing.T) {
	Convey("Resolved expressions", t, func() {
		Convey("literal ignores its input", func() {
			v, err := EvalExpr(Literal{Value: Int32(7)}, nil)
			So(err, ShouldBeNil)
			So(Equal(v, Int32(7)), ShouldBeTrue)
		})

		Convey("identity requires an input", func() {
			v, err := EvalExpr(Identity{}, String("x"))
			So(err, ShouldBeNil)
			So(Equal(v, String("x")), ShouldBeTrue)

			_, err = EvalExpr(Identity{}, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("field access digs into a record", func() {
			rec := NewRecord(F("name", String("Alice")))
			v, err := EvalExpr(FieldAccess{Name: "name", Inner: Identity{}}, rec)
			So(err, ShouldBeNil)
			So(Equal(v, String("Alice")), ShouldBeTrue)

			_, err = EvalExpr(FieldAccess{Name: "zzz", Inner: Identity{}}, rec)
			So(err, ShouldNotBeNil)
		})

		Convey("optic access requires exactly one match", func() {
			doc := NewRecord(F("xs", NewSequence(Int32(1), Int32(2))))
			v, err := EvalExpr(OpticAccess{Path: MustParseOptic(".xs[1]"), Inner: Identity{}}, doc)
			So(err, ShouldBeNil)
			So(Equal(v, Int32(2)), ShouldBeTrue)

			_, err = EvalExpr(OpticAccess{Path: MustParseOptic(".xs[*]"), Inner: Identity{}}, doc)
			So(err, ShouldNotBeNil)
		})

		Convey("root access reads from the root, not the input", func() {
			root := NewRecord(F("a", Int32(1)), F("b", Int32(2)))
			expr := RootAccess{Path: Root().Field("b")}
			v, err := expr.Eval(String("ignored"), root)
			So(err, ShouldBeNil)
			So(Equal(v, Int32(2)), ShouldBeTrue)

			_, err = expr.Eval(String("ignored"), nil)
			So(err, ShouldNotBeNil)
		})

		Convey("convert follows the lexical conversion table", func() {
			v, err := EvalExpr(Convert{From: "int32", To: "string", Inner: Identity{}}, Int32(42))
			So(err, ShouldBeNil)
			So(Equal(v, String("42")), ShouldBeTrue)

			v, err = EvalExpr(Convert{From: "string", To: "int64", Inner: Identity{}}, String("99"))
			So(err, ShouldBeNil)
			So(Equal(v, Int64(99)), ShouldBeTrue)

			_, err = EvalExpr(Convert{From: "string", To: "int32", Inner: Identity{}}, String("abc"))
			So(err, ShouldNotBeNil)

			_, err = EvalExpr(Convert{From: "int32", To: "int8", Inner: Identity{}}, Int32(1000))
			So(err, ShouldNotBeNil)
		})

		Convey("concat coerces primitives and joins", func() {
			rec := NewRecord(F("first", String("Alice")), F("age", Int32(30)))
			expr := Concat{Parts: []Resolved{
				OpticAccess{Path: Root().Field("first"), Inner: Identity{}},
				OpticAccess{Path: Root().Field("age"), Inner: Identity{}},
			}, Sep: "-"}
			v, err := EvalExpr(expr, rec)
			So(err, ShouldBeNil)
			So(Equal(v, String("Alice-30")), ShouldBeTrue)
		})

		Convey("concat without input is legal iff every part is input-free", func() {
			ok := Concat{Parts: []Resolved{Literal{Value: String("a")}, Literal{Value: String("b")}}, Sep: ""}
			v, err := EvalExpr(ok, nil)
			So(err, ShouldBeNil)
			So(Equal(v, String("ab")), ShouldBeTrue)

			needsInput := Concat{Parts: []Resolved{Identity{}}, Sep: ""}
			_, err = EvalExpr(needsInput, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("split and join-strings are duals", func() {
			v, err := EvalExpr(SplitString{Sep: " ", Inner: Identity{}}, String("Alice Smith"))
			So(err, ShouldBeNil)
			So(Equal(v, NewSequence(String("Alice"), String("Smith"))), ShouldBeTrue)

			back, err := EvalExpr(JoinStrings{Sep: " ", Inner: Identity{}}, v)
			So(err, ShouldBeNil)
			So(Equal(back, String("Alice Smith")), ShouldBeTrue)
		})

		Convey("split rejects non-strings", func() {
			_, err := EvalExpr(SplitString{Sep: ",", Inner: Identity{}}, Int32(1))
			So(err, ShouldNotBeNil)
		})

		Convey("wrap and unwrap options are mutual inverses", func() {
			wrapped, err := EvalExpr(WrapSome{Inner: Identity{}}, Int32(5))
			So(err, ShouldBeNil)
			So(Equal(wrapped, Some(Int32(5))), ShouldBeTrue)

			unwrapped, err := EvalExpr(UnwrapOption{Inner: Identity{}, Fallback: Literal{Value: Int32(0)}}, wrapped)
			So(err, ShouldBeNil)
			So(Equal(unwrapped, Int32(5)), ShouldBeTrue)

			fallback, err := EvalExpr(UnwrapOption{Inner: Identity{}, Fallback: Literal{Value: Int32(0)}}, None())
			So(err, ShouldBeNil)
			So(Equal(fallback, Int32(0)), ShouldBeTrue)

			fromNull, err := EvalExpr(UnwrapOption{Inner: Identity{}, Fallback: Literal{Value: Int32(0)}}, Null{})
			So(err, ShouldBeNil)
			So(Equal(fromNull, Int32(0)), ShouldBeTrue)
		})

		Convey("compose chains outer after inner", func() {
			expr := Compose{
				Outer: Convert{From: "int32", To: "string", Inner: Identity{}},
				Inner: FieldAccess{Name: "age", Inner: Identity{}},
			}
			v, err := EvalExpr(expr, NewRecord(F("age", Int32(30))))
			So(err, ShouldBeNil)
			So(Equal(v, String("30")), ShouldBeTrue)
		})

		Convey("construct builds records and sequences", func() {
			rec, err := EvalExpr(Construct{Fields: []ConstructField{
				{Name: "doubled", Value: Calc{Expr: "value * 2"}},
				{Name: "fixed", Value: Literal{Value: Bool(true)}},
			}}, Int32(21))
			So(err, ShouldBeNil)
			doubled, _ := rec.(*Record).Get("doubled")
			So(Equal(doubled, Float64(42)), ShouldBeTrue)

			seq, err := EvalExpr(ConstructSeq{Elements: []Resolved{Identity{}, Identity{}}}, Int32(1))
			So(err, ShouldBeNil)
			So(Equal(seq, NewSequence(Int32(1), Int32(1))), ShouldBeTrue)
		})

		Convey("head and at index into sequences", func() {
			seq := NewSequence(String("a"), String("b"))
			v, err := EvalExpr(Head{Inner: Identity{}}, seq)
			So(err, ShouldBeNil)
			So(Equal(v, String("a")), ShouldBeTrue)

			v, err = EvalExpr(At{Index: 1, Inner: Identity{}}, seq)
			So(err, ShouldBeNil)
			So(Equal(v, String("b")), ShouldBeTrue)

			_, err = EvalExpr(Head{Inner: Identity{}}, NewSequence())
			So(err, ShouldNotBeNil)

			_, err = EvalExpr(At{Index: 5, Inner: Identity{}}, seq)
			So(err, ShouldNotBeNil)
		})

		Convey("coalesce skips failures and Nones", func() {
			expr := Coalesce{Alts: []Resolved{
				Fail{Msg: "first"},
				Literal{Value: None()},
				WrapSome{Inner: Literal{Value: Int32(3)}},
			}}
			v, err := EvalExpr(expr, nil)
			So(err, ShouldBeNil)
			So(Equal(v, Int32(3)), ShouldBeTrue)

			_, err = EvalExpr(Coalesce{Alts: nil}, nil)
			So(err, ShouldNotBeNil)

			_, err = EvalExpr(Coalesce{Alts: []Resolved{Fail{Msg: "x"}}}, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("get-or-else unwraps, passes through, and falls back", func() {
			gE := GetOrElse{Primary: Identity{}, Fallback: Literal{Value: Int32(-1)}}

			v, err := EvalExpr(gE, Some(Int32(5)))
			So(err, ShouldBeNil)
			So(Equal(v, Int32(5)), ShouldBeTrue)

			v, err = EvalExpr(gE, Int32(9))
			So(err, ShouldBeNil)
			So(Equal(v, Int32(9)), ShouldBeTrue)

			v, err = EvalExpr(gE, None())
			So(err, ShouldBeNil)
			So(Equal(v, Int32(-1)), ShouldBeTrue)

			v, err = EvalExpr(GetOrElse{Primary: Fail{Msg: "x"}, Fallback: Literal{Value: Int32(-1)}}, nil)
			So(err, ShouldBeNil)
			So(Equal(v, Int32(-1)), ShouldBeTrue)
		})

		Convey("fail always fails", func() {
			_, err := EvalExpr(Fail{Msg: "boom"}, Int32(1))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "boom")
		})

		Convey("default value yields the recorded default or its absence message", func() {
			v, err := EvalExpr(DefaultValue{Value: Int32(1)}, nil)
			So(err, ShouldBeNil)
			So(Equal(v, Int32(1)), ShouldBeTrue)

			_, err = EvalExpr(DefaultValue{Msg: "no default"}, nil)
			So(err, ShouldNotBeNil)
		})

		Convey("calc evaluates arithmetic and comparisons over the input", func() {
			v, err := EvalExpr(Calc{Expr: "value + 1"}, Float64(2))
			So(err, ShouldBeNil)
			So(Equal(v, Float64(3)), ShouldBeTrue)

			v, err = EvalExpr(Calc{Expr: "value > 10"}, Int32(30))
			So(err, ShouldBeNil)
			So(Equal(v, Bool(true)), ShouldBeTrue)

			_, err = EvalExpr(Calc{Expr: "value +"}, Int32(1))
			So(err, ShouldNotBeNil)
		})
	})
}
