package morph

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestOpticParsing(t *testing.T) {
	Convey("Path parsing", t, func() {
		Convey("the grammar's segment kinds all parse", func() {
			cases := map[string]Optic{
				".name":          Root().Field("name"),
				"[3]":            Root().AtIndex(3),
				"[1,2,3]":        NewOptic(AtIndices{Indices: []int{1, 2, 3}}),
				"[*]":            Root().Elements(),
				`@"key"`:         Root().AtKey(String("key")),
				"@'c'":           Root().AtKey(Char('c')),
				"@1":             Root().AtKey(Int32(1)),
				"@true":          Root().AtKey(Bool(true)),
				"@keys":          Root().MapKeys(),
				"@values":        Root().MapValues(),
				"/Some":          Root().CaseOf("Some"),
				"#int32":         Root().Search(PrimitivePattern{Name: "int32"}),
				"#User":          NewOptic(TypeSearch{TypeID: "User"}),
				".a.b[0]/Ok[*]":  Root().Field("a").Field("b").AtIndex(0).CaseOf("Ok").Elements(),
				`.data[0]@"v"`:   Root().Field("data").AtIndex(0).AtKey(String("v")),
				"$.name":         Root().Field("name"),
				"":               Root(),
			}
			for input, expected := range cases {
				parsed, err := ParseOptic(input)
				So(err, ShouldBeNil)
				So(EqualOptic(parsed, expected), ShouldBeTrue)
			}
		})

		Convey("string keys honor escapes", func() {
			parsed, err := ParseOptic(`@"a\"b\n"`)
			So(err, ShouldBeNil)
			So(EqualOptic(parsed, Root().AtKey(String("a\"b\n"))), ShouldBeTrue)
		})

		Convey("syntax errors carry a position", func() {
			for _, bad := range []string{".", "[", "[1", "[1,", "@", "@zzz", "!x", "[a]", `@"unterminated`} {
				_, err := ParseOptic(bad)
				So(err, ShouldNotBeNil)
				_, isSyntax := err.(PathSyntaxError)
				So(isSyntax, ShouldBeTrue)
			}
		})

		Convey("rendered paths parse back to themselves", func() {
			paths := []Optic{
				Root(),
				Root().Field("a").AtIndex(2).Elements(),
				Root().CaseOf("Ok").Field("inner"),
				Root().AtKey(String("k")).MapValues(),
				Root().Search(PrimitivePattern{Name: "string"}),
			}
			for _, o := range paths {
				parsed, err := ParseOptic(o.Render())
				So(err, ShouldBeNil)
				So(EqualOptic(parsed, o), ShouldBeTrue)
			}
		})
	})
}

func TestSelection(t *testing.T) {
	Convey("Selection", t, func() {
		doc := NewRecord(
			F("users", NewSequence(
				NewRecord(F("name", String("Alice"))),
				NewRecord(F("name", String("Bob"))),
			)),
			F("attrs", NewMap(E(String("k1"), Int32(1)), E(String("k2"), Int32(2)))),
		)

		Convey("a single-step path selects one value", func() {
			sel, err := Select(doc, MustParseOptic(".users[0].name"))
			So(err, ShouldBeNil)
			v, err := sel.One()
			So(err, ShouldBeNil)
			So(Equal(v, String("Alice")), ShouldBeTrue)
		})

		Convey("traversals fan out and One refuses multiples", func() {
			sel, err := Select(doc, MustParseOptic(".users[*].name"))
			So(err, ShouldBeNil)
			So(len(sel.Values), ShouldEqual, 2)
			_, err = sel.One()
			So(err, ShouldNotBeNil)
		})

		Convey("map keys and values traverse", func() {
			sel, err := Select(doc, MustParseOptic(".attrs@keys"))
			So(err, ShouldBeNil)
			So(len(sel.Values), ShouldEqual, 2)

			sel, err = Select(doc, MustParseOptic(".attrs@values"))
			So(err, ShouldBeNil)
			So(Equal(sel.Values[0], Int32(1)), ShouldBeTrue)
		})

		Convey("schema search collects every structural match", func() {
			sel, err := Select(doc, Root().Search(PrimitivePattern{Name: "string"}))
			So(err, ShouldBeNil)
			// Two user names plus two map keys.
			So(len(sel.Values), ShouldEqual, 4)
		})

		Convey("navigation failures carry the failing trace", func() {
			_, err := Select(doc, MustParseOptic(".users[9].name"))
			So(err, ShouldNotBeNil)
			se, ok := err.(*SchemaError)
			So(ok, ShouldBeTrue)
			So(se.TracePath(), ShouldContainSubstring, ".users")
		})
	})
}

func TestOpticBuilders(t *testing.T) {
	Convey("Optic builders", t, func() {
		Convey("concatenation keeps both node runs", func() {
			a := Root().Field("a")
			b := Root().AtIndex(1)
			So(a.Then(b).Render(), ShouldEqual, ".a[1]")
		})

		Convey("prepend and append leave the original untouched", func() {
			base := Root().Field("x")
			grown := base.Prepend(Field{Name: "outer"}).Append(AtIndex{Index: 0})
			So(base.Render(), ShouldEqual, ".x")
			So(grown.Render(), ShouldEqual, ".outer.x[0]")
		})

		Convey("parent splits off the last node", func() {
			parent, last := Root().Field("a").Field("b").Parent()
			So(parent.Render(), ShouldEqual, ".a")
			So(last.(Field).Name, ShouldEqual, "b")
		})

		Convey("the root renders as a dollar", func() {
			So(Root().Render(), ShouldEqual, "$")
		})
	})
}
