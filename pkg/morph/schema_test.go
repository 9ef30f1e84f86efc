package morph

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// userSchema is a minimal schema-reflection stand-in for a
// {name, nick?} record type.
type userSchema struct{}

func (userSchema) ID() string { return "User" }

func (userSchema) ToDynamic(v interface{}) (DynamicValue, error) {
	name, ok := v.(string)
	if !ok {
		return nil, newValidationError("user schema wants a string name")
	}
	return NewRecord(F("name", String(name)), F("nick", None())), nil
}

func (userSchema) FromDynamic(dv DynamicValue) (interface{}, error) {
	rec, ok := dv.(*Record)
	if !ok {
		return nil, newStructuralMismatchError("record", dv.ValueKind())
	}
	name, present := rec.Get("name")
	if !present {
		return nil, newMissingFieldError("name")
	}
	return name.(*Primitive).Str, nil
}

func (userSchema) DefaultDynamic() (DynamicValue, bool) {
	return NewRecord(F("name", String("")), F("nick", None())), true
}

func (userSchema) Shape() SchemaShape {
	shape := NewShape("name", "nick")
	shape.Paths[1].Optional = true
	return shape
}

// scalarSchema has no record fields and therefore no structural identity.
type scalarSchema struct{}

func (scalarSchema) ID() string                                   { return "Scalar" }
func (scalarSchema) ToDynamic(v interface{}) (DynamicValue, error) { return Int64(0), nil }
func (scalarSchema) FromDynamic(dv DynamicValue) (interface{}, error) {
	return nil, newValidationError("not needed")
}
func (scalarSchema) DefaultDynamic() (DynamicValue, bool) { return nil, false }
func (scalarSchema) Shape() SchemaShape                   { return SchemaShape{} }

func TestSchemaRegistry(t *testing.T) {
	Convey("Schema registry", t, func() {
		reg := NewSchemaRegistry()
		reg.Register(userSchema{})
		reg.Register(scalarSchema{})

		user := func(name string) DynamicValue {
			return NewRecord(F("name", String(name)), F("nick", None()))
		}
		doc := NewRecord(
			F("owner", user("Alice")),
			F("team", NewSequence(user("Bob"), user("Carol"))),
			F("count", Int32(3)),
		)

		Convey("lookup resolves registered ids", func() {
			s, ok := reg.Lookup("User")
			So(ok, ShouldBeTrue)
			So(s.ID(), ShouldEqual, "User")

			_, ok = reg.Lookup("Nope")
			So(ok, ShouldBeFalse)
		})

		Convey("a structural pattern covers the schema's top-level fields", func() {
			pattern, ok := reg.StructuralPattern("User")
			So(ok, ShouldBeTrue)
			So(MatchesPattern(pattern, user("Alice")), ShouldBeTrue)
			So(MatchesPattern(pattern, NewRecord(F("count", Int32(1)))), ShouldBeFalse)
		})

		Convey("a field-less schema has no structural identity", func() {
			_, ok := reg.StructuralPattern("Scalar")
			So(ok, ShouldBeFalse)
		})

		Convey("type search selects every value of the named type", func() {
			sel, err := SelectWithSchemas(doc, NewOptic(TypeSearch{TypeID: "User"}), reg)
			So(err, ShouldBeNil)
			So(len(sel.Values), ShouldEqual, 3)
		})

		Convey("type search still errors without a registry", func() {
			_, err := Select(doc, NewOptic(TypeSearch{TypeID: "User"}))
			So(err, ShouldNotBeNil)

			_, err = SelectWithSchemas(doc, NewOptic(TypeSearch{TypeID: "Unregistered"}), reg)
			So(err, ShouldNotBeNil)
		})

		Convey("a patch through a type search rewrites each typed subvalue", func() {
			p := Patch{}.Append(
				NewOptic(TypeSearch{TypeID: "User"}).Field("name"),
				PrimitiveDelta{Op: StringEdit{Ops: []StringOp{StringAppend{Text: "!"}}}},
			)
			out, err := p.ApplyWithSchemas(doc, Strict, reg)
			So(err, ShouldBeNil)

			sel, err := SelectWithSchemas(out, NewOptic(TypeSearch{TypeID: "User"}).Field("name"), reg)
			So(err, ShouldBeNil)
			So(len(sel.Values), ShouldEqual, 3)
			for _, v := range sel.Values {
				So(v.(*Primitive).Str, ShouldEndWith, "!")
			}

			Convey("and plain Apply still refuses in strict mode", func() {
				_, err := p.Apply(doc, Strict)
				So(err, ShouldNotBeNil)
			})
		})

		Convey("default expressions come from the schema's default", func() {
			s, _ := reg.Lookup("User")
			v, err := EvalExpr(DefaultExpr(s), nil)
			So(err, ShouldBeNil)
			So(Equal(v, NewRecord(F("name", String("")), F("nick", None()))), ShouldBeTrue)

			scalar, _ := reg.Lookup("Scalar")
			_, err = EvalExpr(DefaultExpr(scalar), nil)
			So(err, ShouldNotBeNil)
		})
	})
}
