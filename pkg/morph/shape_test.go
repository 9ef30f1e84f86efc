package morph

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestShapeValidation(t *testing.T) {
	Convey("Shape validator", t, func() {
		source := NewShape("name", "age")
		target := NewShape("name", "email")

		Convey("an empty program leaves gaps on both sides", func() {
			result := ValidateShapes(source, target, nil)
			So(result.Complete, ShouldBeFalse)
			So(result.Unhandled, ShouldResemble, []string{"age"})
			So(result.Missing, ShouldResemble, []string{"email"})
			So(result.Err(), ShouldNotBeNil)
		})

		Convey("drop plus add covers everything", func() {
			actions := []Action{
				DropField{Path: Root(), Name: "age"},
				AddField{Path: Root(), Name: "email", Default: Literal{Value: String("")}},
			}
			result := ValidateShapes(source, target, actions)
			So(result.Complete, ShouldBeTrue)
			So(result.Err(), ShouldBeNil)
		})

		Convey("a rename both handles the source and provides the target", func() {
			result := ValidateShapes(NewShape("old"), NewShape("new"), []Action{
				Rename{Path: Root(), From: "old", To: "new"},
			})
			So(result.Complete, ShouldBeTrue)
			So(result.Coverage.Renames["old"], ShouldEqual, "new")
		})

		Convey("shared untouched paths are implicitly kept", func() {
			result := ValidateShapes(NewShape("name"), NewShape("name"), nil)
			So(result.Complete, ShouldBeTrue)
		})

		Convey("join and split account for their path fan", func() {
			src := NewShape("first", "last")
			tgt := NewShape("full")
			result := ValidateShapes(src, tgt, []Action{
				Join{
					Path:        Root().Field("full"),
					SourcePaths: []Optic{Root().Field("first"), Root().Field("last")},
					Combiner:    Concat{Sep: " "},
				},
			})
			So(result.Complete, ShouldBeTrue)
		})

		Convey("nested paths report by depth", func() {
			src := NewShape("user.name", "user.age")
			tgt := NewShape("user.name")
			result := ValidateShapes(src, tgt, nil)
			So(result.Complete, ShouldBeFalse)
			So(result.Unhandled, ShouldResemble, []string{"user.age"})
			So(result.Report(), ShouldContainSubstring, "depth 2")
		})

		Convey("the report carries corrective hints", func() {
			result := ValidateShapes(source, target, nil)
			report := result.Report()
			So(report, ShouldContainSubstring, "age")
			So(report, ShouldContainSubstring, "email")
			So(report, ShouldContainSubstring, "DropField")
			So(report, ShouldContainSubstring, "AddField")
		})
	})
}

func TestShapeOf(t *testing.T) {
	Convey("Shape sampling", t, func() {
		doc := NewRecord(
			F("name", String("Alice")),
			F("nick", Some(String("ali"))),
			F("addr", NewRecord(F("city", String("x")))),
		)
		shape := ShapeOf(doc)
		So(shape.Contains("name"), ShouldBeTrue)
		So(shape.Contains("nick"), ShouldBeTrue)
		So(shape.Contains("addr.city"), ShouldBeTrue)

		var nickOptional bool
		for _, p := range shape.Paths {
			if p.Cursor.String() == "nick" {
				nickOptional = p.Optional
			}
		}
		So(nickOptional, ShouldBeTrue)
	})
}
