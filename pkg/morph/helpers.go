package morph

import (
	"github.com/iancoleman/strcase"
	"github.com/starkandwayne/goutils/tree"
)

// OpticFromCursor lifts a dotted field cursor into an optic of Field nodes.
func OpticFromCursor(c *tree.Cursor) Optic {
	o := Root()
	for _, name := range c.Nodes {
		o = o.Field(name)
	}
	return o
}

// CaseConvention renames field names wholesale; see RenameFieldsToCase.
type CaseConvention func(string) string

// Snake, Camel and Kebab are the usual conventions, straight from strcase.
var (
	Snake CaseConvention = strcase.ToSnake
	Camel CaseConvention = strcase.ToLowerCamel
	Kebab CaseConvention = strcase.ToKebab
)

// RenameFieldsToCase sweeps a shape and produces a Rename action for every
// field whose name changes under the convention. The result migrates a
// document between naming styles in one program.
func RenameFieldsToCase(shape SchemaShape, conv CaseConvention) []Action {
	var actions []Action
	for _, p := range shape.Paths {
		if p.Case || len(p.Cursor.Nodes) == 0 {
			continue
		}
		leaf := p.Cursor.Nodes[len(p.Cursor.Nodes)-1]
		renamed := conv(leaf)
		if renamed == leaf {
			continue
		}
		parent := &tree.Cursor{Nodes: p.Cursor.Nodes[:len(p.Cursor.Nodes)-1]}
		actions = append(actions, Rename{Path: OpticFromCursor(parent), From: leaf, To: renamed})
	}
	return actions
}
