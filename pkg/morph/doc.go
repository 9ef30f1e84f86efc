/*
Package morph is a schema-driven, fully serializable algebra for describing,
computing and applying structured transformations to dynamically typed tree
values.

# Overview

Two cores share one data model:

  - The patch core: localized edits (set, numeric delta, string edit,
    sequence edit, map edit, nested patch) over a universal dynamic tree,
    with a path language, an LCS-based differ, and three application modes.
  - The migration core: schema-evolution actions (add/drop/rename fields,
    transform values, mandate/optionalize, join/split, change type, case and
    collection transforms) over the same trees, driven by a pure
    serializable expression language, with a shape validator, a BFS planner
    and an optimizer.

# Quick start

Diff two values and replay the patch:

	patch := morph.Diff(oldDoc, newDoc)
	result, err := patch.Apply(oldDoc, morph.Strict)

Run a migration:

	m := morph.Migration{Actions: []morph.Action{
		morph.AddField{Path: morph.Root(), Name: "age", Default: morph.Literal{Value: morph.Int32(0)}},
	}}
	migrated, err := m.Run(doc)
	back, err := m.RunReverse(migrated)

Address subvalues with the path syntax:

	optic, err := morph.ParseOptic(`.data[0]@"value"`)

# Serialization

Patches, paths, actions and expressions round-trip through JSON by
tagged-union encoding; Patch.Render produces a human-readable debug form.

# Error handling

All fallible operations return values carrying a structured *SchemaError
with a navigation trace; nothing panics across the package boundary.
*/
package morph
