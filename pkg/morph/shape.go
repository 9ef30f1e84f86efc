package morph

import (
	"sort"
	"strings"

	"github.com/starkandwayne/goutils/ansi"
	"github.com/starkandwayne/goutils/tree"
)

// ShapePath is one addressable location of a schema's structural projection:
// a dotted field cursor plus marks for optional wrappers and variant cases.
type ShapePath struct {
	Cursor   *tree.Cursor
	Optional bool
	Case     bool
}

// SchemaShape is the structural projection of a schema: the set of its
// hierarchical field paths. Shapes come from the external schema-reflection
// contract or from sampling a dynamic value.
type SchemaShape struct {
	Paths []ShapePath
}

// NewShape parses dotted path strings into a shape. It panics on malformed
// paths; shapes are built from literals or trusted reflection output.
func NewShape(paths ...string) SchemaShape {
	out := SchemaShape{}
	for _, p := range paths {
		c, err := tree.ParseCursor(p)
		if err != nil {
			panic(err)
		}
		out.Paths = append(out.Paths, ShapePath{Cursor: c})
	}
	return out
}

// Contains reports whether the shape holds the exact path.
func (s SchemaShape) Contains(path string) bool {
	for _, p := range s.Paths {
		if p.Cursor.String() == path {
			return true
		}
	}
	return false
}

// keys returns the path strings of the shape.
func (s SchemaShape) keys() map[string]bool {
	out := make(map[string]bool, len(s.Paths))
	for _, p := range s.Paths {
		out[p.Cursor.String()] = true
	}
	return out
}

// ShapeOf samples a dynamic value into a shape: record fields become paths,
// variant payloads mark case locations, Some/None mark optionals.
func ShapeOf(v DynamicValue) SchemaShape {
	shape := SchemaShape{}
	var walk func(v DynamicValue, prefix []string)
	walk = func(v DynamicValue, prefix []string) {
		switch val := v.(type) {
		case *Record:
			for _, f := range val.Fields {
				path := append(append([]string(nil), prefix...), f.Name)
				sp := ShapePath{Cursor: &tree.Cursor{Nodes: path}}
				if _, isSome := UnwrapSome(f.Value); isSome || IsNone(f.Value) {
					sp.Optional = true
				}
				shape.Paths = append(shape.Paths, sp)
				if inner, ok := UnwrapSome(f.Value); ok {
					walk(inner, path)
				} else {
					walk(f.Value, path)
				}
			}
		case *Variant:
			path := append(append([]string(nil), prefix...), val.Case)
			shape.Paths = append(shape.Paths, ShapePath{Cursor: &tree.Cursor{Nodes: path}, Case: true})
			walk(val.Value, path)
		}
	}
	walk(v, nil)
	return shape
}

// MigrationCoverage accounts for what an action list touches: which source
// paths it consumes, which target paths it produces, and the rename/drop/add
// bookkeeping behind them.
type MigrationCoverage struct {
	Handled  map[string]bool
	Provided map[string]bool
	Renames  map[string]string
	Dropped  map[string]bool
	Added    map[string]bool
}

func newCoverage() MigrationCoverage {
	return MigrationCoverage{
		Handled:  map[string]bool{},
		Provided: map[string]bool{},
		Renames:  map[string]string{},
		Dropped:  map[string]bool{},
		Added:    map[string]bool{},
	}
}

// shapeKey flattens an optic to the dotted field-path key coverage uses.
// Collection and case navigation contribute no field segments.
func shapeKey(o Optic) string {
	var parts []string
	for _, n := range o.Nodes {
		if f, ok := n.(Field); ok {
			parts = append(parts, f.Name)
		}
	}
	return strings.Join(parts, ".")
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// fold records one action's coverage contribution. Field-level actions move
// field coverage; collection, key, value and case traversals only mark the
// collection's own path as touched.
func (c MigrationCoverage) fold(a Action) {
	switch act := a.(type) {
	case AddField:
		key := joinKey(shapeKey(act.Path), act.Name)
		c.Provided[key] = true
		c.Added[key] = true
	case DropField:
		key := joinKey(shapeKey(act.Path), act.Name)
		c.Handled[key] = true
		c.Dropped[key] = true
	case Rename:
		from := joinKey(shapeKey(act.Path), act.From)
		to := joinKey(shapeKey(act.Path), act.To)
		c.Handled[from] = true
		c.Provided[to] = true
		c.Renames[from] = to
	case TransformValue, ChangeType, Mandate, Optionalize:
		key := shapeKey(a.At())
		c.Handled[key] = true
		c.Provided[key] = true
	case Join:
		for _, sp := range act.SourcePaths {
			c.Handled[shapeKey(sp)] = true
		}
		c.Provided[shapeKey(act.Path)] = true
	case Split:
		c.Handled[shapeKey(act.Path)] = true
		for _, tp := range act.TargetPaths {
			c.Provided[shapeKey(tp)] = true
		}
	case RenameCase, TransformCase, TransformElements, TransformKeys, TransformMapValues:
		key := shapeKey(a.At())
		c.Handled[key] = true
		c.Provided[key] = true
	}
}

// ValidationResult is the outcome of shape validation: either complete
// coverage, or the unhandled/missing path sets with the raw coverage for
// inspection.
type ValidationResult struct {
	Complete  bool
	Unhandled []string
	Missing   []string
	Coverage  MigrationCoverage
}

// ValidateShapes checks that the action list consumes every source path and
// produces every target path. Paths present in both shapes and touched by
// no action are implicitly kept.
func ValidateShapes(source, target SchemaShape, actions []Action) ValidationResult {
	coverage := newCoverage()
	for _, a := range actions {
		coverage.fold(a)
	}

	sourceKeys := source.keys()
	targetKeys := target.keys()

	touched := func(key string) bool {
		return coverage.Handled[key] || coverage.Provided[key]
	}

	var unhandled []string
	for key := range sourceKeys {
		if coverage.Handled[key] {
			continue
		}
		if targetKeys[key] && !touched(key) {
			continue // implicitly kept
		}
		unhandled = append(unhandled, key)
	}

	var missing []string
	for key := range targetKeys {
		if coverage.Provided[key] {
			continue
		}
		if sourceKeys[key] && !touched(key) {
			continue // implicitly kept
		}
		missing = append(missing, key)
	}

	sort.Strings(unhandled)
	sort.Strings(missing)

	return ValidationResult{
		Complete:  len(unhandled) == 0 && len(missing) == 0,
		Unhandled: unhandled,
		Missing:   missing,
		Coverage:  coverage,
	}
}

// Err converts an incomplete result to an aggregated error, nil otherwise.
func (r ValidationResult) Err() error {
	if r.Complete {
		return nil
	}
	agg := MultiError{}
	for _, p := range r.Unhandled {
		agg.Append(newValidationError("source path '%s' is not handled", p))
	}
	for _, p := range r.Missing {
		agg.Append(newValidationError("target path '%s' is not provided", p))
	}
	return agg
}

// Report renders the multi-line coverage report, grouped by path depth,
// with hints for the corrective builder calls.
func (r ValidationResult) Report() string {
	if r.Complete {
		return ansi.Sprintf("@g{shape validation passed: every source path handled, every target path provided}\n")
	}
	var b strings.Builder
	b.WriteString(ansi.Sprintf("@r{shape validation failed}\n"))
	renderGroup := func(title, hint string, paths []string) {
		if len(paths) == 0 {
			return
		}
		b.WriteString(ansi.Sprintf("@Y{%s:}\n", title))
		byDepth := map[int][]string{}
		var depths []int
		for _, p := range paths {
			d := len(strings.Split(p, "."))
			if len(byDepth[d]) == 0 {
				depths = append(depths, d)
			}
			byDepth[d] = append(byDepth[d], p)
		}
		sort.Ints(depths)
		for _, d := range depths {
			b.WriteString(ansi.Sprintf("  depth %d:\n", d))
			for _, p := range byDepth[d] {
				b.WriteString(ansi.Sprintf("    - @c{%s}  (%s)\n", p, hint))
			}
		}
	}
	renderGroup("unhandled source paths", "consume with DropField, Rename, or Join", r.Unhandled)
	renderGroup("missing target paths", "provide with AddField, Rename, or Split", r.Missing)
	return b.String()
}
