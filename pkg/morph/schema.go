package morph

// Schema is the contract the core consumes from an external schema
// reflection system. The core never inspects typed values itself; it only
// needs the five methods below.
type Schema interface {
	// ID names the schema for planner edges and nominal type search.
	ID() string

	// ToDynamic reads a typed value as a dynamic tree.
	ToDynamic(v interface{}) (DynamicValue, error)

	// FromDynamic writes a dynamic tree back into a typed value.
	FromDynamic(dv DynamicValue) (interface{}, error)

	// DefaultDynamic returns the schema's default value as a dynamic tree,
	// when one exists.
	DefaultDynamic() (DynamicValue, bool)

	// Shape returns the schema's structural projection.
	Shape() SchemaShape
}

// SchemaRegistry resolves schema ids. It is read-only during any core call;
// callers that register concurrently must gate mutation externally.
type SchemaRegistry struct {
	schemas map[string]Schema
}

// NewSchemaRegistry returns an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: map[string]Schema{}}
}

// Register adds a schema under its id.
func (r *SchemaRegistry) Register(s Schema) {
	r.schemas[s.ID()] = s
}

// Lookup resolves a schema id.
func (r *SchemaRegistry) Lookup(id string) (Schema, bool) {
	s, ok := r.schemas[id]
	return s, ok
}

// StructuralPattern derives the shape pattern TypeSearch matches against: a
// record pattern over the schema's top-level fields, optional fields
// matching through the option encoding. Schemas without record fields have
// no structural identity in a dynamic tree and yield false.
func (r *SchemaRegistry) StructuralPattern(typeID string) (Pattern, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.schemas[typeID]
	if !ok {
		return nil, false
	}
	var fields []PatternField
	for _, p := range s.Shape().Paths {
		if p.Case || p.Cursor.Depth() != 1 {
			continue
		}
		var inner Pattern = WildcardPattern{}
		if p.Optional {
			inner = OptionalPattern{Inner: WildcardPattern{}}
		}
		fields = append(fields, PatternField{Name: p.Cursor.Nodes[0], Pattern: inner})
	}
	if len(fields) == 0 {
		return nil, false
	}
	return RecordPattern{Fields: fields}, true
}

// DefaultExpr builds the DefaultValue expression for a schema: its default
// tree when it has one, a recorded failure otherwise.
func DefaultExpr(s Schema) Resolved {
	if dv, ok := s.DefaultDynamic(); ok {
		return DefaultValue{Value: dv}
	}
	return DefaultValue{Msg: "schema " + s.ID() + " has no default value"}
}
