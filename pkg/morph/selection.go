package morph

import (
	"github.com/starkandwayne/goutils/ansi"
)

// Selection is the result of reading an optic against a value: a multiset of
// matched subvalues, in traversal order.
type Selection struct {
	Values []DynamicValue
}

// One returns the single match, or an error when the selection holds zero or
// more than one value.
func (s Selection) One() (DynamicValue, error) {
	switch len(s.Values) {
	case 1:
		return s.Values[0], nil
	case 0:
		return nil, newValidationError("selection is empty, expected exactly one match")
	default:
		return nil, newValidationError(ansi.Sprintf("selection has @c{%d} matches, expected exactly one", len(s.Values)))
	}
}

// IsEmpty reports whether nothing matched.
func (s Selection) IsEmpty() bool { return len(s.Values) == 0 }

// Select reads the optic against the value, returning every matched
// subvalue. Single-step nodes (Field, AtIndex, Case, AtMapKey) fail with a
// traced error when their target is absent; traversal nodes fan out.
func Select(v DynamicValue, o Optic) (Selection, error) {
	return SelectWithSchemas(v, o, nil)
}

// SelectWithSchemas is Select with a schema registry supplying the context
// TypeSearch nodes need. A nil registry leaves TypeSearch unresolvable.
func SelectWithSchemas(v DynamicValue, o Optic, reg *SchemaRegistry) (Selection, error) {
	values, err := selectNodes([]DynamicValue{v}, o.Nodes, reg)
	if err != nil {
		return Selection{}, err
	}
	return Selection{Values: values}, nil
}

func selectNodes(values []DynamicValue, nodes []Node, reg *SchemaRegistry) ([]DynamicValue, error) {
	if len(nodes) == 0 {
		return values, nil
	}
	node := nodes[0]
	var next []DynamicValue
	for _, v := range values {
		matched, err := selectNode(v, node, reg)
		if err != nil {
			return nil, pushTrace(err, node)
		}
		next = append(next, matched...)
	}
	out, err := selectNodes(next, nodes[1:], reg)
	if err != nil {
		return nil, pushTrace(err, node)
	}
	return out, nil
}

func selectNode(v DynamicValue, node Node, reg *SchemaRegistry) ([]DynamicValue, error) {
	switch n := node.(type) {
	case Field:
		rec, ok := v.(*Record)
		if !ok {
			return nil, newStructuralMismatchError("record", v.ValueKind())
		}
		fv, present := rec.Get(n.Name)
		if !present {
			return nil, newMissingFieldError(n.Name)
		}
		return []DynamicValue{fv}, nil

	case Case:
		vr, ok := v.(*Variant)
		if !ok {
			return nil, newStructuralMismatchError("variant", v.ValueKind())
		}
		if vr.Case != n.Name {
			return nil, newCaseMismatchError(n.Name, vr.Case)
		}
		return []DynamicValue{vr.Value}, nil

	case AtIndex:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, newStructuralMismatchError("sequence", v.ValueKind())
		}
		if n.Index < 0 || n.Index >= len(seq.Elements) {
			return nil, newOutOfBoundsError("sequence", n.Index, len(seq.Elements))
		}
		return []DynamicValue{seq.Elements[n.Index]}, nil

	case AtIndices:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, newStructuralMismatchError("sequence", v.ValueKind())
		}
		out := make([]DynamicValue, 0, len(n.Indices))
		for _, i := range n.Indices {
			if i < 0 || i >= len(seq.Elements) {
				return nil, newOutOfBoundsError("sequence", i, len(seq.Elements))
			}
			out = append(out, seq.Elements[i])
		}
		return out, nil

	case Elements:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, newStructuralMismatchError("sequence", v.ValueKind())
		}
		return append([]DynamicValue(nil), seq.Elements...), nil

	case AtMapKey:
		m, ok := v.(*Map)
		if !ok {
			return nil, newStructuralMismatchError("map", v.ValueKind())
		}
		mv, present := m.Get(n.Key)
		if !present {
			return nil, newValidationError("map has no key %s", Render(n.Key))
		}
		return []DynamicValue{mv}, nil

	case AtMapKeys:
		m, ok := v.(*Map)
		if !ok {
			return nil, newStructuralMismatchError("map", v.ValueKind())
		}
		out := make([]DynamicValue, 0, len(n.Keys))
		for _, k := range n.Keys {
			mv, present := m.Get(k)
			if !present {
				return nil, newValidationError("map has no key %s", Render(k))
			}
			out = append(out, mv)
		}
		return out, nil

	case MapKeys:
		m, ok := v.(*Map)
		if !ok {
			return nil, newStructuralMismatchError("map", v.ValueKind())
		}
		out := make([]DynamicValue, len(m.Entries))
		for i, e := range m.Entries {
			out[i] = e.Key
		}
		return out, nil

	case MapValues:
		m, ok := v.(*Map)
		if !ok {
			return nil, newStructuralMismatchError("map", v.ValueKind())
		}
		out := make([]DynamicValue, len(m.Entries))
		for i, e := range m.Entries {
			out[i] = e.Value
		}
		return out, nil

	case Wrapped:
		return []DynamicValue{v}, nil

	case SearchSchema:
		var out []DynamicValue
		walkValues(v, func(sub DynamicValue) {
			if MatchesPattern(n.Pattern, sub) {
				out = append(out, sub)
			}
		})
		return out, nil

	case TypeSearch:
		pattern, ok := reg.StructuralPattern(n.TypeID)
		if !ok {
			return nil, newValidationError("type search #%s requires schema context", n.TypeID)
		}
		var out []DynamicValue
		walkValues(v, func(sub DynamicValue) {
			if MatchesPattern(pattern, sub) {
				out = append(out, sub)
			}
		})
		return out, nil
	}
	return nil, newValidationError("unknown navigation node")
}

// walkValues visits v and every subvalue in pre-order.
func walkValues(v DynamicValue, visit func(DynamicValue)) {
	visit(v)
	switch val := v.(type) {
	case *Record:
		for _, f := range val.Fields {
			walkValues(f.Value, visit)
		}
	case *Sequence:
		for _, e := range val.Elements {
			walkValues(e, visit)
		}
	case *Map:
		for _, e := range val.Entries {
			walkValues(e.Key, visit)
			walkValues(e.Value, visit)
		}
	case *Variant:
		walkValues(val.Value, visit)
	}
}
