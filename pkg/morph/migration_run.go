package morph

import (
	"github.com/wayneeseguin/morph/log"
)

// Migration is an ordered action program.
type Migration struct {
	Actions []Action
}

// Run folds the actions over the value left to right, short-circuiting on
// the first error.
func (m Migration) Run(v DynamicValue) (DynamicValue, error) {
	cur := v
	for i, a := range m.Actions {
		next, err := applyAction(cur, a)
		if err != nil {
			return nil, err
		}
		log.TRACE("migration: action %d applied at %s", i, a.At().Render())
		cur = next
	}
	return cur, nil
}

// RunReverse undoes the program: each action's reverse, in reverse order.
func (m Migration) RunReverse(v DynamicValue) (DynamicValue, error) {
	return Migration{Actions: ReverseActions(m.Actions)}.Run(v)
}

// Reverse returns the reversed program.
func (m Migration) Reverse() Migration {
	return Migration{Actions: ReverseActions(m.Actions)}
}

// Concat appends another program after this one.
func (m Migration) Concat(other Migration) Migration {
	actions := make([]Action, 0, len(m.Actions)+len(other.Actions))
	actions = append(actions, m.Actions...)
	actions = append(actions, other.Actions...)
	return Migration{Actions: actions}
}

// updateAt rebuilds the tree with fn applied to the value at the path.
// Traversal nodes fan the update out over every reachable element.
func updateAt(v DynamicValue, nodes []Node, fn func(DynamicValue) (DynamicValue, error)) (DynamicValue, error) {
	if len(nodes) == 0 {
		return fn(v)
	}
	switch n := nodes[0].(type) {
	case Field:
		rec, ok := v.(*Record)
		if !ok {
			return nil, pushTrace(newStructuralMismatchError("record", v.ValueKind()), n)
		}
		fv, present := rec.Get(n.Name)
		if !present {
			return nil, pushTrace(newMissingFieldError(n.Name), n)
		}
		nv, err := updateAt(fv, nodes[1:], fn)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		return rec.Set(n.Name, nv), nil

	case Case:
		vr, ok := v.(*Variant)
		if !ok {
			return nil, pushTrace(newStructuralMismatchError("variant", v.ValueKind()), n)
		}
		if vr.Case != n.Name {
			return nil, pushTrace(newCaseMismatchError(n.Name, vr.Case), n)
		}
		nv, err := updateAt(vr.Value, nodes[1:], fn)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		return NewVariant(vr.Case, nv), nil

	case AtIndex:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, pushTrace(newStructuralMismatchError("sequence", v.ValueKind()), n)
		}
		if n.Index < 0 || n.Index >= len(seq.Elements) {
			return nil, pushTrace(newOutOfBoundsError("sequence", n.Index, len(seq.Elements)), n)
		}
		elements := make([]DynamicValue, len(seq.Elements))
		copy(elements, seq.Elements)
		nv, err := updateAt(elements[n.Index], nodes[1:], fn)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		elements[n.Index] = nv
		return &Sequence{Elements: elements}, nil

	case Elements:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, pushTrace(newStructuralMismatchError("sequence", v.ValueKind()), n)
		}
		elements := make([]DynamicValue, len(seq.Elements))
		for i, e := range seq.Elements {
			nv, err := updateAt(e, nodes[1:], fn)
			if err != nil {
				return nil, pushTrace(err, n)
			}
			elements[i] = nv
		}
		return &Sequence{Elements: elements}, nil

	case AtMapKey:
		m, ok := v.(*Map)
		if !ok {
			return nil, pushTrace(newStructuralMismatchError("map", v.ValueKind()), n)
		}
		idx := m.IndexOf(n.Key)
		if idx < 0 {
			return nil, pushTrace(newValidationError("map has no key %s", Render(n.Key)), n)
		}
		entries := make([]MapEntry, len(m.Entries))
		copy(entries, m.Entries)
		nv, err := updateAt(entries[idx].Value, nodes[1:], fn)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		entries[idx].Value = nv
		return &Map{Entries: entries}, nil

	case Wrapped:
		return updateAt(v, nodes[1:], fn)
	}
	return nil, newValidationError("node %s is not supported in migration paths", nodes[0].Render())
}

// applyAction dispatches one action against the current tree. The tree
// itself is the root every contained expression sees.
func applyAction(root DynamicValue, action Action) (DynamicValue, error) {
	switch a := action.(type) {
	case AddField:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			rec, ok := v.(*Record)
			if !ok {
				return nil, newStructuralMismatchError("record", v.ValueKind())
			}
			if _, present := rec.Get(a.Name); present {
				return nil, newValidationError("record already has field '%s'", a.Name)
			}
			if a.Default == nil {
				return nil, newEvaluationError("add of field '%s' has no default; the original drop was lossy", a.Name)
			}
			dv, err := a.Default.Eval(v, root)
			if err != nil {
				return nil, err
			}
			return &Record{Fields: append(append([]RecordField(nil), rec.Fields...), RecordField{Name: a.Name, Value: dv})}, nil
		})

	case DropField:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			rec, ok := v.(*Record)
			if !ok {
				return nil, newStructuralMismatchError("record", v.ValueKind())
			}
			if _, present := rec.Get(a.Name); !present {
				return nil, newMissingFieldError(a.Name)
			}
			return rec.Without(a.Name), nil
		})

	case Rename:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			rec, ok := v.(*Record)
			if !ok {
				return nil, newStructuralMismatchError("record", v.ValueKind())
			}
			if a.From == a.To {
				if _, present := rec.Get(a.From); !present {
					return nil, newMissingFieldError(a.From)
				}
				return rec, nil
			}
			if _, present := rec.Get(a.To); present {
				return nil, newValidationError("cannot rename '%s' to '%s': target exists", a.From, a.To)
			}
			idx := rec.IndexOf(a.From)
			if idx < 0 {
				return nil, newMissingFieldError(a.From)
			}
			fields := make([]RecordField, len(rec.Fields))
			copy(fields, rec.Fields)
			fields[idx].Name = a.To
			return &Record{Fields: fields}, nil
		})

	case TransformValue:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			if a.Transform == nil {
				return nil, newEvaluationError("transform at %s is not reversible", a.Path.Render())
			}
			return a.Transform.Eval(v, root)
		})

	case Mandate:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			if payload, ok := UnwrapSome(v); ok {
				return payload, nil
			}
			if IsNone(v) {
				if a.Default == nil {
					return nil, newEvaluationError("mandate at %s found None and has no default", a.Path.Render())
				}
				return a.Default.Eval(nil, root)
			}
			return nil, newStructuralMismatchError("option", v.ValueKind())
		})

	case Optionalize:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			return Some(v), nil
		})

	case Join:
		return applyJoin(root, a)

	case Split:
		return applySplit(root, a)

	case ChangeType:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			if a.Converter == nil {
				return nil, newEvaluationError("type change at %s is not reversible", a.Path.Render())
			}
			if _, ok := v.(*Primitive); !ok {
				return nil, newStructuralMismatchError("primitive", v.ValueKind())
			}
			return a.Converter.Eval(v, root)
		})

	case RenameCase:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			vr, ok := v.(*Variant)
			if !ok {
				return nil, newStructuralMismatchError("variant", v.ValueKind())
			}
			if vr.Case != a.From {
				return v, nil
			}
			return NewVariant(a.To, vr.Value), nil
		})

	case TransformCase:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			vr, ok := v.(*Variant)
			if !ok {
				return nil, newStructuralMismatchError("variant", v.ValueKind())
			}
			if vr.Case != a.CaseName {
				return v, nil
			}
			payload, err := Migration{Actions: a.Actions}.Run(vr.Value)
			if err != nil {
				return nil, err
			}
			return NewVariant(vr.Case, payload), nil
		})

	case TransformElements:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			seq, ok := v.(*Sequence)
			if !ok {
				return nil, newStructuralMismatchError("sequence", v.ValueKind())
			}
			if a.Transform == nil {
				return nil, newEvaluationError("element transform at %s is not reversible", a.Path.Render())
			}
			elements := make([]DynamicValue, len(seq.Elements))
			for i, e := range seq.Elements {
				nv, err := a.Transform.Eval(e, root)
				if err != nil {
					return nil, pushTrace(err, AtIndex{Index: i})
				}
				elements[i] = nv
			}
			return &Sequence{Elements: elements}, nil
		})

	case TransformKeys:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			m, ok := v.(*Map)
			if !ok {
				return nil, newStructuralMismatchError("map", v.ValueKind())
			}
			if a.Transform == nil {
				return nil, newEvaluationError("key transform at %s is not reversible", a.Path.Render())
			}
			entries := make([]MapEntry, len(m.Entries))
			for i, e := range m.Entries {
				nk, err := a.Transform.Eval(e.Key, root)
				if err != nil {
					return nil, err
				}
				for j := 0; j < i; j++ {
					if Equal(entries[j].Key, nk) {
						return nil, newValidationError("key transform collapsed two keys to %s", Render(nk))
					}
				}
				entries[i] = MapEntry{Key: nk, Value: e.Value}
			}
			return &Map{Entries: entries}, nil
		})

	case TransformMapValues:
		return updateAt(root, a.Path.Nodes, func(v DynamicValue) (DynamicValue, error) {
			m, ok := v.(*Map)
			if !ok {
				return nil, newStructuralMismatchError("map", v.ValueKind())
			}
			if a.Transform == nil {
				return nil, newEvaluationError("value transform at %s is not reversible", a.Path.Render())
			}
			entries := make([]MapEntry, len(m.Entries))
			for i, e := range m.Entries {
				nv, err := a.Transform.Eval(e.Value, root)
				if err != nil {
					return nil, pushTrace(err, AtMapKey{Key: e.Key})
				}
				entries[i] = MapEntry{Key: e.Key, Value: nv}
			}
			return &Map{Entries: entries}, nil
		})
	}
	return nil, newValidationError("unknown migration action")
}

// fieldTarget splits a path into its parent and trailing field name.
func fieldTarget(path Optic) (Optic, string, error) {
	parent, last := path.Parent()
	f, ok := last.(Field)
	if !ok {
		return Optic{}, "", newValidationError("path %s does not end in a field", path.Render())
	}
	return parent, f.Name, nil
}

// applyJoin computes the combined value from the parent record, stores it
// under the target field, then drops the consumed source fields.
func applyJoin(root DynamicValue, a Join) (DynamicValue, error) {
	parentPath, target, err := fieldTarget(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Combiner == nil {
		return nil, newEvaluationError("join at %s has no combiner; the original split was lossy", a.Path.Render())
	}
	return updateAt(root, parentPath.Nodes, func(v DynamicValue) (DynamicValue, error) {
		rec, ok := v.(*Record)
		if !ok {
			return nil, newStructuralMismatchError("record", v.ValueKind())
		}
		combined, err := a.Combiner.Eval(rec, root)
		if err != nil {
			return nil, err
		}
		out := rec
		for _, sp := range a.SourcePaths {
			_, name, err := fieldTarget(sp)
			if err != nil {
				return nil, err
			}
			out = out.Without(name)
		}
		if _, present := out.Get(target); present {
			return nil, newValidationError("join target field '%s' already exists", target)
		}
		return out.Set(target, combined), nil
	})
}

// applySplit fans the value at the path out over the target fields, then
// drops the source field.
func applySplit(root DynamicValue, a Split) (DynamicValue, error) {
	parentPath, source, err := fieldTarget(a.Path)
	if err != nil {
		return nil, err
	}
	if a.Splitter == nil {
		return nil, newEvaluationError("split at %s has no splitter; the original join was lossy", a.Path.Render())
	}
	return updateAt(root, parentPath.Nodes, func(v DynamicValue) (DynamicValue, error) {
		rec, ok := v.(*Record)
		if !ok {
			return nil, newStructuralMismatchError("record", v.ValueKind())
		}
		sv, present := rec.Get(source)
		if !present {
			return nil, newMissingFieldError(source)
		}
		pieces, err := a.Splitter.Eval(sv, root)
		if err != nil {
			return nil, err
		}
		seq, ok := pieces.(*Sequence)
		if !ok {
			return nil, newEvaluationError("splitter at %s must yield a sequence, got %s", a.Path.Render(), pieces.ValueKind())
		}
		if len(seq.Elements) != len(a.TargetPaths) {
			return nil, newValidationError("splitter yielded %d values for %d targets", len(seq.Elements), len(a.TargetPaths))
		}
		out := rec.Without(source)
		for i, tp := range a.TargetPaths {
			_, name, err := fieldTarget(tp)
			if err != nil {
				return nil, err
			}
			if _, exists := out.Get(name); exists {
				return nil, newValidationError("split target field '%s' already exists", name)
			}
			out = out.Set(name, seq.Elements[i])
		}
		return out, nil
	})
}
