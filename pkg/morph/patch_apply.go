package morph

import (
	"math/big"

	"github.com/wayneeseguin/morph/log"
)

// Apply runs the patch against a value under the given mode, returning the
// new tree. The input is never mutated.
//
// Strict aborts on the first error and leftover operations are not tried.
// Lenient skips an erroring operation and continues with the pre-error
// state. Clobber additionally coerces: sequence indices clamp, map adds
// overwrite, map removes on missing keys are no-ops.
func (p Patch) Apply(v DynamicValue, mode PatchMode) (DynamicValue, error) {
	return p.ApplyWithSchemas(v, mode, nil)
}

// ApplyWithSchemas is Apply with a schema registry supplying the context
// TypeSearch nodes need. A nil registry leaves TypeSearch unresolvable.
func (p Patch) ApplyWithSchemas(v DynamicValue, mode PatchMode, reg *SchemaRegistry) (DynamicValue, error) {
	cur := v
	for i, op := range p.Ops {
		next, err := applyAtPath(cur, op.Path.Nodes, op.Op, mode, false, reg)
		if err != nil {
			if mode == Strict {
				return nil, err
			}
			log.DEBUG("patch: skipping op %d at %s: %s", i, op.Path.Render(), err)
			continue
		}
		cur = next
	}
	return cur, nil
}

// pushTrace records the node a failing descent was passing through, keeping
// the trace reverse-ordered as the stack unwinds.
func pushTrace(err error, n Node) error {
	if se, ok := err.(*SchemaError); ok {
		se.push(n)
	}
	return err
}

// applyAtPath navigates the remaining nodes and applies the operation at the
// end, rebuilding each parent on the way back out. inElements is true when
// the immediately enclosing step was an Elements traversal, which makes a
// case mismatch a silent skip rather than an error.
func applyAtPath(v DynamicValue, nodes []Node, op Operation, mode PatchMode, inElements bool, reg *SchemaRegistry) (DynamicValue, error) {
	if len(nodes) == 0 {
		return applyOperation(v, op, mode, reg)
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
		nv, err := applyAtPath(fv, nodes[1:], op, mode, false, reg)
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
			if inElements {
				// Traversal semantics: an element of the wrong case is
				// skipped, not an error, whatever the mode.
				return v, nil
			}
			return nil, pushTrace(newCaseMismatchError(n.Name, vr.Case), n)
		}
		nv, err := applyAtPath(vr.Value, nodes[1:], op, mode, false, reg)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		return NewVariant(vr.Case, nv), nil

	case AtIndex:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, pushTrace(newStructuralMismatchError("sequence", v.ValueKind()), n)
		}
		idx := n.Index
		if idx < 0 || idx >= len(seq.Elements) {
			if mode != Clobber || len(seq.Elements) == 0 {
				return nil, pushTrace(newOutOfBoundsError("sequence", idx, len(seq.Elements)), n)
			}
			idx = clampIndex(idx, len(seq.Elements)-1)
		}
		nv, err := applyAtPath(seq.Elements[idx], nodes[1:], op, mode, false, reg)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		elements := make([]DynamicValue, len(seq.Elements))
		copy(elements, seq.Elements)
		elements[idx] = nv
		return &Sequence{Elements: elements}, nil

	case Elements:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, pushTrace(newStructuralMismatchError("sequence", v.ValueKind()), n)
		}
		if len(seq.Elements) == 0 {
			if mode == Strict {
				return nil, pushTrace(newValidationError("elements traversal over an empty sequence"), n)
			}
			return v, nil
		}
		elements := make([]DynamicValue, len(seq.Elements))
		for i, e := range seq.Elements {
			nv, err := applyAtPath(e, nodes[1:], op, mode, true, reg)
			if err != nil {
				if mode == Strict {
					return nil, pushTrace(err, n)
				}
				log.DEBUG("patch: skipping element %d under [*]: %s", i, err)
				elements[i] = e
				continue
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
		nv, err := applyAtPath(m.Entries[idx].Value, nodes[1:], op, mode, false, reg)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		entries := make([]MapEntry, len(m.Entries))
		copy(entries, m.Entries)
		entries[idx].Value = nv
		return &Map{Entries: entries}, nil

	case Wrapped:
		nv, err := applyAtPath(v, nodes[1:], op, mode, inElements, reg)
		if err != nil {
			return nil, pushTrace(err, n)
		}
		return nv, nil

	case SearchSchema:
		return applySearch(v, n, nodes[1:], op, mode, reg)

	case TypeSearch:
		pattern, ok := reg.StructuralPattern(n.TypeID)
		if !ok {
			return nil, pushTrace(newValidationError("type search #%s requires schema context", n.TypeID), n)
		}
		return applySearch(v, SearchSchema{Pattern: pattern}, nodes[1:], op, mode, reg)

	case AtIndices, AtMapKeys, MapKeys, MapValues:
		return nil, newUnsupportedNodeError(nodes[0])
	}
	return nil, newValidationError("unknown navigation node")
}

// applySearch rewrites every subvalue matching the pattern. A match consumes
// its subtree: the operation applies there and the walk does not descend
// into the replacement. Zero matches is an error in Strict and a no-op
// otherwise; a failing match propagates in Strict and is skipped otherwise.
func applySearch(v DynamicValue, n SearchSchema, rest []Node, op Operation, mode PatchMode, reg *SchemaRegistry) (DynamicValue, error) {
	matches := 0

	var rewrite func(DynamicValue) (DynamicValue, error)
	rewrite = func(cur DynamicValue) (DynamicValue, error) {
		if MatchesPattern(n.Pattern, cur) {
			matches++
			nv, err := applyAtPath(cur, rest, op, mode, false, reg)
			if err != nil {
				if mode == Strict {
					return nil, err
				}
				log.DEBUG("patch: skipping search match: %s", err)
				return cur, nil
			}
			return nv, nil
		}
		switch val := cur.(type) {
		case *Record:
			fields := make([]RecordField, len(val.Fields))
			for i, f := range val.Fields {
				nv, err := rewrite(f.Value)
				if err != nil {
					return nil, pushTrace(err, Field{Name: f.Name})
				}
				fields[i] = RecordField{Name: f.Name, Value: nv}
			}
			return &Record{Fields: fields}, nil
		case *Sequence:
			elements := make([]DynamicValue, len(val.Elements))
			for i, e := range val.Elements {
				nv, err := rewrite(e)
				if err != nil {
					return nil, pushTrace(err, AtIndex{Index: i})
				}
				elements[i] = nv
			}
			return &Sequence{Elements: elements}, nil
		case *Map:
			entries := make([]MapEntry, len(val.Entries))
			for i, e := range val.Entries {
				nk, err := rewrite(e.Key)
				if err != nil {
					return nil, err
				}
				nv, err := rewrite(e.Value)
				if err != nil {
					return nil, pushTrace(err, AtMapKey{Key: e.Key})
				}
				entries[i] = MapEntry{Key: nk, Value: nv}
			}
			return &Map{Entries: entries}, nil
		case *Variant:
			nv, err := rewrite(val.Value)
			if err != nil {
				return nil, pushTrace(err, Case{Name: val.Case})
			}
			return NewVariant(val.Case, nv), nil
		}
		return cur, nil
	}

	out, err := rewrite(v)
	if err != nil {
		return nil, pushTrace(err, n)
	}
	if matches == 0 {
		if _, nominal := n.Pattern.(NominalPattern); nominal && mode == Strict {
			return nil, pushTrace(newValidationError("nominal pattern %s requires schema context", n.Pattern.renderPattern()), n)
		}
		if mode == Strict {
			return nil, pushTrace(newValidationError("search %s matched nothing", n.Render()), n)
		}
		return v, nil
	}
	return out, nil
}

// applyOperation applies op to the value selected by the path.
func applyOperation(v DynamicValue, op Operation, mode PatchMode, reg *SchemaRegistry) (DynamicValue, error) {
	switch o := op.(type) {
	case Set:
		return o.Value, nil

	case PrimitiveDelta:
		p, ok := v.(*Primitive)
		if !ok {
			return nil, newStructuralMismatchError("primitive", v.ValueKind())
		}
		return applyPrimitiveOp(p, o.Op)

	case SequenceEdit:
		seq, ok := v.(*Sequence)
		if !ok {
			return nil, newStructuralMismatchError("sequence", v.ValueKind())
		}
		return applySeqEdit(seq, o.Ops, mode, reg)

	case MapEdit:
		m, ok := v.(*Map)
		if !ok {
			return nil, newStructuralMismatchError("map", v.ValueKind())
		}
		return applyMapEdit(m, o.Ops, mode, reg)

	case NestedPatch:
		return o.Patch.ApplyWithSchemas(v, mode, reg)
	}
	return nil, newValidationError("unknown patch operation")
}

// applyPrimitiveOp dispatches on the (primitive kind, op kind) pair. Integer
// additions wrap at their declared width.
func applyPrimitiveOp(p *Primitive, op PrimitiveOp) (DynamicValue, error) {
	mismatch := func(want string) (DynamicValue, error) {
		return nil, newStructuralMismatchError(want, ValuePrimitive)
	}
	switch o := op.(type) {
	case Int8Delta:
		if p.Kind != KindInt8 {
			return mismatch("int8")
		}
		return Int8(int8(p.Int) + o.Delta), nil
	case Int16Delta:
		if p.Kind != KindInt16 {
			return mismatch("int16")
		}
		return Int16(int16(p.Int) + o.Delta), nil
	case Int32Delta:
		if p.Kind != KindInt32 {
			return mismatch("int32")
		}
		return Int32(int32(p.Int) + o.Delta), nil
	case Int64Delta:
		if p.Kind != KindInt64 {
			return mismatch("int64")
		}
		return Int64(p.Int + o.Delta), nil
	case Float32Delta:
		if p.Kind != KindFloat32 {
			return mismatch("float32")
		}
		return Float32(float32(p.Flt) + o.Delta), nil
	case Float64Delta:
		if p.Kind != KindFloat64 {
			return mismatch("float64")
		}
		return Float64(p.Flt + o.Delta), nil
	case BigIntDelta:
		if p.Kind != KindBigInt {
			return mismatch("bigint")
		}
		return BigInt(new(big.Int).Add(p.Big, o.Delta)), nil
	case BigDecimalDelta:
		if p.Kind != KindBigDecimal {
			return mismatch("bigdecimal")
		}
		return BigDecimal(p.Dec.Add(o.Delta)), nil
	case InstantDelta:
		if p.Kind != KindInstant {
			return mismatch("instant")
		}
		return Instant(p.Time.Add(o.Delta)), nil
	case DurationDelta:
		if p.Kind != KindDuration {
			return mismatch("duration")
		}
		return Duration(p.Dur + o.Delta), nil
	case LocalDateDelta:
		if p.Kind != KindLocalDate {
			return mismatch("localDate")
		}
		t := p.Time.AddDate(o.Delta.Years, o.Delta.Months, o.Delta.Days)
		return LocalDate(t.Year(), t.Month(), t.Day()), nil
	case LocalDateTimeDelta:
		if p.Kind != KindLocalDateTime {
			return mismatch("localDateTime")
		}
		return LocalDateTime(p.Time.Add(o.Delta)), nil
	case PeriodDelta:
		if p.Kind != KindPeriod {
			return mismatch("period")
		}
		return NewPeriod(p.Per.Years+o.Delta.Years, p.Per.Months+o.Delta.Months, p.Per.Days+o.Delta.Days), nil
	case StringEdit:
		if p.Kind != KindString {
			return mismatch("string")
		}
		s, err := applyStringEdit(p.Str, o.Ops)
		if err != nil {
			return nil, err
		}
		return String(s), nil
	}
	return nil, newValidationError("unknown primitive operation")
}

// applyStringEdit folds the op stream over the string. Each index reads
// against the intermediate string produced so far.
func applyStringEdit(s string, ops []StringOp) (string, error) {
	runes := []rune(s)
	for _, op := range ops {
		switch o := op.(type) {
		case StringInsert:
			if o.Index < 0 || o.Index > len(runes) {
				return "", newOutOfBoundsError("string", o.Index, len(runes))
			}
			ins := []rune(o.Text)
			out := make([]rune, 0, len(runes)+len(ins))
			out = append(out, runes[:o.Index]...)
			out = append(out, ins...)
			out = append(out, runes[o.Index:]...)
			runes = out
		case StringDelete:
			if o.Index < 0 || o.Length < 0 || o.Index+o.Length > len(runes) {
				return "", newOutOfBoundsError("string", o.Index+o.Length, len(runes))
			}
			out := make([]rune, 0, len(runes)-o.Length)
			out = append(out, runes[:o.Index]...)
			out = append(out, runes[o.Index+o.Length:]...)
			runes = out
		case StringAppend:
			runes = append(runes, []rune(o.Text)...)
		case StringModify:
			if o.Index < 0 || o.Length < 0 || o.Index+o.Length > len(runes) {
				return "", newOutOfBoundsError("string", o.Index+o.Length, len(runes))
			}
			rep := []rune(o.Text)
			out := make([]rune, 0, len(runes)-o.Length+len(rep))
			out = append(out, runes[:o.Index]...)
			out = append(out, rep...)
			out = append(out, runes[o.Index+o.Length:]...)
			runes = out
		}
	}
	return string(runes), nil
}

func applySeqEdit(seq *Sequence, ops []SeqOp, mode PatchMode, reg *SchemaRegistry) (DynamicValue, error) {
	elements := append([]DynamicValue(nil), seq.Elements...)
	for _, op := range ops {
		switch o := op.(type) {
		case SeqInsert:
			idx := o.Index
			if idx < 0 || idx > len(elements) {
				if mode != Clobber {
					return nil, newOutOfBoundsError("sequence", idx, len(elements))
				}
				idx = clampIndex(idx, len(elements))
			}
			out := make([]DynamicValue, 0, len(elements)+len(o.Values))
			out = append(out, elements[:idx]...)
			out = append(out, o.Values...)
			out = append(out, elements[idx:]...)
			elements = out
		case SeqAppend:
			elements = append(elements, o.Values...)
		case SeqDelete:
			idx, count := o.Index, o.Count
			if idx < 0 || count < 0 || idx+count > len(elements) {
				if mode != Clobber {
					return nil, newOutOfBoundsError("sequence", idx+count, len(elements))
				}
				idx = clampIndex(idx, len(elements))
				if idx+count > len(elements) {
					count = len(elements) - idx
				}
			}
			out := make([]DynamicValue, 0, len(elements)-count)
			out = append(out, elements[:idx]...)
			out = append(out, elements[idx+count:]...)
			elements = out
		case SeqModify:
			if o.Index < 0 || o.Index >= len(elements) {
				return nil, newOutOfBoundsError("sequence", o.Index, len(elements))
			}
			nv, err := applyOperation(elements[o.Index], o.Op, mode, reg)
			if err != nil {
				return nil, pushTrace(err, AtIndex{Index: o.Index})
			}
			elements[o.Index] = nv
		}
	}
	return &Sequence{Elements: elements}, nil
}

func applyMapEdit(m *Map, ops []MapOp, mode PatchMode, reg *SchemaRegistry) (DynamicValue, error) {
	entries := append([]MapEntry(nil), m.Entries...)
	for _, op := range ops {
		switch o := op.(type) {
		case MapAdd:
			idx := indexOfKey(entries, o.Key)
			if idx >= 0 {
				if mode != Clobber {
					return nil, newValidationError("map already has key %s", Render(o.Key))
				}
				entries[idx].Value = o.Value
				continue
			}
			entries = append(entries, MapEntry{Key: o.Key, Value: o.Value})
		case MapRemove:
			idx := indexOfKey(entries, o.Key)
			if idx < 0 {
				if mode == Clobber {
					continue
				}
				return nil, newValidationError("map has no key %s", Render(o.Key))
			}
			entries = append(entries[:idx], entries[idx+1:]...)
		case MapModify:
			idx := indexOfKey(entries, o.Key)
			if idx < 0 {
				return nil, newValidationError("map has no key %s", Render(o.Key))
			}
			nv, err := o.Patch.ApplyWithSchemas(entries[idx].Value, mode, reg)
			if err != nil {
				return nil, pushTrace(err, AtMapKey{Key: o.Key})
			}
			entries[idx].Value = nv
		}
	}
	return &Map{Entries: entries}, nil
}

func indexOfKey(entries []MapEntry, key DynamicValue) int {
	for i, e := range entries {
		if Equal(e.Key, key) {
			return i
		}
	}
	return -1
}

func clampIndex(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}
