package morph

import (
	"math"
	"math/big"
)

// Diff computes a minimal patch turning old into new. When every record pair
// compared carries the same field names, Diff(a, b).Apply(a, Strict) == b for
// all finite values. Fields present only in the old record get no operation
// and stay in place; a field present only in the new record gets a Set at
// that field, which Strict application rejects as a missing field.
func Diff(old, new DynamicValue) Patch {
	return Patch{Ops: diffValue(old, new)}
}

// diffValue produces operations with paths relative to the values compared.
func diffValue(old, new DynamicValue) []PatchOp {
	if Equal(old, new) {
		return nil
	}
	if old.ValueKind() != new.ValueKind() {
		return []PatchOp{{Path: Root(), Op: Set{Value: new}}}
	}

	switch ov := old.(type) {
	case *Primitive:
		return diffPrimitive(ov, new.(*Primitive))

	case *Record:
		nv := new.(*Record)
		var ops []PatchOp
		for _, f := range nv.Fields {
			ofv, present := ov.Get(f.Name)
			if !present {
				// New-only field. Records are immutable-fields: old-only
				// names are left alone, new names are set outright.
				ops = append(ops, PatchOp{Path: Root().Field(f.Name), Op: Set{Value: f.Value}})
				continue
			}
			for _, inner := range diffValue(ofv, f.Value) {
				ops = append(ops, PatchOp{Path: inner.Path.Prepend(Field{Name: f.Name}), Op: inner.Op})
			}
		}
		return ops

	case *Sequence:
		nv := new.(*Sequence)
		edits := diffSequence(ov.Elements, nv.Elements)
		if len(edits) == 0 {
			return nil
		}
		return []PatchOp{{Path: Root(), Op: SequenceEdit{Ops: edits}}}

	case *Map:
		nv := new.(*Map)
		edits := diffMap(ov, nv)
		if len(edits) == 0 {
			return nil
		}
		return []PatchOp{{Path: Root(), Op: MapEdit{Ops: edits}}}

	case *Variant:
		nv := new.(*Variant)
		if ov.Case != nv.Case {
			return []PatchOp{{Path: Root(), Op: Set{Value: new}}}
		}
		var ops []PatchOp
		for _, inner := range diffValue(ov.Value, nv.Value) {
			ops = append(ops, PatchOp{Path: inner.Path.Prepend(Case{Name: ov.Case}), Op: inner.Op})
		}
		return ops
	}
	return []PatchOp{{Path: Root(), Op: Set{Value: new}}}
}

// diffPrimitive emits a typed delta when the kind supports one, falling back
// to Set. NaN on either side always forces Set.
func diffPrimitive(a, b *Primitive) []PatchOp {
	set := []PatchOp{{Path: Root(), Op: Set{Value: b}}}
	if a.Kind != b.Kind {
		return set
	}
	delta := func(op PrimitiveOp) []PatchOp {
		return []PatchOp{{Path: Root(), Op: PrimitiveDelta{Op: op}}}
	}
	switch a.Kind {
	case KindInt8:
		return delta(Int8Delta{Delta: int8(b.Int) - int8(a.Int)})
	case KindInt16:
		return delta(Int16Delta{Delta: int16(b.Int) - int16(a.Int)})
	case KindInt32:
		return delta(Int32Delta{Delta: int32(b.Int) - int32(a.Int)})
	case KindInt64:
		return delta(Int64Delta{Delta: b.Int - a.Int})
	case KindFloat32:
		if math.IsNaN(a.Flt) || math.IsNaN(b.Flt) {
			return set
		}
		return delta(Float32Delta{Delta: float32(b.Flt) - float32(a.Flt)})
	case KindFloat64:
		if math.IsNaN(a.Flt) || math.IsNaN(b.Flt) {
			return set
		}
		return delta(Float64Delta{Delta: b.Flt - a.Flt})
	case KindBigInt:
		return delta(BigIntDelta{Delta: new(big.Int).Sub(b.Big, a.Big)})
	case KindBigDecimal:
		return delta(BigDecimalDelta{Delta: b.Dec.Sub(a.Dec)})
	case KindString:
		return diffString(a.Str, b.Str)
	case KindInstant:
		return delta(InstantDelta{Delta: b.Time.Sub(a.Time)})
	case KindDuration:
		return delta(DurationDelta{Delta: b.Dur - a.Dur})
	case KindLocalDate:
		days := int(b.Time.Sub(a.Time).Hours() / 24)
		return delta(LocalDateDelta{Delta: Period{Days: days}})
	case KindLocalDateTime:
		return delta(LocalDateTimeDelta{Delta: b.Time.Sub(a.Time)})
	case KindPeriod:
		return delta(PeriodDelta{Delta: b.Per.Add(a.Per.Negate())})
	}
	return set
}

// diffString builds a StringEdit from the rune-level LCS and keeps it only
// when its edit cost (inserted characters, one per delete op, appended
// characters) strictly beats replacing the whole string.
func diffString(old, new string) []PatchOp {
	set := []PatchOp{{Path: Root(), Op: Set{Value: String(new)}}}
	or, nr := []rune(old), []rune(new)

	pairs := lcsPairs(len(or), len(nr), func(i, j int) bool { return or[i] == nr[j] })
	var ops []StringOp
	cost := 0
	cursor, oi, ni := 0, 0, 0
	for _, pair := range pairs {
		if pair.I > oi {
			ops = append(ops, StringDelete{Index: cursor, Length: pair.I - oi})
			cost++
		}
		if pair.J > ni {
			text := string(nr[ni:pair.J])
			ops = append(ops, StringInsert{Index: cursor, Text: text})
			cost += len(text)
			cursor += pair.J - ni
		}
		cursor++
		oi = pair.I + 1
		ni = pair.J + 1
	}
	if oi < len(or) {
		ops = append(ops, StringDelete{Index: cursor, Length: len(or) - oi})
		cost++
	}
	if ni < len(nr) {
		text := string(nr[ni:])
		ops = append(ops, StringAppend{Text: text})
		cost += len(text)
	}

	if len(ops) == 0 || cost >= len(new) {
		return set
	}
	return []PatchOp{{Path: Root(), Op: PrimitiveDelta{Op: StringEdit{Ops: ops}}}}
}

// diffSequence aligns by LCS and emits deletes for old-only runs, inserts
// for new-only runs, and a trailing append when new elements land past the
// end. The cursor tracks positions in the intermediate sequence so the edit
// stream replays correctly in order.
func diffSequence(old, new []DynamicValue) []SeqOp {
	if len(old) == 0 && len(new) == 0 {
		return nil
	}
	if len(old) == 0 {
		return []SeqOp{SeqAppend{Values: append([]DynamicValue(nil), new...)}}
	}
	if len(new) == 0 {
		return []SeqOp{SeqDelete{Index: 0, Count: len(old)}}
	}

	pairs := IndicesLCS(old, new, Equal)
	var ops []SeqOp
	cursor, oi, ni := 0, 0, 0
	for _, pair := range pairs {
		if pair.I > oi {
			ops = append(ops, SeqDelete{Index: cursor, Count: pair.I - oi})
		}
		if pair.J > ni {
			ops = append(ops, SeqInsert{Index: cursor, Values: append([]DynamicValue(nil), new[ni:pair.J]...)})
			cursor += pair.J - ni
		}
		cursor++
		oi = pair.I + 1
		ni = pair.J + 1
	}
	if oi < len(old) {
		ops = append(ops, SeqDelete{Index: cursor, Count: len(old) - oi})
	}
	if ni < len(new) {
		// After trailing deletes the cursor sits at the end, so this is
		// an append rather than an insert.
		ops = append(ops, SeqAppend{Values: append([]DynamicValue(nil), new[ni:]...)})
	}
	return ops
}

// diffMap emits removes for vanished keys, adds for new keys, and nested
// modifies for changed values, preserving entry order within each group.
func diffMap(old, new *Map) []MapOp {
	var ops []MapOp
	for _, e := range old.Entries {
		if _, present := new.Get(e.Key); !present {
			ops = append(ops, MapRemove{Key: e.Key})
		}
	}
	for _, e := range new.Entries {
		if _, present := old.Get(e.Key); !present {
			ops = append(ops, MapAdd{Key: e.Key, Value: e.Value})
		}
	}
	for _, e := range old.Entries {
		nv, present := new.Get(e.Key)
		if !present || Equal(e.Value, nv) {
			continue
		}
		ops = append(ops, MapModify{Key: e.Key, Patch: Patch{Ops: diffValue(e.Value, nv)}})
	}
	return ops
}
