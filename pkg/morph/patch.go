package morph

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PatchMode selects how patch application reacts to failures.
type PatchMode int

const (
	// Strict aborts on the first navigation or application error.
	Strict PatchMode = iota

	// Lenient skips an erroring operation and continues with the state
	// from before it.
	Lenient

	// Clobber coerces where possible: indices clamp, map adds overwrite,
	// map removes on missing keys are no-ops. Errors that cannot be
	// coerced away behave like Lenient.
	Clobber
)

// String returns the mode name.
func (m PatchMode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Lenient:
		return "lenient"
	case Clobber:
		return "clobber"
	}
	return "unknown"
}

// ParsePatchMode resolves a mode name.
func ParsePatchMode(s string) (PatchMode, error) {
	switch s {
	case "strict":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	case "clobber":
		return Clobber, nil
	}
	return Strict, newValidationError("unknown patch mode '%s'", s)
}

// Patch is an ordered sequence of path-scoped operations. Operations apply
// in declared order, each seeing the state produced by its predecessors.
// Patches form a monoid under Concat with Empty as identity.
type Patch struct {
	Ops []PatchOp
}

// PatchOp pairs a path with the operation to apply there.
type PatchOp struct {
	Path Optic
	Op   Operation
}

// EmptyPatch returns the identity patch.
func EmptyPatch() Patch { return Patch{} }

// IsEmpty reports whether the patch holds no operations.
func (p Patch) IsEmpty() bool { return len(p.Ops) == 0 }

// Concat appends another patch's operations after this one's.
func (p Patch) Concat(other Patch) Patch {
	ops := make([]PatchOp, 0, len(p.Ops)+len(other.Ops))
	ops = append(ops, p.Ops...)
	ops = append(ops, other.Ops...)
	return Patch{Ops: ops}
}

// Append adds one operation.
func (p Patch) Append(path Optic, op Operation) Patch {
	ops := make([]PatchOp, 0, len(p.Ops)+1)
	ops = append(ops, p.Ops...)
	ops = append(ops, PatchOp{Path: path, Op: op})
	return Patch{Ops: ops}
}

// Operation is a localized edit. Closed union: Set, PrimitiveDelta,
// SequenceEdit, MapEdit, NestedPatch.
type Operation interface {
	isOperation()
}

// Set replaces the value at the path entirely.
type Set struct {
	Value DynamicValue
}

// PrimitiveDelta applies an additive delta to a typed primitive.
type PrimitiveDelta struct {
	Op PrimitiveOp
}

// SequenceEdit applies sub-edits to a sequence, in order.
type SequenceEdit struct {
	Ops []SeqOp
}

// MapEdit applies sub-edits to a map, in order.
type MapEdit struct {
	Ops []MapOp
}

// NestedPatch applies an inner patch rooted at the outer path; the inner
// operations' paths are relative to that root.
type NestedPatch struct {
	Patch Patch
}

func (Set) isOperation()            {}
func (PrimitiveDelta) isOperation() {}
func (SequenceEdit) isOperation()   {}
func (MapEdit) isOperation()        {}
func (NestedPatch) isOperation()    {}

// PrimitiveOp is a typed delta over one primitive kind. Closed union.
type PrimitiveOp interface {
	isPrimitiveOp()
}

// Int8Delta adds to an int8 with wrapping two's-complement arithmetic.
type Int8Delta struct{ Delta int8 }

// Int16Delta adds to an int16 with wrapping arithmetic.
type Int16Delta struct{ Delta int16 }

// Int32Delta adds to an int32 with wrapping arithmetic.
type Int32Delta struct{ Delta int32 }

// Int64Delta adds to an int64 with wrapping arithmetic.
type Int64Delta struct{ Delta int64 }

// Float32Delta adds to a float32.
type Float32Delta struct{ Delta float32 }

// Float64Delta adds to a float64.
type Float64Delta struct{ Delta float64 }

// BigIntDelta adds to a big integer.
type BigIntDelta struct{ Delta *big.Int }

// BigDecimalDelta adds to a big decimal.
type BigDecimalDelta struct{ Delta decimal.Decimal }

// InstantDelta shifts an instant by a duration.
type InstantDelta struct{ Delta time.Duration }

// DurationDelta adds to a duration.
type DurationDelta struct{ Delta time.Duration }

// LocalDateDelta walks a local date by a calendar period.
type LocalDateDelta struct{ Delta Period }

// LocalDateTimeDelta shifts a local date-time by a duration.
type LocalDateTimeDelta struct{ Delta time.Duration }

// PeriodDelta adds to a period component-wise.
type PeriodDelta struct{ Delta Period }

// StringEdit applies an ordered stream of string operations. Each index is
// interpreted against the intermediate string produced by the operations
// before it.
type StringEdit struct{ Ops []StringOp }

func (Int8Delta) isPrimitiveOp()          {}
func (Int16Delta) isPrimitiveOp()         {}
func (Int32Delta) isPrimitiveOp()         {}
func (Int64Delta) isPrimitiveOp()         {}
func (Float32Delta) isPrimitiveOp()       {}
func (Float64Delta) isPrimitiveOp()       {}
func (BigIntDelta) isPrimitiveOp()        {}
func (BigDecimalDelta) isPrimitiveOp()    {}
func (InstantDelta) isPrimitiveOp()       {}
func (DurationDelta) isPrimitiveOp()      {}
func (LocalDateDelta) isPrimitiveOp()     {}
func (LocalDateTimeDelta) isPrimitiveOp() {}
func (PeriodDelta) isPrimitiveOp()        {}
func (StringEdit) isPrimitiveOp()         {}

// StringOp is one edit of a string. Closed union.
type StringOp interface {
	isStringOp()
}

// StringInsert inserts text at a rune index.
type StringInsert struct {
	Index int
	Text  string
}

// StringDelete removes Length runes starting at Index.
type StringDelete struct {
	Index  int
	Length int
}

// StringAppend appends text.
type StringAppend struct {
	Text string
}

// StringModify replaces Length runes at Index with Text.
type StringModify struct {
	Index  int
	Length int
	Text   string
}

func (StringInsert) isStringOp() {}
func (StringDelete) isStringOp() {}
func (StringAppend) isStringOp() {}
func (StringModify) isStringOp() {}

// SeqOp is one edit of a sequence. Closed union.
type SeqOp interface {
	isSeqOp()
}

// SeqInsert inserts values before Index.
type SeqInsert struct {
	Index  int
	Values []DynamicValue
}

// SeqAppend appends values.
type SeqAppend struct {
	Values []DynamicValue
}

// SeqDelete removes Count elements starting at Index.
type SeqDelete struct {
	Index int
	Count int
}

// SeqModify applies an operation to the element at Index.
type SeqModify struct {
	Index int
	Op    Operation
}

func (SeqInsert) isSeqOp() {}
func (SeqAppend) isSeqOp() {}
func (SeqDelete) isSeqOp() {}
func (SeqModify) isSeqOp() {}

// MapOp is one edit of a map. Closed union.
type MapOp interface {
	isMapOp()
}

// MapAdd appends a new entry. Strict/Lenient error on an existing key;
// Clobber overwrites in place.
type MapAdd struct {
	Key   DynamicValue
	Value DynamicValue
}

// MapRemove deletes the entry under Key, compacting the remainder.
type MapRemove struct {
	Key DynamicValue
}

// MapModify applies a nested patch to the value under Key.
type MapModify struct {
	Key   DynamicValue
	Patch Patch
}

func (MapAdd) isMapOp()    {}
func (MapRemove) isMapOp() {}
func (MapModify) isMapOp() {}

// Render produces the deterministic human-readable form of a patch. This is
// a debugging surface, never an interchange format; JSON is the wire form.
func (p Patch) Render() string {
	var b strings.Builder
	renderPatchOps(&b, p, 0)
	return b.String()
}

func renderPatchOps(b *strings.Builder, p Patch, indent int) {
	for _, op := range p.Ops {
		renderOperation(b, op.Path.Render(), op.Op, indent)
	}
}

func renderOperation(b *strings.Builder, path string, op Operation, indent int) {
	pad := strings.Repeat("  ", indent)
	switch o := op.(type) {
	case Set:
		fmt.Fprintf(b, "%s%s = %s\n", pad, path, Render(o.Value))
	case PrimitiveDelta:
		renderPrimitiveOp(b, pad, path, o.Op, indent)
	case SequenceEdit:
		fmt.Fprintf(b, "%s%s:\n", pad, path)
		for _, so := range o.Ops {
			renderSeqOp(b, so, indent+1)
		}
	case MapEdit:
		fmt.Fprintf(b, "%s%s:\n", pad, path)
		for _, mo := range o.Ops {
			renderMapOp(b, mo, indent+1)
		}
	case NestedPatch:
		fmt.Fprintf(b, "%s%s:\n", pad, path)
		renderPatchOps(b, o.Patch, indent+1)
	}
}

func renderPrimitiveOp(b *strings.Builder, pad, path string, op PrimitiveOp, indent int) {
	signed := func(s string, negative bool) {
		if negative {
			fmt.Fprintf(b, "%s%s -= %s\n", pad, path, s)
		} else {
			fmt.Fprintf(b, "%s%s += %s\n", pad, path, s)
		}
	}
	switch o := op.(type) {
	case Int8Delta:
		signed(strconv.FormatInt(absInt64(int64(o.Delta)), 10), o.Delta < 0)
	case Int16Delta:
		signed(strconv.FormatInt(absInt64(int64(o.Delta)), 10), o.Delta < 0)
	case Int32Delta:
		signed(strconv.FormatInt(absInt64(int64(o.Delta)), 10), o.Delta < 0)
	case Int64Delta:
		signed(strconv.FormatInt(absInt64(o.Delta), 10), o.Delta < 0)
	case Float32Delta:
		signed(strconv.FormatFloat(absFloat(float64(o.Delta)), 'g', -1, 32), o.Delta < 0)
	case Float64Delta:
		signed(strconv.FormatFloat(absFloat(o.Delta), 'g', -1, 64), o.Delta < 0)
	case BigIntDelta:
		signed(new(big.Int).Abs(o.Delta).String(), o.Delta.Sign() < 0)
	case BigDecimalDelta:
		signed(o.Delta.Abs().String(), o.Delta.Sign() < 0)
	case InstantDelta:
		fmt.Fprintf(b, "%s%s += %s\n", pad, path, o.Delta)
	case DurationDelta:
		fmt.Fprintf(b, "%s%s += %s\n", pad, path, o.Delta)
	case LocalDateDelta:
		fmt.Fprintf(b, "%s%s += %s\n", pad, path, o.Delta)
	case LocalDateTimeDelta:
		fmt.Fprintf(b, "%s%s += %s\n", pad, path, o.Delta)
	case PeriodDelta:
		fmt.Fprintf(b, "%s%s += %s\n", pad, path, o.Delta)
	case StringEdit:
		fmt.Fprintf(b, "%s%s:\n", pad, path)
		inner := strings.Repeat("  ", indent+1)
		for _, so := range o.Ops {
			switch s := so.(type) {
			case StringInsert:
				fmt.Fprintf(b, "%s+ [%d: %s]\n", inner, s.Index, quoteString(s.Text))
			case StringDelete:
				fmt.Fprintf(b, "%s- [%d, %d]\n", inner, s.Index, s.Length)
			case StringAppend:
				fmt.Fprintf(b, "%s+ %s\n", inner, quoteString(s.Text))
			case StringModify:
				fmt.Fprintf(b, "%s~ [%d, %d: %s]\n", inner, s.Index, s.Length, quoteString(s.Text))
			}
		}
	}
}

func renderSeqOp(b *strings.Builder, op SeqOp, indent int) {
	pad := strings.Repeat("  ", indent)
	switch o := op.(type) {
	case SeqInsert:
		for i, v := range o.Values {
			fmt.Fprintf(b, "%s+ [%d: %s]\n", pad, o.Index+i, Render(v))
		}
	case SeqAppend:
		for _, v := range o.Values {
			fmt.Fprintf(b, "%s+ %s\n", pad, Render(v))
		}
	case SeqDelete:
		if o.Count == 1 {
			fmt.Fprintf(b, "%s- [%d]\n", pad, o.Index)
		} else {
			idx := make([]string, o.Count)
			for i := 0; i < o.Count; i++ {
				idx[i] = strconv.Itoa(o.Index + i)
			}
			fmt.Fprintf(b, "%s- [%s]\n", pad, strings.Join(idx, ", "))
		}
	case SeqModify:
		if set, ok := o.Op.(Set); ok {
			fmt.Fprintf(b, "%s~ [%d: %s]\n", pad, o.Index, Render(set.Value))
		} else {
			fmt.Fprintf(b, "%s~ [%d]:\n", pad, o.Index)
			renderOperation(b, "$", o.Op, indent+1)
		}
	}
}

func renderMapOp(b *strings.Builder, op MapOp, indent int) {
	pad := strings.Repeat("  ", indent)
	switch o := op.(type) {
	case MapAdd:
		fmt.Fprintf(b, "%s+ {%s: %s}\n", pad, renderMapKey(o.Key), Render(o.Value))
	case MapRemove:
		fmt.Fprintf(b, "%s- {%s}\n", pad, renderMapKey(o.Key))
	case MapModify:
		fmt.Fprintf(b, "%s~ {%s}:\n", pad, renderMapKey(o.Key))
		renderPatchOps(b, o.Patch, indent+1)
	}
}

func absInt64(i int64) int64 {
	if i < 0 {
		return -i
	}
	return i
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
