package morph

import (
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/wayneeseguin/morph/log"
)

// Resolved is the serializable expression language migration actions carry.
// Every variant is pure data: no closures, no IO, fully JSON round-trippable.
// Eval receives the expression input (nil when the expression is input-free)
// and the root of the tree being migrated, for cross-branch reads.
type Resolved interface {
	isResolved()

	// Eval evaluates the expression against input, with root available for
	// RootAccess. Either may be nil; variants that need a missing argument
	// fail with an evaluation error.
	Eval(input, root DynamicValue) (DynamicValue, error)
}

// EvalExpr evaluates r with the input doubling as root.
func EvalExpr(r Resolved, input DynamicValue) (DynamicValue, error) {
	return r.Eval(input, input)
}

// Literal always yields its value, ignoring input.
type Literal struct {
	Value DynamicValue
}

// Identity yields its input unchanged.
type Identity struct{}

// FieldAccess evaluates Inner to a record and extracts the named field.
type FieldAccess struct {
	Name  string
	Inner Resolved
}

// OpticAccess selects exactly one match of Path from the input, then
// applies Inner to it.
type OpticAccess struct {
	Path  Optic
	Inner Resolved
}

// RootAccess selects exactly one match of Path from the root.
type RootAccess struct {
	Path Optic
}

// DefaultValue yields a schema-supplied default, or fails with the recorded
// message when the schema had none.
type DefaultValue struct {
	Value DynamicValue
	Msg   string
}

// Convert reinterprets a primitive between the named kinds.
type Convert struct {
	From  string
	To    string
	Inner Resolved
}

// Concat evaluates every part, coerces primitives to their canonical string
// form, and joins with Sep. Legal without input iff every part is
// input-free.
type Concat struct {
	Parts []Resolved
	Sep   string
}

// SplitString splits a string into a sequence of strings on the literal
// separator.
type SplitString struct {
	Sep   string
	Inner Resolved
}

// At extracts the element at Index from a sequence.
type At struct {
	Index int
	Inner Resolved
}

// WrapSome wraps the result in the Some option encoding.
type WrapSome struct {
	Inner Resolved
}

// UnwrapOption unwraps Some to its payload and evaluates Fallback for
// None or Null.
type UnwrapOption struct {
	Inner    Resolved
	Fallback Resolved
}

// Compose applies Inner first, then Outer to its result.
type Compose struct {
	Outer Resolved
	Inner Resolved
}

// Fail always errors with its message.
type Fail struct {
	Msg string
}

// ConstructField names one field of a Construct.
type ConstructField struct {
	Name  string
	Value Resolved
}

// Construct builds a record by evaluating every field expression.
type Construct struct {
	Fields []ConstructField
}

// ConstructSeq builds a sequence by evaluating every element expression.
type ConstructSeq struct {
	Elements []Resolved
}

// Head extracts the first element of a sequence.
type Head struct {
	Inner Resolved
}

// JoinStrings joins the string elements of a sequence with Sep.
type JoinStrings struct {
	Sep   string
	Inner Resolved
}

// Coalesce tries alternatives in order, skipping failures and None results,
// and yields the first Some payload or plain value.
type Coalesce struct {
	Alts []Resolved
}

// GetOrElse unwraps Some and passes plain values through; None, Null and
// failures fall back.
type GetOrElse struct {
	Primary  Resolved
	Fallback Resolved
}

// Calc evaluates an arithmetic/comparison expression over the primitive
// input, bound as `value`. The expression source is the serialized form, so
// Calc stays pure data. Not reversible.
type Calc struct {
	Expr string
}

func (Literal) isResolved()      {}
func (Identity) isResolved()     {}
func (FieldAccess) isResolved()  {}
func (OpticAccess) isResolved()  {}
func (RootAccess) isResolved()   {}
func (DefaultValue) isResolved() {}
func (Convert) isResolved()      {}
func (Concat) isResolved()       {}
func (SplitString) isResolved()  {}
func (At) isResolved()           {}
func (WrapSome) isResolved()     {}
func (UnwrapOption) isResolved() {}
func (Compose) isResolved()      {}
func (Fail) isResolved()         {}
func (Construct) isResolved()    {}
func (ConstructSeq) isResolved() {}
func (Head) isResolved()         {}
func (JoinStrings) isResolved()  {}
func (Coalesce) isResolved()     {}
func (GetOrElse) isResolved()    {}
func (Calc) isResolved()         {}

// Eval implements Resolved.
func (e Literal) Eval(input, root DynamicValue) (DynamicValue, error) {
	return e.Value, nil
}

// Eval implements Resolved.
func (Identity) Eval(input, root DynamicValue) (DynamicValue, error) {
	if input == nil {
		return nil, newEvaluationError("identity requires an input value")
	}
	return input, nil
}

// Eval implements Resolved.
func (e FieldAccess) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*Record)
	if !ok {
		return nil, newEvaluationError("field access .%s needs a record, got %s", e.Name, v.ValueKind())
	}
	fv, present := rec.Get(e.Name)
	if !present {
		return nil, newEvaluationError("record has no field '%s'", e.Name)
	}
	return fv, nil
}

// Eval implements Resolved.
func (e OpticAccess) Eval(input, root DynamicValue) (DynamicValue, error) {
	if input == nil {
		return nil, newEvaluationError("optic access %s requires an input value", e.Path.Render())
	}
	sel, err := Select(input, e.Path)
	if err != nil {
		return nil, err
	}
	v, err := sel.One()
	if err != nil {
		return nil, err
	}
	return e.Inner.Eval(v, root)
}

// Eval implements Resolved.
func (e RootAccess) Eval(input, root DynamicValue) (DynamicValue, error) {
	if root == nil {
		return nil, newEvaluationError("root access %s requires a root value", e.Path.Render())
	}
	sel, err := Select(root, e.Path)
	if err != nil {
		return nil, err
	}
	return sel.One()
}

// Eval implements Resolved.
func (e DefaultValue) Eval(input, root DynamicValue) (DynamicValue, error) {
	if e.Msg != "" {
		return nil, newEvaluationError("%s", e.Msg)
	}
	if e.Value == nil {
		return nil, newEvaluationError("no default value available")
	}
	return e.Value, nil
}

// Eval implements Resolved.
func (e Convert) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	p, ok := v.(*Primitive)
	if !ok {
		return nil, newEvaluationError("convert needs a primitive, got %s", v.ValueKind())
	}
	return ConvertPrimitive(e.From, e.To, p)
}

// Eval implements Resolved.
func (e Concat) Eval(input, root DynamicValue) (DynamicValue, error) {
	parts := make([]string, len(e.Parts))
	for i, part := range e.Parts {
		v, err := part.Eval(input, root)
		if err != nil {
			return nil, err
		}
		p, ok := v.(*Primitive)
		if !ok {
			return nil, newEvaluationError("concat part %d is not a primitive", i)
		}
		parts[i] = p.Text()
	}
	return String(strings.Join(parts, e.Sep)), nil
}

// Eval implements Resolved.
func (e SplitString) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	p, ok := v.(*Primitive)
	if !ok || p.Kind != KindString {
		return nil, newEvaluationError("split needs a string input")
	}
	// The separator is literal; meta-characters are never re-interpreted.
	pieces := strings.Split(p.Str, e.Sep)
	elements := make([]DynamicValue, len(pieces))
	for i, s := range pieces {
		elements[i] = String(s)
	}
	return NewSequence(elements...), nil
}

// Eval implements Resolved.
func (e At) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	seq, ok := v.(*Sequence)
	if !ok {
		return nil, newEvaluationError("at(%d) needs a sequence, got %s", e.Index, v.ValueKind())
	}
	if e.Index < 0 || e.Index >= len(seq.Elements) {
		return nil, newEvaluationError("index %d out of bounds (length %d)", e.Index, len(seq.Elements))
	}
	return seq.Elements[e.Index], nil
}

// Eval implements Resolved.
func (e WrapSome) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	return Some(v), nil
}

// Eval implements Resolved.
func (e UnwrapOption) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	if payload, ok := UnwrapSome(v); ok {
		return payload, nil
	}
	if IsNone(v) {
		return e.Fallback.Eval(input, root)
	}
	return nil, newEvaluationError("unwrap needs an option, got %s", v.ValueKind())
}

// Eval implements Resolved.
func (e Compose) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	return e.Outer.Eval(v, root)
}

// Eval implements Resolved.
func (e Fail) Eval(input, root DynamicValue) (DynamicValue, error) {
	return nil, newEvaluationError("%s", e.Msg)
}

// Eval implements Resolved.
func (e Construct) Eval(input, root DynamicValue) (DynamicValue, error) {
	fields := make([]RecordField, len(e.Fields))
	for i, f := range e.Fields {
		v, err := f.Value.Eval(input, root)
		if err != nil {
			return nil, err
		}
		fields[i] = RecordField{Name: f.Name, Value: v}
	}
	return NewRecord(fields...), nil
}

// Eval implements Resolved.
func (e ConstructSeq) Eval(input, root DynamicValue) (DynamicValue, error) {
	elements := make([]DynamicValue, len(e.Elements))
	for i, el := range e.Elements {
		v, err := el.Eval(input, root)
		if err != nil {
			return nil, err
		}
		elements[i] = v
	}
	return NewSequence(elements...), nil
}

// Eval implements Resolved.
func (e Head) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	seq, ok := v.(*Sequence)
	if !ok {
		return nil, newEvaluationError("head needs a sequence, got %s", v.ValueKind())
	}
	if len(seq.Elements) == 0 {
		return nil, newEvaluationError("head of an empty sequence")
	}
	return seq.Elements[0], nil
}

// Eval implements Resolved.
func (e JoinStrings) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Inner.Eval(input, root)
	if err != nil {
		return nil, err
	}
	seq, ok := v.(*Sequence)
	if !ok {
		return nil, newEvaluationError("join needs a sequence, got %s", v.ValueKind())
	}
	parts := make([]string, len(seq.Elements))
	for i, el := range seq.Elements {
		p, ok := el.(*Primitive)
		if !ok {
			return nil, newEvaluationError("join element %d is not a primitive", i)
		}
		parts[i] = p.Text()
	}
	return String(strings.Join(parts, e.Sep)), nil
}

// Eval implements Resolved.
func (e Coalesce) Eval(input, root DynamicValue) (DynamicValue, error) {
	if len(e.Alts) == 0 {
		return nil, newEvaluationError("coalesce over no alternatives")
	}
	for _, alt := range e.Alts {
		v, err := alt.Eval(input, root)
		if err != nil {
			log.DEBUG("coalesce: skipping failed alternative: %s", err)
			continue
		}
		if IsNone(v) {
			continue
		}
		if payload, ok := UnwrapSome(v); ok {
			return payload, nil
		}
		return v, nil
	}
	return nil, newEvaluationError("coalesce exhausted every alternative")
}

// Eval implements Resolved.
func (e GetOrElse) Eval(input, root DynamicValue) (DynamicValue, error) {
	v, err := e.Primary.Eval(input, root)
	if err != nil || v == nil || IsNone(v) {
		return e.Fallback.Eval(input, root)
	}
	if payload, ok := UnwrapSome(v); ok {
		return payload, nil
	}
	return v, nil
}

// Eval implements Resolved.
func (e Calc) Eval(input, root DynamicValue) (DynamicValue, error) {
	expr, err := govaluate.NewEvaluableExpression(e.Expr)
	if err != nil {
		return nil, newEvaluationError("calc: bad expression '%s': %s", e.Expr, err)
	}
	params := map[string]interface{}{}
	if input != nil {
		p, ok := input.(*Primitive)
		if !ok {
			return nil, newEvaluationError("calc needs a primitive input, got %s", input.ValueKind())
		}
		switch p.Kind {
		case KindBool:
			params["value"] = p.Bool
		case KindInt8, KindInt16, KindInt32, KindInt64:
			params["value"] = float64(p.Int)
		case KindFloat32, KindFloat64:
			params["value"] = p.Flt
		case KindString:
			params["value"] = p.Str
		default:
			return nil, newEvaluationError("calc cannot bind a %s input", p.Kind)
		}
	}
	out, err := expr.Evaluate(params)
	if err != nil {
		return nil, newEvaluationError("calc: %s", err)
	}
	switch r := out.(type) {
	case bool:
		return Bool(r), nil
	case float64:
		return Float64(r), nil
	case string:
		return String(r), nil
	}
	return nil, newEvaluationError("calc produced an unsupported %T", out)
}
