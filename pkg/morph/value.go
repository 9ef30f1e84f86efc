package morph

import (
	"fmt"
	"strings"
)

// ValueKind identifies the top-level shape of a DynamicValue.
type ValueKind int

const (
	ValuePrimitive ValueKind = iota
	ValueRecord
	ValueSequence
	ValueMap
	ValueVariant
	ValueNull
)

// String returns the lexical name of the kind, used in error messages and
// structural-mismatch reports.
func (k ValueKind) String() string {
	switch k {
	case ValuePrimitive:
		return "primitive"
	case ValueRecord:
		return "record"
	case ValueSequence:
		return "sequence"
	case ValueMap:
		return "map"
	case ValueVariant:
		return "variant"
	case ValueNull:
		return "null"
	}
	return "unknown"
}

// DynamicValue is the universal tree representation every operation in this
// package works on. It is a closed union: Primitive, Record, Sequence, Map,
// Variant and Null are the only implementations. Values are immutable;
// every transformation builds a new tree sharing unchanged subtrees.
type DynamicValue interface {
	isDynamicValue()

	// ValueKind returns the shape discriminant.
	ValueKind() ValueKind
}

// RecordField is one named slot of a Record. Order is observable and field
// names are unique within a record.
type RecordField struct {
	Name  string
	Value DynamicValue
}

// Record is an ordered sequence of uniquely named fields.
type Record struct {
	Fields []RecordField
}

func (r *Record) isDynamicValue() {}

// ValueKind implements DynamicValue.
func (r *Record) ValueKind() ValueKind { return ValueRecord }

// NewRecord builds a record from fields. Field-name uniqueness is the
// caller's invariant to keep; use Set for safe updates.
func NewRecord(fields ...RecordField) *Record {
	return &Record{Fields: fields}
}

// F is shorthand for a record field.
func F(name string, v DynamicValue) RecordField {
	return RecordField{Name: name, Value: v}
}

// Get returns the value of the named field.
func (r *Record) Get(name string) (DynamicValue, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// IndexOf returns the position of the named field, or -1.
func (r *Record) IndexOf(name string) int {
	for i, f := range r.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Set returns a new record with the named field replaced in place, or
// appended when absent.
func (r *Record) Set(name string, v DynamicValue) *Record {
	fields := make([]RecordField, len(r.Fields))
	copy(fields, r.Fields)
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Value = v
			return &Record{Fields: fields}
		}
	}
	return &Record{Fields: append(fields, RecordField{Name: name, Value: v})}
}

// Without returns a new record with the named field removed.
func (r *Record) Without(name string) *Record {
	fields := make([]RecordField, 0, len(r.Fields))
	for _, f := range r.Fields {
		if f.Name != name {
			fields = append(fields, f)
		}
	}
	return &Record{Fields: fields}
}

// Sequence is an ordered list of dynamic values.
type Sequence struct {
	Elements []DynamicValue
}

func (s *Sequence) isDynamicValue() {}

// ValueKind implements DynamicValue.
func (s *Sequence) ValueKind() ValueKind { return ValueSequence }

// NewSequence builds a sequence from elements.
func NewSequence(elements ...DynamicValue) *Sequence {
	return &Sequence{Elements: elements}
}

// MapEntry is one key/value pair of a Map. Keys are unique within a map and
// entry order is observable.
type MapEntry struct {
	Key   DynamicValue
	Value DynamicValue
}

// Map is an ordered sequence of uniquely keyed entries.
type Map struct {
	Entries []MapEntry
}

func (m *Map) isDynamicValue() {}

// ValueKind implements DynamicValue.
func (m *Map) ValueKind() ValueKind { return ValueMap }

// NewMap builds a map from entries. Key uniqueness is the caller's invariant.
func NewMap(entries ...MapEntry) *Map {
	return &Map{Entries: entries}
}

// E is shorthand for a map entry.
func E(key, value DynamicValue) MapEntry {
	return MapEntry{Key: key, Value: value}
}

// Get returns the value stored under key.
func (m *Map) Get(key DynamicValue) (DynamicValue, bool) {
	for _, e := range m.Entries {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// IndexOf returns the position of the entry with the given key, or -1.
func (m *Map) IndexOf(key DynamicValue) int {
	for i, e := range m.Entries {
		if Equal(e.Key, key) {
			return i
		}
	}
	return -1
}

// Variant is a tagged sum holding a single named case and its payload.
type Variant struct {
	Case  string
	Value DynamicValue
}

func (v *Variant) isDynamicValue() {}

// ValueKind implements DynamicValue.
func (v *Variant) ValueKind() ValueKind { return ValueVariant }

// NewVariant builds a variant.
func NewVariant(caseName string, payload DynamicValue) *Variant {
	return &Variant{Case: caseName, Value: payload}
}

// Null is the distinct "no value" marker, used alongside the Some/None
// variant encoding of options.
type Null struct{}

func (Null) isDynamicValue() {}

// ValueKind implements DynamicValue.
func (Null) ValueKind() ValueKind { return ValueNull }

// NullValue returns the shared null.
func NullValue() DynamicValue { return Null{} }

// Options are encoded as variants: Some carries its payload in a single
// `value` field, None carries an empty record.
const (
	someCase       = "Some"
	noneCase       = "None"
	someValueField = "value"
)

// Some wraps v in the option encoding.
func Some(v DynamicValue) DynamicValue {
	return NewVariant(someCase, NewRecord(F(someValueField, v)))
}

// None returns the empty option.
func None() DynamicValue {
	return NewVariant(noneCase, NewRecord())
}

// UnwrapSome extracts the payload of a Some-encoded option.
func UnwrapSome(v DynamicValue) (DynamicValue, bool) {
	vr, ok := v.(*Variant)
	if !ok || vr.Case != someCase {
		return nil, false
	}
	rec, ok := vr.Value.(*Record)
	if !ok {
		return nil, false
	}
	return rec.Get(someValueField)
}

// IsNone reports whether v is the None variant or Null.
func IsNone(v DynamicValue) bool {
	if _, ok := v.(Null); ok {
		return true
	}
	vr, ok := v.(*Variant)
	return ok && vr.Case == noneCase
}

// Equal compares two dynamic values structurally.
func Equal(a, b DynamicValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ValueKind() != b.ValueKind() {
		return false
	}
	switch av := a.(type) {
	case *Primitive:
		return av.EqualPrimitive(b.(*Primitive))
	case *Record:
		bv := b.(*Record)
		if len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i := range av.Fields {
			if av.Fields[i].Name != bv.Fields[i].Name || !Equal(av.Fields[i].Value, bv.Fields[i].Value) {
				return false
			}
		}
		return true
	case *Sequence:
		bv := b.(*Sequence)
		if len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv := b.(*Map)
		if len(av.Entries) != len(bv.Entries) {
			return false
		}
		for i := range av.Entries {
			if !Equal(av.Entries[i].Key, bv.Entries[i].Key) || !Equal(av.Entries[i].Value, bv.Entries[i].Value) {
				return false
			}
		}
		return true
	case *Variant:
		bv := b.(*Variant)
		return av.Case == bv.Case && Equal(av.Value, bv.Value)
	case Null:
		return true
	}
	return false
}

// Render produces a compact single-line human-readable form of a value,
// used by the patch renderer and in error messages.
func Render(v DynamicValue) string {
	switch val := v.(type) {
	case *Primitive:
		if val.Kind == KindString {
			return quoteString(val.Str)
		}
		if val.Kind == KindChar {
			return "'" + string(rune(val.Int)) + "'"
		}
		return val.Text()
	case *Record:
		parts := make([]string, len(val.Fields))
		for i, f := range val.Fields {
			parts[i] = f.Name + ": " + Render(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Sequence:
		parts := make([]string, len(val.Elements))
		for i, e := range val.Elements {
			parts[i] = Render(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Map:
		parts := make([]string, len(val.Entries))
		for i, e := range val.Entries {
			parts[i] = Render(e.Key) + " -> " + Render(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Variant:
		return val.Case + "(" + Render(val.Value) + ")"
	case Null:
		return "null"
	}
	return fmt.Sprintf("<%v>", v)
}

// quoteString escapes per the debug-rendering rules: quote, backslash, the
// short control escapes, and \uXXXX for anything else below 0x20.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				b.WriteString(fmt.Sprintf(`\u%04X`, r))
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
