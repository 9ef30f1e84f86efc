package morph

import (
	"strconv"
	"strings"
)

// Node is one navigation step of an Optic. Nodes are pure serializable data;
// the closed set of implementations below is the entire algebra.
type Node interface {
	isNode()

	// Render returns the path-syntax form of the node (see ParseOptic for
	// the grammar). Nodes without surface syntax render a stable debug form.
	Render() string
}

// Field descends into a record's named field.
type Field struct {
	Name string
}

// Case descends into a variant's payload when the case matches.
type Case struct {
	Name string
}

// AtIndex descends into a single sequence position.
type AtIndex struct {
	Index int
}

// AtIndices selects several sequence positions (read-only contexts).
type AtIndices struct {
	Indices []int
}

// Elements traverses every element of a sequence.
type Elements struct{}

// AtMapKey descends into the map value stored under Key.
type AtMapKey struct {
	Key DynamicValue
}

// AtMapKeys selects the map values under several keys (read-only contexts).
type AtMapKeys struct {
	Keys []DynamicValue
}

// MapKeys traverses every key of a map.
type MapKeys struct{}

// MapValues traverses every value of a map.
type MapValues struct{}

// Wrapped is a transparent pass-through for single-field wrapper types.
type Wrapped struct{}

// SearchSchema descends into every subvalue whose structural shape matches
// the pattern.
type SearchSchema struct {
	Pattern Pattern
}

// TypeSearch descends into every subvalue of the named nominal type. It
// requires external schema context; without one it cannot match.
type TypeSearch struct {
	TypeID string
}

func (Field) isNode()        {}
func (Case) isNode()         {}
func (AtIndex) isNode()      {}
func (AtIndices) isNode()    {}
func (Elements) isNode()     {}
func (AtMapKey) isNode()     {}
func (AtMapKeys) isNode()    {}
func (MapKeys) isNode()      {}
func (MapValues) isNode()    {}
func (Wrapped) isNode()      {}
func (SearchSchema) isNode() {}
func (TypeSearch) isNode()   {}

// Render implements Node.
func (n Field) Render() string { return "." + n.Name }

// Render implements Node.
func (n Case) Render() string { return "/" + n.Name }

// Render implements Node.
func (n AtIndex) Render() string { return "[" + strconv.Itoa(n.Index) + "]" }

// Render implements Node.
func (n AtIndices) Render() string {
	parts := make([]string, len(n.Indices))
	for i, idx := range n.Indices {
		parts[i] = strconv.Itoa(idx)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Render implements Node.
func (Elements) Render() string { return "[*]" }

// Render implements Node.
func (n AtMapKey) Render() string { return "@" + renderMapKey(n.Key) }

// Render implements Node.
func (n AtMapKeys) Render() string {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		parts[i] = renderMapKey(k)
	}
	return "@[" + strings.Join(parts, ",") + "]"
}

// Render implements Node.
func (MapKeys) Render() string { return "@keys" }

// Render implements Node.
func (MapValues) Render() string { return "@values" }

// Render implements Node.
func (Wrapped) Render() string { return "^" }

// Render implements Node.
func (n SearchSchema) Render() string {
	if p, ok := n.Pattern.(PrimitivePattern); ok {
		return "#" + p.Name
	}
	return "<" + n.Pattern.renderPattern() + ">"
}

// Render implements Node.
func (n TypeSearch) Render() string { return "#" + n.TypeID }

func renderMapKey(k DynamicValue) string {
	p, ok := k.(*Primitive)
	if !ok {
		return Render(k)
	}
	switch p.Kind {
	case KindString:
		return quoteString(p.Str)
	case KindChar:
		return "'" + string(rune(p.Int)) + "'"
	case KindBool:
		return strconv.FormatBool(p.Bool)
	default:
		return p.Text()
	}
}

// Optic is an ordered sequence of navigation nodes addressing zero or more
// subvalues of a dynamic tree. The zero Optic is the root path. Optics are
// values and never mutated; every builder returns a fresh one.
type Optic struct {
	Nodes []Node
}

// Root returns the empty path.
func Root() Optic { return Optic{} }

// NewOptic builds a path from nodes.
func NewOptic(nodes ...Node) Optic { return Optic{Nodes: nodes} }

// IsRoot reports whether the optic has no nodes.
func (o Optic) IsRoot() bool { return len(o.Nodes) == 0 }

// Then concatenates two paths.
func (o Optic) Then(other Optic) Optic {
	nodes := make([]Node, 0, len(o.Nodes)+len(other.Nodes))
	nodes = append(nodes, o.Nodes...)
	nodes = append(nodes, other.Nodes...)
	return Optic{Nodes: nodes}
}

// Append extends the path with one node.
func (o Optic) Append(n Node) Optic {
	nodes := make([]Node, 0, len(o.Nodes)+1)
	nodes = append(nodes, o.Nodes...)
	nodes = append(nodes, n)
	return Optic{Nodes: nodes}
}

// Prepend inserts one node before the path.
func (o Optic) Prepend(n Node) Optic {
	nodes := make([]Node, 0, len(o.Nodes)+1)
	nodes = append(nodes, n)
	nodes = append(nodes, o.Nodes...)
	return Optic{Nodes: nodes}
}

// Field descends into a record field.
func (o Optic) Field(name string) Optic { return o.Append(Field{Name: name}) }

// CaseOf descends into a variant case.
func (o Optic) CaseOf(name string) Optic { return o.Append(Case{Name: name}) }

// AtIndex descends into a sequence position.
func (o Optic) AtIndex(i int) Optic { return o.Append(AtIndex{Index: i}) }

// AtKey descends into a map value.
func (o Optic) AtKey(key DynamicValue) Optic { return o.Append(AtMapKey{Key: key}) }

// Elements traverses all sequence elements.
func (o Optic) Elements() Optic { return o.Append(Elements{}) }

// MapKeys traverses all map keys.
func (o Optic) MapKeys() Optic { return o.Append(MapKeys{}) }

// MapValues traverses all map values.
func (o Optic) MapValues() Optic { return o.Append(MapValues{}) }

// Search descends into every subvalue matching the pattern.
func (o Optic) Search(p Pattern) Optic { return o.Append(SearchSchema{Pattern: p}) }

// Parent splits off the last node, returning the prefix path and that node.
// The second result is nil for the root path.
func (o Optic) Parent() (Optic, Node) {
	if len(o.Nodes) == 0 {
		return o, nil
	}
	return Optic{Nodes: o.Nodes[:len(o.Nodes)-1]}, o.Nodes[len(o.Nodes)-1]
}

// Render returns the path-syntax form of the whole optic. The root path
// renders as "$".
func (o Optic) Render() string {
	if len(o.Nodes) == 0 {
		return "$"
	}
	var b strings.Builder
	for _, n := range o.Nodes {
		b.WriteString(n.Render())
	}
	return b.String()
}

// EqualOptic compares two paths structurally.
func EqualOptic(a, b Optic) bool {
	if len(a.Nodes) != len(b.Nodes) {
		return false
	}
	for i := range a.Nodes {
		if !equalNode(a.Nodes[i], b.Nodes[i]) {
			return false
		}
	}
	return true
}

func equalNode(a, b Node) bool {
	switch an := a.(type) {
	case Field:
		bn, ok := b.(Field)
		return ok && an.Name == bn.Name
	case Case:
		bn, ok := b.(Case)
		return ok && an.Name == bn.Name
	case AtIndex:
		bn, ok := b.(AtIndex)
		return ok && an.Index == bn.Index
	case AtIndices:
		bn, ok := b.(AtIndices)
		if !ok || len(an.Indices) != len(bn.Indices) {
			return false
		}
		for i := range an.Indices {
			if an.Indices[i] != bn.Indices[i] {
				return false
			}
		}
		return true
	case Elements:
		_, ok := b.(Elements)
		return ok
	case AtMapKey:
		bn, ok := b.(AtMapKey)
		return ok && Equal(an.Key, bn.Key)
	case AtMapKeys:
		bn, ok := b.(AtMapKeys)
		if !ok || len(an.Keys) != len(bn.Keys) {
			return false
		}
		for i := range an.Keys {
			if !Equal(an.Keys[i], bn.Keys[i]) {
				return false
			}
		}
		return true
	case MapKeys:
		_, ok := b.(MapKeys)
		return ok
	case MapValues:
		_, ok := b.(MapValues)
		return ok
	case Wrapped:
		_, ok := b.(Wrapped)
		return ok
	case SearchSchema:
		bn, ok := b.(SearchSchema)
		return ok && equalPattern(an.Pattern, bn.Pattern)
	case TypeSearch:
		bn, ok := b.(TypeSearch)
		return ok && an.TypeID == bn.TypeID
	}
	return false
}

// Pattern is the structural-shape algebra used by SearchSchema. Patterns
// match values by shape, not by identity.
type Pattern interface {
	isPattern()
	renderPattern() string
}

// PrimitivePattern matches a primitive whose kind name agrees.
type PrimitivePattern struct {
	Name string
}

// PatternField pairs a field name with the pattern its value must match.
type PatternField struct {
	Name    string
	Pattern Pattern
}

// RecordPattern matches a record containing all named fields with matching
// shapes. Extra fields on the value are allowed.
type RecordPattern struct {
	Fields []PatternField
}

// VariantPattern matches a variant whose case is among Cases.
type VariantPattern struct {
	Cases []string
}

// OptionalPattern matches Null, None, a Some payload matching Inner, or a
// value outside the option encoding that matches Inner.
type OptionalPattern struct {
	Inner Pattern
}

// SequencePattern matches a sequence whose elements all match Elem.
type SequencePattern struct {
	Elem Pattern
}

// MapPattern matches a map whose entries all match Key/Value.
type MapPattern struct {
	Key   Pattern
	Value Pattern
}

// NominalPattern names a nominal type; it never matches without external
// schema context.
type NominalPattern struct {
	Name string
}

// WildcardPattern matches any value, the whole tree included.
type WildcardPattern struct{}

func (PrimitivePattern) isPattern() {}
func (RecordPattern) isPattern()    {}
func (VariantPattern) isPattern()   {}
func (OptionalPattern) isPattern()  {}
func (SequencePattern) isPattern()  {}
func (MapPattern) isPattern()       {}
func (NominalPattern) isPattern()   {}
func (WildcardPattern) isPattern()  {}

func (p PrimitivePattern) renderPattern() string { return p.Name }

func (p RecordPattern) renderPattern() string {
	parts := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		parts[i] = f.Name + ": " + f.Pattern.renderPattern()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (p VariantPattern) renderPattern() string {
	return "(" + strings.Join(p.Cases, "|") + ")"
}

func (p OptionalPattern) renderPattern() string {
	return "option<" + p.Inner.renderPattern() + ">"
}

func (p SequencePattern) renderPattern() string {
	return "[" + p.Elem.renderPattern() + "]"
}

func (p MapPattern) renderPattern() string {
	return "{" + p.Key.renderPattern() + " -> " + p.Value.renderPattern() + "}"
}

func (p NominalPattern) renderPattern() string { return "!" + p.Name }

func (WildcardPattern) renderPattern() string { return "_" }

func equalPattern(a, b Pattern) bool {
	switch ap := a.(type) {
	case PrimitivePattern:
		bp, ok := b.(PrimitivePattern)
		return ok && ap.Name == bp.Name
	case RecordPattern:
		bp, ok := b.(RecordPattern)
		if !ok || len(ap.Fields) != len(bp.Fields) {
			return false
		}
		for i := range ap.Fields {
			if ap.Fields[i].Name != bp.Fields[i].Name || !equalPattern(ap.Fields[i].Pattern, bp.Fields[i].Pattern) {
				return false
			}
		}
		return true
	case VariantPattern:
		bp, ok := b.(VariantPattern)
		if !ok || len(ap.Cases) != len(bp.Cases) {
			return false
		}
		for i := range ap.Cases {
			if ap.Cases[i] != bp.Cases[i] {
				return false
			}
		}
		return true
	case OptionalPattern:
		bp, ok := b.(OptionalPattern)
		return ok && equalPattern(ap.Inner, bp.Inner)
	case SequencePattern:
		bp, ok := b.(SequencePattern)
		return ok && equalPattern(ap.Elem, bp.Elem)
	case MapPattern:
		bp, ok := b.(MapPattern)
		return ok && equalPattern(ap.Key, bp.Key) && equalPattern(ap.Value, bp.Value)
	case NominalPattern:
		bp, ok := b.(NominalPattern)
		return ok && ap.Name == bp.Name
	case WildcardPattern:
		_, ok := b.(WildcardPattern)
		return ok
	}
	return false
}

// Matches reports whether the value's structural shape satisfies the
// pattern. NominalPattern never matches here; resolving nominal types needs
// schema context the dynamic tree does not carry.
func (p PrimitivePattern) Matches(v DynamicValue) bool {
	pv, ok := v.(*Primitive)
	return ok && pv.Kind.String() == p.Name
}

// MatchesPattern dispatches shape matching over the closed pattern set.
func MatchesPattern(p Pattern, v DynamicValue) bool {
	switch pat := p.(type) {
	case WildcardPattern:
		return true
	case PrimitivePattern:
		return pat.Matches(v)
	case RecordPattern:
		rec, ok := v.(*Record)
		if !ok {
			return false
		}
		for _, f := range pat.Fields {
			fv, present := rec.Get(f.Name)
			if !present || !MatchesPattern(f.Pattern, fv) {
				return false
			}
		}
		return true
	case VariantPattern:
		vr, ok := v.(*Variant)
		if !ok {
			return false
		}
		for _, c := range pat.Cases {
			if vr.Case == c {
				return true
			}
		}
		return false
	case OptionalPattern:
		if IsNone(v) {
			return true
		}
		if inner, ok := UnwrapSome(v); ok {
			return MatchesPattern(pat.Inner, inner)
		}
		return MatchesPattern(pat.Inner, v)
	case SequencePattern:
		seq, ok := v.(*Sequence)
		if !ok {
			return false
		}
		for _, e := range seq.Elements {
			if !MatchesPattern(pat.Elem, e) {
				return false
			}
		}
		return true
	case MapPattern:
		m, ok := v.(*Map)
		if !ok {
			return false
		}
		for _, e := range m.Entries {
			if !MatchesPattern(pat.Key, e.Key) || !MatchesPattern(pat.Value, e.Value) {
				return false
			}
		}
		return true
	case NominalPattern:
		return false
	}
	return false
}
