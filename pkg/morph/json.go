package morph

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// The wire format is a tagged-union encoding: every node, operation, action
// and expression serializes as a single-key object naming its constructor,
// e.g. {"Field":{"name":"age"}}. The empty optic serializes as {}.

// tag wraps a payload in its constructor envelope.
func tag(name string, payload interface{}) map[string]interface{} {
	return map[string]interface{}{name: payload}
}

// unionTag extracts the single constructor key of a tagged-union object.
func unionTag(res gjson.Result) (string, gjson.Result, error) {
	var name string
	var payload gjson.Result
	count := 0
	res.ForEach(func(key, value gjson.Result) bool {
		name = key.String()
		payload = value
		count++
		return true
	})
	if count != 1 {
		return "", gjson.Result{}, errors.Errorf("expected a single-key tagged object, got %d keys", count)
	}
	return name, payload, nil
}

// --- dynamic values ---

// MarshalValue encodes a dynamic value as JSON.
func MarshalValue(v DynamicValue) ([]byte, error) {
	return json.Marshal(encodeValue(v))
}

// UnmarshalValue decodes a dynamic value from JSON.
func UnmarshalValue(data []byte) (DynamicValue, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json")
	}
	return decodeValue(gjson.ParseBytes(data))
}

func encodeValue(v DynamicValue) interface{} {
	switch val := v.(type) {
	case *Primitive:
		return tag("Primitive", map[string]interface{}{
			"kind":  val.Kind.String(),
			"value": encodePrimitivePayload(val),
		})
	case *Record:
		fields := make([]interface{}, len(val.Fields))
		for i, f := range val.Fields {
			fields[i] = map[string]interface{}{"name": f.Name, "value": encodeValue(f.Value)}
		}
		return tag("Record", map[string]interface{}{"fields": fields})
	case *Sequence:
		elements := make([]interface{}, len(val.Elements))
		for i, e := range val.Elements {
			elements[i] = encodeValue(e)
		}
		return tag("Sequence", map[string]interface{}{"elements": elements})
	case *Map:
		entries := make([]interface{}, len(val.Entries))
		for i, e := range val.Entries {
			entries[i] = map[string]interface{}{"key": encodeValue(e.Key), "value": encodeValue(e.Value)}
		}
		return tag("Map", map[string]interface{}{"entries": entries})
	case *Variant:
		return tag("Variant", map[string]interface{}{"case": val.Case, "value": encodeValue(val.Value)})
	case Null:
		return tag("Null", map[string]interface{}{})
	}
	return nil
}

func encodePrimitivePayload(p *Primitive) interface{} {
	switch p.Kind {
	case KindUnit:
		return nil
	case KindBool:
		return p.Bool
	case KindInt8, KindInt16, KindInt32, KindInt64, KindMonth, KindYear, KindDayOfWeek, KindZoneOffset:
		return p.Int
	case KindFloat32, KindFloat64:
		if math.IsNaN(p.Flt) {
			return "NaN"
		}
		if math.IsInf(p.Flt, 1) {
			return "+Inf"
		}
		if math.IsInf(p.Flt, -1) {
			return "-Inf"
		}
		return p.Flt
	default:
		// Everything else round-trips through its canonical text form.
		return p.Text()
	}
}

func decodeValue(res gjson.Result) (DynamicValue, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "value")
	}
	switch name {
	case "Primitive":
		return decodePrimitive(payload)
	case "Record":
		var fields []RecordField
		var inner error
		payload.Get("fields").ForEach(func(_, f gjson.Result) bool {
			fv, err := decodeValue(f.Get("value"))
			if err != nil {
				inner = err
				return false
			}
			fields = append(fields, RecordField{Name: f.Get("name").String(), Value: fv})
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return &Record{Fields: fields}, nil
	case "Sequence":
		var elements []DynamicValue
		var inner error
		payload.Get("elements").ForEach(func(_, e gjson.Result) bool {
			ev, err := decodeValue(e)
			if err != nil {
				inner = err
				return false
			}
			elements = append(elements, ev)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return &Sequence{Elements: elements}, nil
	case "Map":
		var entries []MapEntry
		var inner error
		payload.Get("entries").ForEach(func(_, e gjson.Result) bool {
			k, err := decodeValue(e.Get("key"))
			if err != nil {
				inner = err
				return false
			}
			v, err := decodeValue(e.Get("value"))
			if err != nil {
				inner = err
				return false
			}
			entries = append(entries, MapEntry{Key: k, Value: v})
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return &Map{Entries: entries}, nil
	case "Variant":
		v, err := decodeValue(payload.Get("value"))
		if err != nil {
			return nil, err
		}
		return NewVariant(payload.Get("case").String(), v), nil
	case "Null":
		return Null{}, nil
	}
	return nil, errors.Errorf("unknown value tag '%s'", name)
}

func decodePrimitive(payload gjson.Result) (DynamicValue, error) {
	kindName := payload.Get("kind").String()
	kind, ok := ParsePrimitiveKind(kindName)
	if !ok {
		return nil, errors.Errorf("unknown primitive kind '%s'", kindName)
	}
	value := payload.Get("value")
	fail := func(err error) (DynamicValue, error) {
		return nil, errors.Wrapf(err, "primitive %s", kindName)
	}
	switch kind {
	case KindUnit:
		return Unit(), nil
	case KindBool:
		return Bool(value.Bool()), nil
	case KindInt8:
		return Int8(int8(value.Int())), nil
	case KindInt16:
		return Int16(int16(value.Int())), nil
	case KindInt32:
		return Int32(int32(value.Int())), nil
	case KindInt64:
		return Int64(value.Int()), nil
	case KindFloat32, KindFloat64:
		f := value.Float()
		if value.Type == gjson.String {
			switch value.String() {
			case "NaN":
				f = math.NaN()
			case "+Inf":
				f = math.Inf(1)
			case "-Inf":
				f = math.Inf(-1)
			default:
				return fail(errors.Errorf("bad float '%s'", value.String()))
			}
		}
		if kind == KindFloat32 {
			return Float32(float32(f)), nil
		}
		return Float64(f), nil
	case KindChar:
		runes := []rune(value.String())
		if len(runes) != 1 {
			return fail(errors.New("char must hold exactly one rune"))
		}
		return Char(runes[0]), nil
	case KindString:
		return String(value.String()), nil
	case KindBigInt:
		b, ok := new(big.Int).SetString(value.String(), 10)
		if !ok {
			return fail(errors.Errorf("bad bigint '%s'", value.String()))
		}
		return BigInt(b), nil
	case KindBigDecimal:
		d, err := decimal.NewFromString(value.String())
		if err != nil {
			return fail(err)
		}
		return BigDecimal(d), nil
	case KindInstant:
		t, err := time.Parse(time.RFC3339Nano, value.String())
		if err != nil {
			return fail(err)
		}
		return Instant(t), nil
	case KindDuration:
		d, err := time.ParseDuration(value.String())
		if err != nil {
			return fail(err)
		}
		return Duration(d), nil
	case KindLocalDate:
		t, err := time.Parse("2006-01-02", value.String())
		if err != nil {
			return fail(err)
		}
		return LocalDate(t.Year(), t.Month(), t.Day()), nil
	case KindLocalDateTime:
		t, err := time.Parse("2006-01-02T15:04:05.999999999", value.String())
		if err != nil {
			return fail(err)
		}
		return LocalDateTime(t), nil
	case KindLocalTime:
		t, err := time.Parse("15:04:05.999999999", value.String())
		if err != nil {
			return fail(err)
		}
		return LocalTime(t.Hour(), t.Minute(), t.Second(), t.Nanosecond()), nil
	case KindMonth:
		return Month(time.Month(value.Int())), nil
	case KindMonthDay:
		var m, d int
		if _, err := fmt.Sscanf(value.String(), "--%d-%d", &m, &d); err != nil {
			return fail(err)
		}
		return MonthDay(time.Month(m), d), nil
	case KindYear:
		return Year(int(value.Int())), nil
	case KindYearMonth:
		var y, m int
		if _, err := fmt.Sscanf(value.String(), "%d-%d", &y, &m); err != nil {
			return fail(err)
		}
		return YearMonth(y, time.Month(m)), nil
	case KindPeriod:
		per, err := parsePeriod(value.String())
		if err != nil {
			return fail(err)
		}
		return NewPeriod(per.Years, per.Months, per.Days), nil
	case KindDayOfWeek:
		return DayOfWeek(time.Weekday(value.Int())), nil
	case KindZoneID:
		return ZoneID(value.String()), nil
	case KindZoneOffset:
		return ZoneOffset(int(value.Int())), nil
	case KindOffsetDateTime:
		t, err := time.Parse(time.RFC3339Nano, value.String())
		if err != nil {
			return fail(err)
		}
		return OffsetDateTime(t), nil
	case KindOffsetTime:
		t, err := time.Parse("15:04:05.999999999Z07:00", value.String())
		if err != nil {
			return fail(err)
		}
		return OffsetTime(t), nil
	case KindZonedDateTime:
		t, err := time.Parse(time.RFC3339Nano, value.String())
		if err != nil {
			return fail(err)
		}
		return ZonedDateTime(t), nil
	case KindCurrency:
		return Currency(value.String()), nil
	case KindUUID:
		u, err := uuid.Parse(value.String())
		if err != nil {
			return fail(err)
		}
		return UUIDValue(u), nil
	}
	return nil, errors.Errorf("unhandled primitive kind '%s'", kindName)
}

// parsePeriod reads the ISO-8601 period form emitted by Period.String.
func parsePeriod(s string) (Period, error) {
	if !strings.HasPrefix(s, "P") {
		return Period{}, errors.Errorf("bad period '%s'", s)
	}
	var p Period
	num := ""
	for _, r := range s[1:] {
		switch {
		case r == '-' || (r >= '0' && r <= '9'):
			num += string(r)
		case r == 'Y' || r == 'M' || r == 'D':
			n, err := strconv.Atoi(num)
			if err != nil {
				return Period{}, errors.Errorf("bad period '%s'", s)
			}
			switch r {
			case 'Y':
				p.Years = n
			case 'M':
				p.Months = n
			case 'D':
				p.Days = n
			}
			num = ""
		default:
			return Period{}, errors.Errorf("bad period '%s'", s)
		}
	}
	if num != "" {
		return Period{}, errors.Errorf("bad period '%s'", s)
	}
	return p, nil
}

// --- optics ---

// MarshalJSON implements json.Marshaler; the root optic encodes as {}.
func (o Optic) MarshalJSON() ([]byte, error) {
	if len(o.Nodes) == 0 {
		return []byte("{}"), nil
	}
	nodes := make([]interface{}, len(o.Nodes))
	for i, n := range o.Nodes {
		nodes[i] = encodeNode(n)
	}
	return json.Marshal(map[string]interface{}{"nodes": nodes})
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optic) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	nodes := res.Get("nodes")
	if !nodes.Exists() {
		o.Nodes = nil
		return nil
	}
	var out []Node
	var inner error
	nodes.ForEach(func(_, n gjson.Result) bool {
		node, err := decodeNode(n)
		if err != nil {
			inner = err
			return false
		}
		out = append(out, node)
		return true
	})
	if inner != nil {
		return inner
	}
	o.Nodes = out
	return nil
}

func encodeNode(n Node) interface{} {
	switch node := n.(type) {
	case Field:
		return tag("Field", map[string]interface{}{"name": node.Name})
	case Case:
		return tag("Case", map[string]interface{}{"name": node.Name})
	case AtIndex:
		return tag("AtIndex", map[string]interface{}{"index": node.Index})
	case AtIndices:
		return tag("AtIndices", map[string]interface{}{"indices": node.Indices})
	case Elements:
		return tag("Elements", map[string]interface{}{})
	case AtMapKey:
		return tag("AtMapKey", map[string]interface{}{"key": encodeValue(node.Key)})
	case AtMapKeys:
		keys := make([]interface{}, len(node.Keys))
		for i, k := range node.Keys {
			keys[i] = encodeValue(k)
		}
		return tag("AtMapKeys", map[string]interface{}{"keys": keys})
	case MapKeys:
		return tag("MapKeys", map[string]interface{}{})
	case MapValues:
		return tag("MapValues", map[string]interface{}{})
	case Wrapped:
		return tag("Wrapped", map[string]interface{}{})
	case SearchSchema:
		return tag("SearchSchema", map[string]interface{}{"pattern": encodePattern(node.Pattern)})
	case TypeSearch:
		return tag("TypeSearch", map[string]interface{}{"typeId": node.TypeID})
	}
	return nil
}

func decodeNode(res gjson.Result) (Node, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "node")
	}
	switch name {
	case "Field":
		return Field{Name: payload.Get("name").String()}, nil
	case "Case":
		return Case{Name: payload.Get("name").String()}, nil
	case "AtIndex":
		return AtIndex{Index: int(payload.Get("index").Int())}, nil
	case "AtIndices":
		var indices []int
		payload.Get("indices").ForEach(func(_, i gjson.Result) bool {
			indices = append(indices, int(i.Int()))
			return true
		})
		return AtIndices{Indices: indices}, nil
	case "Elements":
		return Elements{}, nil
	case "AtMapKey":
		k, err := decodeValue(payload.Get("key"))
		if err != nil {
			return nil, err
		}
		return AtMapKey{Key: k}, nil
	case "AtMapKeys":
		var keys []DynamicValue
		var inner error
		payload.Get("keys").ForEach(func(_, k gjson.Result) bool {
			kv, err := decodeValue(k)
			if err != nil {
				inner = err
				return false
			}
			keys = append(keys, kv)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return AtMapKeys{Keys: keys}, nil
	case "MapKeys":
		return MapKeys{}, nil
	case "MapValues":
		return MapValues{}, nil
	case "Wrapped":
		return Wrapped{}, nil
	case "SearchSchema":
		p, err := decodePattern(payload.Get("pattern"))
		if err != nil {
			return nil, err
		}
		return SearchSchema{Pattern: p}, nil
	case "TypeSearch":
		return TypeSearch{TypeID: payload.Get("typeId").String()}, nil
	}
	return nil, errors.Errorf("unknown node tag '%s'", name)
}

func encodePattern(p Pattern) interface{} {
	switch pat := p.(type) {
	case PrimitivePattern:
		return tag("Primitive", map[string]interface{}{"name": pat.Name})
	case RecordPattern:
		fields := make([]interface{}, len(pat.Fields))
		for i, f := range pat.Fields {
			fields[i] = map[string]interface{}{"name": f.Name, "pattern": encodePattern(f.Pattern)}
		}
		return tag("Record", map[string]interface{}{"fields": fields})
	case VariantPattern:
		return tag("Variant", map[string]interface{}{"cases": pat.Cases})
	case OptionalPattern:
		return tag("Optional", map[string]interface{}{"inner": encodePattern(pat.Inner)})
	case SequencePattern:
		return tag("Sequence", map[string]interface{}{"elem": encodePattern(pat.Elem)})
	case MapPattern:
		return tag("Map", map[string]interface{}{"key": encodePattern(pat.Key), "value": encodePattern(pat.Value)})
	case NominalPattern:
		return tag("Nominal", map[string]interface{}{"name": pat.Name})
	case WildcardPattern:
		return tag("Wildcard", map[string]interface{}{})
	}
	return nil
}

func decodePattern(res gjson.Result) (Pattern, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "pattern")
	}
	switch name {
	case "Primitive":
		return PrimitivePattern{Name: payload.Get("name").String()}, nil
	case "Record":
		var fields []PatternField
		var inner error
		payload.Get("fields").ForEach(func(_, f gjson.Result) bool {
			fp, err := decodePattern(f.Get("pattern"))
			if err != nil {
				inner = err
				return false
			}
			fields = append(fields, PatternField{Name: f.Get("name").String(), Pattern: fp})
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return RecordPattern{Fields: fields}, nil
	case "Variant":
		var cases []string
		payload.Get("cases").ForEach(func(_, c gjson.Result) bool {
			cases = append(cases, c.String())
			return true
		})
		return VariantPattern{Cases: cases}, nil
	case "Optional":
		inner, err := decodePattern(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return OptionalPattern{Inner: inner}, nil
	case "Sequence":
		elem, err := decodePattern(payload.Get("elem"))
		if err != nil {
			return nil, err
		}
		return SequencePattern{Elem: elem}, nil
	case "Map":
		k, err := decodePattern(payload.Get("key"))
		if err != nil {
			return nil, err
		}
		v, err := decodePattern(payload.Get("value"))
		if err != nil {
			return nil, err
		}
		return MapPattern{Key: k, Value: v}, nil
	case "Nominal":
		return NominalPattern{Name: payload.Get("name").String()}, nil
	case "Wildcard":
		return WildcardPattern{}, nil
	}
	return nil, errors.Errorf("unknown pattern tag '%s'", name)
}

// --- patches ---

// MarshalJSON implements json.Marshaler.
func (p Patch) MarshalJSON() ([]byte, error) {
	ops := make([]interface{}, len(p.Ops))
	for i, op := range p.Ops {
		nodes, err := op.Path.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var path interface{}
		if err := json.Unmarshal(nodes, &path); err != nil {
			return nil, err
		}
		ops[i] = map[string]interface{}{"path": path, "operation": encodeOperation(op.Op)}
	}
	return json.Marshal(map[string]interface{}{"ops": ops})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Patch) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	var ops []PatchOp
	var inner error
	res.Get("ops").ForEach(func(_, op gjson.Result) bool {
		var path Optic
		if err := path.UnmarshalJSON([]byte(op.Get("path").Raw)); err != nil {
			inner = err
			return false
		}
		operation, err := decodeOperation(op.Get("operation"))
		if err != nil {
			inner = err
			return false
		}
		ops = append(ops, PatchOp{Path: path, Op: operation})
		return true
	})
	if inner != nil {
		return inner
	}
	p.Ops = ops
	return nil
}

func encodeOperation(op Operation) interface{} {
	switch o := op.(type) {
	case Set:
		return tag("Set", map[string]interface{}{"value": encodeValue(o.Value)})
	case PrimitiveDelta:
		return tag("PrimitiveDelta", map[string]interface{}{"op": encodePrimitiveOp(o.Op)})
	case SequenceEdit:
		ops := make([]interface{}, len(o.Ops))
		for i, so := range o.Ops {
			ops[i] = encodeSeqOp(so)
		}
		return tag("SequenceEdit", map[string]interface{}{"ops": ops})
	case MapEdit:
		ops := make([]interface{}, len(o.Ops))
		for i, mo := range o.Ops {
			ops[i] = encodeMapOp(mo)
		}
		return tag("MapEdit", map[string]interface{}{"ops": ops})
	case NestedPatch:
		ops := make([]interface{}, len(o.Patch.Ops))
		for i, po := range o.Patch.Ops {
			raw, _ := po.Path.MarshalJSON()
			var path interface{}
			_ = json.Unmarshal(raw, &path)
			ops[i] = map[string]interface{}{"path": path, "operation": encodeOperation(po.Op)}
		}
		return tag("Patch", map[string]interface{}{"ops": ops})
	}
	return nil
}

func decodeOperation(res gjson.Result) (Operation, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "operation")
	}
	switch name {
	case "Set":
		v, err := decodeValue(payload.Get("value"))
		if err != nil {
			return nil, err
		}
		return Set{Value: v}, nil
	case "PrimitiveDelta":
		op, err := decodePrimitiveOp(payload.Get("op"))
		if err != nil {
			return nil, err
		}
		return PrimitiveDelta{Op: op}, nil
	case "SequenceEdit":
		var ops []SeqOp
		var inner error
		payload.Get("ops").ForEach(func(_, so gjson.Result) bool {
			op, err := decodeSeqOp(so)
			if err != nil {
				inner = err
				return false
			}
			ops = append(ops, op)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return SequenceEdit{Ops: ops}, nil
	case "MapEdit":
		var ops []MapOp
		var inner error
		payload.Get("ops").ForEach(func(_, mo gjson.Result) bool {
			op, err := decodeMapOp(mo)
			if err != nil {
				inner = err
				return false
			}
			ops = append(ops, op)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return MapEdit{Ops: ops}, nil
	case "Patch":
		var inner Patch
		if err := inner.UnmarshalJSON([]byte(payload.Raw)); err != nil {
			return nil, err
		}
		return NestedPatch{Patch: inner}, nil
	}
	return nil, errors.Errorf("unknown operation tag '%s'", name)
}

func encodePrimitiveOp(op PrimitiveOp) interface{} {
	switch o := op.(type) {
	case Int8Delta:
		return tag("Int8Delta", map[string]interface{}{"delta": o.Delta})
	case Int16Delta:
		return tag("Int16Delta", map[string]interface{}{"delta": o.Delta})
	case Int32Delta:
		return tag("Int32Delta", map[string]interface{}{"delta": o.Delta})
	case Int64Delta:
		return tag("Int64Delta", map[string]interface{}{"delta": o.Delta})
	case Float32Delta:
		return tag("Float32Delta", map[string]interface{}{"delta": o.Delta})
	case Float64Delta:
		return tag("Float64Delta", map[string]interface{}{"delta": o.Delta})
	case BigIntDelta:
		return tag("BigIntDelta", map[string]interface{}{"delta": o.Delta.String()})
	case BigDecimalDelta:
		return tag("BigDecimalDelta", map[string]interface{}{"delta": o.Delta.String()})
	case InstantDelta:
		return tag("InstantDelta", map[string]interface{}{"delta": o.Delta.String()})
	case DurationDelta:
		return tag("DurationDelta", map[string]interface{}{"delta": o.Delta.String()})
	case LocalDateDelta:
		return tag("LocalDateDelta", map[string]interface{}{"delta": o.Delta.String()})
	case LocalDateTimeDelta:
		return tag("LocalDateTimeDelta", map[string]interface{}{"delta": o.Delta.String()})
	case PeriodDelta:
		return tag("PeriodDelta", map[string]interface{}{"delta": o.Delta.String()})
	case StringEdit:
		ops := make([]interface{}, len(o.Ops))
		for i, so := range o.Ops {
			ops[i] = encodeStringOp(so)
		}
		return tag("StringEdit", map[string]interface{}{"ops": ops})
	}
	return nil
}

func decodePrimitiveOp(res gjson.Result) (PrimitiveOp, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "primitive op")
	}
	delta := payload.Get("delta")
	switch name {
	case "Int8Delta":
		return Int8Delta{Delta: int8(delta.Int())}, nil
	case "Int16Delta":
		return Int16Delta{Delta: int16(delta.Int())}, nil
	case "Int32Delta":
		return Int32Delta{Delta: int32(delta.Int())}, nil
	case "Int64Delta":
		return Int64Delta{Delta: delta.Int()}, nil
	case "Float32Delta":
		return Float32Delta{Delta: float32(delta.Float())}, nil
	case "Float64Delta":
		return Float64Delta{Delta: delta.Float()}, nil
	case "BigIntDelta":
		b, ok := new(big.Int).SetString(delta.String(), 10)
		if !ok {
			return nil, errors.Errorf("bad bigint delta '%s'", delta.String())
		}
		return BigIntDelta{Delta: b}, nil
	case "BigDecimalDelta":
		d, err := decimal.NewFromString(delta.String())
		if err != nil {
			return nil, errors.Wrap(err, "bigdecimal delta")
		}
		return BigDecimalDelta{Delta: d}, nil
	case "InstantDelta":
		d, err := time.ParseDuration(delta.String())
		if err != nil {
			return nil, errors.Wrap(err, "instant delta")
		}
		return InstantDelta{Delta: d}, nil
	case "DurationDelta":
		d, err := time.ParseDuration(delta.String())
		if err != nil {
			return nil, errors.Wrap(err, "duration delta")
		}
		return DurationDelta{Delta: d}, nil
	case "LocalDateDelta":
		p, err := parsePeriod(delta.String())
		if err != nil {
			return nil, err
		}
		return LocalDateDelta{Delta: p}, nil
	case "LocalDateTimeDelta":
		d, err := time.ParseDuration(delta.String())
		if err != nil {
			return nil, errors.Wrap(err, "local date-time delta")
		}
		return LocalDateTimeDelta{Delta: d}, nil
	case "PeriodDelta":
		p, err := parsePeriod(delta.String())
		if err != nil {
			return nil, err
		}
		return PeriodDelta{Delta: p}, nil
	case "StringEdit":
		var ops []StringOp
		var inner error
		payload.Get("ops").ForEach(func(_, so gjson.Result) bool {
			op, err := decodeStringOp(so)
			if err != nil {
				inner = err
				return false
			}
			ops = append(ops, op)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return StringEdit{Ops: ops}, nil
	}
	return nil, errors.Errorf("unknown primitive op tag '%s'", name)
}

func encodeStringOp(op StringOp) interface{} {
	switch o := op.(type) {
	case StringInsert:
		return tag("Insert", map[string]interface{}{"index": o.Index, "text": o.Text})
	case StringDelete:
		return tag("Delete", map[string]interface{}{"index": o.Index, "length": o.Length})
	case StringAppend:
		return tag("Append", map[string]interface{}{"text": o.Text})
	case StringModify:
		return tag("Modify", map[string]interface{}{"index": o.Index, "length": o.Length, "text": o.Text})
	}
	return nil
}

func decodeStringOp(res gjson.Result) (StringOp, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "string op")
	}
	switch name {
	case "Insert":
		return StringInsert{Index: int(payload.Get("index").Int()), Text: payload.Get("text").String()}, nil
	case "Delete":
		return StringDelete{Index: int(payload.Get("index").Int()), Length: int(payload.Get("length").Int())}, nil
	case "Append":
		return StringAppend{Text: payload.Get("text").String()}, nil
	case "Modify":
		return StringModify{Index: int(payload.Get("index").Int()), Length: int(payload.Get("length").Int()), Text: payload.Get("text").String()}, nil
	}
	return nil, errors.Errorf("unknown string op tag '%s'", name)
}

func encodeSeqOp(op SeqOp) interface{} {
	switch o := op.(type) {
	case SeqInsert:
		values := make([]interface{}, len(o.Values))
		for i, v := range o.Values {
			values[i] = encodeValue(v)
		}
		return tag("Insert", map[string]interface{}{"index": o.Index, "values": values})
	case SeqAppend:
		values := make([]interface{}, len(o.Values))
		for i, v := range o.Values {
			values[i] = encodeValue(v)
		}
		return tag("Append", map[string]interface{}{"values": values})
	case SeqDelete:
		return tag("Delete", map[string]interface{}{"index": o.Index, "count": o.Count})
	case SeqModify:
		return tag("Modify", map[string]interface{}{"index": o.Index, "op": encodeOperation(o.Op)})
	}
	return nil
}

func decodeSeqOp(res gjson.Result) (SeqOp, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "sequence op")
	}
	decodeValues := func(field string) ([]DynamicValue, error) {
		var values []DynamicValue
		var inner error
		payload.Get(field).ForEach(func(_, v gjson.Result) bool {
			dv, err := decodeValue(v)
			if err != nil {
				inner = err
				return false
			}
			values = append(values, dv)
			return true
		})
		return values, inner
	}
	switch name {
	case "Insert":
		values, err := decodeValues("values")
		if err != nil {
			return nil, err
		}
		return SeqInsert{Index: int(payload.Get("index").Int()), Values: values}, nil
	case "Append":
		values, err := decodeValues("values")
		if err != nil {
			return nil, err
		}
		return SeqAppend{Values: values}, nil
	case "Delete":
		return SeqDelete{Index: int(payload.Get("index").Int()), Count: int(payload.Get("count").Int())}, nil
	case "Modify":
		op, err := decodeOperation(payload.Get("op"))
		if err != nil {
			return nil, err
		}
		return SeqModify{Index: int(payload.Get("index").Int()), Op: op}, nil
	}
	return nil, errors.Errorf("unknown sequence op tag '%s'", name)
}

func encodeMapOp(op MapOp) interface{} {
	switch o := op.(type) {
	case MapAdd:
		return tag("Add", map[string]interface{}{"key": encodeValue(o.Key), "value": encodeValue(o.Value)})
	case MapRemove:
		return tag("Remove", map[string]interface{}{"key": encodeValue(o.Key)})
	case MapModify:
		ops := make([]interface{}, len(o.Patch.Ops))
		for i, po := range o.Patch.Ops {
			raw, _ := po.Path.MarshalJSON()
			var path interface{}
			_ = json.Unmarshal(raw, &path)
			ops[i] = map[string]interface{}{"path": path, "operation": encodeOperation(po.Op)}
		}
		return tag("Modify", map[string]interface{}{"key": encodeValue(o.Key), "patch": map[string]interface{}{"ops": ops}})
	}
	return nil
}

func decodeMapOp(res gjson.Result) (MapOp, error) {
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "map op")
	}
	switch name {
	case "Add":
		k, err := decodeValue(payload.Get("key"))
		if err != nil {
			return nil, err
		}
		v, err := decodeValue(payload.Get("value"))
		if err != nil {
			return nil, err
		}
		return MapAdd{Key: k, Value: v}, nil
	case "Remove":
		k, err := decodeValue(payload.Get("key"))
		if err != nil {
			return nil, err
		}
		return MapRemove{Key: k}, nil
	case "Modify":
		k, err := decodeValue(payload.Get("key"))
		if err != nil {
			return nil, err
		}
		var inner Patch
		if err := inner.UnmarshalJSON([]byte(payload.Get("patch").Raw)); err != nil {
			return nil, err
		}
		return MapModify{Key: k, Patch: inner}, nil
	}
	return nil, errors.Errorf("unknown map op tag '%s'", name)
}

// --- resolved expressions ---

// MarshalExpr encodes a Resolved expression as JSON.
func MarshalExpr(r Resolved) ([]byte, error) {
	return json.Marshal(encodeResolved(r))
}

// UnmarshalExpr decodes a Resolved expression from JSON.
func UnmarshalExpr(data []byte) (Resolved, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json")
	}
	return decodeResolved(gjson.ParseBytes(data))
}

func encodeResolved(r Resolved) interface{} {
	if r == nil {
		return nil
	}
	switch e := r.(type) {
	case Literal:
		return tag("Literal", map[string]interface{}{"value": encodeValue(e.Value)})
	case Identity:
		return tag("Identity", map[string]interface{}{})
	case FieldAccess:
		return tag("FieldAccess", map[string]interface{}{"name": e.Name, "inner": encodeResolved(e.Inner)})
	case OpticAccess:
		return tag("OpticAccess", map[string]interface{}{"path": encodeOpticInline(e.Path), "inner": encodeResolved(e.Inner)})
	case RootAccess:
		return tag("RootAccess", map[string]interface{}{"path": encodeOpticInline(e.Path)})
	case DefaultValue:
		payload := map[string]interface{}{}
		if e.Msg != "" {
			payload["msg"] = e.Msg
		} else {
			payload["value"] = encodeValue(e.Value)
		}
		return tag("DefaultValue", payload)
	case Convert:
		return tag("Convert", map[string]interface{}{"from": e.From, "to": e.To, "inner": encodeResolved(e.Inner)})
	case Concat:
		parts := make([]interface{}, len(e.Parts))
		for i, p := range e.Parts {
			parts[i] = encodeResolved(p)
		}
		return tag("Concat", map[string]interface{}{"parts": parts, "sep": e.Sep})
	case SplitString:
		return tag("SplitString", map[string]interface{}{"sep": e.Sep, "inner": encodeResolved(e.Inner)})
	case At:
		return tag("At", map[string]interface{}{"index": e.Index, "inner": encodeResolved(e.Inner)})
	case WrapSome:
		return tag("WrapSome", map[string]interface{}{"inner": encodeResolved(e.Inner)})
	case UnwrapOption:
		return tag("UnwrapOption", map[string]interface{}{"inner": encodeResolved(e.Inner), "fallback": encodeResolved(e.Fallback)})
	case Compose:
		return tag("Compose", map[string]interface{}{"outer": encodeResolved(e.Outer), "inner": encodeResolved(e.Inner)})
	case Fail:
		return tag("Fail", map[string]interface{}{"msg": e.Msg})
	case Construct:
		fields := make([]interface{}, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = map[string]interface{}{"name": f.Name, "value": encodeResolved(f.Value)}
		}
		return tag("Construct", map[string]interface{}{"fields": fields})
	case ConstructSeq:
		elements := make([]interface{}, len(e.Elements))
		for i, el := range e.Elements {
			elements[i] = encodeResolved(el)
		}
		return tag("ConstructSeq", map[string]interface{}{"elements": elements})
	case Head:
		return tag("Head", map[string]interface{}{"inner": encodeResolved(e.Inner)})
	case JoinStrings:
		return tag("JoinStrings", map[string]interface{}{"sep": e.Sep, "inner": encodeResolved(e.Inner)})
	case Coalesce:
		alts := make([]interface{}, len(e.Alts))
		for i, a := range e.Alts {
			alts[i] = encodeResolved(a)
		}
		return tag("Coalesce", map[string]interface{}{"alts": alts})
	case GetOrElse:
		return tag("GetOrElse", map[string]interface{}{"primary": encodeResolved(e.Primary), "fallback": encodeResolved(e.Fallback)})
	case Calc:
		return tag("Calc", map[string]interface{}{"expr": e.Expr})
	}
	return nil
}

func encodeOpticInline(o Optic) interface{} {
	raw, _ := o.MarshalJSON()
	var out interface{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func decodeOpticInline(res gjson.Result) (Optic, error) {
	var o Optic
	err := o.UnmarshalJSON([]byte(res.Raw))
	return o, err
}

func decodeResolved(res gjson.Result) (Resolved, error) {
	if res.Type == gjson.Null || !res.Exists() {
		return nil, nil
	}
	name, payload, err := unionTag(res)
	if err != nil {
		return nil, errors.Wrap(err, "expression")
	}
	switch name {
	case "Literal":
		v, err := decodeValue(payload.Get("value"))
		if err != nil {
			return nil, err
		}
		return Literal{Value: v}, nil
	case "Identity":
		return Identity{}, nil
	case "FieldAccess":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return FieldAccess{Name: payload.Get("name").String(), Inner: inner}, nil
	case "OpticAccess":
		path, err := decodeOpticInline(payload.Get("path"))
		if err != nil {
			return nil, err
		}
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return OpticAccess{Path: path, Inner: inner}, nil
	case "RootAccess":
		path, err := decodeOpticInline(payload.Get("path"))
		if err != nil {
			return nil, err
		}
		return RootAccess{Path: path}, nil
	case "DefaultValue":
		if msg := payload.Get("msg"); msg.Exists() {
			return DefaultValue{Msg: msg.String()}, nil
		}
		v, err := decodeValue(payload.Get("value"))
		if err != nil {
			return nil, err
		}
		return DefaultValue{Value: v}, nil
	case "Convert":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return Convert{From: payload.Get("from").String(), To: payload.Get("to").String(), Inner: inner}, nil
	case "Concat":
		var parts []Resolved
		var inner error
		payload.Get("parts").ForEach(func(_, p gjson.Result) bool {
			part, err := decodeResolved(p)
			if err != nil {
				inner = err
				return false
			}
			parts = append(parts, part)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return Concat{Parts: parts, Sep: payload.Get("sep").String()}, nil
	case "SplitString":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return SplitString{Sep: payload.Get("sep").String(), Inner: inner}, nil
	case "At":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return At{Index: int(payload.Get("index").Int()), Inner: inner}, nil
	case "WrapSome":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return WrapSome{Inner: inner}, nil
	case "UnwrapOption":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		fallback, err := decodeResolved(payload.Get("fallback"))
		if err != nil {
			return nil, err
		}
		return UnwrapOption{Inner: inner, Fallback: fallback}, nil
	case "Compose":
		outer, err := decodeResolved(payload.Get("outer"))
		if err != nil {
			return nil, err
		}
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return Compose{Outer: outer, Inner: inner}, nil
	case "Fail":
		return Fail{Msg: payload.Get("msg").String()}, nil
	case "Construct":
		var fields []ConstructField
		var inner error
		payload.Get("fields").ForEach(func(_, f gjson.Result) bool {
			fv, err := decodeResolved(f.Get("value"))
			if err != nil {
				inner = err
				return false
			}
			fields = append(fields, ConstructField{Name: f.Get("name").String(), Value: fv})
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return Construct{Fields: fields}, nil
	case "ConstructSeq":
		var elements []Resolved
		var inner error
		payload.Get("elements").ForEach(func(_, el gjson.Result) bool {
			ev, err := decodeResolved(el)
			if err != nil {
				inner = err
				return false
			}
			elements = append(elements, ev)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return ConstructSeq{Elements: elements}, nil
	case "Head":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return Head{Inner: inner}, nil
	case "JoinStrings":
		inner, err := decodeResolved(payload.Get("inner"))
		if err != nil {
			return nil, err
		}
		return JoinStrings{Sep: payload.Get("sep").String(), Inner: inner}, nil
	case "Coalesce":
		var alts []Resolved
		var inner error
		payload.Get("alts").ForEach(func(_, a gjson.Result) bool {
			alt, err := decodeResolved(a)
			if err != nil {
				inner = err
				return false
			}
			alts = append(alts, alt)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return Coalesce{Alts: alts}, nil
	case "GetOrElse":
		primary, err := decodeResolved(payload.Get("primary"))
		if err != nil {
			return nil, err
		}
		fallback, err := decodeResolved(payload.Get("fallback"))
		if err != nil {
			return nil, err
		}
		return GetOrElse{Primary: primary, Fallback: fallback}, nil
	case "Calc":
		return Calc{Expr: payload.Get("expr").String()}, nil
	}
	return nil, errors.Errorf("unknown expression tag '%s'", name)
}

// --- migration actions ---

// MarshalJSON implements json.Marshaler.
func (m Migration) MarshalJSON() ([]byte, error) {
	actions := make([]interface{}, len(m.Actions))
	for i, a := range m.Actions {
		actions[i] = encodeAction(a)
	}
	return json.Marshal(map[string]interface{}{"actions": actions})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Migration) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	var actions []Action
	var inner error
	res.Get("actions").ForEach(func(_, a gjson.Result) bool {
		action, err := decodeAction(a)
		if err != nil {
			inner = err
			return false
		}
		actions = append(actions, action)
		return true
	})
	if inner != nil {
		return inner
	}
	m.Actions = actions
	return nil
}

// encodeAction uses the {"type": ..., "data": {...}} envelope.
func encodeAction(a Action) interface{} {
	envelope := func(typ string, data map[string]interface{}) interface{} {
		return map[string]interface{}{"type": typ, "data": data}
	}
	switch act := a.(type) {
	case AddField:
		return envelope("AddField", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "name": act.Name, "default": encodeResolved(act.Default),
		})
	case DropField:
		return envelope("DropField", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "name": act.Name, "restore": encodeResolved(act.Restore),
		})
	case Rename:
		return envelope("Rename", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "from": act.From, "to": act.To,
		})
	case TransformValue:
		return envelope("TransformValue", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "transform": encodeResolved(act.Transform), "inverse": encodeResolved(act.Inverse),
		})
	case Mandate:
		return envelope("Mandate", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "default": encodeResolved(act.Default),
		})
	case Optionalize:
		data := map[string]interface{}{"at": encodeOpticInline(act.Path)}
		if act.RestoreDefault != nil {
			data["restoreDefault"] = encodeResolved(act.RestoreDefault)
		}
		return envelope("Optionalize", data)
	case Join:
		paths := make([]interface{}, len(act.SourcePaths))
		for i, p := range act.SourcePaths {
			paths[i] = encodeOpticInline(p)
		}
		return envelope("Join", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "sourcePaths": paths,
			"combiner": encodeResolved(act.Combiner), "splitter": encodeResolved(act.Splitter),
		})
	case Split:
		paths := make([]interface{}, len(act.TargetPaths))
		for i, p := range act.TargetPaths {
			paths[i] = encodeOpticInline(p)
		}
		return envelope("Split", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "targetPaths": paths,
			"splitter": encodeResolved(act.Splitter), "combiner": encodeResolved(act.Combiner),
		})
	case ChangeType:
		return envelope("ChangeType", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "converter": encodeResolved(act.Converter), "inverse": encodeResolved(act.Inverse),
		})
	case RenameCase:
		return envelope("RenameCase", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "from": act.From, "to": act.To,
		})
	case TransformCase:
		nested := make([]interface{}, len(act.Actions))
		for i, n := range act.Actions {
			nested[i] = encodeAction(n)
		}
		return envelope("TransformCase", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "case": act.CaseName, "actions": nested,
		})
	case TransformElements:
		return envelope("TransformElements", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "transform": encodeResolved(act.Transform), "inverse": encodeResolved(act.Inverse),
		})
	case TransformKeys:
		return envelope("TransformKeys", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "transform": encodeResolved(act.Transform), "inverse": encodeResolved(act.Inverse),
		})
	case TransformMapValues:
		return envelope("TransformValues", map[string]interface{}{
			"at": encodeOpticInline(act.Path), "transform": encodeResolved(act.Transform), "inverse": encodeResolved(act.Inverse),
		})
	}
	return nil
}

func decodeAction(res gjson.Result) (Action, error) {
	typ := res.Get("type").String()
	data := res.Get("data")
	at, err := decodeOpticInline(data.Get("at"))
	if err != nil {
		return nil, errors.Wrapf(err, "action %s", typ)
	}
	expr := func(field string) (Resolved, error) {
		return decodeResolved(data.Get(field))
	}
	switch typ {
	case "AddField":
		def, err := expr("default")
		if err != nil {
			return nil, err
		}
		return AddField{Path: at, Name: data.Get("name").String(), Default: def}, nil
	case "DropField":
		restore, err := expr("restore")
		if err != nil {
			return nil, err
		}
		return DropField{Path: at, Name: data.Get("name").String(), Restore: restore}, nil
	case "Rename":
		return Rename{Path: at, From: data.Get("from").String(), To: data.Get("to").String()}, nil
	case "TransformValue":
		transform, err := expr("transform")
		if err != nil {
			return nil, err
		}
		inverse, err := expr("inverse")
		if err != nil {
			return nil, err
		}
		return TransformValue{Path: at, Transform: transform, Inverse: inverse}, nil
	case "Mandate":
		def, err := expr("default")
		if err != nil {
			return nil, err
		}
		return Mandate{Path: at, Default: def}, nil
	case "Optionalize":
		restore, err := expr("restoreDefault")
		if err != nil {
			return nil, err
		}
		return Optionalize{Path: at, RestoreDefault: restore}, nil
	case "Join":
		var paths []Optic
		var inner error
		data.Get("sourcePaths").ForEach(func(_, p gjson.Result) bool {
			o, err := decodeOpticInline(p)
			if err != nil {
				inner = err
				return false
			}
			paths = append(paths, o)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		combiner, err := expr("combiner")
		if err != nil {
			return nil, err
		}
		splitter, err := expr("splitter")
		if err != nil {
			return nil, err
		}
		return Join{Path: at, SourcePaths: paths, Combiner: combiner, Splitter: splitter}, nil
	case "Split":
		var paths []Optic
		var inner error
		data.Get("targetPaths").ForEach(func(_, p gjson.Result) bool {
			o, err := decodeOpticInline(p)
			if err != nil {
				inner = err
				return false
			}
			paths = append(paths, o)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		splitter, err := expr("splitter")
		if err != nil {
			return nil, err
		}
		combiner, err := expr("combiner")
		if err != nil {
			return nil, err
		}
		return Split{Path: at, TargetPaths: paths, Splitter: splitter, Combiner: combiner}, nil
	case "ChangeType":
		converter, err := expr("converter")
		if err != nil {
			return nil, err
		}
		inverse, err := expr("inverse")
		if err != nil {
			return nil, err
		}
		return ChangeType{Path: at, Converter: converter, Inverse: inverse}, nil
	case "RenameCase":
		return RenameCase{Path: at, From: data.Get("from").String(), To: data.Get("to").String()}, nil
	case "TransformCase":
		var nested []Action
		var inner error
		data.Get("actions").ForEach(func(_, a gjson.Result) bool {
			act, err := decodeAction(a)
			if err != nil {
				inner = err
				return false
			}
			nested = append(nested, act)
			return true
		})
		if inner != nil {
			return nil, inner
		}
		return TransformCase{Path: at, CaseName: data.Get("case").String(), Actions: nested}, nil
	case "TransformElements":
		transform, err := expr("transform")
		if err != nil {
			return nil, err
		}
		inverse, err := expr("inverse")
		if err != nil {
			return nil, err
		}
		return TransformElements{Path: at, Transform: transform, Inverse: inverse}, nil
	case "TransformKeys":
		transform, err := expr("transform")
		if err != nil {
			return nil, err
		}
		inverse, err := expr("inverse")
		if err != nil {
			return nil, err
		}
		return TransformKeys{Path: at, Transform: transform, Inverse: inverse}, nil
	case "TransformValues":
		transform, err := expr("transform")
		if err != nil {
			return nil, err
		}
		inverse, err := expr("inverse")
		if err != nil {
			return nil, err
		}
		return TransformMapValues{Path: at, Transform: transform, Inverse: inverse}, nil
	}
	return nil, errors.Errorf("unknown action type '%s'", typ)
}
