package morph

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// FromYAML parses a YAML document into a dynamic value. Mappings with
// string keys become records with their field order preserved; mappings
// with other key types become maps.
func FromYAML(data []byte) (DynamicValue, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return mapSliceToValue(doc)
	}
	// Not a mapping at the root; fall back to a bare value.
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, newValidationError("yaml: %s", err)
	}
	return FromInterface(raw)
}

// ToYAML renders a dynamic value as a YAML document.
func ToYAML(v DynamicValue) ([]byte, error) {
	return yaml.Marshal(valueToInterface(v))
}

func mapSliceToValue(doc yaml.MapSlice) (DynamicValue, error) {
	allStrings := true
	for _, item := range doc {
		if _, ok := item.Key.(string); !ok {
			allStrings = false
			break
		}
	}
	if allStrings {
		fields := make([]RecordField, len(doc))
		for i, item := range doc {
			fv, err := FromInterface(item.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = RecordField{Name: item.Key.(string), Value: fv}
		}
		return &Record{Fields: fields}, nil
	}
	entries := make([]MapEntry, len(doc))
	for i, item := range doc {
		k, err := FromInterface(item.Key)
		if err != nil {
			return nil, err
		}
		v, err := FromInterface(item.Value)
		if err != nil {
			return nil, err
		}
		entries[i] = MapEntry{Key: k, Value: v}
	}
	return &Map{Entries: entries}, nil
}

// FromInterface converts a plain decoded Go value (the shape yaml and json
// decoders produce) into a dynamic value.
func FromInterface(raw interface{}) (DynamicValue, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int64(int64(v)), nil
	case int64:
		return Int64(v), nil
	case float64:
		return Float64(v), nil
	case string:
		return String(v), nil
	case yaml.MapSlice:
		return mapSliceToValue(v)
	case map[interface{}]interface{}:
		// Unordered fallback for decoders without MapSlice support.
		entries := make([]MapEntry, 0, len(v))
		for k, val := range v {
			kv, err := FromInterface(k)
			if err != nil {
				return nil, err
			}
			vv, err := FromInterface(val)
			if err != nil {
				return nil, err
			}
			entries = append(entries, MapEntry{Key: kv, Value: vv})
		}
		return &Map{Entries: entries}, nil
	case map[string]interface{}:
		fields := make([]RecordField, 0, len(v))
		for k, val := range v {
			vv, err := FromInterface(val)
			if err != nil {
				return nil, err
			}
			fields = append(fields, RecordField{Name: k, Value: vv})
		}
		return &Record{Fields: fields}, nil
	case []interface{}:
		elements := make([]DynamicValue, len(v))
		for i, e := range v {
			ev, err := FromInterface(e)
			if err != nil {
				return nil, err
			}
			elements[i] = ev
		}
		return &Sequence{Elements: elements}, nil
	}
	return nil, newValidationError("cannot represent %T as a dynamic value", raw)
}

// valueToInterface lowers a dynamic value to the plain shapes yaml emits.
func valueToInterface(v DynamicValue) interface{} {
	switch val := v.(type) {
	case *Primitive:
		switch val.Kind {
		case KindUnit:
			return nil
		case KindBool:
			return val.Bool
		case KindInt8, KindInt16, KindInt32, KindInt64:
			return val.Int
		case KindFloat32, KindFloat64:
			return val.Flt
		case KindString:
			return val.Str
		default:
			return val.Text()
		}
	case *Record:
		out := make(yaml.MapSlice, len(val.Fields))
		for i, f := range val.Fields {
			out[i] = yaml.MapItem{Key: f.Name, Value: valueToInterface(f.Value)}
		}
		return out
	case *Sequence:
		out := make([]interface{}, len(val.Elements))
		for i, e := range val.Elements {
			out[i] = valueToInterface(e)
		}
		return out
	case *Map:
		out := make(yaml.MapSlice, len(val.Entries))
		for i, e := range val.Entries {
			out[i] = yaml.MapItem{Key: valueToInterface(e.Key), Value: valueToInterface(e.Value)}
		}
		return out
	case *Variant:
		return yaml.MapSlice{yaml.MapItem{Key: val.Case, Value: valueToInterface(val.Value)}}
	case Null:
		return nil
	}
	return fmt.Sprintf("%v", v)
}
