package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
)

// Value is a tagged-sum representation of a record field's dynamic payload,
// the Go analog of the JSON value a request body carries before it's coerced
// against a field's declared FieldType.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	List  []Value
	Map   map[string]Value
}

func NullValue() Value            { return Value{Kind: KindNull} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func BytesValue(b []byte) Value   { return Value{Kind: KindBytes, Bytes: b} }
func ListValue(v []Value) Value   { return Value{Kind: KindList, List: v} }
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// IsNull reports whether the value is the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

var truthyStrings = map[string]bool{
	"true": true, "1": true, "yes": true, "on": true,
	"false": false, "0": false, "no": false, "off": false,
}

// Coerce converts v into the representation demanded by FieldType ft,
// validating against enumValues when ft is FieldEnum. It mirrors the original
// gateway's permissive-input, strict-output conversion: strings are accepted
// for numeric/boolean/date types and parsed, not just type-asserted.
func Coerce(v Value, ft FieldType, enumValues []Value) (Value, error) {
	if v.IsNull() {
		return v, nil
	}

	switch ft {
	case FieldString, FieldText, FieldFile:
		return coerceString(v)
	case FieldInt:
		return coerceInt(v)
	case FieldFloat:
		return coerceFloat(v)
	case FieldBoolean:
		return coerceBool(v)
	case FieldDate:
		return coerceTime(v, "2006-01-02")
	case FieldDateTime:
		return coerceTime(v, time.RFC3339)
	case FieldEnum:
		sv, err := coerceString(v)
		if err != nil {
			return Value{}, err
		}
		for _, allowed := range enumValues {
			if allowed.Kind == KindString && allowed.Str == sv.Str {
				return sv, nil
			}
		}
		return Value{}, fmt.Errorf("%w: value %q is not one of the declared enum values", ErrValueInvalid, sv.Str)
	case FieldJSON, FieldArray:
		return v, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown field type %q", ErrValueInvalid, ft)
	}
}

func coerceString(v Value) (Value, error) {
	switch v.Kind {
	case KindString:
		return v, nil
	case KindInt:
		return StringValue(strconv.FormatInt(v.Int, 10)), nil
	case KindFloat:
		return StringValue(strconv.FormatFloat(v.Float, 'f', -1, 64)), nil
	case KindBool:
		return StringValue(strconv.FormatBool(v.Bool)), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot coerce %v to string", ErrValueInvalid, v.Kind)
	}
}

func coerceInt(v Value) (Value, error) {
	switch v.Kind {
	case KindInt:
		return v, nil
	case KindFloat:
		return IntValue(int64(v.Float)), nil
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an integer", ErrValueInvalid, v.Str)
		}
		return IntValue(i), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot coerce %v to int", ErrValueInvalid, v.Kind)
	}
}

func coerceFloat(v Value) (Value, error) {
	switch v.Kind {
	case KindFloat:
		return v, nil
	case KindInt:
		return FloatValue(float64(v.Int)), nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a float", ErrValueInvalid, v.Str)
		}
		return FloatValue(f), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot coerce %v to float", ErrValueInvalid, v.Kind)
	}
}

func coerceBool(v Value) (Value, error) {
	switch v.Kind {
	case KindBool:
		return v, nil
	case KindString:
		b, ok := truthyStrings[strings.ToLower(strings.TrimSpace(v.Str))]
		if !ok {
			return Value{}, fmt.Errorf("%w: %q is not a recognized boolean", ErrValueInvalid, v.Str)
		}
		return BoolValue(b), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot coerce %v to boolean", ErrValueInvalid, v.Kind)
	}
}

func coerceTime(v Value, layout string) (Value, error) {
	s, err := coerceString(v)
	if err != nil {
		return Value{}, err
	}
	if _, err := time.Parse(layout, s.Str); err != nil {
		return Value{}, fmt.Errorf("%w: %q does not match layout %q", ErrValueInvalid, s.Str, layout)
	}
	return s, nil
}

// MarshalJSON renders v as the plain JSON value it represents, not its
// internal tagged-union shape. Bytes are base64-encoded since JSON has no
// binary type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.Bool)
	case KindInt:
		return json.Marshal(v.Int)
	case KindFloat:
		return json.Marshal(v.Float)
	case KindString:
		return json.Marshal(v.Str)
	case KindBytes:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.Bytes))
	case KindList:
		return json.Marshal(v.List)
	case KindMap:
		return json.Marshal(v.Map)
	default:
		return nil, fmt.Errorf("%w: unknown value kind %d", ErrValueInvalid, v.Kind)
	}
}

// UnmarshalJSON populates v from a plain JSON value, inferring the Kind from
// the JSON shape (object, array, string, number, bool, or null). Numbers
// without a fractional part or exponent decode as KindInt.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	decoded, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func valueFromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrValueInvalid, t.String())
		}
		return FloatValue(f), nil
	case []any:
		list := make([]Value, len(t))
		for i, item := range t {
			iv, err := valueFromAny(item)
			if err != nil {
				return Value{}, err
			}
			list[i] = iv
		}
		return ListValue(list), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			iv, err := valueFromAny(item)
			if err != nil {
				return Value{}, err
			}
			m[k] = iv
		}
		return MapValue(m), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported JSON value %T", ErrValueInvalid, raw)
	}
}
