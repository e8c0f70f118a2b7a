package mcp

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"

	jsonpool "github.com/ajitpratap0/mcpbridge/pkg/json"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindObject
)

var kindNames = [...]string{"null", "string", "int", "float", "bool", "list", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a single request parameter. It holds exactly one of: null, string,
// integer, float, bool, a list of values or a nested Params object. The zero
// Value is null.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	list []Value
	obj  Params
}

// Params maps request parameter names to values. Iteration order carries no
// meaning; use Names for a deterministic order.
type Params map[string]Value

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list value.
func List(items ...Value) Value {
	out := make([]Value, len(items))
	copy(out, items)
	return Value{kind: KindList, list: out}
}

// Object returns a nested object value.
func Object(p Params) Value {
	if p == nil {
		p = Params{}
	}
	return Value{kind: KindObject, obj: p.Clone()}
}

// Kind reports the kind of value held.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string held by v.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// IntValue returns the integer held by v.
func (v Value) IntValue() (int64, bool) { return v.i, v.kind == KindInt }

// FloatValue returns v as a float when it holds a number.
func (v Value) FloatValue() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// BoolValue returns the bool held by v.
func (v Value) BoolValue() (bool, bool) { return v.b, v.kind == KindBool }

// Items returns the elements of a list value.
func (v Value) Items() ([]Value, bool) { return v.list, v.kind == KindList }

// Fields returns the members of an object value.
func (v Value) Fields() (Params, bool) { return v.obj, v.kind == KindObject }

// String renders the value for use in a URL path segment or query string.
// Strings are returned verbatim, numbers without trailing zeros and
// composite values as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		data, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// QueryValues renders the value as one or more query string values. Lists
// expand to one entry per element.
func (v Value) QueryValues() []string {
	if v.kind != KindList {
		return []string{v.String()}
	}
	out := make([]string, 0, len(v.list))
	for _, item := range v.list {
		out = append(out, item.String())
	}
	return out
}

// Interface converts the value into plain Go data (string, int64, float64,
// bool, []interface{}, map[string]interface{} or nil).
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		return v.obj.ToMap()
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return jsonpool.Marshal(v.list)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return jsonpool.Marshal(map[string]Value(v.obj))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("mcp: unsupported float value %v", v.f)
		}
		return jsonpool.Marshal(v.f)
	default:
		return jsonpool.Marshal(v.Interface())
	}
}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers decode to
// KindInt, other numbers to KindFloat.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := jsonpool.UnmarshalUseNumber(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts plain Go data into a Value. Supported inputs are nil,
// Value, strings, bools, all integer and float types, json numbers, slices
// and string-keyed maps of supported inputs.
func ValueOf(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case Params:
		return Object(t), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return Value{}, fmt.Errorf("mcp: integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Value{}, fmt.Errorf("mcp: integer %d overflows int64", t)
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case jsonpool.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("mcp: invalid number %q", t.String())
		}
		return Float(f), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Value{kind: KindList, list: items}, nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = String(s)
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]interface{}:
		p, err := ParamsFrom(t)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindObject, obj: p}, nil
	case map[string]string:
		p := make(Params, len(t))
		for k, s := range t {
			p[k] = String(s)
		}
		return Value{kind: KindObject, obj: p}, nil
	}

	// Fall back to reflection for named slice types.
	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Slice {
		items := make([]Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Value{kind: KindList, list: items}, nil
	}

	return Value{}, fmt.Errorf("mcp: unsupported parameter type %T", x)
}

// ParamsFrom converts a string-keyed map of plain Go data into Params.
func ParamsFrom(m map[string]interface{}) (Params, error) {
	p := make(Params, len(m))
	for k, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		p[k] = v
	}
	return p, nil
}

// Get returns the named parameter.
func (p Params) Get(name string) (Value, bool) {
	v, ok := p[name]
	return v, ok
}

// Names returns the parameter names in sorted order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

// ToMap converts p into plain Go data.
func (p Params) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

func (v Value) clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.clone()
		}
		v.list = items
	case KindObject:
		v.obj = v.obj.Clone()
	}
	return v
}
