package statemachine

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindBool
	KindStringList
	KindMap
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindInt:
		return "Integer"
	case KindBool:
		return "Boolean"
	case KindStringList:
		return "List"
	case KindMap:
		return "Map"
	case KindAny:
		return "Any"
	}
	return "Invalid"
}

// Value is a single environment entry. The zero Value is invalid and is never
// equal to anything, including another zero Value.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
	list []string
	m    map[string]Value
	any  any
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func StringList(items ...string) Value {
	list := make([]string, len(items))
	copy(list, items)
	return Value{kind: KindStringList, list: list}
}

func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v.clone()
	}
	return Value{kind: KindMap, m: cp}
}

// Any wraps an opaque payload, used by actions to keep private data such as
// discovered service endpoints in the environment.
func Any(v any) Value {
	return Value{kind: KindAny, any: v}
}

// ValueOf converts plain Go values, as produced by JSON or YAML decoding, into a Value.
func ValueOf(v any) Value {
	switch val := v.(type) {
	case nil:
		return Value{}
	case Value:
		return val
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case int:
		return Int(int64(val))
	case int8:
		return Int(int64(val))
	case int16:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case uint:
		return ValueOf(uint64(val))
	case uint8:
		return Int(int64(val))
	case uint16:
		return Int(int64(val))
	case uint32:
		return Int(int64(val))
	case uint64:
		if val <= math.MaxInt64 {
			return Int(int64(val))
		}
		return Any(val)
	case float32:
		return ValueOf(float64(val))
	case float64:
		// float64(MaxInt64) rounds up to 2^63, hence the strict upper bound.
		if val == math.Trunc(val) && val >= math.MinInt64 && val < math.MaxInt64 {
			return Int(int64(val))
		}
		return Any(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i)
		}
		return Any(val.String())
	case []string:
		return StringList(val...)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return Any(val)
			}
			items = append(items, s)
		}
		return StringList(items...)
	case map[string]any:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = ValueOf(item)
		}
		return Value{kind: KindMap, m: m}
	case map[string]string:
		m := make(map[string]Value, len(val))
		for k, item := range val {
			m[k] = String(item)
		}
		return Value{kind: KindMap, m: m}
	case map[string]Value:
		return Map(val)
	}
	return Any(v)
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsStringList() ([]string, bool) {
	if v.kind != KindStringList {
		return nil, false
	}
	list := make([]string, len(v.list))
	copy(list, v.list)
	return list, true
}

func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return Map(v.m).m, true
}

func (v Value) AsAny() (any, bool) {
	return v.any, v.kind == KindAny
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == other.s
	case KindInt:
		return v.i == other.i
	case KindBool:
		return v.b == other.b
	case KindStringList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != other.list[i] {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, item := range v.m {
			o, ok := other.m[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	case KindAny:
		return reflect.DeepEqual(v.any, other.any)
	}
	return false
}

// Interface returns the plain Go representation used by JSON, jsonpath and scripts.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindStringList:
		list := make([]string, len(v.list))
		copy(list, v.list)
		return list
	case KindMap:
		m := make(map[string]any, len(v.m))
		for k, item := range v.m {
			m[k] = item.Interface()
		}
		return m
	case KindAny:
		return v.any
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindStringList:
		return "[" + strings.Join(v.list, " ") + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+":"+v.m[k].String())
		}
		return "map[" + strings.Join(parts, " ") + "]"
	case KindInvalid:
		return "<invalid>"
	}
	return fmt.Sprintf("%v", v.Interface())
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

func (v Value) clone() Value {
	switch v.kind {
	case KindStringList:
		return StringList(v.list...)
	case KindMap:
		return Map(v.m)
	}
	return v
}

// Environment is the persistent key/value store of a running state machine.
type Environment map[string]Value

func (e Environment) Get(key string) (Value, bool) {
	v, ok := e[key]
	return v, ok
}

func (e Environment) Set(key string, v Value) {
	e[key] = v
}

func (e Environment) Has(key string) bool {
	_, ok := e[key]
	return ok
}

func (e Environment) Delete(key string) {
	delete(e, key)
}

func (e Environment) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e Environment) Clone() Environment {
	cp := make(Environment, len(e))
	for k, v := range e {
		cp[k] = v.clone()
	}
	return cp
}

func (e Environment) Plain() map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		out[k] = v.Interface()
	}
	return out
}
