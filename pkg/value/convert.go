package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// FromAny converts plain Go data into a Value.
//
// Scalars, slices and string-keyed maps convert directly. json.Number keeps
// integers exact. Unsigned integers past math.MaxInt64 become Float, like an
// out-of-range json.Number. Structs are flattened into maps through mapstructure, so
// `mapstructure` tags choose the field names. Anything else becomes Null.
func FromAny(in any) Value {
	switch v := in.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint:
		return fromUint(uint64(v))
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		return fromUint(v)
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case string:
		return String(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i)
		}
		if f, err := v.Float64(); err == nil {
			return Float(f)
		}
		return String(v.String())
	case []Value:
		return List(v...)
	case []any:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = FromAny(item)
		}
		return List(items...)
	case map[string]any:
		fields := make(map[string]Value, len(v))
		for k, item := range v {
			fields[k] = FromAny(item)
		}
		return Map(fields)
	case map[any]any:
		fields := make(map[string]Value, len(v))
		for k, item := range v {
			fields[fmt.Sprint(k)] = FromAny(item)
		}
		return Map(fields)
	}
	return fromReflect(reflect.ValueOf(in))
}

func fromUint(u uint64) Value {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}

func fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null()
		}
		return FromAny(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromAny(rv.Index(i).Interface())
		}
		return List(items...)
	case reflect.Map:
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[fmt.Sprint(iter.Key().Interface())] = FromAny(iter.Value().Interface())
		}
		return Map(fields)
	case reflect.Struct:
		var flat map[string]any
		if err := mapstructure.Decode(rv.Interface(), &flat); err != nil {
			return Null()
		}
		return FromAny(flat)
	case reflect.String:
		return String(rv.String())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fromUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	}
	return Null()
}
