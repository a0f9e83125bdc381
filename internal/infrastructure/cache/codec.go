package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"
)

// Values JSON cannot carry faithfully are stored as tagged objects:
//
//	{"__kind__": "datetime", "value": "2024-01-02T15:04:05.999999999Z"}
const (
	kindKey  = "__kind__"
	valueKey = "value"

	KindDatetime = "datetime"
)

var marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

// Marshal serializes v to JSON, passing every value through encodeHook.
func Marshal(v any) ([]byte, error) {
	tree, err := toTree(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// Unmarshal is the inverse of Marshal. Tagged objects are restored through
// decodeHook before the result is stored in out, which must be a non-nil
// pointer.
func Unmarshal(data []byte, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("cache: unmarshal target must be a non-nil pointer")
	}

	// numbers stay json.Number until the target type is known
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("cache: trailing data after cached value")
	}
	tree, err := fromTree(raw)
	if err != nil {
		return err
	}

	target := rv.Elem()
	if tree == nil {
		target.SetZero()
		return nil
	}
	if reflect.TypeOf(tree).AssignableTo(target.Type()) {
		if plain := reflect.ValueOf(plainNumbers(tree)); plain.Type().AssignableTo(target.Type()) {
			target.Set(plain)
			return nil
		}
	}

	// typed targets decode from the plain JSON form of the restored tree
	buf, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

func encodeHook(v any) (any, bool) {
	switch x := v.(type) {
	case time.Time:
		return map[string]any{kindKey: KindDatetime, valueKey: x.Format(time.RFC3339Nano)}, true
	}
	return nil, false
}

func decodeHook(m map[string]any) (any, bool, error) {
	kind, ok := m[kindKey].(string)
	if !ok {
		return nil, false, nil
	}
	raw, _ := m[valueKey].(string)

	switch kind {
	case KindDatetime:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, true, fmt.Errorf("cache: decode %s: %w", kind, err)
		}
		return t, true, nil
	}
	return nil, true, fmt.Errorf("cache: unknown kind %q", kind)
}

func toTree(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if v.CanInterface() {
		if out, ok := encodeHook(v.Interface()); ok {
			return out, nil
		}
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return toTree(v.Elem())
	}

	if v.Type().Implements(marshalerType) {
		return v.Interface(), nil
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		promoted := make(map[string]any)
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name, tagged := f.Name, false
			if tag, ok := f.Tag.Lookup("json"); ok {
				n, _, _ := strings.Cut(tag, ",")
				if n == "-" {
					continue
				}
				if n != "" {
					name, tagged = n, true
				}
			}
			val, err := toTree(v.Field(i))
			if err != nil {
				return nil, err
			}
			if f.Anonymous && !tagged {
				// embedded structs are flattened like encoding/json does
				if m, ok := val.(map[string]any); ok {
					for k, item := range m {
						promoted[k] = item
					}
					continue
				}
				if val == nil && f.Type.Kind() == reflect.Pointer {
					continue
				}
			}
			out[name] = val
		}
		for k, item := range promoted {
			if _, ok := out[k]; !ok {
				out[k] = item
			}
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), nil
		}
		fallthrough
	case reflect.Array:
		out := make([]any, v.Len())
		for i := range out {
			val, err := toTree(v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("cache: unsupported map key type %s", v.Type().Key())
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val, err := toTree(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = val
		}
		return out, nil

	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, fmt.Errorf("cache: unsupported type %s", v.Type())
	}
	return v.Interface(), nil
}

func fromTree(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if out, ok, err := decodeHook(x); ok || err != nil {
			return out, err
		}
		for k, item := range x {
			val, err := fromTree(item)
			if err != nil {
				return nil, err
			}
			x[k] = val
		}
		return x, nil
	case []any:
		for i, item := range x {
			val, err := fromTree(item)
			if err != nil {
				return nil, err
			}
			x[i] = val
		}
		return x, nil
	}
	return v, nil
}

// plainNumbers turns json.Number back into the float64 encoding/json
// produces for untyped targets.
func plainNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, item := range x {
			x[k] = plainNumbers(item)
		}
	case []any:
		for i, item := range x {
			x[i] = plainNumbers(item)
		}
	}
	return v
}
