// Package jsval serializes storage values with JSON-compatible semantics.
//
// The encoding reproduces the quirks of JSON.stringify as a CONTRACT, not a
// bug: callers migrating objects between runtimes depend on the stored bytes
// matching exactly. In particular:
//
//   - object fields holding Undefined are omitted
//   - NaN and ±Infinity encode as null
//   - time.Time encodes as an ISO-8601 string with millisecond precision
//   - Map and Set wrappers encode as the empty object {}
//   - big.Int values fail instead of silently truncating
//   - nil array elements encode as null
//
// Do not "fix" any of these to be more intuitive.
package jsval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/warrenhq/warren/internal/warrenerr"
)

// Undefined is the sentinel for a missing value. Object fields holding it
// are dropped from the encoded form; array elements holding it encode as
// null.
var Undefined = undefinedValue{}

type undefinedValue struct{}

// Map mirrors a keyed collection whose entries are NOT enumerable own
// properties. It always encodes as {} regardless of contents.
type Map struct {
	Entries map[string]any
}

// Set mirrors a membership collection. Like Map, it always encodes as {}.
type Set struct {
	Members []any
}

// isoMillis is the wire layout for timestamps: UTC, millisecond precision,
// trailing Z.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Marshal encodes v under the package's JSON-compatible contract.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes stored bytes into generic values: nil, bool, float64,
// string, []any, map[string]any.
func Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, warrenerr.Wrap(warrenerr.CodeValidation, "decode stored value", err)
	}
	return v, nil
}

func encode(buf *bytes.Buffer, rv reflect.Value) error {
	if !rv.IsValid() {
		buf.WriteString("null")
		return nil
	}

	if !rv.CanInterface() {
		return warrenerr.Newf(warrenerr.CodeValidation,
			"unsupported value type %s", rv.Type())
	}

	// Concrete special cases come before the generic kind switch.
	switch v := rv.Interface().(type) {
	case undefinedValue:
		// A bare undefined has no object context to be dropped from.
		buf.WriteString("null")
		return nil
	case Map, *Map, Set, *Set:
		buf.WriteString("{}")
		return nil
	case time.Time:
		return encodeString(buf, v.UTC().Format(isoMillis))
	case *time.Time:
		if v == nil {
			buf.WriteString("null")
			return nil
		}
		return encodeString(buf, v.UTC().Format(isoMillis))
	case big.Int, *big.Int:
		return warrenerr.New(warrenerr.CodeValidation,
			"arbitrary-precision integers cannot be represented in stored values")
	case json.Marshaler:
		raw, err := v.MarshalJSON()
		if err != nil {
			return warrenerr.Wrap(warrenerr.CodeValidation, "marshal value", err)
		}
		buf.Write(raw)
		return nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return encode(buf, rv.Elem())
	case reflect.Bool:
		if rv.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case reflect.String:
		return encodeString(buf, rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fmt.Fprintf(buf, "%d", rv.Int())
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fmt.Fprintf(buf, "%d", rv.Uint())
		return nil
	case reflect.Float32, reflect.Float64:
		return encodeFloat(buf, rv.Float())
	case reflect.Slice, reflect.Array:
		return encodeArray(buf, rv)
	case reflect.Map:
		return encodeMap(buf, rv)
	case reflect.Struct:
		return encodeStruct(buf, rv)
	default:
		return warrenerr.Newf(warrenerr.CodeValidation,
			"unsupported value type %s", rv.Type())
	}
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc, err := json.Marshal(s)
	if err != nil {
		return warrenerr.Wrap(warrenerr.CodeValidation, "marshal string", err)
	}
	buf.Write(enc)
	return nil
}

// encodeFloat maps NaN and ±Inf to null; finite floats use the shortest
// round-trip representation encoding/json would produce.
func encodeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		buf.WriteString("null")
		return nil
	}
	enc, err := json.Marshal(f)
	if err != nil {
		return warrenerr.Wrap(warrenerr.CodeValidation, "marshal number", err)
	}
	buf.Write(enc)
	return nil
}

func encodeArray(buf *bytes.Buffer, rv reflect.Value) error {
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		buf.WriteString("null")
		return nil
	}
	buf.WriteByte('[')
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		elem := rv.Index(i)
		// Undefined inside an array becomes null, matching sparse holes.
		if elem.IsValid() && elem.CanInterface() {
			if _, isUndef := elem.Interface().(undefinedValue); isUndef {
				buf.WriteString("null")
				continue
			}
		}
		if err := encode(buf, elem); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func encodeMap(buf *bytes.Buffer, rv reflect.Value) error {
	if rv.Type().Key().Kind() != reflect.String {
		return warrenerr.Newf(warrenerr.CodeValidation,
			"map keys must be strings, got %s", rv.Type().Key())
	}
	if rv.IsNil() {
		buf.WriteString("null")
		return nil
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	first := true
	for _, k := range keys {
		val := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key()))
		if isUndefined(val) {
			continue // dropped, not encoded as null
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, val); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeStruct(buf *bytes.Buffer, rv reflect.Value) error {
	rt := rv.Type()
	buf.WriteByte('{')
	first := true
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		val := rv.Field(i)
		if isUndefined(val) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		if err := encodeString(buf, name); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, val); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func isUndefined(rv reflect.Value) bool {
	for rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || !rv.CanInterface() {
		return false
	}
	_, ok := rv.Interface().(undefinedValue)
	return ok
}
