package models

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
)

// Unmarshaler is implemented by types that decode themselves from a Value.
type Unmarshaler interface {
	UnmarshalSurreal(v Value) error
}

var (
	valueType    = reflect.TypeOf(Value{})
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	recordIDType = reflect.TypeOf(RecordID{})
	gofrsUUID    = reflect.TypeOf(uuid.UUID{})
	uuidType     = reflect.TypeOf(UUID{})

	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
)

// Decode stores v in the value pointed to by dst.
//
// Floats decode into integers only when they hold an exact integer in range,
// integers into narrower integers only when they fit, and never a negative
// number into an unsigned integer. Objects decode into structs by field name:
// the surreal tag, then the json tag, then the Go name, then a case-insensitive
// match. A struct field missing from the object is an error unless it is a
// pointer, slice, map or interface, or is tagged optional or omitempty.
// Record ids only decode into RecordID. NONE and NULL decode into nil for
// pointers, slices, maps and interfaces and are an error for anything else.
//
// Errors match ErrTypeMismatch or ErrMissingField with errors.Is.
func Decode(v Value, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &InvalidDecodeError{Type: reflect.TypeOf(dst)}
	}
	return decodeInto(v, rv.Elem(), "")
}

// As decodes v into a new T.
func As[T any](v Value) (T, error) {
	var out T
	err := Decode(v, &out)
	return out, err
}

func decodeInto(v Value, rv reflect.Value, path string) error {
	t := rv.Type()

	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(unmarshalerType) && rv.CanAddr() {
		err := rv.Addr().Interface().(Unmarshaler).UnmarshalSurreal(v)
		return withPath(err, path)
	}

	switch t {
	case valueType:
		rv.Set(reflect.ValueOf(v))
		return nil
	case timeType:
		tm, err := asTime(v)
		if err != nil {
			return withPath(err, path)
		}
		rv.Set(reflect.ValueOf(tm))
		return nil
	case durationType:
		d, err := asDuration(v)
		if err != nil {
			return withPath(err, path)
		}
		rv.SetInt(int64(d))
		return nil
	case recordIDType:
		rid, err := v.AsRecordID()
		if err != nil {
			return withPath(err, path)
		}
		rv.Set(reflect.ValueOf(rid))
		return nil
	case gofrsUUID, uuidType:
		u, err := asUUID(v)
		if err != nil {
			return withPath(err, path)
		}
		if t == uuidType {
			rv.Set(reflect.ValueOf(UUID{u}))
		} else {
			rv.Set(reflect.ValueOf(u))
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		if v.IsNullish() {
			rv.Set(reflect.Zero(t))
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(t.Elem()))
		}
		return decodeInto(v, rv.Elem(), path)
	case reflect.Interface:
		if v.IsNullish() {
			rv.Set(reflect.Zero(t))
			return nil
		}
		natural := reflect.ValueOf(v.Interface())
		if !natural.Type().Implements(t) {
			return mismatch(v, t, path, "")
		}
		rv.Set(natural)
		return nil
	case reflect.Slice, reflect.Map:
		if v.IsNullish() {
			rv.Set(reflect.Zero(t))
			return nil
		}
	}

	if v.IsNullish() {
		return mismatch(v, t, path, "")
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := v.AsBool()
		if err != nil {
			return withPath(err, path)
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := v.AsInt()
		if err != nil {
			return withPath(retype(err, t), path)
		}
		if rv.OverflowInt(n) {
			return mismatch(v, t, path, fmt.Sprintf("%d overflows %s", n, t))
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := asUint(v)
		if err != nil {
			return withPath(retype(err, t), path)
		}
		if rv.OverflowUint(n) {
			return mismatch(v, t, path, fmt.Sprintf("%d overflows %s", n, t))
		}
		rv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := v.AsFloat()
		if err != nil {
			return withPath(retype(err, t), path)
		}
		if rv.OverflowFloat(f) {
			return mismatch(v, t, path, fmt.Sprintf("%v overflows %s", f, t))
		}
		rv.SetFloat(f)
	case reflect.String:
		switch v.kind {
		case KindString, KindDecimal, KindTable:
			rv.SetString(v.s)
		case KindUUID:
			rv.SetString(v.u.String())
		default:
			return mismatch(v, t, path, "")
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 && v.kind == KindBytes {
			rv.SetBytes(append([]byte(nil), v.raw...))
			return nil
		}
		items, err := v.AsArray()
		if err != nil {
			return mismatch(v, t, path, "")
		}
		out := reflect.MakeSlice(t, len(items), len(items))
		for i, item := range items {
			if err := decodeInto(item, out.Index(i), indexPath(path, i)); err != nil {
				return err
			}
		}
		rv.Set(out)
	case reflect.Array:
		items, err := v.AsArray()
		if err != nil {
			return mismatch(v, t, path, "")
		}
		if len(items) != t.Len() {
			return mismatch(v, t, path, fmt.Sprintf("array of %d items into %s", len(items), t))
		}
		for i, item := range items {
			if err := decodeInto(item, rv.Index(i), indexPath(path, i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return mismatch(v, t, path, "map keys must be strings")
		}
		obj, err := v.AsObject()
		if err != nil {
			return mismatch(v, t, path, "")
		}
		out := reflect.MakeMapWithSize(t, len(obj))
		for k, item := range obj {
			elem := reflect.New(t.Elem()).Elem()
			if err := decodeInto(item, elem, fieldPath(path, k)); err != nil {
				return err
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), elem)
		}
		rv.Set(out)
	case reflect.Struct:
		obj, err := v.AsObject()
		if err != nil {
			return mismatch(v, t, path, "")
		}
		for _, f := range structFields(t) {
			item, ok := lookupField(obj, f.name)
			if !ok {
				if f.optional {
					continue
				}
				return &MissingFieldError{Field: f.name, Path: fieldPath(path, f.name)}
			}
			if err := decodeInto(item, rv.FieldByIndex(f.index), fieldPath(path, f.name)); err != nil {
				return err
			}
		}
	default:
		return mismatch(v, t, path, "unsupported target type")
	}
	return nil
}

func asTime(v Value) (time.Time, error) {
	if v.kind == KindString {
		t, err := time.Parse(time.RFC3339Nano, v.s)
		if err != nil {
			return time.Time{}, &TypeMismatchError{Expected: "datetime", Found: v.kind, Detail: err.Error()}
		}
		return t, nil
	}
	return v.AsTime()
}

func asDuration(v Value) (time.Duration, error) {
	if v.kind == KindString {
		d, err := ParseDuration(v.s)
		if err != nil {
			return 0, &TypeMismatchError{Expected: "duration", Found: v.kind, Detail: err.Error()}
		}
		return d, nil
	}
	return v.AsDuration()
}

func asUUID(v Value) (uuid.UUID, error) {
	if v.kind == KindString {
		u, err := uuid.FromString(v.s)
		if err != nil {
			return uuid.Nil, &TypeMismatchError{Expected: "uuid", Found: v.kind, Detail: err.Error()}
		}
		return u, nil
	}
	return v.AsUUID()
}

func asUint(v Value) (uint64, error) {
	if v.kind == KindDecimal {
		n, err := decimalInt(v.s)
		switch {
		case err != nil:
			return 0, &TypeMismatchError{Expected: "uint", Found: v.kind, Detail: err.Error()}
		case n.Sign() < 0:
			return 0, &TypeMismatchError{Expected: "uint", Found: v.kind, Detail: v.s + " is negative"}
		case !n.IsUint64():
			return 0, &TypeMismatchError{Expected: "uint", Found: v.kind, Detail: v.s + " overflows uint64"}
		}
		return n.Uint64(), nil
	}
	n, err := v.AsInt()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &TypeMismatchError{Expected: "uint", Found: v.kind, Detail: fmt.Sprintf("%d is negative", n)}
	}
	return uint64(n), nil
}

func mismatch(v Value, t reflect.Type, path, detail string) error {
	return &TypeMismatchError{Path: path, Expected: t.String(), Found: v.kind, Detail: detail}
}

// retype names the concrete Go type in an accessor's mismatch error.
func retype(err error, t reflect.Type) error {
	if tm, ok := err.(*TypeMismatchError); ok {
		tm.Expected = t.String()
	}
	return err
}

func withPath(err error, path string) error {
	if tm, ok := err.(*TypeMismatchError); ok && tm.Path == "" {
		tm.Path = path
	}
	if mf, ok := err.(*MissingFieldError); ok && mf.Path == "" {
		mf.Path = path
	}
	return err
}

func fieldPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
