package models

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
)

// ValueOf converts a Go value into a Value, following the same field naming
// rules Decode uses. Fields tagged omitempty are left out when zero.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return NullValue(), nil
		}
		return *t, nil
	case CustomNil:
		return NoneValue(), nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case float64:
		return FloatValue(t), nil
	case string:
		return StringValue(t), nil
	case []byte:
		return BytesValue(t), nil
	case time.Time:
		return DatetimeValue(t), nil
	case CustomDateTime:
		return DatetimeValue(t.Time), nil
	case time.Duration:
		return DurationValue(t), nil
	case CustomDuration:
		return DurationValue(time.Duration(t)), nil
	case RecordID:
		return RecordIDValue(t), nil
	case *RecordID:
		if t == nil {
			return NullValue(), nil
		}
		return RecordIDValue(*t), nil
	case Table:
		return TableValue(t), nil
	case Decimal:
		return DecimalValue(string(t)), nil
	case UUID:
		return UUIDValue(t.UUID), nil
	case uuid.UUID:
		return UUIDValue(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return ObjectValue(fields), nil
	}
	return valueOfReflect(reflect.ValueOf(x))
}

func valueOfReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NullValue(), nil
		}
		return ValueOf(rv.Elem().Interface())
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n > math.MaxInt64 {
			return DecimalValue(strconv.FormatUint(n, 10)), nil
		}
		return IntValue(int64(n)), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), nil
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return NullValue(), nil
		}
		fallthrough
	case reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("cannot convert %s: map keys must be strings", rv.Type())
		}
		if rv.IsNil() {
			return NullValue(), nil
		}
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			v, err := ValueOf(iter.Value().Interface())
			if err != nil {
				return Value{}, err
			}
			fields[iter.Key().String()] = v
		}
		return ObjectValue(fields), nil
	case reflect.Struct:
		fields := map[string]Value{}
		for _, f := range structFields(rv.Type()) {
			fv := rv.FieldByIndex(f.index)
			if f.omitempty && fv.IsZero() {
				continue
			}
			v, err := ValueOf(fv.Interface())
			if err != nil {
				return Value{}, err
			}
			fields[f.name] = v
		}
		return ObjectValue(fields), nil
	}
	return Value{}, fmt.Errorf("cannot convert %s to a SurrealDB value", rv.Type())
}
