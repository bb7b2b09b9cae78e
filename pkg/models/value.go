package models

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// Kind identifies which variant of the SurrealDB value model a Value holds.
type Kind uint8

const (
	// KindNone is SurrealDB's NONE, the absence of a value.
	// It is also the zero Kind, so a zero Value is NONE.
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindObject
	KindRecordID
	KindDatetime
	KindDuration
	KindUUID
	KindDecimal
	KindTable
	KindBytes
)

var kindNames = [...]string{
	KindNone:     "none",
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindArray:    "array",
	KindObject:   "object",
	KindRecordID: "record",
	KindDatetime: "datetime",
	KindDuration: "duration",
	KindUUID:     "uuid",
	KindDecimal:  "decimal",
	KindTable:    "table",
	KindBytes:    "bytes",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a SurrealDB value as received over the wire, before it is decoded
// into a caller's type. Both connection engines normalise their replies into
// Values, so the decoding rules do not depend on the wire format.
//
// Value is immutable once constructed. Only the field matching Kind is set.
type Value struct {
	kind Kind

	b   bool
	i   int64
	f   float64
	s   string // string, decimal and table
	arr []Value
	obj map[string]Value
	rid RecordID
	t   time.Time
	d   time.Duration
	u   uuid.UUID
	raw []byte
}

func NoneValue() Value { return Value{kind: KindNone} }

func NullValue() Value { return Value{kind: KindNull} }

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func ObjectValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, obj: fields}
}

func RecordIDValue(r RecordID) Value { return Value{kind: KindRecordID, rid: r} }

func DatetimeValue(t time.Time) Value { return Value{kind: KindDatetime, t: t} }

func DurationValue(d time.Duration) Value { return Value{kind: KindDuration, d: d} }

func UUIDValue(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

func DecimalValue(s string) Value { return Value{kind: KindDecimal, s: s} }

func TableValue(t Table) Value { return Value{kind: KindTable, s: string(t)} }

func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNone() bool { return v.kind == KindNone }

func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNullish reports whether v is NONE or NULL.
func (v Value) IsNullish() bool { return v.kind == KindNone || v.kind == KindNull }

func (v Value) mismatch(expected string) error {
	return &TypeMismatchError{Expected: expected, Found: v.kind}
}

func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, v.mismatch("bool")
	}
	return v.b, nil
}

// AsInt returns integers as-is, and floats and decimals that hold an exact
// integer.
func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		if i, ok := exactInt(v.f); ok {
			return i, nil
		}
		return 0, &TypeMismatchError{Expected: "int", Found: v.kind, Detail: fmt.Sprintf("%v is not an exact integer", v.f)}
	case KindDecimal:
		n, err := decimalInt(v.s)
		if err != nil {
			return 0, &TypeMismatchError{Expected: "int", Found: v.kind, Detail: err.Error()}
		}
		if !n.IsInt64() {
			return 0, &TypeMismatchError{Expected: "int", Found: v.kind, Detail: v.s + " overflows int64"}
		}
		return n.Int64(), nil
	}
	return 0, v.mismatch("int")
}

// decimalInt parses s when it holds an exact integer, e.g. "5", "5.0" or "5e2".
func decimalInt(s string) (*big.Int, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%q is not a decimal", s)
	}
	if !r.IsInt() {
		return nil, fmt.Errorf("%s is not an exact integer", s)
	}
	return r.Num(), nil
}

func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	case KindDecimal:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0, &TypeMismatchError{Expected: "float", Found: v.kind, Detail: err.Error()}
		}
		return f, nil
	}
	return 0, v.mismatch("float")
}

func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch("string")
	}
	return v.s, nil
}

// AsArray returns the items of an array. The slice is shared; do not modify it.
func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, v.mismatch("array")
	}
	return v.arr, nil
}

// AsObject returns the fields of an object. The map is shared; do not modify it.
func (v Value) AsObject() (map[string]Value, error) {
	if v.kind != KindObject {
		return nil, v.mismatch("object")
	}
	return v.obj, nil
}

func (v Value) AsRecordID() (RecordID, error) {
	if v.kind != KindRecordID {
		return RecordID{}, v.mismatch("record")
	}
	return v.rid, nil
}

func (v Value) AsTime() (time.Time, error) {
	if v.kind != KindDatetime {
		return time.Time{}, v.mismatch("datetime")
	}
	return v.t, nil
}

func (v Value) AsDuration() (time.Duration, error) {
	if v.kind != KindDuration {
		return 0, v.mismatch("duration")
	}
	return v.d, nil
}

func (v Value) AsUUID() (uuid.UUID, error) {
	if v.kind != KindUUID {
		return uuid.Nil, v.mismatch("uuid")
	}
	return v.u, nil
}

func (v Value) AsDecimal() (string, error) {
	if v.kind != KindDecimal {
		return "", v.mismatch("decimal")
	}
	return v.s, nil
}

func (v Value) AsTable() (Table, error) {
	if v.kind != KindTable {
		return "", v.mismatch("table")
	}
	return Table(v.s), nil
}

func (v Value) AsBytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, v.mismatch("bytes")
	}
	return v.raw, nil
}

// Len is the number of items of an array or fields of an object, 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	}
	return 0
}

// Get returns the field key of an object. The second result is false when v is
// not an object or has no such field.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[key]
	return f, ok
}

// Interface returns the natural Go form of v:
// nil, bool, int64, float64, string, []any, map[string]any, RecordID,
// time.Time, time.Duration, UUID, Decimal, Table or []byte.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	case KindRecordID:
		return v.rid
	case KindDatetime:
		return v.t
	case KindDuration:
		return v.d
	case KindUUID:
		return UUID{UUID: v.u}
	case KindDecimal:
		return Decimal(v.s)
	case KindTable:
		return Table(v.s)
	case KindBytes:
		return v.raw
	}
	return nil
}

// Equal reports deep equality. Ints and floats are never equal to each other.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone, KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString, KindDecimal, KindTable:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, item := range v.obj {
			other, ok := o.obj[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	case KindRecordID:
		return v.rid.Equal(o.rid)
	case KindDatetime:
		return v.t.Equal(o.t)
	case KindDuration:
		return v.d == o.d
	case KindUUID:
		return v.u == o.u
	case KindBytes:
		return string(v.raw) == string(o.raw)
	}
	return false
}

// String renders v in SurrealQL-like notation, for logs and debugging.
func (v Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v Value) writeTo(sb *strings.Builder) {
	switch v.kind {
	case KindNone:
		sb.WriteString("NONE")
	case KindNull:
		sb.WriteString("NULL")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
		sb.WriteString("f")
	case KindString:
		sb.WriteString(strconv.Quote(v.s))
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeTo(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			item := v.obj[k]
			item.writeTo(sb)
		}
		sb.WriteByte('}')
	case KindRecordID:
		sb.WriteString(v.rid.String())
	case KindDatetime:
		sb.WriteString("d'")
		sb.WriteString(v.t.UTC().Format(time.RFC3339Nano))
		sb.WriteByte('\'')
	case KindDuration:
		sb.WriteString(FormatDuration(v.d))
	case KindUUID:
		sb.WriteString("u'")
		sb.WriteString(v.u.String())
		sb.WriteByte('\'')
	case KindDecimal:
		sb.WriteString(v.s)
		sb.WriteString("dec")
	case KindTable:
		sb.WriteString(v.s)
	case KindBytes:
		fmt.Fprintf(sb, "<bytes>%x", v.raw)
	}
}

// exactInt converts f to int64 when no information is lost.
func exactInt(f float64) (int64, bool) {
	// -2^63 is representable, 2^63 is not.
	if f != f || f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		return 0, false
	}
	i := int64(f)
	if float64(i) != f {
		return 0, false
	}
	return i, true
}
