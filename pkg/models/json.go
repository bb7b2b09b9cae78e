package models

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
	gojson "github.com/goccy/go-json"
	"github.com/surrealdb/surrealdriver/internal/codec"
	"github.com/surrealdb/surrealdriver/pkg/constants"
)

// recordFields are object keys whose "table:id" strings are read as record ids.
// JSON has no way to tell a record id from a string that looks like one.
var recordFields = map[string]bool{
	"id":  true,
	"in":  true,
	"out": true,
}

type JSONMarshaler struct {
}

func (j JSONMarshaler) Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

func (j JSONMarshaler) NewEncoder(w io.Writer) codec.Encoder {
	return gojson.NewEncoder(w)
}

func (j JSONMarshaler) ContentType() string {
	return "application/json"
}

type JSONUnmarshaler struct {
}

func (j JSONUnmarshaler) Unmarshal(data []byte, dst any) error {
	return gojson.Unmarshal(data, dst)
}

func (j JSONUnmarshaler) NewDecoder(r io.Reader) codec.Decoder {
	return gojson.NewDecoder(r)
}

// ValueFromJSON parses one JSON document. Numbers without a fraction or
// exponent become ints, everything else numeric becomes a float.
func ValueFromJSON(data []byte) (Value, error) {
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
	}
	return fromJSON(raw, dataType, "")
}

func fromJSON(raw []byte, dataType jsonparser.ValueType, key string) (Value, error) {
	switch dataType {
	case jsonparser.Null:
		return NullValue(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, jsonErr(err)
		}
		return BoolValue(b), nil
	case jsonparser.Number:
		return numberFromJSON(raw)
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, jsonErr(err)
		}
		if recordFields[key] {
			if rid, ok := looksLikeRecordID(s); ok {
				return RecordIDValue(rid), nil
			}
		}
		return StringValue(s), nil
	case jsonparser.Array:
		items := []Value{}
		var inner error
		_, err := jsonparser.ArrayEach(raw, func(value []byte, dt jsonparser.ValueType, _ int, _ error) {
			if inner != nil {
				return
			}
			v, err := fromJSON(value, dt, "")
			if err != nil {
				inner = err
				return
			}
			items = append(items, v)
		})
		if inner != nil {
			return Value{}, inner
		}
		if err != nil {
			return Value{}, jsonErr(err)
		}
		return ArrayValue(items...), nil
	case jsonparser.Object:
		fields := map[string]Value{}
		err := jsonparser.ObjectEach(raw, func(k []byte, value []byte, dt jsonparser.ValueType, _ int) error {
			name := string(k)
			v, err := fromJSON(value, dt, name)
			if err != nil {
				return err
			}
			fields[name] = v
			return nil
		})
		if err != nil {
			return Value{}, jsonErr(err)
		}
		return ObjectValue(fields), nil
	}
	return Value{}, fmt.Errorf("%w: unexpected JSON token %q", constants.ErrInvalidResponse, raw)
}

func numberFromJSON(raw []byte) (Value, error) {
	if bytes.ContainsAny(raw, ".eE") {
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return Value{}, jsonErr(err)
		}
		return FloatValue(f), nil
	}
	i, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// Out of int64 range; keep every digit.
		return DecimalValue(string(raw)), nil
	}
	return IntValue(i), nil
}

func jsonErr(err error) error {
	if errors.Is(err, constants.ErrInvalidResponse) {
		return err
	}
	return fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(v.jsonForm())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ValueFromJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) jsonForm() any {
	switch v.kind {
	case KindNone, KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString, KindTable:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.jsonForm()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.jsonForm()
		}
		return out
	case KindRecordID:
		return v.rid.String()
	case KindDatetime:
		return v.t.UTC().Format(time.RFC3339Nano)
	case KindDuration:
		return FormatDuration(v.d)
	case KindUUID:
		return v.u.String()
	case KindDecimal:
		return gojson.Number(v.s)
	case KindBytes:
		return v.raw
	}
	return nil
}
