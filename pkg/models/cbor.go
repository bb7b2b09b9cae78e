package models

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	"github.com/surrealdb/surrealdriver/internal/codec"
	"github.com/surrealdb/surrealdriver/pkg/constants"
)

type CustomCBORTag uint64

var (
	DateTimeStringTag       CustomCBORTag = 0
	NoneTag                 CustomCBORTag = 6
	TableNameTag            CustomCBORTag = 7
	RecordIDTag             CustomCBORTag = 8
	UUIDStringTag           CustomCBORTag = 9
	DecimalStringTag        CustomCBORTag = 10
	DateTimeCompactString   CustomCBORTag = 12
	DurationStringTag       CustomCBORTag = 13
	DurationCompactTag      CustomCBORTag = 14
	BinaryUUIDTag           CustomCBORTag = 37
	GeometryPointTag        CustomCBORTag = 88
	GeometryLineTag         CustomCBORTag = 89
	GeometryPolygonTag      CustomCBORTag = 90
	GeometryMultiPointTag   CustomCBORTag = 91
	GeometryMultiLineTag    CustomCBORTag = 92
	GeometryMultiPolygonTag CustomCBORTag = 93
	GeometryCollectionTag   CustomCBORTag = 94
)

var geometryNames = map[CustomCBORTag]string{
	GeometryPointTag:        "Point",
	GeometryLineTag:         "LineString",
	GeometryPolygonTag:      "Polygon",
	GeometryMultiPointTag:   "MultiPoint",
	GeometryMultiLineTag:    "MultiLineString",
	GeometryMultiPolygonTag: "MultiPolygon",
	GeometryCollectionTag:   "GeometryCollection",
}

var (
	cborEncMode = mustEncMode()
	cborDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		TimeTagToAny: cbor.TimeTagToTime,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

type CborMarshaler struct {
}

func (c CborMarshaler) Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

func (c CborMarshaler) NewEncoder(w io.Writer) codec.Encoder {
	return cborEncMode.NewEncoder(w)
}

func (c CborMarshaler) ContentType() string {
	return "application/cbor"
}

type CborUnmarshaler struct {
}

func (c CborUnmarshaler) Unmarshal(data []byte, dst any) error {
	return cborDecMode.Unmarshal(data, dst)
}

func (c CborUnmarshaler) NewDecoder(r io.Reader) codec.Decoder {
	return cborDecMode.NewDecoder(r)
}

// ValueFromCBOR decodes one CBOR data item, resolving SurrealDB's custom tags.
func ValueFromCBOR(data []byte) (Value, error) {
	var item any
	if err := cborDecMode.Unmarshal(data, &item); err != nil {
		return Value{}, err
	}
	return fromCBOR(item)
}

func (v Value) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(v.cborForm())
}

func (v *Value) UnmarshalCBOR(data []byte) error {
	parsed, err := ValueFromCBOR(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) cborForm() any {
	switch v.kind {
	case KindNone:
		return cbor.Tag{Number: uint64(NoneTag)}
	case KindNull:
		return nil
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
			out[i] = item.cborForm()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.cborForm()
		}
		return out
	case KindRecordID:
		return v.rid
	case KindDatetime:
		return cbor.Tag{Number: uint64(DateTimeCompactString), Content: compactTime(v.t)}
	case KindDuration:
		return CustomDuration(v.d)
	case KindUUID:
		return UUID{v.u}
	case KindDecimal:
		return Decimal(v.s)
	case KindTable:
		return Table(v.s)
	case KindBytes:
		return v.raw
	}
	return nil
}

func fromCBOR(item any) (Value, error) {
	switch t := item.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return DecimalValue(strconv.FormatUint(t, 10)), nil
		}
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case float32:
		return FloatValue(float64(t)), nil
	case float64:
		return FloatValue(t), nil
	case string:
		return StringValue(t), nil
	case []byte:
		return BytesValue(t), nil
	case time.Time:
		return DatetimeValue(t), nil
	case big.Int:
		return bigValue(&t), nil
	case *big.Int:
		return bigValue(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, raw := range t {
			v, err := fromCBOR(raw)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case map[any]any:
		fields := make(map[string]Value, len(t))
		for k, raw := range t {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			v, err := fromCBOR(raw)
			if err != nil {
				return Value{}, err
			}
			fields[key] = v
		}
		return ObjectValue(fields), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, raw := range t {
			v, err := fromCBOR(raw)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return ObjectValue(fields), nil
	case cbor.Tag:
		return fromTag(t)
	}
	return Value{}, fmt.Errorf("%w: unsupported CBOR item %T", constants.ErrInvalidResponse, item)
}

func bigValue(n *big.Int) Value {
	if n.IsInt64() {
		return IntValue(n.Int64())
	}
	return DecimalValue(n.String())
}

func fromTag(tag cbor.Tag) (Value, error) {
	number := CustomCBORTag(tag.Number)
	switch number {
	case NoneTag:
		return NoneValue(), nil
	case TableNameTag:
		s, ok := tag.Content.(string)
		if !ok {
			return Value{}, badTag(tag)
		}
		return TableValue(Table(s)), nil
	case RecordIDTag:
		return recordIDFromTag(tag)
	case UUIDStringTag:
		s, ok := tag.Content.(string)
		if !ok {
			return Value{}, badTag(tag)
		}
		u, err := uuid.FromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
		}
		return UUIDValue(u), nil
	case BinaryUUIDTag:
		b, ok := tag.Content.([]byte)
		if !ok {
			return Value{}, badTag(tag)
		}
		u, err := uuid.FromBytes(b)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
		}
		return UUIDValue(u), nil
	case DecimalStringTag:
		s, ok := tag.Content.(string)
		if !ok {
			return Value{}, badTag(tag)
		}
		return DecimalValue(s), nil
	case DateTimeStringTag:
		s, ok := tag.Content.(string)
		if !ok {
			return Value{}, badTag(tag)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
		}
		return DatetimeValue(t), nil
	case DateTimeCompactString:
		s, ns, err := secondsNanos(tag)
		if err != nil {
			return Value{}, err
		}
		return DatetimeValue(time.Unix(s, ns).UTC()), nil
	case DurationStringTag:
		s, ok := tag.Content.(string)
		if !ok {
			return Value{}, badTag(tag)
		}
		d, err := ParseDuration(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
		}
		return DurationValue(d), nil
	case DurationCompactTag:
		s, ns, err := secondsNanos(tag)
		if err != nil {
			return Value{}, err
		}
		return DurationValue(time.Duration(s)*time.Second + time.Duration(ns)), nil
	case GeometryCollectionTag:
		items, ok := tag.Content.([]any)
		if !ok {
			return Value{}, badTag(tag)
		}
		geoms := make([]Value, len(items))
		for i, raw := range items {
			g, err := fromCBOR(raw)
			if err != nil {
				return Value{}, err
			}
			geoms[i] = g
		}
		return ObjectValue(map[string]Value{
			"type":       StringValue(geometryNames[number]),
			"geometries": ArrayValue(geoms...),
		}), nil
	}

	if name, ok := geometryNames[number]; ok {
		coords, err := geometryCoordinates(tag.Content)
		if err != nil {
			return Value{}, err
		}
		return ObjectValue(map[string]Value{
			"type":        StringValue(name),
			"coordinates": coords,
		}), nil
	}

	return Value{}, fmt.Errorf("%w: unsupported CBOR tag %d", constants.ErrInvalidResponse, tag.Number)
}

// geometryCoordinates strips nested geometry tags, leaving GeoJSON coordinate arrays.
func geometryCoordinates(content any) (Value, error) {
	switch t := content.(type) {
	case cbor.Tag:
		if _, ok := geometryNames[CustomCBORTag(t.Number)]; ok && CustomCBORTag(t.Number) != GeometryCollectionTag {
			return geometryCoordinates(t.Content)
		}
	case []any:
		items := make([]Value, len(t))
		for i, raw := range t {
			v, err := geometryCoordinates(raw)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	}
	return fromCBOR(content)
}

func recordIDFromTag(tag cbor.Tag) (Value, error) {
	// The server also sends record ids in their string form.
	if s, ok := tag.Content.(string); ok {
		rid, err := ParseRecordID(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %w", constants.ErrInvalidResponse, err)
		}
		return RecordIDValue(rid), nil
	}

	parts, ok := tag.Content.([]any)
	if !ok || len(parts) != 2 {
		return Value{}, badTag(tag)
	}
	table, ok := parts[0].(string)
	if !ok {
		return Value{}, badTag(tag)
	}
	id, err := fromCBOR(parts[1])
	if err != nil {
		return Value{}, err
	}
	return RecordIDValue(RecordID{Table: table, ID: id.Interface()}), nil
}

func secondsNanos(tag cbor.Tag) (s, ns int64, err error) {
	parts, ok := tag.Content.([]any)
	if !ok || len(parts) > 2 {
		return 0, 0, badTag(tag)
	}
	out := [2]int64{}
	for i, raw := range parts {
		v, err := fromCBOR(raw)
		if err != nil {
			return 0, 0, err
		}
		n, err := v.AsInt()
		if err != nil {
			return 0, 0, badTag(tag)
		}
		out[i] = n
	}
	return out[0], out[1], nil
}

func badTag(tag cbor.Tag) error {
	return fmt.Errorf("%w: malformed content %T for CBOR tag %d", constants.ErrInvalidResponse, tag.Content, tag.Number)
}
