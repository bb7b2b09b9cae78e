package models

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTag(t *testing.T, number CustomCBORTag, content any) []byte {
	t.Helper()
	data, err := cbor.Marshal(cbor.Tag{Number: uint64(number), Content: content})
	require.NoError(t, err)
	return data
}

func TestValueFromCBORTags(t *testing.T) {
	u := uuid.Must(uuid.NewV4())
	when := time.Date(2023, 1, 2, 3, 4, 5, 6, time.UTC)

	cases := []struct {
		name string
		data []byte
		want Value
	}{
		{"none", encodeTag(t, NoneTag, nil), NoneValue()},
		{"table", encodeTag(t, TableNameTag, "person"), TableValue("person")},
		{"record", encodeTag(t, RecordIDTag, []any{"person", "tobie"}), RecordIDValue(NewRecordID("person", "tobie"))},
		{"record numeric", encodeTag(t, RecordIDTag, []any{"person", 42}), RecordIDValue(NewRecordID("person", int64(42)))},
		{"record string form", encodeTag(t, RecordIDTag, "person:42"), RecordIDValue(NewRecordID("person", int64(42)))},
		{"uuid string", encodeTag(t, UUIDStringTag, u.String()), UUIDValue(u)},
		{"uuid binary", encodeTag(t, BinaryUUIDTag, u.Bytes()), UUIDValue(u)},
		{"decimal", encodeTag(t, DecimalStringTag, "1.25"), DecimalValue("1.25")},
		{"datetime compact", encodeTag(t, DateTimeCompactString, []int64{when.Unix(), 6}), DatetimeValue(when)},
		{"duration string", encodeTag(t, DurationStringTag, "1h2m"), DurationValue(time.Hour + 2*time.Minute)},
		{"duration compact", encodeTag(t, DurationCompactTag, []int64{3, 5}), DurationValue(3*time.Second + 5)},
		{"duration compact empty", encodeTag(t, DurationCompactTag, []int64{}), DurationValue(0)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ValueFromCBOR(c.data)
			require.NoError(t, err)
			assert.True(t, c.want.Equal(got), "want %s, got %s", c.want, got)
		})
	}
}

func TestValueFromCBORGeometry(t *testing.T) {
	point := func(x, y float64) cbor.Tag {
		return cbor.Tag{Number: uint64(GeometryPointTag), Content: []float64{x, y}}
	}
	line := cbor.Tag{Number: uint64(GeometryLineTag), Content: []any{point(0, 0), point(1, 1)}}

	v, err := ValueFromCBOR(encodeTag(t, GeometryLineTag, line.Content))
	require.NoError(t, err)

	typ, ok := v.Get("type")
	require.True(t, ok)
	assert.Equal(t, "LineString", typ.Interface())

	coords, ok := v.Get("coordinates")
	require.True(t, ok)
	assert.Equal(t, []any{[]any{0.0, 0.0}, []any{1.0, 1.0}}, coords.Interface())

	v, err = ValueFromCBOR(encodeTag(t, GeometryCollectionTag, []any{point(2, 3), line}))
	require.NoError(t, err)
	geoms, ok := v.Get("geometries")
	require.True(t, ok)
	assert.Equal(t, 2, geoms.Len())
}

func TestValueFromCBORScalars(t *testing.T) {
	data, err := cbor.Marshal(map[string]any{
		"i":   -3,
		"u":   uint64(1) << 63,
		"f":   2.5,
		"s":   "x",
		"b":   true,
		"n":   nil,
		"raw": []byte{1, 2},
	})
	require.NoError(t, err)

	v, err := ValueFromCBOR(data)
	require.NoError(t, err)

	i, _ := v.Get("i")
	assert.Equal(t, KindInt, i.Kind())
	u, _ := v.Get("u")
	assert.Equal(t, DecimalValue("9223372036854775808"), u)
	f, _ := v.Get("f")
	assert.Equal(t, KindFloat, f.Kind())
	n, _ := v.Get("n")
	assert.True(t, n.IsNull())
	raw, _ := v.Get("raw")
	assert.Equal(t, KindBytes, raw.Kind())
}

func TestValueFromCBORUnknownTag(t *testing.T) {
	_, err := ValueFromCBOR(encodeTag(t, 4242, "x"))
	assert.Error(t, err)
}

func TestValueCBORRoundTrip(t *testing.T) {
	in := ObjectValue(map[string]Value{
		"id":    RecordIDValue(NewRecordID("person", "tobie")),
		"none":  NoneValue(),
		"null":  NullValue(),
		"when":  DatetimeValue(time.Date(2020, 1, 1, 0, 0, 0, 1, time.UTC)),
		"took":  DurationValue(1500 * time.Millisecond),
		"table": TableValue("person"),
		"dec":   DecimalValue("0.1"),
		"list":  ArrayValue(IntValue(1), FloatValue(1.5), StringValue("s")),
		"uuid":  UUIDValue(uuid.Must(uuid.NewV4())),
	})

	data, err := in.MarshalCBOR()
	require.NoError(t, err)

	var out Value
	require.NoError(t, cbor.Unmarshal(data, &out))
	assert.True(t, in.Equal(out), "want %s, got %s", in, out)
}

func TestCustomTypesCBOR(t *testing.T) {
	data, err := cborEncMode.Marshal(map[string]any{
		"none":  None,
		"table": Table("person"),
		"dur":   CustomDuration(time.Minute),
		"when":  CustomDateTime{time.Unix(10, 0).UTC()},
	})
	require.NoError(t, err)

	v, err := ValueFromCBOR(data)
	require.NoError(t, err)

	none, _ := v.Get("none")
	assert.True(t, none.IsNone())
	table, _ := v.Get("table")
	assert.Equal(t, TableValue("person"), table)
	dur, _ := v.Get("dur")
	assert.Equal(t, DurationValue(time.Minute), dur)
	when, _ := v.Get("when")
	assert.True(t, DatetimeValue(time.Unix(10, 0)).Equal(when))
}
