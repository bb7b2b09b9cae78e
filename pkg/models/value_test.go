package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsNone(t *testing.T) {
	var v Value
	assert.True(t, v.IsNone())
	assert.True(t, v.IsNullish())
	assert.Equal(t, "NONE", v.String())
	assert.Nil(t, v.Interface())
}

func TestAccessorsMismatch(t *testing.T) {
	v := StringValue("x")

	_, err := v.AsInt()
	var tm *TypeMismatchError
	require.ErrorAs(t, err, &tm)
	assert.Equal(t, KindString, tm.Found)
	assert.Equal(t, "int", tm.Expected)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = IntValue(1).AsString()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	_, err = NullValue().AsBool()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestAsIntExactness(t *testing.T) {
	n, err := FloatValue(-4).AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(-4), n)

	_, err = FloatValue(0.1).AsInt()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestValueEqual(t *testing.T) {
	assert.False(t, IntValue(1).Equal(FloatValue(1)))
	assert.False(t, NoneValue().Equal(NullValue()))
	assert.True(t, ArrayValue(IntValue(1)).Equal(ArrayValue(IntValue(1))))
	assert.False(t, ArrayValue(IntValue(1)).Equal(ArrayValue(IntValue(1), IntValue(2))))
	assert.True(t, ObjectValue(nil).Equal(ObjectValue(map[string]Value{})))
	assert.True(t, DatetimeValue(time.Unix(1, 0)).Equal(DatetimeValue(time.Unix(1, 0).UTC())))
}

func TestValueString(t *testing.T) {
	v := ObjectValue(map[string]Value{
		"b":  ArrayValue(IntValue(1), FloatValue(2.5), NullValue()),
		"a":  StringValue("x"),
		"id": RecordIDValue(NewRecordID("person", "tobie")),
		"d":  DurationValue(90 * time.Second),
	})
	assert.Equal(t, `{a: "x", b: [1, 2.5f, NULL], d: 1m30s, id: person:tobie}`, v.String())
}
