package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecordID(t *testing.T) {
	cases := []struct {
		in    string
		table string
		id    any
	}{
		{"person:tobie", "person", "tobie"},
		{"person:100", "person", int64(100)},
		{"person:-7", "person", int64(-7)},
		{"person:⟨tobie morgan⟩", "person", "tobie morgan"},
		{"person:`100`", "person", "100"},
		{"user:a:b", "user", "a:b"},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			rid, err := ParseRecordID(c.in)
			require.NoError(t, err)
			assert.Equal(t, c.table, rid.Table)
			assert.Equal(t, c.id, rid.ID)
		})
	}
}

func TestParseRecordIDInvalid(t *testing.T) {
	for _, in := range []string{"", "person", ":1", "person:", "my table:1"} {
		_, err := ParseRecordID(in)
		assert.ErrorIs(t, err, ErrInvalidRecordID, in)
	}
}

func TestRecordIDString(t *testing.T) {
	assert.Equal(t, "person:tobie", NewRecordID("person", "tobie").String())
	assert.Equal(t, "person:100", NewRecordID("person", 100).String())
	assert.Equal(t, "person:⟨100⟩", NewRecordID("person", "100").String())
	assert.Equal(t, "person:⟨tobie morgan⟩", NewRecordID("person", "tobie morgan").String())
	assert.Equal(t, `temp:["London", 2024]`, NewRecordID("temp", []any{"London", 2024}).String())
}

func TestRecordIDEqual(t *testing.T) {
	assert.True(t, NewRecordID("t", 1).Equal(NewRecordID("t", int64(1))))
	assert.False(t, NewRecordID("t", 1).Equal(NewRecordID("u", 1)))
	assert.False(t, NewRecordID("t", 1).Equal(NewRecordID("t", "1")))
}

func TestRecordIDCBOR(t *testing.T) {
	in := NewRecordID("person", "tobie")

	data, err := in.MarshalCBOR()
	require.NoError(t, err)

	v, err := ValueFromCBOR(data)
	require.NoError(t, err)
	require.Equal(t, KindRecordID, v.Kind())

	var out RecordID
	require.NoError(t, out.UnmarshalCBOR(data))
	assert.True(t, in.Equal(out))
}

func TestRecordIDJSON(t *testing.T) {
	in := NewRecordID("person", int64(7))

	data, err := in.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"person:7"`, string(data))

	var out RecordID
	require.NoError(t, out.UnmarshalJSON(data))
	assert.Equal(t, in, out)
}
