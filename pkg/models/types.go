package models

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
)

// Table is a table name. Bound as a query parameter it is sent as a table
// reference rather than a string.
type Table string

func (t Table) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(cbor.Tag{
		Number:  uint64(TableNameTag),
		Content: string(t),
	})
}

func (t Table) String() string {
	return string(t)
}

// Decimal is an arbitrary precision number kept in its string form.
type Decimal string

func (d Decimal) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(cbor.Tag{
		Number:  uint64(DecimalStringTag),
		Content: string(d),
	})
}

func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d), nil
}

// CustomNil is SurrealDB's NONE when used as a parameter.
type CustomNil struct {
}

func (c CustomNil) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(cbor.Tag{
		Number:  uint64(NoneTag),
		Content: nil,
	})
}

func (c CustomNil) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

var None = CustomNil{}

// UUID wraps gofrs/uuid so that it is sent with SurrealDB's binary UUID tag.
type UUID struct {
	uuid.UUID
}

func (u UUID) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(cbor.Tag{
		Number:  uint64(BinaryUUIDTag),
		Content: u.Bytes(),
	})
}

func (u *UUID) UnmarshalCBOR(data []byte) error {
	v, err := ValueFromCBOR(data)
	if err != nil {
		return err
	}
	parsed, err := v.AsUUID()
	if err != nil {
		return err
	}
	u.UUID = parsed
	return nil
}
