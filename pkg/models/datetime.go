package models

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/surrealdb/surrealdriver/pkg/constants"
)

// CustomDateTime embeds time.Time and is sent with SurrealDB's compact datetime tag.
type CustomDateTime struct {
	time.Time
}

func (d CustomDateTime) MarshalCBOR() ([]byte, error) {
	if d.IsZero() {
		return cborEncMode.Marshal(cbor.Tag{Number: uint64(NoneTag)})
	}

	return cborEncMode.Marshal(cbor.Tag{
		Number:  uint64(DateTimeCompactString),
		Content: compactTime(d.Time),
	})
}

func (d *CustomDateTime) UnmarshalCBOR(data []byte) error {
	v, err := ValueFromCBOR(data)
	if err != nil {
		return err
	}
	return d.UnmarshalSurreal(v)
}

func (d CustomDateTime) String() string {
	return d.UTC().Format(time.RFC3339Nano)
}

func (d CustomDateTime) SurrealString() string {
	return fmt.Sprintf("<datetime> '%s'", d.String())
}

func (d *CustomDateTime) UnmarshalSurreal(v Value) error {
	if v.IsNone() {
		*d = CustomDateTime{}
		return nil
	}
	var t time.Time
	if err := Decode(v, &t); err != nil {
		return err
	}
	*d = CustomDateTime{t}
	return nil
}

func compactTime(t time.Time) [2]int64 {
	return [2]int64{t.Unix(), int64(t.Nanosecond())}
}

func splitNanos(total int64) (s, ns int64) {
	return total / constants.OneSecondToNanoSecond, total % constants.OneSecondToNanoSecond
}
