package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// CustomDuration is sent with SurrealDB's compact duration tag.
// A plain time.Duration parameter travels as an integer.
type CustomDuration time.Duration

func (d CustomDuration) MarshalCBOR() ([]byte, error) {
	s, ns := splitNanos(time.Duration(d).Nanoseconds())
	return cborEncMode.Marshal(cbor.Tag{
		Number:  uint64(DurationCompactTag),
		Content: [2]int64{s, ns},
	})
}

func (d *CustomDuration) UnmarshalCBOR(data []byte) error {
	v, err := ValueFromCBOR(data)
	if err != nil {
		return err
	}
	return d.UnmarshalSurreal(v)
}

func (d *CustomDuration) UnmarshalSurreal(v Value) error {
	var parsed time.Duration
	if err := Decode(v, &parsed); err != nil {
		return err
	}
	*d = CustomDuration(parsed)
	return nil
}

func (d CustomDuration) String() string {
	return FormatDuration(time.Duration(d))
}

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = 365 * day
)

var durationUnits = []struct {
	name string
	size time.Duration
}{
	{"y", year},
	{"w", week},
	{"d", day},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
	{"ms", time.Millisecond},
	{"µs", time.Microsecond},
	{"ns", time.Nanosecond},
}

// FormatDuration renders d the way SurrealDB prints durations, e.g. "1w2d3h".
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0ns"
	}

	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		if d == math.MinInt64 {
			// -d overflows; the lowest nanosecond is not representable
			d = math.MinInt64 + 1
		}
		d = -d
	}
	for _, u := range durationUnits {
		if d < u.size {
			continue
		}
		sb.WriteString(strconv.FormatInt(int64(d/u.size), 10))
		sb.WriteString(u.name)
		d %= u.size
	}
	return sb.String()
}

// ParseDuration parses SurrealDB duration syntax: one or more <integer><unit>
// groups with units y, w, d, h, m, s, ms, us, µs and ns.
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}

	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration %q: expected a number", orig)
		}
		n, err := strconv.ParseInt(s[:i], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
		}
		s = s[i:]

		unit, rest, ok := cutUnit(s)
		if !ok {
			return 0, fmt.Errorf("invalid duration %q: unknown unit", orig)
		}
		s = rest

		if n > int64(math.MaxInt64/unit) {
			return 0, fmt.Errorf("invalid duration %q: overflow", orig)
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, fmt.Errorf("invalid duration %q: overflow", orig)
		}
		total += part
	}
	return total, nil
}

func cutUnit(s string) (time.Duration, string, bool) {
	for _, u := range []struct {
		name string
		size time.Duration
	}{
		{"ns", time.Nanosecond},
		{"us", time.Microsecond},
		{"µs", time.Microsecond},
		{"ms", time.Millisecond},
	} {
		if strings.HasPrefix(s, u.name) {
			return u.size, s[len(u.name):], true
		}
	}
	if s == "" {
		return 0, s, false
	}
	switch s[0] {
	case 'y':
		return year, s[1:], true
	case 'w':
		return week, s[1:], true
	case 'd':
		return day, s[1:], true
	case 'h':
		return time.Hour, s[1:], true
	case 'm':
		return time.Minute, s[1:], true
	case 's':
		return time.Second, s[1:], true
	}
	return 0, s, false
}
