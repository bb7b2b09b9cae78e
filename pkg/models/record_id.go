package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	gojson "github.com/goccy/go-json"
)

var ErrInvalidRecordID = errors.New("invalid record id")

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RecordID is a pair of table name and an identifier within that table.
//
// ID holds the natural Go form of the identifier: string, int64,
// []any, map[string]any or UUID.
type RecordID struct {
	Table string
	ID    any
}

func NewRecordID(tableName string, id any) RecordID {
	return RecordID{Table: tableName, ID: id}
}

// ParseRecordID parses the "table:id" notation.
// Ids wrapped in ⟨⟩ or backticks are taken verbatim, all-digit ids become int64.
func ParseRecordID(idStr string) (RecordID, error) {
	sep := strings.IndexByte(idStr, ':')
	if sep <= 0 || sep == len(idStr)-1 {
		return RecordID{}, fmt.Errorf("%w: %q, expected format is 'tablename:identifier'", ErrInvalidRecordID, idStr)
	}

	table, id := idStr[:sep], idStr[sep+1:]
	if strings.ContainsAny(table, " \t\r\n") {
		return RecordID{}, fmt.Errorf("%w: %q has whitespace in the table name", ErrInvalidRecordID, idStr)
	}

	switch {
	case strings.HasPrefix(id, "⟨") && strings.HasSuffix(id, "⟩") && len(id) > len("⟨⟩"):
		return RecordID{Table: table, ID: strings.TrimSuffix(strings.TrimPrefix(id, "⟨"), "⟩")}, nil
	case len(id) > 1 && id[0] == '`' && id[len(id)-1] == '`':
		return RecordID{Table: table, ID: id[1 : len(id)-1]}, nil
	}

	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return RecordID{Table: table, ID: n}, nil
	}

	return RecordID{Table: table, ID: id}, nil
}

// looksLikeRecordID is used by the JSON engine, where record ids arrive as plain strings.
func looksLikeRecordID(s string) (RecordID, bool) {
	r, err := ParseRecordID(s)
	if err != nil || !identPattern.MatchString(r.Table) {
		return RecordID{}, false
	}
	return r, true
}

func (r RecordID) MarshalCBOR() ([]byte, error) {
	return cborEncMode.Marshal(cbor.Tag{
		Number:  uint64(RecordIDTag),
		Content: []any{r.Table, r.ID},
	})
}

func (r *RecordID) UnmarshalCBOR(data []byte) error {
	v, err := ValueFromCBOR(data)
	if err != nil {
		return err
	}
	rid, err := v.AsRecordID()
	if err != nil {
		return err
	}
	*r = rid
	return nil
}

func (r RecordID) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(r.String())
}

func (r *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := gojson.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRecordID(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r RecordID) Equal(o RecordID) bool {
	if r.Table != o.Table {
		return false
	}
	a, errA := ValueOf(r.ID)
	b, errB := ValueOf(o.ID)
	if errA != nil || errB != nil {
		return false
	}
	return a.Equal(b)
}

func (r RecordID) String() string {
	return r.Table + ":" + formatID(r.ID)
}

func (r RecordID) SurrealString() string {
	return fmt.Sprintf("r'%s'", r.String())
}

func formatID(id any) string {
	switch v := id.(type) {
	case string:
		if identPattern.MatchString(v) {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				return v
			}
		}
		return "⟨" + v + "⟩"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	if val, err := ValueOf(id); err == nil {
		return val.String()
	}
	return fmt.Sprint(id)
}
