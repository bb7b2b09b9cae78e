package sql

import (
	"database/sql/driver"
	"io"
	"sort"

	surrealdb "github.com/surrealdb/surrealdriver"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// ValueColumn names the only column of rows built from values that are not
// objects, such as the result of RETURN 1.
const ValueColumn = "value"

// Rows iterates the values of the last statement of a query. Objects become
// rows with one column per key; columns are the sorted union of all keys and a
// missing key reads as NULL. When any value is not an object, every row is
// read whole from the single ValueColumn, objects included.
type Rows struct {
	columns []string
	values  []models.Value
	whole   bool
	next    int
}

func newRows(resp *surrealdb.Response) (*Rows, error) {
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if resp.Len() == 0 {
		return &Rows{columns: []string{}}, nil
	}

	last, _ := resp.Outcome(resp.Len() - 1)
	values, err := last.Values()
	if err != nil {
		return nil, err
	}

	columns, whole := columnsOf(values)
	return &Rows{columns: columns, values: values, whole: whole}, nil
}

// columnsOf reports whole when the values cannot all be split into columns.
func columnsOf(values []models.Value) (columns []string, whole bool) {
	if len(values) == 0 {
		return []string{}, false
	}

	seen := make(map[string]bool)
	for _, v := range values {
		fields, err := v.AsObject()
		if err != nil {
			return []string{ValueColumn}, true
		}
		for key := range fields {
			seen[key] = true
		}
	}

	columns = make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	// Objects carry no key order, so sort to at least be consistent.
	sort.Strings(columns)
	return columns, false
}

func (r *Rows) Columns() []string {
	return r.columns
}

func (r *Rows) Close() error {
	r.next = len(r.values)
	return nil
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	v := r.values[r.next]
	r.next++

	if r.whole {
		dest[0] = driverValue(v)
		return nil
	}
	for i, col := range r.columns {
		field, _ := v.Get(col)
		dest[i] = driverValue(field)
	}
	return nil
}

// driverValue maps v onto the types database/sql converts natively. Record
// ids, durations, uuids, decimals and tables read as their SurrealQL text;
// arrays and objects are passed as models.Value for Scan into a Document.
func driverValue(v models.Value) driver.Value {
	switch v.Kind() {
	case models.KindNone, models.KindNull:
		return nil
	case models.KindBool, models.KindInt, models.KindFloat, models.KindString, models.KindBytes, models.KindDatetime:
		return v.Interface()
	case models.KindRecordID:
		rid, _ := v.AsRecordID()
		return rid.String()
	case models.KindDuration:
		d, _ := v.AsDuration()
		return models.FormatDuration(d)
	case models.KindUUID:
		u, _ := v.AsUUID()
		return u.String()
	case models.KindDecimal:
		s, _ := v.AsDecimal()
		return s
	case models.KindTable:
		t, _ := v.AsTable()
		return string(t)
	}
	return v
}
