package sql

import (
	"fmt"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

// Document scans a column of any SurrealDB type, arrays and objects
// included, into a T with the models decoder:
//
//	var tags sql.Document[[]string]
//	err := rows.Scan(&tags)
type Document[T any] struct {
	Data T
}

func (d *Document[T]) Scan(src any) error {
	v, ok := src.(models.Value)
	if !ok {
		var err error
		if v, err = models.ValueOf(src); err != nil {
			return fmt.Errorf("unsupported value: %w", err)
		}
	}
	return models.Decode(v, &d.Data)
}

type StringSlice = Document[[]string]

type IntSlice = Document[[]int]

type FloatSlice = Document[[]float64]
