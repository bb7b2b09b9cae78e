package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	gojson "github.com/goccy/go-json"

	"github.com/surrealdb/surrealdriver/pkg/models"
)

// Canonical statements. The target and the data always travel as bound
// parameters.
const (
	stmtSelect = "SELECT * FROM $thing"
	stmtCreate = "CREATE $thing CONTENT $data"
	stmtUpdate = "UPDATE $thing CONTENT $data"
	stmtMerge  = "UPDATE $thing MERGE $data"
	stmtPatch  = "UPDATE $thing PATCH $patch"
	stmtDelete = "DELETE * FROM $thing"
)

// Select selects a whole table or a single record.
//
// thing may be a models.Table, a models.RecordID, or a string: "person:tobie"
// is bound as a record id and "person" as a table.
//
// When the statement fails, the outcome is returned along with its
// *StatementError. The same holds for Create, Update, Change, Modify and Delete.
func (db *DB) Select(ctx context.Context, thing any) (*Outcome, error) {
	return db.dispatch(ctx, stmtSelect, thing, nil)
}

// Create creates a record with data as its content. Creating on a table
// generates the record id.
func (db *DB) Create(ctx context.Context, thing, data any) (*Outcome, error) {
	return db.dispatch(ctx, stmtCreate, thing, map[string]any{"data": data})
}

// Update replaces the content of a record, or of every record of a table.
func (db *DB) Update(ctx context.Context, thing, data any) (*Outcome, error) {
	return db.dispatch(ctx, stmtUpdate, thing, map[string]any{"data": data})
}

// Change merges data into a record, or into every record of a table.
func (db *DB) Change(ctx context.Context, thing, data any) (*Outcome, error) {
	return db.dispatch(ctx, stmtMerge, thing, map[string]any{"data": data})
}

// Modify applies a JSON Patch to a record, or to every record of a table.
// The patch is checked before it is sent; an invalid one fails with a *PatchError.
func (db *DB) Modify(ctx context.Context, thing any, patch []PatchData) (*Outcome, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	return db.dispatch(ctx, stmtPatch, thing, map[string]any{"patch": patch})
}

// Delete deletes a record, or every record of a table.
func (db *DB) Delete(ctx context.Context, thing any) (*Outcome, error) {
	return db.dispatch(ctx, stmtDelete, thing, nil)
}

func (db *DB) dispatch(ctx context.Context, sql string, thing any, vars map[string]any) (*Outcome, error) {
	target, err := bindThing(thing)
	if err != nil {
		return nil, err
	}

	bound := map[string]any{"thing": target}
	for k, v := range vars {
		bound[k] = v
	}
	return db.single(ctx, sql, bound)
}

var errEmptyThing = errors.New("surrealdb: empty table name")

// bindThing turns "table:id" into a models.RecordID and a bare name into a
// models.Table, so the server treats them as references rather than strings.
func bindThing(thing any) (any, error) {
	switch t := thing.(type) {
	case string:
		if t == "" {
			return nil, errEmptyThing
		}
		if strings.Contains(t, ":") {
			rid, err := models.ParseRecordID(t)
			if err != nil {
				return nil, fmt.Errorf("surrealdb: %q: %w", t, err)
			}
			return rid, nil
		}
		return models.Table(t), nil
	case models.Table:
		if t == "" {
			return nil, errEmptyThing
		}
	}
	return thing, nil
}

var patchOps = map[string]bool{
	"add":     true,
	"remove":  true,
	"replace": true,
	"move":    true,
	"copy":    true,
	"test":    true,
}

// validatePatch checks patch against RFC 6902 before it reaches the server.
func validatePatch(patch []PatchData) error {
	for i, op := range patch {
		if !patchOps[op.Op] {
			return &PatchError{Index: i, Err: fmt.Errorf("unknown op %q", op.Op)}
		}
		if op.Path != "" && !strings.HasPrefix(op.Path, "/") {
			return &PatchError{Index: i, Err: fmt.Errorf("path %q is not a JSON pointer", op.Path)}
		}
		if (op.Op == "move" || op.Op == "copy") && op.From == "" {
			return &PatchError{Index: i, Err: fmt.Errorf("%s needs a from pointer", op.Op)}
		}
	}

	doc, err := gojson.Marshal(patch)
	if err != nil {
		return &PatchError{Index: -1, Err: err}
	}
	if _, err := jsonpatch.DecodePatch(doc); err != nil {
		return &PatchError{Index: -1, Err: err}
	}
	return nil
}
