package fakesdb

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	jsonpatch "github.com/evanphx/json-patch"

	"github.com/surrealdb/surrealdriver/internal/rand"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// store keeps records per namespace/database scope, per table, keyed by the
// string form of the record id.
type store struct {
	mu     sync.Mutex
	scopes map[string]map[string]map[string]models.Value
}

func newStore() *store {
	return &store{scopes: make(map[string]map[string]map[string]models.Value)}
}

// table must be called with st.mu held.
func (st *store) table(scope, name string) map[string]models.Value {
	tables, ok := st.scopes[scope]
	if !ok {
		tables = make(map[string]map[string]models.Value)
		st.scopes[scope] = tables
	}
	records, ok := tables[name]
	if !ok {
		records = make(map[string]models.Value)
		tables[name] = records
	}
	return records
}

// resolveThing accepts only record ids and tables. A string target is
// rejected even when it reads like one, as the server does.
func resolveThing(v models.Value) (string, *models.RecordID, error) {
	switch v.Kind() {
	case models.KindRecordID:
		rid, _ := v.AsRecordID()
		return rid.Table, &rid, nil
	case models.KindTable:
		t, _ := v.AsTable()
		return string(t), nil, nil
	}
	return "", nil, fmt.Errorf("Can not execute statement using value: %s", v)
}

func sortedRecords(records map[string]models.Value) []models.Value {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.Value, len(keys))
	for i, k := range keys {
		out[i] = records[k]
	}
	return out
}

func withID(fields map[string]models.Value, rid models.RecordID) models.Value {
	out := make(map[string]models.Value, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["id"] = models.RecordIDValue(rid)
	return models.ObjectValue(out)
}

func contentOf(data models.Value) (map[string]models.Value, error) {
	if data.IsNullish() {
		return nil, nil
	}
	fields, err := data.AsObject()
	if err != nil {
		return nil, fmt.Errorf("Can not use %s as record content", data)
	}
	return fields, nil
}

func (st *store) selectThing(scope string, thing models.Value) (models.Value, error) {
	name, rid, err := resolveThing(thing)
	if err != nil {
		return models.NoneValue(), err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	records := st.table(scope, name)
	if rid == nil {
		return models.ArrayValue(sortedRecords(records)...), nil
	}
	if rec, ok := records[rid.String()]; ok {
		return models.ArrayValue(rec), nil
	}
	return models.ArrayValue(), nil
}

func (st *store) create(scope string, thing, data models.Value) (models.Value, error) {
	name, rid, err := resolveThing(thing)
	if err != nil {
		return models.NoneValue(), err
	}
	fields, err := contentOf(data)
	if err != nil {
		return models.NoneValue(), err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if rid == nil {
		generated := models.NewRecordID(name, strings.ToLower(rand.NewRequestID(20)))
		rid = &generated
	}

	records := st.table(scope, name)
	key := rid.String()
	if _, exists := records[key]; exists {
		return models.NoneValue(), fmt.Errorf("Database record `%s` already exists", key)
	}
	rec := withID(fields, *rid)
	records[key] = rec
	return models.ArrayValue(rec), nil
}

func (st *store) update(scope string, thing models.Value, mode string, data models.Value) (models.Value, error) {
	name, rid, err := resolveThing(thing)
	if err != nil {
		return models.NoneValue(), err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	records := st.table(scope, name)

	var targets []models.RecordID
	if rid != nil {
		targets = append(targets, *rid)
	} else {
		for _, rec := range sortedRecords(records) {
			id, _ := rec.Get("id")
			r, _ := id.AsRecordID()
			targets = append(targets, r)
		}
	}

	out := make([]models.Value, 0, len(targets))
	for _, target := range targets {
		key := target.String()
		current, ok := records[key]
		if !ok {
			current = withID(nil, target)
		}
		next, err := applyUpdate(current, mode, data)
		if err != nil {
			return models.NoneValue(), err
		}
		fields, _ := next.AsObject()
		rec := withID(fields, target)
		records[key] = rec
		out = append(out, rec)
	}
	return models.ArrayValue(out...), nil
}

func applyUpdate(current models.Value, mode string, data models.Value) (models.Value, error) {
	switch mode {
	case "CONTENT":
		fields, err := contentOf(data)
		if err != nil {
			return models.NoneValue(), err
		}
		return models.ObjectValue(fields), nil
	case "MERGE":
		fields, err := contentOf(data)
		if err != nil {
			return models.NoneValue(), err
		}
		existing, _ := current.AsObject()
		merged := make(map[string]models.Value, len(existing)+len(fields))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		return models.ObjectValue(merged), nil
	case "PATCH":
		return applyPatch(current, data)
	}
	return models.NoneValue(), fmt.Errorf("Parse error: unknown update mode %s", mode)
}

func applyPatch(current, ops models.Value) (models.Value, error) {
	doc, err := current.MarshalJSON()
	if err != nil {
		return models.NoneValue(), err
	}
	patchJSON, err := ops.MarshalJSON()
	if err != nil {
		return models.NoneValue(), err
	}
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return models.NoneValue(), fmt.Errorf("Invalid patch: %w", err)
	}
	patched, err := patch.Apply(doc)
	if err != nil {
		return models.NoneValue(), fmt.Errorf("Patch failed: %w", err)
	}
	return models.ValueFromJSON(patched)
}

func (st *store) remove(scope string, thing models.Value) (models.Value, error) {
	name, rid, err := resolveThing(thing)
	if err != nil {
		return models.NoneValue(), err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	records := st.table(scope, name)
	if rid == nil {
		for k := range records {
			delete(records, k)
		}
	} else {
		delete(records, rid.String())
	}
	return models.ArrayValue(), nil
}
