package models

import (
	"reflect"
	"strings"
	"sync"
)

type field struct {
	name      string
	index     []int
	optional  bool
	omitempty bool
}

var fieldCache sync.Map // map[reflect.Type][]field

// structFields lists the exported fields of t with their document names.
// The name comes from the surreal tag, then the json tag, then the field name.
// Untagged embedded structs are flattened.
func structFields(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	fields := collectFields(t, nil)
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]field)
}

func collectFields(t reflect.Type, parent []int) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int{}, parent...), i)

		tag, hasTag := sf.Tag.Lookup("surreal")
		if !hasTag {
			tag, hasTag = sf.Tag.Lookup("json")
		}
		if tag == "-" {
			continue
		}

		if sf.Anonymous && !hasTag && sf.Type.Kind() == reflect.Struct {
			out = append(out, collectFields(sf.Type, index)...)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}

		f := field{name: name, index: index}
		for _, opt := range strings.Split(opts, ",") {
			switch opt {
			case "optional":
				f.optional = true
			case "omitempty":
				f.optional = true
				f.omitempty = true
			}
		}
		switch sf.Type.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			f.optional = true
		}
		out = append(out, f)
	}
	return out
}

// lookupField finds key in obj, falling back to a case-insensitive match.
func lookupField(obj map[string]Value, key string) (Value, bool) {
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return Value{}, false
}
