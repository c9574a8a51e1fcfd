package schema

import (
	"github.com/tidwall/gjson"

	"github.com/wippyai/tbl/errors"
)

// Schema is a versioned struct layout loaded for one table or reference name.
type Schema struct {
	Fields  *Type
	Name    string
	Version int
}

// Empty returns the version 0 schema: no fields, every entry byte is extra.
func Empty(name string) *Schema {
	return &Schema{
		Name:   name,
		Fields: &Type{Kind: KindStruct, Token: "{}"},
	}
}

// IsEmpty reports whether s decodes nothing structurally. A Schema with
// nil Fields is empty.
func (s *Schema) IsEmpty() bool {
	return s.Version == 0 || s.Fields == nil || len(s.Fields.Fields) == 0
}

// InlineSize returns the entry bytes consumed by the schema's fields when
// that is known statically.
func (s *Schema) InlineSize() (int, bool) {
	return s.Struct().InlineSize()
}

// Struct returns the schema's field struct, or an empty struct when Fields
// is nil.
func (s *Schema) Struct() *Type {
	if s.Fields == nil {
		return emptyStruct
	}
	return s.Fields
}

var emptyStruct = &Type{Kind: KindStruct, Token: "{}"}

// ParseDocument parses a schema document of the form
//
//	{"version": 3, "schema": {"id": "u32", "name": "ptr_str_utf8", ...}}
//
// Field order in "schema" is preserved; it defines the byte layout.
func ParseDocument(name string, raw []byte) (*Schema, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidData).
			Path(name).
			Detail("schema document is not valid JSON").
			Build()
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, errors.InvalidData(errors.PhaseParse, []string{name}, "schema document is not an object")
	}

	version := doc.Get("version")
	if version.Type != gjson.Number || version.Num != float64(version.Int()) || version.Int() < 0 {
		return nil, errors.InvalidData(errors.PhaseParse, []string{name}, "schema document has no integer version")
	}

	s := &Schema{Name: name, Version: int(version.Int())}
	fields := doc.Get("schema")
	switch {
	case !fields.Exists():
		s.Fields = &Type{Kind: KindStruct, Token: "{}"}
	case fields.IsObject():
		t, err := parseStruct(fields, nil)
		if err != nil {
			return nil, errors.WithTable(err, name, errors.NoEntry)
		}
		s.Fields = t
	default:
		return nil, errors.InvalidData(errors.PhaseParse, []string{name}, `"schema" is not an object`)
	}
	return s, nil
}
