// Package document reads and writes decoded containers in their exchange
// form: a list of tables, each with its header name, entry length, schema
// version and entries.
//
// JSON output is indented with four spaces and keeps non-ASCII text as is.
// Entry fields keep the order they were decoded in, which is the schema's
// field order. MessagePack carries the same structure in binary form.
package document

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/tbl/codec"
	"github.com/wippyai/tbl/errors"
)

// Format selects the exchange encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Ext returns the file extension written for f, with the leading dot.
func (f Format) Ext() string {
	if f == FormatMsgpack {
		return ".msgpack"
	}
	return ".json"
}

// ParseFormat parses a --format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack", "mpk", "messagepack":
		return FormatMsgpack, nil
	}
	return "", errors.New(errors.PhaseParse, errors.KindInvalidInput).
		Value(s).
		Detail("unknown document format %q", s).
		Build()
}

// FormatFromPath picks the format from a file extension. Unknown
// extensions are read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	}
	return FormatJSON
}

// Write encodes tables to w in format f.
func Write(w io.Writer, f Format, tables []*codec.Table) error {
	if f == FormatMsgpack {
		return WriteMsgpack(w, tables)
	}
	return WriteJSON(w, tables)
}

// Read decodes tables from r in format f.
func Read(r io.Reader, f Format) ([]*codec.Table, error) {
	if f == FormatMsgpack {
		return ReadMsgpack(r)
	}
	return ReadJSON(r)
}

// WriteJSON writes tables as an indented JSON array.
func WriteJSON(w io.Writer, tables []*codec.Table) error {
	if tables == nil {
		tables = []*codec.Table{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tables); err != nil {
		return errors.Wrap(errors.PhaseIO, errors.KindInvalidData, err, "write JSON document")
	}
	return nil
}

// ReadJSON reads a JSON array of tables. Numbers are kept as json.Number so
// that 64-bit integers survive exactly.
func ReadJSON(r io.Reader) ([]*codec.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseIO, errors.KindInvalidData, err, "read JSON document")
	}
	var tables []*codec.Table
	if err := json.Unmarshal(data, &tables); err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "document is not a JSON array of tables")
	}
	if err := checkTables(tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// WriteMsgpack writes tables as a MessagePack array.
func WriteMsgpack(w io.Writer, tables []*codec.Table) error {
	if tables == nil {
		tables = []*codec.Table{}
	}
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	if err := enc.Encode(tables); err != nil {
		return errors.Wrap(errors.PhaseIO, errors.KindInvalidData, err, "write MessagePack document")
	}
	return nil
}

// ReadMsgpack reads a MessagePack array of tables.
func ReadMsgpack(r io.Reader) ([]*codec.Table, error) {
	var tables []*codec.Table
	if err := msgpack.NewDecoder(r).Decode(&tables); err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, "document is not a MessagePack array of tables")
	}
	if err := checkTables(tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func checkTables(tables []*codec.Table) error {
	for i, t := range tables {
		if t == nil {
			return errors.New(errors.PhaseParse, errors.KindInvalidInput).
				Path("[" + strconv.Itoa(i) + "]").
				Detail("table is null").
				Build()
		}
		for j, e := range t.Entries {
			if e == nil {
				return errors.New(errors.PhaseParse, errors.KindInvalidInput).
					Table(t.Name, j).
					Detail("entry is null").
					Build()
			}
		}
	}
	return nil
}
