// Package tbl reads and writes TBL containers, the binary table format used
// by Falcom game data files.
//
// A container holds named tables of fixed-length entries. Entries are
// decoded into ordered records using versioned schema documents; variable
// length data such as strings and arrays lives in a pointer pool after the
// entries and is reached through absolute 64-bit offsets.
//
// # Packages
//
//	tbl/
//	├── codec/            container and entry codec, Record, pointer pool
//	├── schema/           type grammar, schema documents, dir/bbolt/lru stores
//	│   └── remote/       schema download from the shared GitHub repository
//	├── document/         JSON and MessagePack exchange documents
//	├── errors/           structured errors with table, entry and field context
//	├── internal/binary/  little-endian cursor and writer
//	├── internal/metrics/ Prometheus counters and textfile export
//	└── cmd/tbltool/      tbl2json, json2tbl, update and browse commands
//
// # Quick Start
//
// Decode a container and write it as JSON:
//
//	c := &codec.Codec{
//	    Tables: schema.NewDirStore("schemas", "ed9_Daybreak1"),
//	    Common: schema.NewDirStore("schemas", tbl.CommonNamespace),
//	}
//	tables, err := c.Decode(ctx, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = document.WriteJSON(os.Stdout, tables)
//
// Encoding is the reverse: document.ReadJSON followed by Codec.Encode.
// Tables without a schema decode as version 0, keeping every entry byte
// as hex in the "extra" field, and encode back unchanged.
//
// # Schemas
//
// A schema document names a version and an ordered set of fields:
//
//	{"version": 3, "schema": {"id": "u32", "name": "ptr_str_utf8", "effects": "arr_ref_ItemEffect"}}
//
// Table schemas live in the game's namespace, referenced schemas in
// CommonNamespace. See package schema for the type grammar.
//
// # Errors
//
// All packages return *errors.Error values carrying a phase, a kind, and
// where known the table, entry index and field path of the failure. Use
// errors.IsKind to test for a kind.
package tbl
