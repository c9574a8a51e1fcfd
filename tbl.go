package tbl

import "github.com/wippyai/tbl/schema"

// Store resolves schemas by name. A missing schema is reported as an
// errors.KindSchemaNotFound error.
type Store interface {
	Lookup(name string) (*schema.Schema, error)
}

// Putter persists raw schema documents by name.
type Putter interface {
	Put(name string, raw []byte) error
}

// Namespaces used by the schema stores: tables resolve in the game's
// namespace, references in CommonNamespace.
const CommonNamespace = "common"
