package schema

import (
	_ "crypto/sha256"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/wippyai/tbl/errors"
)

// storedDocument is the value kept per schema name in a BoltStore bucket.
type storedDocument struct {
	FetchedAt time.Time `msgpack:"fetched_at"`
	Digest    string    `msgpack:"digest"`
	Raw       []byte    `msgpack:"raw"`
}

// BoltStore keeps schema documents in a bbolt database, one bucket per
// namespace. Every document is stored with its sha256 digest, which is
// checked on read.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "open schema database "+path)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Namespace returns a Store/Putter view over one bucket.
func (s *BoltStore) Namespace(namespace string) *BoltNamespace {
	return &BoltNamespace{store: s, bucket: []byte(namespace)}
}

// BoltNamespace is one bucket of a BoltStore.
type BoltNamespace struct {
	store  *BoltStore
	bucket []byte
}

// Exists reports whether the namespace holds at least one document.
func (n *BoltNamespace) Exists() bool {
	found := false
	_ = n.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		found = k != nil
		return nil
	})
	return found
}

func (n *BoltNamespace) Lookup(name string) (*Schema, error) {
	var value []byte
	err := n.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(name)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "read schema database")
	}
	if value == nil {
		return nil, errors.SchemaNotFound(errors.PhaseLoad, name)
	}

	var doc storedDocument
	if err := msgpack.Unmarshal(value, &doc); err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "decode stored schema "+name)
	}
	want, err := digest.Parse(doc.Digest)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "stored schema "+name+" has no valid digest")
	}
	if got := digest.FromBytes(doc.Raw); got != want {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Path(string(n.bucket), name).
			Detail("digest mismatch: stored %s, computed %s", want, got).
			Build()
	}
	Logger().Debug("schema loaded",
		zap.ByteString("namespace", n.bucket),
		zap.String("name", name),
		zap.Time("fetched_at", doc.FetchedAt))
	return ParseDocument(name, doc.Raw)
}

// Put stores a raw schema document, replacing any previous version.
func (n *BoltNamespace) Put(name string, raw []byte) error {
	value, err := msgpack.Marshal(&storedDocument{
		FetchedAt: n.store.now().UTC(),
		Digest:    digest.FromBytes(raw).String(),
		Raw:       raw,
	})
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "encode schema "+name)
	}
	err = n.store.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(n.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), value)
	})
	if err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "write schema "+name)
	}
	return nil
}

// Names lists the stored schema names in key order.
func (n *BoltNamespace) Names() ([]string, error) {
	var names []string
	err := n.store.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(n.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "list schema database")
	}
	return names, nil
}
