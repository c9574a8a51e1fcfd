package codec

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/wippyai/tbl/errors"
	"github.com/wippyai/tbl/schema"
)

type memStore struct {
	schemas map[string]*schema.Schema
}

func newMemStore(t *testing.T, docs map[string]string) *memStore {
	t.Helper()
	s := &memStore{schemas: map[string]*schema.Schema{}}
	for name, doc := range docs {
		sc, err := schema.ParseDocument(name, []byte(doc))
		if err != nil {
			t.Fatalf("schema %s: %v", name, err)
		}
		s.schemas[name] = sc
	}
	return s
}

func (s *memStore) Lookup(name string) (*schema.Schema, error) {
	if sc, ok := s.schemas[name]; ok {
		return sc, nil
	}
	return nil, errors.SchemaNotFound(errors.PhaseLoad, name)
}

func mustSchema(t *testing.T, name, doc string) *schema.Schema {
	t.Helper()
	s, err := schema.ParseDocument(name, []byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// rec builds a Record from alternating keys and values.
func rec(kv ...any) *Record {
	r := NewRecord(len(kv) / 2)
	for i := 0; i < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

func toJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func requireKind(t *testing.T, err error, kind errors.Kind) *errors.Error {
	t.Helper()
	if !errors.IsKind(err, kind) {
		t.Fatalf("error = %v, want %s", err, kind)
	}
	e, _ := errors.As(err)
	return e
}

type recordingObserver struct {
	mu         sync.Mutex
	tables     map[Direction]int
	entries    map[Direction]int
	containers map[Direction]int
	poolBytes  map[Direction]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		tables:     map[Direction]int{},
		entries:    map[Direction]int{},
		containers: map[Direction]int{},
		poolBytes:  map[Direction]int{},
	}
}

func (o *recordingObserver) ObserveTable(dir Direction, _ string, entries int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tables[dir]++
	o.entries[dir] += entries
}

func (o *recordingObserver) ObserveContainer(dir Direction, _ int, poolSize int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.containers[dir]++
	o.poolBytes[dir] += poolSize
}
