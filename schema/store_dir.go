package schema

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/tbl/errors"
)

// DirStore reads schema documents from <root>/<namespace>/<name>.json.
type DirStore struct {
	dir string
}

// NewDirStore returns a store for one namespace directory under root.
func NewDirStore(root, namespace string) *DirStore {
	return &DirStore{dir: filepath.Join(root, namespace)}
}

// Dir returns the directory the store reads from.
func (s *DirStore) Dir() string {
	return s.dir
}

// Exists reports whether the namespace directory exists.
func (s *DirStore) Exists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

func (s *DirStore) Lookup(name string) (*Schema, error) {
	if !validName(name) {
		return nil, errors.SchemaNotFound(errors.PhaseLoad, name)
	}
	path := filepath.Join(s.dir, name+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.SchemaNotFound(errors.PhaseLoad, name)
		}
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "read "+path)
	}
	Logger().Debug("schema loaded", zap.String("path", path))
	return ParseDocument(name, raw)
}

// Put writes a raw schema document, creating the directory as needed.
func (s *DirStore) Put(name string, raw []byte) error {
	if !validName(name) {
		return errors.InvalidInput(errors.PhaseLoad, "invalid schema name "+name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "create "+s.dir)
	}
	path := filepath.Join(s.dir, name+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "write "+path)
	}
	return nil
}

// Names lists the schema names present in the directory.
func (s *DirStore) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "list "+s.dir)
	}
	var names []string
	for _, e := range entries {
		if e.Type()&fs.ModeType != 0 {
			continue
		}
		if n, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			names = append(names, n)
		}
	}
	return names, nil
}

// validName rejects names that would escape the namespace directory.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
