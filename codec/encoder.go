package codec

import (
	"math"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/tbl/errors"
	"github.com/wippyai/tbl/internal/binary"
	"github.com/wippyai/tbl/schema"
)

// target is a pointer or array whose inline slot has been written as a
// placeholder and whose data is still to be placed in the pool.
type target struct {
	buf   *binary.Writer
	typ   *schema.Type
	value any
	path  []string
	at    int
	depth int
}

// encoder turns Records into entry bytes and appends indirect data to a
// shared pool. It is not safe for concurrent use.
type encoder struct {
	common   schemaSource
	pool     *Pool
	pending  []target
	maxDepth int
}

// encodeEntry encodes rec under s into exactly length bytes. Pointer and
// array targets reached from the entry are placed in the pool once the
// entry's inline bytes are complete, in the order they were met.
func (e *encoder) encodeEntry(rec *Record, s *schema.Schema, length int) ([]byte, error) {
	if rec == nil {
		return nil, errors.InvalidInput(errors.PhaseEncode, "entry is null")
	}
	e.pending = e.pending[:0]
	w := binary.NewWriter()
	if !s.IsEmpty() {
		if err := e.encodeFields(w, s.Fields, rec, nil, 1); err != nil {
			return nil, err
		}
	}
	if extra, ok := rec.Get(ExtraField); ok {
		b, err := parseHex(extra, []string{ExtraField}, "extra")
		if err != nil {
			return nil, err
		}
		w.WriteBytes(b)
	}
	if w.Len() != length {
		return nil, errors.EntryLengthMismatch(errors.PhaseEncode, w.Len(), length)
	}
	if err := e.flush(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// flush places pending targets first in, first out. Placing a target may
// queue more targets; they are placed after everything queued before them,
// so every target's data is contiguous in the pool.
func (e *encoder) flush() error {
	defer func() { e.pending = e.pending[:0] }()
	for i := 0; i < len(e.pending); i++ {
		if err := e.place(e.pending[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) place(t target) error {
	pw := e.pool.writer()
	if t.typ.Kind == schema.KindArray && t.typ.Elem.IsPrimitive() {
		e.pool.AlignTo(t.typ.Elem.Size)
	}
	if err := t.buf.PutU64LEAt(t.at, e.pool.Next()); err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, err, "patch pointer")
	}

	if t.typ.Kind == schema.KindPointer {
		return e.encodeValue(pw, t.typ.Elem, t.value, t.path, t.depth)
	}
	for i, item := range t.value.([]any) {
		if err := e.encodeValue(pw, t.typ.Elem, item, indexPath(t.path, i), t.depth); err != nil {
			return err
		}
	}
	return nil
}

// enqueue writes an 8-byte placeholder for t and queues its data.
func (e *encoder) enqueue(w *binary.Writer, t *schema.Type, value any, path []string, depth int) {
	e.pending = append(e.pending, target{
		buf:   w,
		at:    w.Len(),
		typ:   t,
		value: value,
		path:  path,
		depth: depth,
	})
	w.WriteU64LE(0)
}

func (e *encoder) encodeValue(w *binary.Writer, t *schema.Type, value any, path []string, depth int) error {
	if depth > e.maxDepth {
		return errors.DepthExceeded(errors.PhaseEncode, path, e.maxDepth)
	}

	switch t.Kind {
	case schema.KindU8, schema.KindU16, schema.KindU32, schema.KindU64:
		v, err := coerceUnsigned(value, t.Size, path, t)
		if err != nil {
			return err
		}
		w.WriteUint(v, t.Size)

	case schema.KindS8, schema.KindS16, schema.KindS32, schema.KindS64:
		v, err := coerceSigned(value, t.Size, path, t)
		if err != nil {
			return err
		}
		w.WriteUint(uint64(v), t.Size)

	case schema.KindF32:
		f, err := coerceFloat(value, 4, path, t)
		if err != nil {
			return err
		}
		w.WriteU32LE(math.Float32bits(float32(f)))

	case schema.KindF64:
		f, err := coerceFloat(value, 8, path, t)
		if err != nil {
			return err
		}
		w.WriteU64LE(math.Float64bits(f))

	case schema.KindBlob:
		b, err := parseHex(value, path, t.Token)
		if err != nil {
			return err
		}
		if len(b) != t.Size {
			return errors.New(errors.PhaseEncode, errors.KindInvalidData).
				Path(path...).
				Type(t.Token).
				Detail("blob has %d bytes, want %d", len(b), t.Size).
				Build()
		}
		w.WriteBytes(b)

	case schema.KindString:
		b, err := encodeText(value, t, path)
		if err != nil {
			return err
		}
		w.WriteBytes(b)
		w.Byte(0)

	case schema.KindPointer:
		e.enqueue(w, t, value, path, depth+1)

	case schema.KindArray:
		items, err := asSlice(value, path, t)
		if err != nil {
			return err
		}
		if uint64(len(items)) > math.MaxUint32 {
			return errors.Overflow(errors.PhaseEncode, path, len(items), "u32 array count")
		}
		e.enqueue(w, t, items, path, depth+1)
		w.WriteU32LE(uint32(len(items)))

	case schema.KindRef:
		return e.encodeRef(w, t, value, path, depth)

	case schema.KindStruct:
		return e.encodeFields(w, t, value, path, depth+1)

	case schema.KindRepeat:
		items, err := asSlice(value, path, t)
		if err != nil {
			return err
		}
		if len(items) != t.Count {
			return errors.RepeatCountMismatch(path, len(items), t.Count)
		}
		for i, item := range items {
			if err := e.encodeValue(w, t.Elem, item, indexPath(path, i), depth+1); err != nil {
				return err
			}
		}

	default:
		return errors.UnknownType(path, t.Token)
	}
	return nil
}

func (e *encoder) encodeFields(w *binary.Writer, t *schema.Type, value any, path []string, depth int) error {
	get, err := fieldGetter(value, path, t)
	if err != nil {
		return err
	}
	for _, f := range t.Fields {
		v, ok := get(f.Name)
		if !ok {
			return errors.FieldMissing(errors.PhaseEncode, path, f.Name)
		}
		if err := e.encodeValue(w, f.Type, v, appendPath(path, f.Name), depth); err != nil {
			return err
		}
	}
	return nil
}

// encodeRef checks the value's recorded version against the registered
// schema before encoding its data.
func (e *encoder) encodeRef(w *binary.Writer, t *schema.Type, value any, path []string, depth int) error {
	s, err := lookupSchema(e.common, errors.PhaseEncode, t.Ref, path)
	if err != nil {
		return err
	}
	get, err := fieldGetter(value, path, t)
	if err != nil {
		return err
	}

	rawVersion, ok := get("version")
	if !ok {
		return errors.FieldMissing(errors.PhaseEncode, path, "version")
	}
	version, err := coerceSigned(rawVersion, 8, appendPath(path, "version"), versionType)
	if err != nil {
		return err
	}
	if version != int64(s.Version) {
		return errors.VersionMismatch(path, t.Ref, int(version), s.Version)
	}

	data, ok := get("data")
	if !ok {
		return errors.FieldMissing(errors.PhaseEncode, path, "data")
	}
	return e.encodeFields(w, s.Struct(), data, appendPath(path, "data"), depth+1)
}

var versionType = &schema.Type{Kind: schema.KindS64, Size: 8, Token: "version"}

// fieldGetter accepts a *Record or a map[string]any.
func fieldGetter(value any, path []string, t *schema.Type) (func(string) (any, bool), error) {
	switch v := value.(type) {
	case *Record:
		if v == nil {
			break
		}
		return v.Get, nil
	case map[string]any:
		return func(k string) (any, bool) {
			x, ok := v[k]
			return x, ok
		}, nil
	}
	return nil, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), t.Token)
}

// asSlice accepts []any or any other slice type.
func asSlice(value any, path []string, t *schema.Type) ([]any, error) {
	if items, ok := value.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), t.Token)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}

func encodeText(value any, t *schema.Type, path []string) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), t.Token)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return nil, errors.InvalidData(errors.PhaseEncode, path, "string contains a NUL byte")
	}
	enc := t.TextEncoding()
	if enc == nil {
		if !utf8.ValidString(s) {
			return nil, errors.InvalidUTF8(errors.PhaseEncode, path, []byte(s))
		}
		return []byte(s), nil
	}
	b, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			Type(t.Token).
			Cause(err).
			Detail("text cannot be represented in %s", t.Encoding).
			Build()
	}
	return b, nil
}
