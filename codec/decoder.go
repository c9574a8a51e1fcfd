package codec

import (
	"bytes"
	stderrors "errors"
	"math"
	"unicode/utf8"

	"github.com/wippyai/tbl/errors"
	"github.com/wippyai/tbl/internal/binary"
	"github.com/wippyai/tbl/schema"
)

// ExtraField holds the entry bytes not covered by the schema, as hex.
const ExtraField = "extra"

var errInvalidText = stderrors.New("bytes do not round-trip through the encoding")

// schemaSource is the lookup half of tbl.Store.
type schemaSource interface {
	Lookup(name string) (*schema.Schema, error)
}

// decoder turns entry bytes into Records. A decoder holds no cursor state;
// one instance may serve many goroutines as long as each owns its cursor.
type decoder struct {
	common   schemaSource
	maxDepth int
}

// decodeEntry decodes one entry of exactly length bytes starting at the
// cursor position. Bytes the schema does not cover are kept as ExtraField.
func (d *decoder) decodeEntry(cur *binary.Cursor, s *schema.Schema, length int) (*Record, error) {
	rec := NewRecord(1)
	consumed := 0
	if !s.IsEmpty() {
		n, err := d.decodeFields(cur, s.Fields, rec, nil, 1)
		if err != nil {
			return nil, err
		}
		consumed = n
	}

	if consumed > length {
		return nil, errors.EntryLengthMismatch(errors.PhaseDecode, consumed, length)
	}
	if rest := length - consumed; rest > 0 {
		b, err := cur.ReadBytes(rest)
		if err != nil {
			return nil, errors.Truncated([]string{ExtraField}, cur.Position(), err)
		}
		rec.Set(ExtraField, formatHex(b))
	}
	return rec, nil
}

func (d *decoder) decodeFields(cur *binary.Cursor, t *schema.Type, into *Record, path []string, depth int) (int, error) {
	total := 0
	for _, f := range t.Fields {
		n, v, err := d.decodeValue(cur, f.Type, appendPath(path, f.Name), depth)
		if err != nil {
			return 0, err
		}
		total += n
		into.Set(f.Name, v)
	}
	return total, nil
}

// decodeValue reads one value of type t. It returns the number of bytes
// consumed at the cursor; pointer and array targets are read through a
// separate view and do not count.
func (d *decoder) decodeValue(cur *binary.Cursor, t *schema.Type, path []string, depth int) (int, any, error) {
	if depth > d.maxDepth {
		return 0, nil, errors.DepthExceeded(errors.PhaseDecode, path, d.maxDepth)
	}

	switch t.Kind {
	case schema.KindU8, schema.KindU16, schema.KindU32, schema.KindU64:
		v, err := cur.ReadUint(t.Size)
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		return t.Size, v, nil

	case schema.KindS8, schema.KindS16, schema.KindS32, schema.KindS64:
		v, err := cur.ReadUint(t.Size)
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		shift := 64 - 8*uint(t.Size)
		return t.Size, int64(v<<shift) >> shift, nil

	case schema.KindF32:
		v, err := cur.ReadU32()
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		return 4, float64(math.Float32frombits(v)), nil

	case schema.KindF64:
		v, err := cur.ReadU64()
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		return 8, math.Float64frombits(v), nil

	case schema.KindBlob:
		b, err := cur.ReadBytes(t.Size)
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		return t.Size, formatHex(b), nil

	case schema.KindString:
		b, n, err := cur.ReadCString()
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		s, err := decodeText(b, t, path)
		if err != nil {
			return 0, nil, err
		}
		return n, s, nil

	case schema.KindPointer:
		off, err := cur.ReadU64()
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		view, err := cur.At(off)
		if err != nil {
			return 0, nil, errors.Truncated(path, cur.Position(), err)
		}
		_, v, err := d.decodeValue(view, t.Elem, path, depth+1)
		if err != nil {
			return 0, nil, err
		}
		return 8, v, nil

	case schema.KindArray:
		return d.decodeArray(cur, t, path, depth)

	case schema.KindRef:
		return d.decodeRef(cur, t, path, depth)

	case schema.KindStruct:
		rec := NewRecord(len(t.Fields))
		n, err := d.decodeFields(cur, t, rec, path, depth+1)
		if err != nil {
			return 0, nil, err
		}
		return n, rec, nil

	case schema.KindRepeat:
		out := make([]any, t.Count)
		total := 0
		for i := range out {
			n, v, err := d.decodeValue(cur, t.Elem, indexPath(path, i), depth+1)
			if err != nil {
				return 0, nil, err
			}
			total += n
			out[i] = v
		}
		return total, out, nil

	default:
		return 0, nil, errors.UnknownType(path, t.Token)
	}
}

func (d *decoder) decodeArray(cur *binary.Cursor, t *schema.Type, path []string, depth int) (int, any, error) {
	off, err := cur.ReadU64()
	if err != nil {
		return 0, nil, errors.Truncated(path, cur.Position(), err)
	}
	count, err := cur.ReadU32()
	if err != nil {
		return 0, nil, errors.Truncated(path, cur.Position(), err)
	}
	view, err := cur.At(off)
	if err != nil {
		return 0, nil, errors.Truncated(path, cur.Position(), err)
	}
	if size, ok := t.Elem.InlineSize(); ok && size > 0 && uint64(count)*uint64(size) > uint64(view.Remaining()) {
		return 0, nil, errors.New(errors.PhaseDecode, errors.KindTruncated).
			Path(path...).
			Type(t.Token).
			Detail("array of %d elements at offset %d runs past end of input", count, off).
			Build()
	}

	out := make([]any, 0, min(int(count), view.Remaining()))
	for i := 0; i < int(count); i++ {
		n, v, err := d.decodeValue(view, t.Elem, indexPath(path, i), depth+1)
		if err != nil {
			return 0, nil, err
		}
		// Elements that occupy no bytes cannot be bounded by the input size.
		if n == 0 && uint64(count) > uint64(view.Remaining()) {
			return 0, nil, errors.New(errors.PhaseDecode, errors.KindTruncated).
				Path(path...).
				Type(t.Token).
				Detail("array of %d empty elements at offset %d exceeds the %d bytes after it", count, off, view.Remaining()).
				Build()
		}
		out = append(out, v)
	}
	return 12, out, nil
}

// decodeRef decodes a reference as {"version": v, "data": {...}}. The
// version is taken from the registered schema; there is nothing in the
// data to check it against.
func (d *decoder) decodeRef(cur *binary.Cursor, t *schema.Type, path []string, depth int) (int, any, error) {
	s, err := lookupSchema(d.common, errors.PhaseDecode, t.Ref, path)
	if err != nil {
		return 0, nil, err
	}
	fields := s.Struct()
	data := NewRecord(len(fields.Fields))
	n, err := d.decodeFields(cur, fields, data, appendPath(path, "data"), depth+1)
	if err != nil {
		return 0, nil, err
	}
	rec := NewRecord(2)
	rec.Set("version", int64(s.Version))
	rec.Set("data", data)
	return n, rec, nil
}

func decodeText(b []byte, t *schema.Type, path []string) (string, error) {
	enc := t.TextEncoding()
	if enc == nil {
		if !utf8.Valid(b) {
			return "", errors.InvalidUTF8(errors.PhaseDecode, path, b)
		}
		return string(b), nil
	}
	// x/text decoders substitute U+FFFD for bad input. A replacement
	// character is only accepted when it encodes back to the source bytes.
	out, err := enc.NewDecoder().Bytes(b)
	if err == nil && bytes.ContainsRune(out, utf8.RuneError) {
		var back []byte
		if back, err = enc.NewEncoder().Bytes(out); err == nil && !bytes.Equal(back, b) {
			err = errInvalidText
		}
	}
	if err != nil {
		return "", errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path(path...).
			Type(t.Token).
			Cause(err).
			Detail("text is not valid %s: % X", t.Encoding, b).
			Build()
	}
	return string(out), nil
}

// lookupSchema resolves a referenced schema and places a miss at path.
func lookupSchema(src schemaSource, phase errors.Phase, name string, path []string) (*schema.Schema, error) {
	if src == nil {
		e := errors.SchemaNotFound(phase, name)
		e.Path = path
		return nil, e
	}
	s, err := src.Lookup(name)
	if err != nil {
		if errors.IsKind(err, errors.KindSchemaNotFound) {
			e := errors.SchemaNotFound(phase, name)
			e.Path = path
			return nil, e
		}
		return nil, err
	}
	return s, nil
}
