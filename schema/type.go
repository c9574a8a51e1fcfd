package schema

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
)

// Type is a parsed type descriptor. Types are immutable once parsed and
// safe for concurrent use.
type Type struct {
	enc      encoding.Encoding // nil for UTF-8
	Elem     *Type
	Encoding string
	Ref      string
	Token    string
	Fields   []Field
	Size     int
	Count    int
	Kind     Kind
}

// Field is one named member of a struct. Declaration order defines layout.
type Field struct {
	Type *Type
	Name string
}

// TextEncoding returns the resolved text encoding of a string type, or nil
// when the encoding is UTF-8.
func (t *Type) TextEncoding() encoding.Encoding {
	return t.enc
}

// IsUTF8 reports whether a string type stores UTF-8 text.
func (t *Type) IsUTF8() bool {
	return t.Kind == KindString && t.enc == nil
}

// IsPrimitive reports whether t is a fixed-width number.
func (t *Type) IsPrimitive() bool {
	return t.Kind.IsPrimitive()
}

// Field returns the struct field with the given name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// InlineSize returns the number of bytes t occupies inside its parent when
// that size is known without data or other schemas. Strings and references
// report false.
func (t *Type) InlineSize() (int, bool) {
	switch t.Kind {
	case KindString, KindRef:
		return 0, false
	case KindPointer:
		return 8, true
	case KindArray:
		return 12, true
	case KindStruct:
		total := 0
		for _, f := range t.Fields {
			n, ok := f.Type.InlineSize()
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	case KindRepeat:
		n, ok := t.Elem.InlineSize()
		if !ok {
			return 0, false
		}
		return n * t.Count, true
	default:
		return t.Size, true
	}
}

// String renders t in the token grammar. Structs render as {name:type,...}.
func (t *Type) String() string {
	switch t.Kind {
	case KindBlob:
		return "d" + strconv.Itoa(t.Size)
	case KindString:
		return "str_" + t.Encoding
	case KindPointer:
		return "ptr_" + t.Elem.String()
	case KindArray:
		return "arr_" + t.Elem.String()
	case KindRef:
		return "ref_" + t.Ref
	case KindStruct:
		var b strings.Builder
		b.WriteByte('{')
		for i, f := range t.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(f.Name)
			b.WriteByte(':')
			b.WriteString(f.Type.String())
		}
		b.WriteByte('}')
		return b.String()
	case KindRepeat:
		return t.Elem.String() + "[" + strconv.Itoa(t.Count) + "]"
	default:
		return t.Kind.String()
	}
}
