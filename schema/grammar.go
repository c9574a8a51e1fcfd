package schema

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wippyai/tbl/errors"
)

// ParseToken parses a string type token such as "u32", "str_utf8",
// "ptr_u16", "arr_f32", "d12" or "ref_ItemEffect".
func ParseToken(token string) (*Type, error) {
	return parseString(token, nil)
}

// ParseTokenJSON parses a type token given as JSON: either a string token
// or a structured {"type": ..., "repeat": n} object.
func ParseTokenJSON(raw []byte) (*Type, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidData).
			Detail("type token is not valid JSON").
			Build()
	}
	return parseValue(gjson.ParseBytes(raw), nil)
}

// ParseStructJSON parses a JSON object of field name to type token. Field
// order follows the document.
func ParseStructJSON(raw []byte) (*Type, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New(errors.PhaseParse, errors.KindInvalidData).
			Detail("struct is not valid JSON").
			Build()
	}
	return parseStruct(gjson.ParseBytes(raw), nil)
}

func parseValue(r gjson.Result, path []string) (*Type, error) {
	switch {
	case r.Type == gjson.String:
		return parseString(r.Str, path)
	case r.IsObject():
		return parseWrapper(r, path)
	default:
		return nil, errors.UnknownType(path, r.Raw)
	}
}

// parseWrapper handles {"type": T} and {"type": T, "repeat": n}. T may be a
// string token or an object of fields.
func parseWrapper(r gjson.Result, path []string) (*Type, error) {
	inner := r.Get("type")
	if !inner.Exists() {
		return nil, errors.New(errors.PhaseParse, errors.KindUnknownType).
			Path(path...).
			Type(r.Raw).
			Detail(`structured token has no "type"`).
			Build()
	}

	var elem *Type
	var err error
	if inner.IsObject() {
		elem, err = parseStruct(inner, path)
	} else {
		elem, err = parseValue(inner, path)
	}
	if err != nil {
		return nil, err
	}

	repeat := r.Get("repeat")
	if !repeat.Exists() {
		return elem, nil
	}
	if repeat.Type != gjson.Number || repeat.Num < 0 || repeat.Num != float64(repeat.Int()) {
		return nil, errors.New(errors.PhaseParse, errors.KindUnknownType).
			Path(path...).
			Type(r.Raw).
			Detail("repeat must be a non-negative integer, got %s", repeat.Raw).
			Build()
	}
	return &Type{
		Kind:  KindRepeat,
		Elem:  elem,
		Count: int(repeat.Int()),
		Token: r.Raw,
	}, nil
}

func parseStruct(r gjson.Result, path []string) (*Type, error) {
	t := &Type{Kind: KindStruct, Token: r.Raw}
	var err error
	r.ForEach(func(key, value gjson.Result) bool {
		fieldPath := append(append([]string{}, path...), key.Str)
		var ft *Type
		ft, err = parseValue(value, fieldPath)
		if err != nil {
			return false
		}
		t.Fields = append(t.Fields, Field{Name: key.Str, Type: ft})
		return true
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func parseString(token string, path []string) (*Type, error) {
	switch {
	case strings.HasPrefix(token, "str"):
		return parseStringType(token, path)
	case strings.HasPrefix(token, "u"), strings.HasPrefix(token, "s"), strings.HasPrefix(token, "f"):
		return parsePrimitive(token, path)
	case strings.HasPrefix(token, "d"):
		return parseBlob(token, path)
	case strings.HasPrefix(token, "ptr_"):
		elem, err := parseString(token[len("ptr_"):], path)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindPointer, Elem: elem, Token: token}, nil
	case strings.HasPrefix(token, "arr_"):
		elem, err := parseString(token[len("arr_"):], path)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindArray, Elem: elem, Token: token}, nil
	case strings.HasPrefix(token, "ref_"):
		name := token[len("ref_"):]
		if name == "" {
			return nil, errors.UnknownType(path, token)
		}
		return &Type{Kind: KindRef, Ref: name, Token: token}, nil
	default:
		return nil, errors.UnknownType(path, token)
	}
}

func parseStringType(token string, path []string) (*Type, error) {
	idx := strings.LastIndexByte(token, '_')
	if idx < 0 || idx == len(token)-1 {
		return nil, errors.New(errors.PhaseParse, errors.KindUnknownType).
			Path(path...).
			Type(token).
			Detail("string token names no encoding").
			Build()
	}
	label := token[idx+1:]
	enc, ok := lookupEncoding(label)
	if !ok {
		return nil, errors.New(errors.PhaseParse, errors.KindUnknownType).
			Path(path...).
			Type(token).
			Detail("unknown text encoding %q", label).
			Build()
	}
	return &Type{Kind: KindString, Encoding: label, enc: enc, Token: token}, nil
}

func parsePrimitive(token string, path []string) (*Type, error) {
	bits, err := strconv.Atoi(token[1:])
	if err != nil || bits <= 0 || bits%8 != 0 {
		return nil, errors.UnknownType(path, token)
	}
	kind, ok := primitiveKind(token[0], bits/8)
	if !ok {
		return nil, errors.UnknownType(path, token)
	}
	return &Type{Kind: kind, Size: bits / 8, Token: token}, nil
}

func parseBlob(token string, path []string) (*Type, error) {
	size, err := strconv.Atoi(token[1:])
	if err != nil || size < 0 {
		return nil, errors.UnknownType(path, token)
	}
	return &Type{Kind: KindBlob, Size: size, Token: token}, nil
}
