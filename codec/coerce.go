package codec

import (
	"encoding/hex"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/tbl/errors"
	"github.com/wippyai/tbl/schema"
)

// typeName returns "nil" for nil values, avoiding reflect.TypeOf(nil) panic.
func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return reflect.TypeOf(value).String()
}

func appendPath(path []string, elem string) []string {
	return append(append(make([]string, 0, len(path)+1), path...), elem)
}

func indexPath(path []string, i int) []string {
	return appendPath(path, "["+strconv.Itoa(i)+"]")
}

// coerceUnsigned accepts any Go integer, an integral float, or a
// json.Number and checks it fits in width bytes.
func coerceUnsigned(value any, width int, path []string, t *schema.Type) (uint64, error) {
	var v uint64
	switch n := value.(type) {
	case uint64:
		v = n
	case uint8:
		v = uint64(n)
	case uint16:
		v = uint64(n)
	case uint32:
		v = uint64(n)
	case uint:
		v = uint64(n)
	case int, int8, int16, int32, int64:
		i := reflect.ValueOf(n).Int()
		if i < 0 {
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
		v = uint64(i)
	case float64:
		if n < 0 || n >= float64(math.MaxUint64) || n != math.Trunc(n) {
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
		v = uint64(n)
	case float32:
		return coerceUnsigned(float64(n), width, path, t)
	case json.Number:
		u, err := strconv.ParseUint(string(n), 10, 64)
		if err != nil {
			if f, ferr := n.Float64(); ferr == nil {
				return coerceUnsigned(f, width, path, t)
			}
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
		v = u
	default:
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), t.Token)
	}
	if width < 8 && v >= 1<<(8*uint(width)) {
		return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
	}
	return v, nil
}

// coerceSigned is coerceUnsigned for two's complement fields.
func coerceSigned(value any, width int, path []string, t *schema.Type) (int64, error) {
	var v int64
	switch n := value.(type) {
	case int64:
		v = n
	case int:
		v = int64(n)
	case int8:
		v = int64(n)
	case int16:
		v = int64(n)
	case int32:
		v = int64(n)
	case uint, uint8, uint16, uint32, uint64:
		u := reflect.ValueOf(n).Uint()
		if u > math.MaxInt64 {
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
		v = int64(u)
	case float64:
		if n < float64(math.MinInt64) || n >= float64(math.MaxInt64) || n != math.Trunc(n) {
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
		v = int64(n)
	case float32:
		return coerceSigned(float64(n), width, path, t)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			if f, ferr := n.Float64(); ferr == nil {
				return coerceSigned(f, width, path, t)
			}
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
		v = i
	default:
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), t.Token)
	}
	if width < 8 {
		bits := 8 * uint(width)
		lo, hi := -int64(1)<<(bits-1), int64(1)<<(bits-1)-1
		if v < lo || v > hi {
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
	}
	return v, nil
}

// coerceFloat accepts any Go number or a json.Number. Finite values that do
// not fit a 4-byte float are rejected.
func coerceFloat(value any, width int, path []string, t *schema.Type) (float64, error) {
	var f float64
	switch n := value.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int, int8, int16, int32, int64:
		f = float64(reflect.ValueOf(n).Int())
	case uint, uint8, uint16, uint32, uint64:
		f = float64(reflect.ValueOf(n).Uint())
	case json.Number:
		v, err := n.Float64()
		if err != nil {
			return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
		}
		f = v
	default:
		return 0, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), t.Token)
	}
	if width == 4 && !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return 0, errors.Overflow(errors.PhaseEncode, path, value, t.Token)
	}
	return f, nil
}

const hexDigits = "0123456789ABCDEF"

// formatHex renders bytes as uppercase hex pairs separated by spaces.
func formatHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out := make([]byte, 0, len(b)*3-1)
	for i, c := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0f])
	}
	return string(out)
}

// parseHex accepts hex pairs with or without whitespace between them.
func parseHex(value any, path []string, token string) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseEncode, path, typeName(value), token)
	}
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Path(path...).
			Type(token).
			Cause(err).
			Detail("invalid hex data").
			Build()
	}
	return b, nil
}
