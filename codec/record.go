package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Record is an insertion-ordered map of field name to value. Decoded
// entries and structs are Records so that field order survives a trip
// through JSON or MessagePack.
//
// The zero value is an empty record ready to use.
type Record struct {
	index  map[string]int
	keys   []string
	values []any
}

// NewRecord returns an empty record with room for n fields.
func NewRecord(n int) *Record {
	return &Record{
		index:  make(map[string]int, n),
		keys:   make([]string, 0, n),
		values: make([]any, 0, n),
	}
}

// Set stores v under key. Existing keys keep their position.
func (r *Record) Set(key string, v any) {
	if i, ok := r.index[key]; ok {
		r.values[i] = v
		return
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.index[key] = len(r.keys)
	r.keys = append(r.keys, key)
	r.values = append(r.values, v)
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.keys)
}

// Keys returns the field names in order. The slice must not be modified.
func (r *Record) Keys() []string {
	return r.keys
}

// Range calls fn for each field in order until fn returns false.
func (r *Record) Range(fn func(key string, v any) bool) {
	for i, k := range r.keys {
		if !fn(k, r.values[i]) {
			return
		}
	}
}

// MarshalJSON writes the fields in order. HTML characters are not escaped.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(k); err != nil {
			return nil, err
		}
		trimNewline(&buf)
		buf.WriteByte(':')
		if err := enc.Encode(r.values[i]); err != nil {
			return nil, err
		}
		trimNewline(&buf)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func trimNewline(buf *bytes.Buffer) {
	if n := buf.Len(); n > 0 && buf.Bytes()[n-1] == '\n' {
		buf.Truncate(n - 1)
	}
}

// UnmarshalJSON reads a JSON object keeping its key order. Numbers are kept
// as json.Number, nested objects become Records and arrays become []any.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("codec: record is not valid JSON")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return fmt.Errorf("codec: cannot unmarshal JSON %s into a record", res.Type)
	}
	*r = *recordFromJSON(res)
	return nil
}

func recordFromJSON(res gjson.Result) *Record {
	rec := &Record{}
	res.ForEach(func(key, value gjson.Result) bool {
		rec.Set(key.Str, valueFromJSON(value))
		return true
	})
	return rec
}

func valueFromJSON(res gjson.Result) any {
	switch res.Type {
	case gjson.String:
		return res.Str
	case gjson.Number:
		return json.Number(res.Raw)
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.JSON:
		if res.IsObject() {
			return recordFromJSON(res)
		}
		arr := res.Array()
		out := make([]any, len(arr))
		for i, v := range arr {
			out[i] = valueFromJSON(v)
		}
		return out
	default:
		return nil
	}
}

var _ msgpack.CustomEncoder = (*Record)(nil)
var _ msgpack.CustomDecoder = (*Record)(nil)

// EncodeMsgpack writes the record as a MessagePack map in field order.
func (r *Record) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(r.keys)); err != nil {
		return err
	}
	for i, k := range r.keys {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.Encode(r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsgpack reads a MessagePack map keeping its key order.
func (r *Record) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	*r = Record{}
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return err
		}
		v, err := decodeMsgpackValue(dec)
		if err != nil {
			return err
		}
		r.Set(k, v)
	}
	return nil
}

func decodeMsgpackValue(dec *msgpack.Decoder) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsFixedMap(code), code == msgpcode.Map16, code == msgpcode.Map32:
		rec := &Record{}
		if err := rec.DecodeMsgpack(dec); err != nil {
			return nil, err
		}
		return rec, nil
	case msgpcode.IsFixedArray(code), code == msgpcode.Array16, code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := range out {
			if out[i], err = decodeMsgpackValue(dec); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return dec.DecodeInterfaceLoose()
	}
}
