package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/wippyai/tbl/errors"
)

type rawTable struct {
	name    string
	length  int
	entries [][]byte
}

// buildContainer lays out tables the way the format defines, followed by
// pool bytes.
func buildContainer(pool []byte, tables ...rawTable) []byte {
	var out bytes.Buffer
	out.WriteString(Magic)
	_ = binary.Write(&out, binary.LittleEndian, uint32(len(tables)))
	start := uint32(8 + 80*len(tables))
	for _, t := range tables {
		name := make([]byte, 64)
		copy(name, t.name)
		out.Write(name)
		_ = binary.Write(&out, binary.LittleEndian, NameHash(t.name))
		_ = binary.Write(&out, binary.LittleEndian, start)
		_ = binary.Write(&out, binary.LittleEndian, uint32(t.length))
		_ = binary.Write(&out, binary.LittleEndian, uint32(len(t.entries)))
		start += uint32(t.length * len(t.entries))
	}
	for _, t := range tables {
		for _, e := range t.entries {
			out.Write(e)
		}
	}
	out.Write(pool)
	return out.Bytes()
}

func TestCodec_EmptyContainer(t *testing.T) {
	c := &Codec{}
	out, err := c.Encode(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{'#', 'T', 'B', 'L', 0, 0, 0, 0}
	if !bytes.Equal(out, want) {
		t.Fatalf("Encode(nil) = % X, want % X", out, want)
	}

	tables, err := c.Decode(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables) != 0 {
		t.Errorf("decoded %d tables, want 0", len(tables))
	}
}

func TestCodec_SingleU32Entry(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, map[string]string{
		"Test": `{"version": 1, "schema": {"value": "u32"}}`,
	})}
	tables := []*Table{{Name: "Test", EntryLength: 4, Version: 1, Entries: []*Record{rec("value", 42)}}}

	out, err := c.Encode(context.Background(), tables)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 92 {
		t.Fatalf("container is %d bytes, want 92", len(out))
	}
	if got := out[88:92]; !bytes.Equal(got, []byte{0x2A, 0, 0, 0}) {
		t.Errorf("entry bytes = % X, want 2A 00 00 00", got)
	}
	if got := string(bytes.TrimRight(out[8:72], "\x00")); got != "Test" {
		t.Errorf("header name = %q", got)
	}
	if got := binary.LittleEndian.Uint32(out[72:]); got != NameHash("Test") {
		t.Errorf("hash = %08X, want %08X", got, NameHash("Test"))
	}
	if got := binary.LittleEndian.Uint32(out[76:]); got != 88 {
		t.Errorf("start offset = %d, want 88", got)
	}
	if got := binary.LittleEndian.Uint32(out[80:]); got != 4 {
		t.Errorf("entry length = %d, want 4", got)
	}
	if got := binary.LittleEndian.Uint32(out[84:]); got != 1 {
		t.Errorf("entry count = %d, want 1", got)
	}

	decoded, err := c.Decode(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0].Name != "Test" || decoded[0].Version != 1 || decoded[0].EntryLength != 4 {
		t.Fatalf("unexpected table %+v", decoded[0])
	}
	v, _ := decoded[0].Entries[0].Get("value")
	if v != uint64(42) {
		t.Errorf("value = %#v, want uint64(42)", v)
	}
	if _, ok := decoded[0].Entries[0].Get(ExtraField); ok {
		t.Error("entry fully covered by schema has extra bytes")
	}
}

func TestCodec_ExtraBytes(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, map[string]string{
		"Pair": `{"version": 1, "schema": {"a": "u16", "b": "u32"}}`,
	})}
	entry := []byte{0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0xAA, 0xBB, 0xCC, 0xDD}
	data := buildContainer(nil, rawTable{name: "Pair", length: 10, entries: [][]byte{entry}})

	tables, err := c.Decode(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	extra, ok := tables[0].Entries[0].Get(ExtraField)
	if !ok || extra != "AA BB CC DD" {
		t.Fatalf("extra = %#v, want \"AA BB CC DD\"", extra)
	}

	out, err := c.Encode(context.Background(), tables)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("re-encoded container differs:\n got % X\nwant % X", out, data)
	}
}

func TestCodec_UnknownTableIsVersionZero(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, nil)}
	data := buildContainer(nil,
		rawTable{name: "Mystery", length: 3, entries: [][]byte{{1, 2, 3}, {4, 5, 6}}},
		rawTable{name: "Empty", length: 0, entries: [][]byte{{}, {}}},
	)

	tables, err := c.Decode(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if tables[0].Version != 0 {
		t.Errorf("version = %d, want 0", tables[0].Version)
	}
	if got := toJSON(t, tables[0].Entries); got != `[{"extra":"01 02 03"},{"extra":"04 05 06"}]` {
		t.Errorf("entries = %s", got)
	}
	if tables[1].Entries[0].Len() != 0 {
		t.Errorf("zero-length entry decoded as %s", toJSON(t, tables[1].Entries[0]))
	}

	out, err := c.Encode(context.Background(), tables)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("version 0 round trip differs")
	}
}

const itemSchema = `{
	"version": 3,
	"schema": {
		"id": "u32",
		"flags": "s8",
		"rate": "f32",
		"scale": "f64",
		"raw": "d4",
		"name": "ptr_str_utf8",
		"tags": "arr_u32",
		"aliases": "arr_ptr_str_utf8",
		"effects": {"type": {"kind": "u8", "value": "s16"}, "repeat": 2},
		"effect": "ref_Effect",
		"nested": "ptr_arr_u16"
	}
}`

const itemEntryLength = 75

func itemCodec(t *testing.T, effectVersion int) *Codec {
	t.Helper()
	return &Codec{
		Tables: newMemStore(t, map[string]string{"Item": itemSchema}),
		Common: newMemStore(t, map[string]string{
			"Effect": fmt.Sprintf(`{"version": %d, "schema": {"id": "u16", "power": "s32"}}`, effectVersion),
		}),
	}
}

func itemTables() []*Table {
	return []*Table{{
		Name:        "Item",
		EntryLength: itemEntryLength,
		Version:     3,
		Entries: []*Record{
			rec(
				"id", uint64(7),
				"flags", int64(-3),
				"rate", 1.5,
				"scale", 2.25,
				"raw", "DE AD BE EF",
				"name", "Sword",
				"tags", []any{uint64(1), uint64(2), uint64(3)},
				"aliases", []any{"a", "bc"},
				"effects", []any{
					rec("kind", uint64(1), "value", int64(-5)),
					rec("kind", uint64(2), "value", int64(300)),
				},
				"effect", rec("version", int64(2), "data", rec("id", uint64(9), "power", int64(-100))),
				"nested", []any{uint64(65535)},
				"extra", "01 02",
			),
			rec(
				"id", uint64(8),
				"flags", int64(127),
				"rate", -0.25,
				"scale", 1e100,
				"raw", "00 00 00 00",
				"name", "",
				"tags", []any{},
				"aliases", []any{},
				"effects", []any{
					rec("kind", uint64(255), "value", int64(-32768)),
					rec("kind", uint64(0), "value", int64(32767)),
				},
				"effect", rec("version", int64(2), "data", rec("id", uint64(0), "power", int64(0))),
				"nested", []any{},
				"extra", "FF FF",
			),
		},
	}}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := itemCodec(t, 2)
	in := itemTables()

	out, err := c.Encode(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if want := 8 + 80 + 2*itemEntryLength; len(out) <= want {
		t.Fatalf("container has no pool: %d bytes", len(out))
	}

	decoded, err := c.Decode(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := toJSON(t, decoded), toJSON(t, in); got != want {
		t.Errorf("round trip mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestCodec_Deterministic(t *testing.T) {
	c := itemCodec(t, 2)
	first, err := c.Encode(context.Background(), itemTables())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := c.Encode(context.Background(), itemTables())
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encode %d produced different bytes", i)
		}
	}

	decoded, err := c.Decode(context.Background(), first)
	if err != nil {
		t.Fatal(err)
	}
	again, err := c.Encode(context.Background(), decoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, again) {
		t.Error("decode then encode changed the container")
	}
}

func TestCodec_ArrayAlignment(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, map[string]string{
		"Align": `{"version": 1, "schema": {"s": "ptr_str_utf8", "v": "arr_u32", "w": "arr_str_utf8"}}`,
	})}
	tables := []*Table{{
		Name:        "Align",
		EntryLength: 32,
		Version:     1,
		Entries: []*Record{rec(
			"s", "a",
			"v", []any{uint64(0xDEADBEEF), uint64(1)},
			"w", []any{"x"},
		)},
	}}

	out, err := c.Encode(context.Background(), tables)
	if err != nil {
		t.Fatal(err)
	}
	const entryStart, poolStart = 88, 88 + 32

	strOff := binary.LittleEndian.Uint64(out[entryStart:])
	if strOff != poolStart {
		t.Errorf("string offset = %d, want %d", strOff, poolStart)
	}
	arrOff := binary.LittleEndian.Uint64(out[entryStart+8:])
	if arrOff%4 != 0 {
		t.Errorf("u32 array offset %d is not 4-aligned", arrOff)
	}
	if arrOff != poolStart+4 {
		t.Errorf("u32 array offset = %d, want %d", arrOff, poolStart+4)
	}
	for i := poolStart + 2; i < int(arrOff); i++ {
		if out[i] != 0 {
			t.Errorf("padding byte at %d = %02X", i, out[i])
		}
	}
	if n := binary.LittleEndian.Uint32(out[entryStart+16:]); n != 2 {
		t.Errorf("array count = %d, want 2", n)
	}
	strArrOff := binary.LittleEndian.Uint64(out[entryStart+20:])
	if strArrOff != arrOff+8 {
		t.Errorf("string array offset = %d, want %d (no alignment)", strArrOff, arrOff+8)
	}

	decoded, err := c.Decode(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := toJSON(t, decoded[0].Entries[0]), `{"s":"a","v":[3735928559,1],"w":["x"]}`; got != want {
		t.Errorf("decoded %s, want %s", got, want)
	}
}

func TestCodec_PointerTargetsAreContiguous(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, map[string]string{
		"Names": `{"version": 1, "schema": {"list": "arr_ptr_str_utf8"}}`,
	})}
	tables := []*Table{{Name: "Names", EntryLength: 12, Version: 1, Entries: []*Record{
		rec("list", []any{"ab", "c"}),
	}}}

	out, err := c.Encode(context.Background(), tables)
	if err != nil {
		t.Fatal(err)
	}
	const pool = 88 + 12
	// pool: [ptr "ab"][ptr "c"] "ab\0" "c\0"
	if off := binary.LittleEndian.Uint64(out[88:]); off != pool {
		t.Fatalf("array offset = %d, want %d", off, pool)
	}
	if off := binary.LittleEndian.Uint64(out[pool:]); off != pool+16 {
		t.Errorf("first element = %d, want %d", off, pool+16)
	}
	if off := binary.LittleEndian.Uint64(out[pool+8:]); off != pool+19 {
		t.Errorf("second element = %d, want %d", off, pool+19)
	}
	if got := string(out[pool+16:]); got != "ab\x00c\x00" {
		t.Errorf("pool strings = %q", got)
	}
}

func TestCodec_TextEncoding(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, map[string]string{
		"Text": `{"version": 1, "schema": {"name": "ptr_str_cp932"}}`,
	})}
	tables := []*Table{{Name: "Text", EntryLength: 8, Version: 1, Entries: []*Record{rec("name", "日本語")}}}

	out, err := c.Encode(context.Background(), tables)
	if err != nil {
		t.Fatal(err)
	}
	if got := out[96:]; !bytes.Equal(got, []byte{0x93, 0xFA, 0x96, 0x7B, 0x8C, 0xEA, 0x00}) {
		t.Errorf("pool = % X", got)
	}

	decoded, err := c.Decode(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := decoded[0].Entries[0].Get("name"); v != "日本語" {
		t.Errorf("name = %q", v)
	}

	tables[0].Entries[0] = rec("name", "\U0001F642")
	_, err = c.Encode(context.Background(), tables)
	requireKind(t, err, errors.KindInvalidData)
}

func TestCodec_TextEncodingRejectsInvalidBytes(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, map[string]string{
		"Text": `{"version": 1, "schema": {"name": "str_cp932"}}`,
	})}

	tests := []struct {
		name  string
		entry []byte
	}{
		{"unmapped lead byte", []byte{0x85, 0x40, 0x00}},
		{"lone lead byte", []byte{0x93, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildContainer(nil, rawTable{name: "Text", length: len(tt.entry), entries: [][]byte{tt.entry}})
			_, err := c.Decode(context.Background(), data)
			e := requireKind(t, err, errors.KindInvalidData)
			if e.Phase != errors.PhaseDecode || e.Table != "Text" || e.Entry != 0 {
				t.Errorf("error = %v", e)
			}
			if len(e.Path) != 1 || e.Path[0] != "name" {
				t.Errorf("path = %v", e.Path)
			}
		})
	}

	data := buildContainer(nil, rawTable{name: "Text", length: 7, entries: [][]byte{{0x93, 0xFA, 0x96, 0x7B, 0x8C, 0xEA, 0x00}}})
	decoded, err := c.Decode(context.Background(), data)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := decoded[0].Entries[0].Get("name"); v != "日本語" {
		t.Errorf("name = %q", v)
	}
}

func TestCodec_VersionGate(t *testing.T) {
	in := itemTables()
	out, err := itemCodec(t, 2).Encode(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("decode records registered version", func(t *testing.T) {
		decoded, err := itemCodec(t, 5).Decode(context.Background(), out)
		if err != nil {
			t.Fatalf("decode must not check reference versions: %v", err)
		}
		effect, _ := decoded[0].Entries[0].Get("effect")
		if v, _ := effect.(*Record).Get("version"); v != int64(5) {
			t.Errorf("version = %#v, want 5", v)
		}
	})

	t.Run("encode rejects stale reference", func(t *testing.T) {
		_, err := itemCodec(t, 5).Encode(context.Background(), in)
		e := requireKind(t, err, errors.KindVersionMismatch)
		if e.Table != "Item" || e.Entry != 0 {
			t.Errorf("context = %q entry %d", e.Table, e.Entry)
		}
		if len(e.Path) == 0 || e.Path[0] != "effect" {
			t.Errorf("path = %v", e.Path)
		}
	})

	t.Run("encode rejects table version", func(t *testing.T) {
		stale := itemTables()
		stale[0].Version = 2
		_, err := itemCodec(t, 2).Encode(context.Background(), stale)
		e := requireKind(t, err, errors.KindVersionMismatch)
		if e.Table != "Item" {
			t.Errorf("table = %q", e.Table)
		}
	})

	t.Run("encode requires schema for versioned table", func(t *testing.T) {
		c := &Codec{Tables: newMemStore(t, nil)}
		_, err := c.Encode(context.Background(), []*Table{{Name: "Ghost", EntryLength: 0, Version: 1}})
		requireKind(t, err, errors.KindSchemaNotFound)
	})

	t.Run("missing reference schema", func(t *testing.T) {
		c := itemCodec(t, 2)
		c.Common = nil
		_, err := c.Decode(context.Background(), out)
		requireKind(t, err, errors.KindSchemaNotFound)
	})
}

func TestCodec_EntryLength(t *testing.T) {
	c := &Codec{Tables: newMemStore(t, map[string]string{
		"T": `{"version": 1, "schema": {"a": "u32"}}`,
	})}

	tests := []struct {
		name   string
		length int
		entry  *Record
	}{
		{"too long", 2, rec("a", 1)},
		{"too short", 8, rec("a", 1)},
		{"extra overshoots", 5, rec("a", 1, "extra", "00 00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Encode(context.Background(), []*Table{{Name: "T", EntryLength: tt.length, Version: 1, Entries: []*Record{tt.entry}}})
			e := requireKind(t, err, errors.KindEntryLengthMismatch)
			if e.Table != "T" || e.Entry != 0 {
				t.Errorf("context = %q entry %d", e.Table, e.Entry)
			}
		})
	}

	t.Run("decode schema larger than entry", func(t *testing.T) {
		data := buildContainer(nil, rawTable{name: "T", length: 2, entries: [][]byte{{1, 2}, {3, 4}}}, rawTable{name: "pad", length: 4, entries: [][]byte{{0, 0, 0, 0}}})
		_, err := c.Decode(context.Background(), data)
		requireKind(t, err, errors.KindEntryLengthMismatch)
	})
}

func TestCodec_DecodeErrors(t *testing.T) {
	strCodec := &Codec{Tables: newMemStore(t, map[string]string{
		"S": `{"version": 1, "schema": {"s": "str_utf8"}}`,
		"P": `{"version": 1, "schema": {"p": "ptr_u16"}}`,
		"A": `{"version": 1, "schema": {"a": "arr_u64"}}`,
		"Z": `{"version": 1, "schema": {"z": "arr_d0"}}`,
	})}

	ptr := make([]byte, 8)
	binary.LittleEndian.PutUint64(ptr, 9999)
	arr := make([]byte, 12)
	binary.LittleEndian.PutUint64(arr, 100)
	binary.LittleEndian.PutUint32(arr[8:], 1<<30)
	empties := make([]byte, 12)
	binary.LittleEndian.PutUint32(empties[8:], 50_000_000)

	tests := []struct {
		name string
		data []byte
		kind errors.Kind
	}{
		{"empty input", nil, errors.KindBadMagic},
		{"short input", []byte("#T"), errors.KindBadMagic},
		{"wrong magic", []byte("#TBX\x00\x00\x00\x00"), errors.KindBadMagic},
		{"missing count", []byte("#TBL\x01"), errors.KindTruncated},
		{"missing headers", []byte("#TBL\x02\x00\x00\x00"), errors.KindTruncated},
		{"entries past end", buildContainer(nil, rawTable{name: "X", length: 4, entries: [][]byte{{1, 2, 3, 4}}})[:90], errors.KindTruncated},
		{"unterminated string", buildContainer(nil, rawTable{name: "S", length: 3, entries: [][]byte{{'a', 'b', 'c'}}}), errors.KindTruncated},
		{"invalid utf8", buildContainer(nil, rawTable{name: "S", length: 3, entries: [][]byte{{0xFF, 0xFE, 0}}}), errors.KindInvalidUTF8},
		{"pointer out of range", buildContainer(nil, rawTable{name: "P", length: 8, entries: [][]byte{ptr}}), errors.KindTruncated},
		{"array count past end", buildContainer(nil, rawTable{name: "A", length: 12, entries: [][]byte{arr}}), errors.KindTruncated},
		{"empty element count past end", buildContainer(nil, rawTable{name: "Z", length: 12, entries: [][]byte{empties}}), errors.KindTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := strCodec.Decode(context.Background(), tt.data)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestCodec_ErrorContext(t *testing.T) {
	c := itemCodec(t, 2)

	tables := itemTables()
	tables[0].Entries[1].Set("tags", []any{uint64(1), "two"})
	_, err := c.Encode(context.Background(), tables)
	e := requireKind(t, err, errors.KindTypeMismatch)
	if e.Table != "Item" || e.Entry != 1 {
		t.Errorf("context = %q entry %d, want Item entry 1", e.Table, e.Entry)
	}
	if strings.Join(e.Path, ".") != "tags.[1]" {
		t.Errorf("path = %v", e.Path)
	}
	if !strings.Contains(err.Error(), `table "Item" entry 1`) {
		t.Errorf("message lacks context: %v", err)
	}

	tables = itemTables()
	tables[0].Entries[0].Set("effects", []any{rec("kind", 1, "value", 1)})
	_, err = c.Encode(context.Background(), tables)
	requireKind(t, err, errors.KindRepeatCountMismatch)

	tables = itemTables()
	tables[0].Entries[0] = rec("id", 1)
	_, err = c.Encode(context.Background(), tables)
	requireKind(t, err, errors.KindFieldMissing)

	tables = itemTables()
	tables[0].Entries[0].Set("flags", 128)
	_, err = c.Encode(context.Background(), tables)
	requireKind(t, err, errors.KindOverflow)

	tables = itemTables()
	tables[0].Entries[0].Set("raw", "DE AD")
	_, err = c.Encode(context.Background(), tables)
	requireKind(t, err, errors.KindInvalidData)
}

func TestCodec_HeaderName(t *testing.T) {
	c := &Codec{}
	name := strings.Repeat("n", 64)
	out, err := c.Encode(context.Background(), []*Table{{Name: name}})
	if err != nil {
		t.Fatalf("64-byte name rejected: %v", err)
	}
	decoded, err := c.Decode(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if decoded[0].Name != name {
		t.Errorf("name = %q", decoded[0].Name)
	}

	_, err = c.Encode(context.Background(), []*Table{{Name: name + "x"}})
	e := requireKind(t, err, errors.KindInvalidInput)
	if e.Table != name+"x" {
		t.Errorf("table = %q", e.Table)
	}
}

func TestCodec_HashIgnoredOnDecode(t *testing.T) {
	data := buildContainer(nil, rawTable{name: "H", length: 1, entries: [][]byte{{7}}})
	binary.LittleEndian.PutUint32(data[72:], 0x12345678)

	headers, err := ReadHeaders(data)
	if err != nil {
		t.Fatal(err)
	}
	if headers[0].Hash != 0x12345678 {
		t.Errorf("hash = %08X", headers[0].Hash)
	}
	if _, err := (&Codec{}).Decode(context.Background(), data); err != nil {
		t.Errorf("decode checked the hash: %v", err)
	}

	if got := NameHash(""); got != 0xFFFFFFFF {
		t.Errorf("NameHash(\"\") = %08X", got)
	}
}

func TestCodec_ParallelDecodeKeepsOrder(t *testing.T) {
	docs := map[string]string{}
	var raws []rawTable
	var want []string
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("Table%02d", i)
		docs[name] = `{"version": 1, "schema": {"n": "u16"}}`
		raws = append(raws, rawTable{name: name, length: 2, entries: [][]byte{{byte(i), 0}, {0, byte(i)}}})
		want = append(want, name)
	}
	obs := newRecordingObserver()
	c := &Codec{Tables: newMemStore(t, docs), Options: Options{Jobs: 3, Observer: obs}}

	tables, err := c.Decode(context.Background(), buildContainer([]byte{1, 2, 3}, raws...))
	if err != nil {
		t.Fatal(err)
	}
	for i, tbl := range tables {
		if tbl.Name != want[i] {
			t.Fatalf("table %d = %s, want %s", i, tbl.Name, want[i])
		}
		if v, _ := tbl.Entries[0].Get("n"); v != uint64(i) {
			t.Errorf("%s entry 0 = %v", tbl.Name, v)
		}
	}
	if obs.tables[DirectionDecode] != 40 || obs.entries[DirectionDecode] != 80 {
		t.Errorf("observer saw %d tables, %d entries", obs.tables[DirectionDecode], obs.entries[DirectionDecode])
	}
	if obs.containers[DirectionDecode] != 1 || obs.poolBytes[DirectionDecode] != 3 {
		t.Errorf("observer saw %d containers, %d pool bytes", obs.containers[DirectionDecode], obs.poolBytes[DirectionDecode])
	}
}

func TestCodec_DepthLimit(t *testing.T) {
	doc := `{"version": 1, "schema": {"a": {"type": {"b": {"type": {"c": "u8"}}}}}}`
	c := &Codec{
		Tables:  newMemStore(t, map[string]string{"Deep": doc}),
		Options: Options{MaxDepth: 2},
	}
	_, err := c.Encode(context.Background(), []*Table{{
		Name: "Deep", EntryLength: 1, Version: 1,
		Entries: []*Record{rec("a", rec("b", rec("c", 1)))},
	}})
	requireKind(t, err, errors.KindDepthExceeded)

	data := buildContainer(nil, rawTable{name: "Deep", length: 1, entries: [][]byte{{1}}})
	_, err = c.Decode(context.Background(), data)
	requireKind(t, err, errors.KindDepthExceeded)

	c.MaxDepth = 0
	if _, err := c.Decode(context.Background(), data); err != nil {
		t.Errorf("default depth rejected shallow schema: %v", err)
	}
}

func TestCodec_SelfReferenceHitsDepthLimit(t *testing.T) {
	c := &Codec{
		Tables: newMemStore(t, map[string]string{"Loop": `{"version": 1, "schema": {"node": "ref_Node"}}`}),
		Common: newMemStore(t, map[string]string{"Node": `{"version": 1, "schema": {"next": "ref_Node"}}`}),
	}
	data := buildContainer(nil, rawTable{name: "Loop", length: 0, entries: [][]byte{{}}})
	_, err := c.Decode(context.Background(), data)
	requireKind(t, err, errors.KindDepthExceeded)
}

func TestCodec_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := itemCodec(t, 2)
	if _, err := c.Encode(ctx, itemTables()); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Encode error = %v, want context.Canceled", err)
	}
	data := buildContainer(nil, rawTable{name: "X", length: 1, entries: [][]byte{{1}}})
	if _, err := c.Decode(ctx, data); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Decode error = %v, want context.Canceled", err)
	}
}

func TestPlanLayout(t *testing.T) {
	tables := []*Table{
		{Name: "a", EntryLength: 4, Entries: make([]*Record, 3)},
		{Name: "b", EntryLength: 10, Entries: make([]*Record, 2)},
		{Name: "c", EntryLength: 7},
	}
	layout, err := PlanLayout(tables)
	if err != nil {
		t.Fatal(err)
	}
	base := uint32(8 + 80*3)
	want := []uint32{base, base + 12, base + 32}
	for i := range want {
		if layout.Starts[i] != want[i] {
			t.Errorf("start %d = %d, want %d", i, layout.Starts[i], want[i])
		}
	}
	if layout.PoolStart != uint64(base+32) {
		t.Errorf("pool start = %d, want %d", layout.PoolStart, base+32)
	}

	_, err = PlanLayout([]*Table{{Name: "neg", EntryLength: -1}})
	requireKind(t, err, errors.KindOverflow)
}
