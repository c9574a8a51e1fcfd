// Package codec decodes and encodes TBL containers against field schemas.
//
// # Container Layout
//
// All integers are little-endian:
//
//	offset 0   "#TBL"
//	offset 4   u32 table count
//	per table  64-byte NUL-padded name, u32 name hash,
//	           u32 start offset, u32 entry length, u32 entry count
//	then       each table's entries, entry_count * entry_length bytes
//	then       the pointer pool
//
// The name hash is crc32(name) ^ 0xFFFFFFFF. It is written on encode and
// not checked on decode.
//
// # Values
//
// Decoding produces Records (ordered maps) holding:
//
//	u8..u64        uint64
//	s8..s64        int64
//	f32, f64       float64
//	dN             uppercase hex pairs, "0A FF 10"
//	str_<enc>      string
//	ptr_T          the T value
//	arr_T, repeat  []any
//	struct         *Record
//	ref_Name       *Record{"version": int64, "data": *Record}
//
// Entry bytes the schema does not cover are kept as hex under "extra" and
// written back verbatim.
//
// # Pointer Pool
//
// Pointers and arrays are 8-byte absolute offsets (arrays add a u32
// count) into the pool. During encoding each entry's inline bytes are
// written first with placeholder offsets; its targets are then appended to
// the pool in the order they were met and the offsets patched. Arrays of
// numbers are aligned to their element width with zero bytes.
//
// # Concurrency
//
// Codec is safe for concurrent use. Decode reads tables in parallel, each
// with its own cursor over the input. Encode is sequential.
package codec
