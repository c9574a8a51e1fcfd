package codec

import (
	"bytes"
	"context"
	"hash/crc32"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/tbl"
	"github.com/wippyai/tbl/errors"
	"github.com/wippyai/tbl/internal/binary"
	"github.com/wippyai/tbl/schema"
)

// Container layout constants.
const (
	Magic         = "#TBL"
	HeaderSize    = 80
	HeaderNameLen = 64
	prologueSize  = 8
	hashMask      = 0xFFFFFFFF
)

// Table is one named block of fixed-length entries, in the shape used by
// the exchange documents.
type Table struct {
	Name        string    `json:"header_name" msgpack:"header_name"`
	EntryLength int       `json:"entry_length" msgpack:"entry_length"`
	Version     int       `json:"version" msgpack:"version"`
	Entries     []*Record `json:"entries" msgpack:"entries"`
}

// Header is a decoded 80-byte table header.
type Header struct {
	Name        string
	Hash        uint32
	Start       uint32
	EntryLength uint32
	EntryCount  uint32
}

// NameHash returns the header hash written for a table name.
func NameHash(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(name)) ^ hashMask
}

// Codec converts between TBL containers and Tables. Table schemas resolve
// through Tables, referenced schemas through Common.
//
// A Codec holds no per-call state and may be used concurrently.
type Codec struct {
	Tables tbl.Store
	Common tbl.Store
	Options
}

// ReadHeaders validates the magic and returns the table headers. The hash
// field is returned as stored; it is not checked against the name.
func ReadHeaders(data []byte) ([]Header, error) {
	cur := binary.NewCursor(data)
	magic, err := cur.ReadBytes(len(Magic))
	if err != nil {
		return nil, errors.BadMagic(data[:min(len(data), len(Magic))])
	}
	if string(magic) != Magic {
		return nil, errors.BadMagic(magic)
	}
	count, err := cur.ReadU32()
	if err != nil {
		return nil, errors.Truncated([]string{"table_count"}, cur.Position(), err)
	}
	if uint64(count)*HeaderSize > uint64(cur.Remaining()) {
		return nil, errors.New(errors.PhaseDecode, errors.KindTruncated).
			Detail("%d headers need %d bytes, %d remain", count, uint64(count)*HeaderSize, cur.Remaining()).
			Build()
	}

	headers := make([]Header, count)
	for i := range headers {
		h := &headers[i]
		name, _ := cur.ReadBytes(HeaderNameLen)
		name = bytes.ReplaceAll(name, []byte{0}, nil)
		if !utf8.Valid(name) {
			return nil, errors.InvalidUTF8(errors.PhaseDecode, []string{"header_name"}, name)
		}
		h.Name = string(name)
		h.Hash, _ = cur.ReadU32()
		h.Start, _ = cur.ReadU32()
		h.EntryLength, _ = cur.ReadU32()
		h.EntryCount, _ = cur.ReadU32()
	}
	return headers, nil
}

// Decode parses a container. Tables decode concurrently, each with its own
// cursor over data; the result is in header order. Tables without a
// registered schema decode as version 0 with every byte in ExtraField.
func (c *Codec) Decode(ctx context.Context, data []byte) ([]*Table, error) {
	headers, err := ReadHeaders(data)
	if err != nil {
		return nil, err
	}

	dec := &decoder{common: c.Common, maxDepth: c.maxDepth()}
	tables := make([]*Table, len(headers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.jobs())
	for i, h := range headers {
		i, h := i, h
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := c.decodeTable(ctx, dec, data, h)
			if err != nil {
				return errors.WithTable(err, h.Name, errors.NoEntry)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if c.Observer != nil {
		c.Observer.ObserveContainer(DirectionDecode, len(data), len(data)-int(poolStart(headers)))
	}
	return tables, nil
}

// poolStart returns the end of the last entry region.
func poolStart(headers []Header) uint64 {
	end := uint64(prologueSize) + HeaderSize*uint64(len(headers))
	for _, h := range headers {
		end = max(end, uint64(h.Start)+uint64(h.EntryLength)*uint64(h.EntryCount))
	}
	return end
}

func (c *Codec) decodeTable(ctx context.Context, dec *decoder, data []byte, h Header) (*Table, error) {
	s, err := c.tableSchema(h.Name)
	if err != nil {
		return nil, err
	}

	cur := binary.NewCursor(data)
	if err := cur.Seek(int(h.Start)); err != nil {
		return nil, errors.Truncated(nil, int(h.Start), err)
	}
	if uint64(h.EntryLength)*uint64(h.EntryCount) > uint64(cur.Remaining()) {
		return nil, errors.New(errors.PhaseDecode, errors.KindTruncated).
			Detail("%d entries of %d bytes at offset %d run past end of input", h.EntryCount, h.EntryLength, h.Start).
			Build()
	}

	length := int(h.EntryLength)
	entries := make([]*Record, h.EntryCount)
	for j := range entries {
		if j%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		start := cur.Position()
		rec, err := dec.decodeEntry(cur, s, length)
		if err != nil {
			return nil, errors.WithTable(err, h.Name, j)
		}
		if err := cur.Seek(start + length); err != nil {
			return nil, errors.WithTable(errors.Truncated(nil, start+length, err), h.Name, j)
		}
		entries[j] = rec
	}

	Logger().Debug("table decoded",
		zap.String("table", h.Name),
		zap.Int("version", s.Version),
		zap.Uint32("entries", h.EntryCount),
		zap.Uint32("entry_length", h.EntryLength))
	if c.Observer != nil {
		c.Observer.ObserveTable(DirectionDecode, h.Name, len(entries))
	}

	return &Table{
		Name:        h.Name,
		EntryLength: length,
		Version:     s.Version,
		Entries:     entries,
	}, nil
}

// tableSchema returns the registered schema for a table, or the version 0
// schema when there is none.
func (c *Codec) tableSchema(name string) (*schema.Schema, error) {
	if c.Tables == nil {
		return schema.Empty(name), nil
	}
	s, err := c.Tables.Lookup(name)
	if err != nil {
		if errors.IsKind(err, errors.KindSchemaNotFound) {
			Logger().Debug("no schema for table", zap.String("table", name))
			return schema.Empty(name), nil
		}
		return nil, err
	}
	return s, nil
}

// Layout is the result of the first encoding pass: where each table's
// entries start and where the pointer pool begins.
type Layout struct {
	Starts    []uint32
	PoolStart uint64
}

// PlanLayout computes table start offsets and the pool start for tables.
func PlanLayout(tables []*Table) (Layout, error) {
	if uint64(len(tables)) > math.MaxUint32 {
		return Layout{}, errors.Overflow(errors.PhaseEncode, nil, len(tables), "u32 table count")
	}
	offset := uint64(prologueSize) + HeaderSize*uint64(len(tables))
	starts := make([]uint32, len(tables))
	for i, t := range tables {
		if t == nil {
			return Layout{}, errors.InvalidInput(errors.PhaseEncode, "table is null")
		}
		if t.EntryLength < 0 || uint64(t.EntryLength) > math.MaxUint32 {
			return Layout{}, errors.WithTable(errors.Overflow(errors.PhaseEncode, []string{"entry_length"}, t.EntryLength, "u32"), t.Name, errors.NoEntry)
		}
		if uint64(len(t.Entries)) > math.MaxUint32 {
			return Layout{}, errors.WithTable(errors.Overflow(errors.PhaseEncode, []string{"entries"}, len(t.Entries), "u32 entry count"), t.Name, errors.NoEntry)
		}
		if offset > math.MaxUint32 {
			return Layout{}, errors.WithTable(errors.Overflow(errors.PhaseEncode, nil, offset, "u32 start offset"), t.Name, errors.NoEntry)
		}
		starts[i] = uint32(offset)
		offset += uint64(t.EntryLength) * uint64(len(t.Entries))
	}
	return Layout{Starts: starts, PoolStart: offset}, nil
}

// Encode serializes tables. The output is deterministic: the same tables
// and schemas always produce the same bytes.
//
// Table names are NUL-padded to HeaderNameLen bytes. Longer names are
// rejected with KindInvalidInput; they are never truncated.
func (c *Codec) Encode(ctx context.Context, tables []*Table) ([]byte, error) {
	layout, err := PlanLayout(tables)
	if err != nil {
		return nil, err
	}

	out := binary.NewWriter()
	out.WriteBytes([]byte(Magic))
	out.WriteU32LE(uint32(len(tables)))
	for i, t := range tables {
		name := []byte(t.Name)
		if len(name) > HeaderNameLen {
			return nil, errors.New(errors.PhaseEncode, errors.KindInvalidInput).
				Table(t.Name, errors.NoEntry).
				Detail("table name is %d bytes, limit is %d", len(name), HeaderNameLen).
				Build()
		}
		out.WriteBytes(name)
		out.Pad(HeaderNameLen - len(name))
		out.WriteU32LE(NameHash(t.Name))
		out.WriteU32LE(layout.Starts[i])
		out.WriteU32LE(uint32(t.EntryLength))
		out.WriteU32LE(uint32(len(t.Entries)))
	}

	enc := &encoder{
		common:   c.Common,
		pool:     NewPool(layout.PoolStart),
		maxDepth: c.maxDepth(),
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := c.encodeSchema(t)
		if err != nil {
			return nil, errors.WithTable(err, t.Name, errors.NoEntry)
		}
		for j, rec := range t.Entries {
			b, err := enc.encodeEntry(rec, s, t.EntryLength)
			if err != nil {
				return nil, errors.WithTable(err, t.Name, j)
			}
			out.WriteBytes(b)
		}
		Logger().Debug("table encoded",
			zap.String("table", t.Name),
			zap.Int("version", t.Version),
			zap.Int("entries", len(t.Entries)),
			zap.Int("pool_bytes", enc.pool.Len()))
		if c.Observer != nil {
			c.Observer.ObserveTable(DirectionEncode, t.Name, len(t.Entries))
		}
	}
	out.WriteBytes(enc.pool.Bytes())

	if c.Observer != nil {
		c.Observer.ObserveContainer(DirectionEncode, out.Len(), enc.pool.Len())
	}
	return out.Bytes(), nil
}

// encodeSchema returns the schema a table is encoded with. A version 0
// table is encoded from ExtraField alone; any other version must match
// the registered schema exactly.
func (c *Codec) encodeSchema(t *Table) (*schema.Schema, error) {
	if t.Version == 0 {
		return schema.Empty(t.Name), nil
	}
	s, err := lookupSchema(c.Tables, errors.PhaseEncode, t.Name, nil)
	if err != nil {
		return nil, err
	}
	if s.Version != t.Version {
		return nil, errors.VersionMismatch([]string{"version"}, t.Name, t.Version, s.Version)
	}
	return s, nil
}
