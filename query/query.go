// Package query implements the packed-context wire contract: the binary
// layout get_context/context_size produce and unpack/Decoder consume.
//
// Wire layout (spec §9 open question, decided here): a 4-byte
// little-endian record count, followed by that many records of
// (4-byte attribute id, 4-byte value length, value bytes). Chosen over a
// self-describing/TLV-per-field format because the context store already
// hands back a complete attribute-id -> value map per snapshot — there is
// no need for end-of-stream sentinels or varints, and fixed-width fields
// let Decoder walk the buffer without any intermediate allocation beyond
// the returned value slices themselves.
package query

import (
	"encoding/binary"

	"github.com/gocaliper/caliper/errs"
)

const headerSize = 4
const recordHeaderSize = 8 // attribute id (4) + value length (4)

// Pack encodes a snapshot (attribute id -> value, as produced by
// ctxstore.Store.Snapshot) into the packed context buffer. Record order
// is unspecified; callers that need a stable order should sort ids
// before building values and pass a pre-ordered slice via PackOrdered.
func Pack(values map[int][]byte) []byte {
	ids := make([]int, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	return PackOrdered(ids, values)
}

// PackOrdered encodes values in the order given by ids, skipping any id
// not present in values.
func PackOrdered(ids []int, values map[int][]byte) []byte {
	size := headerSize
	count := 0
	for _, id := range ids {
		v, ok := values[id]
		if !ok {
			continue
		}
		size += recordHeaderSize + len(v)
		count++
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(count))

	off := headerSize
	for _, id := range ids {
		v, ok := values[id]
		if !ok {
			continue
		}
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(id))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(len(v)))
		off += recordHeaderSize
		copy(buf[off:off+len(v)], v)
		off += len(v)
	}

	return buf
}

// Size reports the number of records in a packed buffer without
// decoding the values, matching the facade's context_size operation.
func Size(buf []byte) (int, error) {
	if len(buf) < headerSize {
		return 0, errs.Wrap("query.Size", "context", errs.ErrInvalidArgument)
	}
	return int(binary.LittleEndian.Uint32(buf[0:4])), nil
}

// Record is one decoded (attribute id, value) pair.
type Record struct {
	AttributeID int
	Value       []byte
}

// Unpack decodes an entire packed buffer into a slice of records,
// preserving encounter order.
func Unpack(buf []byte) ([]Record, error) {
	d, err := NewDecoder(buf)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, d.Remaining())
	for d.Next() {
		out = append(out, d.Record())
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Decoder walks a packed context buffer one record at a time, for
// foreach-style consumers that don't want to materialize the full slice.
type Decoder struct {
	buf   []byte
	off   int
	count int
	seen  int
	cur   Record
	err   error
}

// NewDecoder validates buf's header and returns a Decoder positioned
// before the first record.
func NewDecoder(buf []byte) (*Decoder, error) {
	if len(buf) < headerSize {
		return nil, errs.Wrap("query.NewDecoder", "context", errs.ErrInvalidArgument)
	}
	count := int(binary.LittleEndian.Uint32(buf[0:4]))
	return &Decoder{buf: buf, off: headerSize, count: count}, nil
}

// Remaining returns the total record count (not yet-undecoded count).
func (d *Decoder) Remaining() int { return d.count }

// Next advances to the next record, returning false at end of buffer or
// on a malformed record (check Err after a false return).
func (d *Decoder) Next() bool {
	if d.err != nil || d.seen >= d.count {
		return false
	}
	if d.off+recordHeaderSize > len(d.buf) {
		d.err = errs.Wrap("query.Decoder.Next", "context", errs.ErrInvalidArgument)
		return false
	}

	attrID := int(binary.LittleEndian.Uint32(d.buf[d.off : d.off+4]))
	valLen := int(binary.LittleEndian.Uint32(d.buf[d.off+4 : d.off+8]))
	d.off += recordHeaderSize

	if valLen < 0 || d.off+valLen > len(d.buf) {
		d.err = errs.Wrap("query.Decoder.Next", "context", errs.ErrInvalidArgument)
		return false
	}

	d.cur = Record{AttributeID: attrID, Value: d.buf[d.off : d.off+valLen]}
	d.off += valLen
	d.seen++
	return true
}

// Record returns the record Next just positioned on.
func (d *Decoder) Record() Record { return d.cur }

// Err returns the error that stopped iteration early, if any.
func (d *Decoder) Err() error { return d.err }
