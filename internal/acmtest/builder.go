// SPDX-License-Identifier: EPL-2.0

// Package acmtest builds synthetic compressed streams for tests.
// It mirrors the container layout and the payload bit order without
// importing the decoder package, so tests exercise the real parsing
// path end to end.
package acmtest

import "encoding/binary"

// StreamSignature is the container magic well-formed streams open with.
const StreamSignature uint32 = 0x01032897

// BitWriter packs variable-width codes least-significant bit first,
// the order the decoder consumes them in.
type BitWriter struct {
	out   []byte
	acc   uint64
	nbits int
}

// WriteBits appends the low width bits of v.
func (w *BitWriter) WriteBits(v uint32, width int) {
	w.acc |= uint64(v&(1<<width-1)) << w.nbits
	w.nbits += width

	for w.nbits >= 8 {
		w.out = append(w.out, byte(w.acc))
		w.acc >>= 8
		w.nbits -= 8
	}
}

// Bytes returns the packed stream so far, zero-padding any trailing
// partial byte. The writer itself is left untouched.
func (w *BitWriter) Bytes() []byte {
	out := append([]byte(nil), w.out...)
	if w.nbits > 0 {
		out = append(out, byte(w.acc))
	}
	return out
}

// BuildHeader lays out the fixed 14-byte header with full control over
// every field, including invalid ones.
func BuildHeader(signature, samples uint32, channels, rate, geometry uint16) []byte {
	h := make([]byte, 14)
	binary.LittleEndian.PutUint32(h[0:4], signature)
	binary.LittleEndian.PutUint32(h[4:8], samples)
	binary.LittleEndian.PutUint16(h[8:10], channels)
	binary.LittleEndian.PutUint16(h[10:12], rate)
	binary.LittleEndian.PutUint16(h[12:14], geometry)
	return h
}

// Config describes a synthetic stream's header fields.
type Config struct {
	Samples   int
	Channels  int
	Rate      int
	Levels    int
	Subblocks int
}

// StreamBuilder assembles a complete stream: header plus coded blocks.
// Appended blocks share one continuous bit cursor, as real payloads do.
type StreamBuilder struct {
	cfg Config
	bw  BitWriter
}

func NewStreamBuilder(cfg Config) *StreamBuilder {
	return &StreamBuilder{cfg: cfg}
}

// BlockSize reports how many samples one block carries.
func (b *StreamBuilder) BlockSize() int {
	return (1 << b.cfg.Levels) * b.cfg.Subblocks
}

// AppendZeroBlock appends one block whose samples all decode to zero,
// for any geometry.
func (b *StreamBuilder) AppendZeroBlock() {
	b.bw.WriteBits(0, 4)  // power
	b.bw.WriteBits(0, 16) // step
	for range 1 << b.cfg.Levels {
		b.bw.WriteBits(0, 5) // zero filler
	}
}

// AppendLinearBlock appends one block coded with the width-bit linear
// filler in every column. codes holds one entry per block slot, column
// by column; each decodes to (code - 1<<(width-1)) * step.
func (b *StreamBuilder) AppendLinearBlock(step uint16, width int, codes []uint32) {
	b.bw.WriteBits(uint32(width-1), 4)
	b.bw.WriteBits(uint32(step), 16)

	i := 0
	for range 1 << b.cfg.Levels {
		b.bw.WriteBits(uint32(width), 5)
		for range b.cfg.Subblocks {
			b.bw.WriteBits(codes[i], width)
			i++
		}
	}
}

// AppendInt16Block appends one block carrying vals verbatim. Only valid
// for geometries without levels, where block values pass through the
// reconstruction untouched.
func (b *StreamBuilder) AppendInt16Block(vals []int16) {
	codes := make([]uint32, len(vals))
	for i, v := range vals {
		codes[i] = uint32(int32(v) + 1<<15)
	}
	b.AppendLinearBlock(1, 16, codes)
}

// Payload returns just the coded payload bytes, without the header.
func (b *StreamBuilder) Payload() []byte {
	return b.bw.Bytes()
}

// Bytes returns the full stream: header then payload.
func (b *StreamBuilder) Bytes() []byte {
	geometry := uint16(b.cfg.Levels)<<4 | uint16(b.cfg.Subblocks)
	header := BuildHeader(StreamSignature, uint32(b.cfg.Samples),
		uint16(b.cfg.Channels), uint16(b.cfg.Rate), geometry)
	return append(header, b.bw.Bytes()...)
}
