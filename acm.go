// SPDX-License-Identifier: EPL-2.0

package acm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ik5/go-acm/internal/bytestream"
)

// Signature is the magic constant every stream opens with, stored
// little-endian in the first four header bytes.
const Signature uint32 = 0x01032897

const (
	headerSize = 14
	maxLevels  = 16
)

// Decoder reads one compressed stream and serves its samples in decode
// order. It exclusively owns its unpack and synthesis state; use one
// Decoder per stream and serialize calls on it (see the package docs).
type Decoder struct {
	stream *bytestream.Reader

	samples    int
	channels   int
	sampleRate int
	levels     int
	subblocks  int
	blockSize  int

	unpacker *valueUnpacker
	synth    *subbandSynth

	block        []int32 // reused scratch, valid until the next refill
	blockPos     int
	samplesReady int
	samplesLeft  int

	lastErr error

	readBuf []int16
	pending byte
	hasPend bool
}

// NewDecoder parses the header at the start of r and prepares decoding.
// It fails with ErrNotACMFile on a wrong signature and ErrInvalidGeometry
// when the level/subblock word cannot describe a decodable block; on any
// error no usable Decoder is returned.
func NewDecoder(r io.ReadSeeker) (*Decoder, error) {
	stream, err := bytestream.New(r, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	if err := stream.SetPosition(0); err != nil {
		return nil, err
	}

	sig, err := stream.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if sig != Signature {
		return nil, ErrNotACMFile
	}

	samples, err := stream.Uint32()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	channels, err := stream.Uint16()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	rate, err := stream.Uint16()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	geometry, err := stream.Uint16()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	d := &Decoder{
		stream:     stream,
		samples:    int(samples),
		channels:   int(channels),
		sampleRate: int(rate),
		levels:     int(geometry >> 4),
		subblocks:  int(geometry & 15),
	}

	if d.unpacker, err = newValueUnpacker(d.levels, d.subblocks, stream); err != nil {
		return nil, err
	}
	if d.synth, err = newSubbandSynth(d.levels); err != nil {
		return nil, err
	}

	d.blockSize = (1 << d.levels) * d.subblocks
	d.block = make([]int32, d.blockSize)
	d.samplesLeft = d.samples

	return d, nil
}

// Samples reports the total sample count declared by the header.
func (d *Decoder) Samples() int { return d.samples }

// Channels reports the header's channel count. The count is carried
// through as stored; decoding does not depend on it.
func (d *Decoder) Channels() int { return d.channels }

// SampleRate reports the sample rate in Hz.
func (d *Decoder) SampleRate() int { return d.sampleRate }

// SamplesLeft reports how many samples have not yet been decoded. It
// excludes samples already decoded into the current block, so it drops
// in whole block steps.
func (d *Decoder) SamplesLeft() int { return d.samplesLeft }

// ReadSamples fills dst with the next decoded samples and returns how
// many were produced. A short count means the stream has no more data;
// once fully drained every call returns (0, io.EOF). Corrupt or
// truncated payloads also surface as end of data here, with the cause
// available from Err.
func (d *Decoder) ReadSamples(dst []int16) (int, error) {
	produced := 0
	for produced < len(dst) {
		if d.samplesReady == 0 {
			if d.samplesLeft == 0 || !d.refill() {
				break
			}
		}

		dst[produced] = int16(d.block[d.blockPos] >> d.levels)
		d.blockPos++
		produced++
		d.samplesReady--
	}

	if produced == 0 && len(dst) > 0 {
		return 0, io.EOF
	}
	return produced, nil
}

// refill unpacks and reconstructs the next block, then accounts for the
// samples it makes available. On failure samplesReady stays 0 and the
// cause is recorded for Err.
func (d *Decoder) refill() bool {
	if err := d.unpacker.getOneBlock(d.block); err != nil {
		if errors.Is(err, io.EOF) {
			// The header promised more samples than the payload holds.
			err = io.ErrUnexpectedEOF
		}
		d.lastErr = fmt.Errorf("unpack block: %w", err)
		return false
	}

	d.synth.decodeData(d.block, d.subblocks)

	d.blockPos = 0
	d.samplesReady = d.blockSize
	if d.samplesReady > d.samplesLeft {
		d.samplesReady = d.samplesLeft
	}
	d.samplesLeft -= d.samplesReady

	return true
}

// Rewind restarts the stream from the first sample: the cursor moves
// back to the start of the payload and all adaptive decode state is
// cleared, so the next reads replay the stream exactly. It may be
// called at any point, including mid-block or after an error.
func (d *Decoder) Rewind() error {
	if err := d.stream.SetPosition(headerSize); err != nil {
		return err
	}

	d.samplesReady = 0
	d.blockPos = 0
	d.samplesLeft = d.samples
	d.unpacker.reset()
	d.synth.reset()
	d.lastErr = nil
	d.hasPend = false

	return nil
}

// Err reports why decoding stopped early, if it did. A nil result with
// an exhausted stream means the payload delivered every sample the
// header declared; otherwise the error distinguishes truncation
// (io.ErrUnexpectedEOF) from corrupt coding (ErrInvalidData). Rewind
// clears it.
func (d *Decoder) Err() error { return d.lastErr }

// Read streams the decoded samples as little-endian 16-bit PCM bytes,
// so a Decoder can feed byte-oriented sinks directly. It satisfies
// io.Reader; after the final sample it returns io.EOF.
func (d *Decoder) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := 0
	if d.hasPend {
		p[0] = d.pending
		d.hasPend = false
		n = 1
		if n == len(p) {
			return n, nil
		}
	}

	want := (len(p) - n + 1) / 2
	if cap(d.readBuf) < want {
		d.readBuf = make([]int16, want)
	}

	m, err := d.ReadSamples(d.readBuf[:want])
	if m == 0 {
		if n > 0 {
			return n, nil
		}
		return 0, err
	}

	for _, s := range d.readBuf[:m] {
		p[n] = byte(uint16(s))
		n++
		if n == len(p) {
			d.pending = byte(uint16(s) >> 8)
			d.hasPend = true
			break
		}
		p[n] = byte(uint16(s) >> 8)
		n++
	}

	return n, nil
}
