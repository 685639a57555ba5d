// SPDX-License-Identifier: EPL-2.0

package acm

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ik5/go-acm/internal/acmtest"
)

// Helper to build a stream whose samples pass through unchanged (no
// levels, one block)
func buildInt16Stream(vals []int16, channels, rate int) []byte {
	b := acmtest.NewStreamBuilder(acmtest.Config{
		Samples:   len(vals),
		Channels:  channels,
		Rate:      rate,
		Levels:    0,
		Subblocks: len(vals),
	})
	b.AppendInt16Block(vals)
	return b.Bytes()
}

// Helper to build a two-block stream with nonzero reconstructed samples
func buildPatternStream(t *testing.T) []byte {
	t.Helper()

	b := acmtest.NewStreamBuilder(acmtest.Config{
		Samples:   16,
		Channels:  1,
		Rate:      22050,
		Levels:    2,
		Subblocks: 2,
	})

	codes := make([]uint32, 8)
	for i := range codes {
		codes[i] = uint32((i*5 + 3) % 32)
	}
	b.AppendLinearBlock(3, 5, codes)

	for i := range codes {
		codes[i] = uint32((i*11 + 7) % 32)
	}
	b.AppendLinearBlock(2, 5, codes)

	return b.Bytes()
}

func decodeAllSamples(t *testing.T, d *Decoder) []int16 {
	t.Helper()

	var out []int16
	buf := make([]int16, 7) // odd on purpose, so reads straddle blocks
	for {
		n, err := d.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out
			}
			t.Fatalf("ReadSamples() error = %v, want nil or io.EOF", err)
		}
	}
}

func TestNewDecoder_HeaderFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		channels  int
		rate      int
		levels    int
		subblocks int
		samples   int
	}{
		{"mono speech", 1, 22050, 3, 4, 50},
		{"stereo music", 2, 44100, 4, 2, 96},
		{"channel field is not validated", 7, 8000, 1, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := acmtest.NewStreamBuilder(acmtest.Config{
				Samples:   tt.samples,
				Channels:  tt.channels,
				Rate:      tt.rate,
				Levels:    tt.levels,
				Subblocks: tt.subblocks,
			})

			d, err := NewDecoder(bytes.NewReader(b.Bytes()))
			if err != nil {
				t.Fatalf("NewDecoder() error = %v, want nil", err)
			}

			if d.Samples() != tt.samples {
				t.Errorf("Samples() = %d, want %d", d.Samples(), tt.samples)
			}
			if d.Channels() != tt.channels {
				t.Errorf("Channels() = %d, want %d", d.Channels(), tt.channels)
			}
			if d.SampleRate() != tt.rate {
				t.Errorf("SampleRate() = %d, want %d", d.SampleRate(), tt.rate)
			}
			if d.SamplesLeft() != tt.samples {
				t.Errorf("SamplesLeft() = %d, want %d", d.SamplesLeft(), tt.samples)
			}

			wantBlock := (1 << tt.levels) * tt.subblocks
			if d.blockSize != wantBlock {
				t.Errorf("blockSize = %d, want %d", d.blockSize, wantBlock)
			}
		})
	}
}

func TestNewDecoder_RejectsBadSignature(t *testing.T) {
	t.Parallel()

	header := acmtest.BuildHeader(0xDEADBEEF, 100, 1, 22050, 0x34)

	_, err := NewDecoder(bytes.NewReader(header))
	if !errors.Is(err, ErrNotACMFile) {
		t.Errorf("NewDecoder() error = %v, want ErrNotACMFile", err)
	}
}

func TestNewDecoder_RejectsBadGeometry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		geometry uint16
	}{
		{"levels too large", 17<<4 | 2},
		{"zero subblocks", 3<<4 | 0},
		{"both fields hostile", 0xFFF0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			header := acmtest.BuildHeader(acmtest.StreamSignature, 100, 1, 22050, tt.geometry)

			_, err := NewDecoder(bytes.NewReader(header))
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("NewDecoder() error = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestNewDecoder_ShortHeader(t *testing.T) {
	t.Parallel()

	full := acmtest.BuildHeader(acmtest.StreamSignature, 100, 1, 22050, 0x34)

	for _, cut := range []int{0, 3, 6, 11, 13} {
		if _, err := NewDecoder(bytes.NewReader(full[:cut])); err == nil {
			t.Errorf("NewDecoder() with %d header bytes: error = nil, want non-nil", cut)
		}
	}
}

func TestReadSamples_PassThroughValues(t *testing.T) {
	t.Parallel()

	want := []int16{100, -100, 200, -200}
	d, err := NewDecoder(bytes.NewReader(buildInt16Stream(want, 1, 22050)))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	got := make([]int16, 8)
	n, err := d.ReadSamples(got)
	if err != nil {
		t.Fatalf("ReadSamples() error = %v, want nil", err)
	}
	if n != len(want) {
		t.Fatalf("ReadSamples() = %d samples, want %d", n, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if n, err := d.ReadSamples(got); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() after drain = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestReadSamples_AppliesLevelShift(t *testing.T) {
	t.Parallel()

	// One level, one subblock: coefficients a, b reconstruct to
	// [a 2a-b], emitted right-shifted by the level count.
	b := acmtest.NewStreamBuilder(acmtest.Config{
		Samples:   2,
		Channels:  1,
		Rate:      22050,
		Levels:    1,
		Subblocks: 1,
	})
	b.AppendLinearBlock(1, 16, []uint32{1<<15 + 10, 1<<15 + 4})

	d, err := NewDecoder(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	got := make([]int16, 2)
	if n, err := d.ReadSamples(got); n != 2 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (2, nil)", n, err)
	}
	if got[0] != 5 || got[1] != 8 {
		t.Errorf("samples = %v, want [5 8]", got)
	}
}

func TestReadSamples_SpansBlockRefills(t *testing.T) {
	t.Parallel()

	// 50 samples over 32-sample blocks: one call drains a whole block
	// plus 18 samples of the next one.
	b := acmtest.NewStreamBuilder(acmtest.Config{
		Samples:   50,
		Channels:  1,
		Rate:      22050,
		Levels:    3,
		Subblocks: 4,
	})
	b.AppendZeroBlock()
	b.AppendZeroBlock()

	d, err := NewDecoder(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	buf := make([]int16, 50)
	n, err := d.ReadSamples(buf)
	if n != 50 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (50, nil)", n, err)
	}
	if d.SamplesLeft() != 0 {
		t.Errorf("SamplesLeft() = %d, want 0", d.SamplesLeft())
	}

	if n, err := d.ReadSamples(buf); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() after drain = (%d, %v), want (0, io.EOF)", n, err)
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestReadSamples_PartitionsAgree(t *testing.T) {
	t.Parallel()

	stream := buildPatternStream(t)

	ref, err := NewDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}
	whole := make([]int16, 16)
	if n, err := ref.ReadSamples(whole); n != 16 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (16, nil)", n, err)
	}

	partitions := [][]int{
		{16},
		{1, 15},
		{7, 9},
		{5, 5, 6},
		{1, 2, 3, 4, 6},
	}

	for _, parts := range partitions {
		d, err := NewDecoder(bytes.NewReader(stream))
		if err != nil {
			t.Fatalf("NewDecoder() error = %v, want nil", err)
		}

		var got []int16
		for _, size := range parts {
			buf := make([]int16, size)
			n, err := d.ReadSamples(buf)
			if err != nil {
				t.Fatalf("ReadSamples(%d) error = %v, want nil", size, err)
			}
			got = append(got, buf[:n]...)
		}

		if len(got) != len(whole) {
			t.Fatalf("partition %v produced %d samples, want %d", parts, len(got), len(whole))
		}
		for i := range whole {
			if got[i] != whole[i] {
				t.Errorf("partition %v sample[%d] = %d, want %d", parts, i, got[i], whole[i])
			}
		}
	}
}

func TestReadSamples_Conservation(t *testing.T) {
	t.Parallel()

	d, err := NewDecoder(bytes.NewReader(buildPatternStream(t)))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	produced := 0
	buf := make([]int16, 3)
	for {
		n, err := d.ReadSamples(buf)
		produced += n

		if produced+d.SamplesLeft() > d.Samples() {
			t.Fatalf("produced %d + SamplesLeft %d exceeds Samples %d",
				produced, d.SamplesLeft(), d.Samples())
		}

		if err != nil {
			break
		}
	}

	if produced != d.Samples() {
		t.Errorf("produced %d samples total, want %d", produced, d.Samples())
	}
}

func TestReadSamples_EmptyDst(t *testing.T) {
	t.Parallel()

	d, err := NewDecoder(bytes.NewReader(buildInt16Stream([]int16{1, 2}, 1, 8000)))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	if n, err := d.ReadSamples(nil); n != 0 || err != nil {
		t.Errorf("ReadSamples(nil) = (%d, %v), want (0, nil)", n, err)
	}
	if d.SamplesLeft() != 2 {
		t.Errorf("SamplesLeft() = %d, want 2", d.SamplesLeft())
	}
}

func TestReadSamples_ShortReadTermination(t *testing.T) {
	t.Parallel()

	d, err := NewDecoder(bytes.NewReader(buildInt16Stream([]int16{4, 5, 6}, 1, 8000)))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	buf := make([]int16, 10)
	if n, err := d.ReadSamples(buf); n != 3 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (3, nil)", n, err)
	}

	for i := range 3 {
		n, err := d.ReadSamples(buf)
		if n != 0 || !errors.Is(err, io.EOF) {
			t.Errorf("drained call %d: ReadSamples() = (%d, %v), want (0, io.EOF)", i, n, err)
		}
		if d.SamplesLeft() != 0 {
			t.Errorf("drained call %d: SamplesLeft() = %d, want 0", i, d.SamplesLeft())
		}
	}
}

func TestRewind_ReplaysIdentically(t *testing.T) {
	t.Parallel()

	d, err := NewDecoder(bytes.NewReader(buildPatternStream(t)))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	first := decodeAllSamples(t, d)
	if len(first) != 16 {
		t.Fatalf("decoded %d samples, want 16", len(first))
	}

	if err := d.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v, want nil", err)
	}
	if d.SamplesLeft() != d.Samples() {
		t.Errorf("SamplesLeft() after Rewind = %d, want %d", d.SamplesLeft(), d.Samples())
	}

	second := decodeAllSamples(t, d)
	if len(second) != len(first) {
		t.Fatalf("replay decoded %d samples, want %d", len(second), len(first))
	}
	for i := range first {
		if second[i] != first[i] {
			t.Errorf("replay sample[%d] = %d, want %d", i, second[i], first[i])
		}
	}
}

func TestRewind_MidStream(t *testing.T) {
	t.Parallel()

	stream := buildPatternStream(t)

	ref, err := NewDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}
	want := decodeAllSamples(t, ref)

	d, err := NewDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	// Stop mid-block, then restart.
	buf := make([]int16, 5)
	if n, err := d.ReadSamples(buf); n != 5 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (5, nil)", n, err)
	}
	if err := d.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v, want nil", err)
	}

	got := decodeAllSamples(t, d)
	if len(got) != len(want) {
		t.Fatalf("decoded %d samples after mid-stream Rewind, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDecoder_TruncatedPayload(t *testing.T) {
	t.Parallel()

	// Header promises four blocks but the payload holds one.
	b := acmtest.NewStreamBuilder(acmtest.Config{
		Samples:   64,
		Channels:  1,
		Rate:      22050,
		Levels:    2,
		Subblocks: 4,
	})
	b.AppendZeroBlock()

	d, err := NewDecoder(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	buf := make([]int16, 64)
	n, err := d.ReadSamples(buf)
	if n != 16 || err != nil {
		t.Fatalf("ReadSamples() = (%d, %v), want (16, nil)", n, err)
	}

	if err := d.Err(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Err() = %v, want io.ErrUnexpectedEOF", err)
	}

	if n, err := d.ReadSamples(buf); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() after failure = (%d, %v), want (0, io.EOF)", n, err)
	}

	// Rewind clears the diagnostic and replays what is decodable.
	if err := d.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v, want nil", err)
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() after Rewind = %v, want nil", err)
	}
	if n, _ := d.ReadSamples(buf); n != 16 {
		t.Errorf("ReadSamples() after Rewind = %d samples, want 16", n)
	}
}

func TestDecoder_CorruptPayload(t *testing.T) {
	t.Parallel()

	var bw acmtest.BitWriter
	bw.WriteBits(0, 4)
	bw.WriteBits(0, 16)
	bw.WriteBits(1, 5) // unassigned filler index

	stream := append(
		acmtest.BuildHeader(acmtest.StreamSignature, 4, 1, 22050, 0x02),
		bw.Bytes()...)

	d, err := NewDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	buf := make([]int16, 4)
	if n, err := d.ReadSamples(buf); n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("ReadSamples() = (%d, %v), want (0, io.EOF)", n, err)
	}

	if err := d.Err(); !errors.Is(err, ErrInvalidData) {
		t.Errorf("Err() = %v, want ErrInvalidData", err)
	}
}

func TestDecoder_ZeroSampleStream(t *testing.T) {
	t.Parallel()

	b := acmtest.NewStreamBuilder(acmtest.Config{
		Samples:   0,
		Channels:  1,
		Rate:      22050,
		Levels:    1,
		Subblocks: 1,
	})

	d, err := NewDecoder(bytes.NewReader(b.Bytes()))
	if err != nil {
		t.Fatalf("NewDecoder() error = %v, want nil", err)
	}

	buf := make([]int16, 4)
	if n, err := d.ReadSamples(buf); n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() = (%d, %v), want (0, io.EOF)", n, err)
	}
	if err := d.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestDecoder_ReadStreamsBytes(t *testing.T) {
	t.Parallel()

	vals := []int16{100, -100, 200, -200}
	want := []byte{0x64, 0x00, 0x9C, 0xFF, 0xC8, 0x00, 0x38, 0xFF}

	t.Run("read all", func(t *testing.T) {
		t.Parallel()

		d, err := NewDecoder(bytes.NewReader(buildInt16Stream(vals, 1, 22050)))
		if err != nil {
			t.Fatalf("NewDecoder() error = %v, want nil", err)
		}

		got, err := io.ReadAll(d)
		if err != nil {
			t.Fatalf("io.ReadAll() error = %v, want nil", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("io.ReadAll() = % X, want % X", got, want)
		}
	})

	t.Run("odd sized reads", func(t *testing.T) {
		t.Parallel()

		d, err := NewDecoder(bytes.NewReader(buildInt16Stream(vals, 1, 22050)))
		if err != nil {
			t.Fatalf("NewDecoder() error = %v, want nil", err)
		}

		var got []byte
		for _, size := range []int{3, 5} {
			p := make([]byte, size)
			n, err := io.ReadFull(d, p)
			if err != nil {
				t.Fatalf("ReadFull(%d) = (%d, %v), want full read", size, n, err)
			}
			got = append(got, p...)
		}

		if !bytes.Equal(got, want) {
			t.Errorf("straddled reads = % X, want % X", got, want)
		}

		if n, err := d.Read(make([]byte, 1)); n != 0 || !errors.Is(err, io.EOF) {
			t.Errorf("Read() after drain = (%d, %v), want (0, io.EOF)", n, err)
		}
	})
}

func TestDecodeAll(t *testing.T) {
	t.Parallel()

	t.Run("well formed stream", func(t *testing.T) {
		t.Parallel()

		vals := []int16{100, -100, 200, -200}
		got, rate, err := DecodeAll(bytes.NewReader(buildInt16Stream(vals, 1, 22050)))
		if err != nil {
			t.Fatalf("DecodeAll() error = %v, want nil", err)
		}
		if rate != 22050 {
			t.Errorf("DecodeAll() rate = %d, want 22050", rate)
		}
		if len(got) != len(vals) {
			t.Fatalf("DecodeAll() = %d samples, want %d", len(got), len(vals))
		}
		for i := range vals {
			if got[i] != vals[i] {
				t.Errorf("sample[%d] = %d, want %d", i, got[i], vals[i])
			}
		}
	})

	t.Run("truncated stream keeps partial audio", func(t *testing.T) {
		t.Parallel()

		b := acmtest.NewStreamBuilder(acmtest.Config{
			Samples:   8,
			Channels:  1,
			Rate:      8000,
			Levels:    0,
			Subblocks: 4,
		})
		b.AppendInt16Block([]int16{1, 2, 3, 4})

		got, _, err := DecodeAll(bytes.NewReader(b.Bytes()))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("DecodeAll() error = %v, want io.ErrUnexpectedEOF", err)
		}
		if len(got) != 4 {
			t.Errorf("DecodeAll() = %d samples, want the 4 recovered", len(got))
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()

		header := acmtest.BuildHeader(0x0BADF00D, 4, 1, 8000, 0x04)
		if _, _, err := DecodeAll(bytes.NewReader(header)); !errors.Is(err, ErrNotACMFile) {
			t.Errorf("DecodeAll() error = %v, want ErrNotACMFile", err)
		}
	})
}

func buildBenchStream(blocks int) []byte {
	bld := acmtest.NewStreamBuilder(acmtest.Config{
		Samples:   blocks * 128,
		Channels:  1,
		Rate:      22050,
		Levels:    4,
		Subblocks: 8,
	})

	codes := make([]uint32, 128)
	for i := range codes {
		codes[i] = uint32((i*7 + 11) % 32)
	}
	for range blocks {
		bld.AppendLinearBlock(2, 5, codes)
	}
	return bld.Bytes()
}

func BenchmarkDecoder_ReadSamples(b *testing.B) {
	d, err := NewDecoder(bytes.NewReader(buildBenchStream(16)))
	if err != nil {
		b.Fatalf("NewDecoder() error = %v, want nil", err)
	}
	buf := make([]int16, 4096)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		if err := d.Rewind(); err != nil {
			b.Fatal(err)
		}
		for {
			if _, err := d.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}

// BenchmarkDecoder_ReadSamples_SmallBuffer benchmarks short destination slices
func BenchmarkDecoder_ReadSamples_SmallBuffer(b *testing.B) {
	d, err := NewDecoder(bytes.NewReader(buildBenchStream(4)))
	if err != nil {
		b.Fatalf("NewDecoder() error = %v, want nil", err)
	}
	buf := make([]int16, 64)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		if err := d.Rewind(); err != nil {
			b.Fatal(err)
		}
		for {
			if _, err := d.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}

// BenchmarkDecoder_ZeroAllocs verifies no allocations after initialization
func BenchmarkDecoder_ZeroAllocs(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping allocation test in short mode")
	}

	d, err := NewDecoder(bytes.NewReader(buildBenchStream(4)))
	if err != nil {
		b.Fatalf("NewDecoder() error = %v, want nil", err)
	}
	buf := make([]int16, 512)

	// Warm up
	_, _ = d.ReadSamples(buf)

	allocs := testing.AllocsPerRun(100, func() {
		_ = d.Rewind()
		for {
			if _, err := d.ReadSamples(buf); err != nil {
				break
			}
		}
	})

	if allocs > 0 {
		b.Errorf("ReadSamples() allocated %v times, want 0", allocs)
	}
}
