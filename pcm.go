// SPDX-License-Identifier: EPL-2.0

package acm

import (
	"errors"
	"io"

	goaudio "github.com/go-audio/audio"
)

// Format describes the decoded PCM layout in go-audio terms.
func (d *Decoder) Format() *goaudio.Format {
	return &goaudio.Format{
		NumChannels: d.channels,
		SampleRate:  d.sampleRate,
	}
}

// PCMBuffer fills buf.Data with the next decoded samples, following the
// go-audio decoder convention: up to len(buf.Data) values are written,
// the count is returned, and buf's format and source depth are set. The
// buffer is not shrunk on a short read; use the returned count.
func (d *Decoder) PCMBuffer(buf *goaudio.IntBuffer) (int, error) {
	if buf == nil || len(buf.Data) == 0 {
		return 0, nil
	}

	if cap(d.readBuf) < len(buf.Data) {
		d.readBuf = make([]int16, len(buf.Data))
	}

	n, err := d.ReadSamples(d.readBuf[:len(buf.Data)])
	for i, s := range d.readBuf[:n] {
		buf.Data[i] = int(s)
	}

	buf.Format = d.Format()
	buf.SourceBitDepth = 16

	return n, err
}

// FullPCMBuffer decodes everything left in the stream into one buffer.
// A payload that ends early still returns the samples recovered so far,
// alongside the diagnostic from Err.
func (d *Decoder) FullPCMBuffer() (*goaudio.IntBuffer, error) {
	buf := &goaudio.IntBuffer{
		Data:           make([]int, 0, d.samplesReady+d.samplesLeft),
		Format:         d.Format(),
		SourceBitDepth: 16,
	}

	chunk := make([]int16, 4096)
	for {
		n, err := d.ReadSamples(chunk)
		for _, s := range chunk[:n] {
			buf.Data = append(buf.Data, int(s))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return buf, err
		}
	}

	return buf, d.Err()
}
