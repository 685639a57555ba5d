// SPDX-License-Identifier: EPL-2.0

// Package convert exports decoded audio streams to standard containers.
//
// Every exporter drains the decoder from its current position, so a
// caller that already consumed samples should Rewind first. A payload
// that ends early still produces a valid, finalized container holding
// the recovered samples; the decoder's diagnostic is returned so the
// caller can tell a clean export from a salvaged one.
package convert

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	acm "github.com/ik5/go-acm"
)

const (
	wavAudioFormat = 1
	chunkFrames    = 4096
)

// pcmEncoder is the shared surface of the go-audio container encoders.
type pcmEncoder interface {
	Write(buf *goaudio.IntBuffer) error
	Close() error
}

// ToWAV drains d and writes the samples as a 16 bit PCM RIFF file. The
// destination must be seekable so the encoder can patch the chunk
// sizes once the stream length is known.
func ToWAV(ws io.WriteSeeker, d *acm.Decoder) error {
	return drainPCM(wav.NewEncoder(ws, d.SampleRate(), 16, playableChannels(d), wavAudioFormat), d)
}

// ToAIFF drains d and writes the samples as a 16 bit PCM AIFF file.
// Like ToWAV, the destination must be seekable.
func ToAIFF(ws io.WriteSeeker, d *acm.Decoder) error {
	return drainPCM(aiff.NewEncoder(ws, d.SampleRate(), 16, playableChannels(d)), d)
}

// ToFLAC drains d and writes the samples as a losslessly compressed
// FLAC stream with verbatim subframes.
func ToFLAC(w io.Writer, d *acm.Decoder) error {
	channels := playableChannels(d)

	layout, err := flacChannels(channels)
	if err != nil {
		return err
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  chunkFrames,
		SampleRate:    uint32(d.SampleRate()),
		NChannels:     uint8(channels),
		BitsPerSample: 16,
		NSamples:      uint64(d.Samples() / channels),
	}

	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return fmt.Errorf("write stream header: %w", err)
	}

	subframes := make([]*frame.Subframe, channels)
	for i := range subframes {
		subframes[i] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   make([]int32, chunkFrames),
		}
	}

	pcm := make([]int16, chunkFrames*channels)
	var pos uint64
	for {
		n, rerr := d.ReadSamples(pcm)

		// A dangling value that cannot complete an interchannel row is
		// dropped; it only occurs on malformed multichannel streams.
		rows := n / channels
		if rows > 0 {
			for c, sf := range subframes {
				sf.Samples = sf.Samples[:rows]
				for i := range rows {
					sf.Samples[i] = int32(pcm[i*channels+c])
				}
				sf.NSamples = rows
			}

			f := &frame.Frame{
				Header: frame.Header{
					HasFixedBlockSize: false,
					BlockSize:         uint16(rows),
					SampleRate:        uint32(d.SampleRate()),
					Channels:          layout,
					BitsPerSample:     16,
					Num:               pos,
				},
				Subframes: subframes,
			}
			if err := enc.WriteFrame(f); err != nil {
				return fmt.Errorf("write frame at sample %d: %w", pos, err)
			}
			pos += uint64(rows)
		}

		if rerr != nil {
			break
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize container: %w", err)
	}

	return d.Err()
}

// playableChannels treats the header's channel field as mono when it
// carries a degenerate value, matching how players size their output.
func playableChannels(d *acm.Decoder) int {
	if d.Channels() < 1 {
		return 1
	}
	return d.Channels()
}

func drainPCM(enc pcmEncoder, d *acm.Decoder) error {
	ib := &goaudio.IntBuffer{Data: make([]int, chunkFrames*playableChannels(d))}
	for {
		n, rerr := d.PCMBuffer(ib)
		if n > 0 {
			ib.Data = ib.Data[:n]
			if err := enc.Write(ib); err != nil {
				return fmt.Errorf("write pcm chunk: %w", err)
			}
			ib.Data = ib.Data[:cap(ib.Data)]
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return fmt.Errorf("decode stream: %w", rerr)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize container: %w", err)
	}

	return d.Err()
}

func flacChannels(n int) (frame.Channels, error) {
	switch n {
	case 1:
		return frame.ChannelsMono, nil
	case 2:
		return frame.ChannelsLR, nil
	default:
		return 0, fmt.Errorf("%w: %d channels", ErrChannelLayout, n)
	}
}
