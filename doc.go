// SPDX-License-Identifier: EPL-2.0

// Package acm decodes Interplay ACM compressed audio into 16-bit PCM.
//
// ACM is the container used for music and speech in several classic
// Interplay games. A stream is a 14-byte little-endian header followed
// by a packed payload: blocks of quantized amplitudes that a
// hierarchical subband pass folds back into time-domain samples. This
// package implements the full pipeline as a pull-based streaming
// decoder, so audio is produced on demand instead of materialized up
// front.
//
// # Quick Start
//
// The simplest way to decode a whole file is DecodeAll:
//
//	f, _ := os.Open("music.acm")
//	defer f.Close()
//
//	pcm16, rate, err := acm.DecodeAll(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// pcm16 is the whole stream as 16-bit PCM at rate Hz
//
// # Streaming Reads
//
// For playback or large files, pull samples as needed:
//
//	d, err := acm.NewDecoder(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	buf := make([]int16, 4096)
//	for {
//	    n, err := d.ReadSamples(buf)
//	    if err == io.EOF {
//	        break
//	    }
//	    play(buf[:n])
//	}
//
// A short count from ReadSamples means the stream has no more data;
// after that every call returns (0, io.EOF). Rewind restarts the stream
// from the first sample at any point, including mid-block:
//
//	if err := d.Rewind(); err != nil {
//	    log.Fatal(err)
//	}
//	// reads now replay the stream from the start
//
// # Malformed Streams
//
// Construction fails fast: ErrNotACMFile for a wrong signature,
// ErrInvalidGeometry when the header's level/subblock word cannot
// describe a decodable block. A payload that turns out truncated or
// corrupt mid-stream ends reads early rather than failing them; the
// cause stays available from Err:
//
//	if err := d.Err(); err != nil {
//	    log.Printf("stream ended early: %v", err)
//	}
//
// # Interop
//
// Decoder satisfies io.Reader, emitting little-endian 16-bit PCM bytes,
// so it plugs directly into byte-oriented sinks such as audio players.
// It also follows the go-audio decoder conventions (Format, PCMBuffer,
// FullPCMBuffer) for use with that ecosystem. The convert subpackage
// writes decoded streams out as WAV, AIFF or FLAC files, and
// cmd/acm2wav
// wraps it in a command line tool.
//
// # Concurrency
//
// A Decoder owns mutable decode state and is not safe for concurrent
// use. Decode independent streams with independent Decoders; if one
// stream must be consumed from several goroutines, serialize the calls.
package acm
