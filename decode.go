// SPDX-License-Identifier: EPL-2.0

package acm

import (
	"errors"
	"io"
)

// DecodeAll is a high-level convenience function that opens a stream and
// decodes every sample it holds into memory.
//
// The function drives the full pipeline:
//  1. Parses and validates the 14-byte header
//  2. Unpacks and reconstructs blocks until the stream is exhausted
//  3. Collects the output as 16-bit signed PCM
//
// Parameters:
//   - r: The stream to decode, positioned anywhere (the header is read
//     from the start)
//
// Returns:
//   - []int16: All decoded PCM samples, in stream order
//   - int: The sample rate in Hz, as declared by the header
//   - error: A construction failure, or the decoder's diagnostic when
//     the payload ended before the declared sample count
//
// A truncated or corrupt payload is not silent: the samples recovered
// up to that point are returned together with the diagnostic error, so
// callers can decide whether partial audio is acceptable.
//
// Note: For pull-based streaming, or when the stream is large, use
// NewDecoder and ReadSamples directly instead of materializing the
// whole stream.
//
// Example:
//
//	f, _ := os.Open("speech.acm")
//	defer f.Close()
//	pcm16, rate, err := acm.DecodeAll(f)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// pcm16 now holds the whole stream at rate Hz
func DecodeAll(r io.ReadSeeker) ([]int16, int, error) {
	d, err := NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}

	out := make([]int16, 0, d.Samples())
	buf := make([]int16, 4096)

	for {
		n, err := d.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return out, d.SampleRate(), err
		}
	}

	return out, d.SampleRate(), d.Err()
}
