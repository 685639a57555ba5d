// SPDX-License-Identifier: EPL-2.0

package acm

import "fmt"

// subbandSynth folds a block of quantized amplitudes back into
// time-domain samples. Each pass halves the column span and doubles the
// pair count; the wrap buffer keeps the last two outputs of every
// column so reconstruction stays continuous across blocks.
type subbandSynth struct {
	levels int
	wrap   []int32
}

func newSubbandSynth(levels int) (*subbandSynth, error) {
	if levels < 0 || levels > maxLevels {
		return nil, fmt.Errorf("%w: %d levels", ErrInvalidGeometry, levels)
	}

	wrapLen := 0
	if levels > 0 {
		wrapLen = 2*(1<<levels) - 2
	}

	return &subbandSynth{
		levels: levels,
		wrap:   make([]int32, wrapLen),
	}, nil
}

// reset clears the carried history so the next block synthesizes as if
// the stream had just been opened.
func (s *subbandSynth) reset() {
	for i := range s.wrap {
		s.wrap[i] = 0
	}
}

// decodeData reconstructs block in place. block holds subblocks rows by
// 1<<levels columns, row-major; afterwards every slot is a sample value
// still scaled up by 1<<levels. With no levels the amplitudes already
// are the samples and the call is a no-op.
func (s *subbandSynth) decodeData(block []int32, subblocks int) {
	if s.levels == 0 {
		return
	}

	subLen := (1 << s.levels) / 2
	subCount := subblocks * 2
	off := 0

	for subLen > 0 {
		juggle(s.wrap[off:], block, subLen, subCount)
		off += subLen * 2
		subLen /= 2
		subCount *= 2
	}
}

// juggle runs one cascade pass: for each of subLen interleaved columns
// it walks subCount/2 value pairs through a second-order combine, with
// the column's running history held in wrap.
func juggle(wrap, block []int32, subLen, subCount int) {
	for i := range subLen {
		pos := i
		r0 := wrap[2*i]
		r1 := wrap[2*i+1]

		for range subCount / 2 {
			r2 := block[pos]
			block[pos] = 2*r1 + (r0 + r2)
			pos += subLen

			r3 := block[pos]
			block[pos] = 2*r2 - (r1 + r3)
			pos += subLen

			r0, r1 = r2, r3
		}

		wrap[2*i] = r0
		wrap[2*i+1] = r1
	}
}
