// SPDX-License-Identifier: EPL-2.0

package acm

import (
	"fmt"

	"github.com/ik5/go-acm/internal/bytestream"
)

// ampMid is the zero point of the amplitude ladder. The ladder spans
// [-ampMid, ampMid) so every quantized offset a filler can produce has
// a slot.
const ampMid = 0x8000

// valueUnpacker turns the packed payload into blocks of quantized
// amplitudes. Bits are consumed least-significant first and the bit
// cursor carries across blocks, so unpack order is part of the format.
type valueUnpacker struct {
	stream *bytestream.Reader

	cols int // 1 << levels
	rows int // subblocks

	reservoir uint32 // pending bits, low bits are consumed first
	avail     int    // bit count held in reservoir

	ampBuf []int32 // amplitude ladder, rebuilt per block
	block  []int32 // current destination, row-major rows x cols
}

// newValueUnpacker validates the block geometry and prepares the unpack
// state. levels sets the column count (1 << levels), subblocks the
// number of values per column.
func newValueUnpacker(levels, subblocks int, stream *bytestream.Reader) (*valueUnpacker, error) {
	if levels < 0 || levels > maxLevels {
		return nil, fmt.Errorf("%w: %d levels", ErrInvalidGeometry, levels)
	}
	if subblocks < 1 {
		return nil, fmt.Errorf("%w: %d subblocks", ErrInvalidGeometry, subblocks)
	}

	return &valueUnpacker{
		stream: stream,
		cols:   1 << levels,
		rows:   subblocks,
		ampBuf: make([]int32, 2*ampMid),
	}, nil
}

// reset drops any buffered bits so unpacking restarts cleanly once the
// stream cursor has been rewound.
func (u *valueUnpacker) reset() {
	u.reservoir = 0
	u.avail = 0
}

// getBits returns the next n bits of the stream, n <= 16.
func (u *valueUnpacker) getBits(n int) (uint32, error) {
	for u.avail < n {
		b, err := u.stream.Uint8()
		if err != nil {
			return 0, err
		}
		u.reservoir |= uint32(b) << u.avail
		u.avail += 8
	}

	v := u.reservoir & (1<<n - 1)
	u.reservoir >>= n
	u.avail -= n
	return v, nil
}

// getOneBlock unpacks the next block of quantized amplitudes into dst,
// which must hold rows*cols values. Each block starts with a 4-bit
// power and a 16-bit step describing the amplitude ladder, followed by
// one coded column per level slot. dst is only valid on nil error.
func (u *valueUnpacker) getOneBlock(dst []int32) error {
	power, err := u.getBits(4)
	if err != nil {
		return err
	}

	step, err := u.getBits(16)
	if err != nil {
		return err
	}

	u.buildAmplitudes(int(power), int32(step))

	u.block = dst
	for col := range u.cols {
		ind, err := u.getBits(5)
		if err != nil {
			return err
		}
		if err := u.fillColumn(int(ind), col); err != nil {
			return err
		}
	}
	return nil
}

// buildAmplitudes rebuilds the ladder for one block: slot i holds
// i*step for i in [-(1<<power), 1<<power).
func (u *valueUnpacker) buildAmplitudes(power int, step int32) {
	count := 1 << power

	v := int32(0)
	for i := range count {
		u.ampBuf[ampMid+i] = v
		v += step
	}

	v = -step
	for i := 1; i <= count; i++ {
		u.ampBuf[ampMid-i] = v
		v -= step
	}
}

func (u *valueUnpacker) amp(i int) int32 {
	return u.ampBuf[ampMid+i]
}

func (u *valueUnpacker) put(row, col int, v int32) {
	u.block[row*u.cols+col] = v
}

// fillColumn writes one column of the block, rows values down. The
// 5-bit index selects the column coding.
func (u *valueUnpacker) fillColumn(ind, col int) error {
	switch ind {
	case 0:
		return u.fillZero(col)
	case 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16:
		return u.fillLinear(ind, col)
	case 17:
		return u.fillK13(col)
	case 18:
		return u.fillK12(col)
	case 19:
		return u.fillT15(col)
	case 20:
		return u.fillK24(col)
	case 21:
		return u.fillK23(col)
	case 22:
		return u.fillT27(col)
	case 23:
		return u.fillK35(col)
	case 24:
		return u.fillK34(col)
	case 26:
		return u.fillK45(col)
	case 27:
		return u.fillK44(col)
	case 29:
		return u.fillT37(col)
	default: // 1, 2, 25, 28, 30 and 31 are unassigned
		return fmt.Errorf("%w: filler index %d", ErrInvalidData, ind)
	}
}

// fillZero consumes no payload bits; the whole column is silence.
func (u *valueUnpacker) fillZero(col int) error {
	for row := range u.rows {
		u.put(row, col, 0)
	}
	return nil
}

// fillLinear reads one width-bit code per value, an unsigned offset
// re-centered on the ladder midpoint.
func (u *valueUnpacker) fillLinear(width, col int) error {
	half := 1 << (width - 1)

	for row := range u.rows {
		code, err := u.getBits(width)
		if err != nil {
			return err
		}
		u.put(row, col, u.amp(int(code)-half))
	}
	return nil
}

// fillK13 codes values near silence: 0 -> two zeros, 10 -> one zero,
// 11s -> one step down or up.
func (u *valueUnpacker) fillK13(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			if row >= u.rows {
				break
			}
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b != 0 {
			u.put(row, col, u.amp(1))
		} else {
			u.put(row, col, u.amp(-1))
		}
		row++
	}
	return nil
}

// fillK12: 0 -> zero, 1s -> one step down or up.
func (u *valueUnpacker) fillK12(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b != 0 {
			u.put(row, col, u.amp(1))
		} else {
			u.put(row, col, u.amp(-1))
		}
		row++
	}
	return nil
}

// fillK24 extends fillK13's shape by one amplitude step: 0 -> two
// zeros, 10 -> one zero, 11mm -> one of -2, -1, +1, +2.
func (u *valueUnpacker) fillK24(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			if row >= u.rows {
				break
			}
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(2); err != nil {
			return err
		}
		if b&2 != 0 {
			u.put(row, col, u.amp(int(b&1)+1))
		} else {
			u.put(row, col, u.amp(int(b&1)-2))
		}
		row++
	}
	return nil
}

// fillK23: 0 -> zero, 1mm -> one of -2, -1, +1, +2.
func (u *valueUnpacker) fillK23(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(2); err != nil {
			return err
		}
		if b&2 != 0 {
			u.put(row, col, u.amp(int(b&1)+1))
		} else {
			u.put(row, col, u.amp(int(b&1)-2))
		}
		row++
	}
	return nil
}

// fillK35: 0 -> zero, 10s -> one step, 11vvv -> a wider offset with the
// zero slot squeezed out, covering -4..+4.
func (u *valueUnpacker) fillK35(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b == 0 {
			if b, err = u.getBits(1); err != nil {
				return err
			}
			if b != 0 {
				u.put(row, col, u.amp(1))
			} else {
				u.put(row, col, u.amp(-1))
			}
			row++
			continue
		}

		if b, err = u.getBits(3); err != nil {
			return err
		}
		if b >= 4 {
			b++
		}
		u.put(row, col, u.amp(int(b)-4))
		row++
	}
	return nil
}

// fillK34: 0 -> zero, 10s -> one step, 110s -> two steps, 111s -> three.
func (u *valueUnpacker) fillK34(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b == 0 {
			if b, err = u.getBits(1); err != nil {
				return err
			}
			if b != 0 {
				u.put(row, col, u.amp(1))
			} else {
				u.put(row, col, u.amp(-1))
			}
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b == 0 {
			if b, err = u.getBits(1); err != nil {
				return err
			}
			if b != 0 {
				u.put(row, col, u.amp(2))
			} else {
				u.put(row, col, u.amp(-2))
			}
			row++
			continue
		}

		if b, err = u.getBits(1); err != nil {
			return err
		}
		if b != 0 {
			u.put(row, col, u.amp(3))
		} else {
			u.put(row, col, u.amp(-3))
		}
		row++
	}
	return nil
}

// fillK45: 0 -> zero, 1vvvv -> an offset with the zero slot squeezed
// out, covering -8..+8.
func (u *valueUnpacker) fillK45(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(4); err != nil {
			return err
		}
		if b >= 8 {
			b++
		}
		u.put(row, col, u.amp(int(b)-8))
		row++
	}
	return nil
}

// fillK44: 0 -> zero, 1vvv -> an offset with the zero slot squeezed
// out, covering -4..+4.
func (u *valueUnpacker) fillK44(col int) error {
	for row := 0; row < u.rows; {
		b, err := u.getBits(1)
		if err != nil {
			return err
		}
		if b == 0 {
			u.put(row, col, 0)
			row++
			continue
		}

		if b, err = u.getBits(3); err != nil {
			return err
		}
		if b >= 4 {
			b++
		}
		u.put(row, col, u.amp(int(b)-4))
		row++
	}
	return nil
}

// fillT15 unpacks three base-3 digits per 5-bit code, each digit an
// amplitude in {-1, 0, +1}.
func (u *valueUnpacker) fillT15(col int) error {
	for row := 0; row < u.rows; {
		code, err := u.getBits(5)
		if err != nil {
			return err
		}
		if int(code) >= len(threesTable) {
			return fmt.Errorf("%w: packed code %d", ErrInvalidData, code)
		}

		n := threesTable[code]
		u.put(row, col, u.amp(int(n&3)-1))
		row++
		if row >= u.rows {
			break
		}

		n >>= 2
		u.put(row, col, u.amp(int(n&3)-1))
		row++
		if row >= u.rows {
			break
		}

		n >>= 2
		u.put(row, col, u.amp(int(n&3)-1))
		row++
	}
	return nil
}

// fillT27 unpacks three base-5 digits per 7-bit code, each digit an
// amplitude in {-2..+2}.
func (u *valueUnpacker) fillT27(col int) error {
	for row := 0; row < u.rows; {
		code, err := u.getBits(7)
		if err != nil {
			return err
		}
		if int(code) >= len(fivesTable) {
			return fmt.Errorf("%w: packed code %d", ErrInvalidData, code)
		}

		n := fivesTable[code]
		u.put(row, col, u.amp(int(n&7)-2))
		row++
		if row >= u.rows {
			break
		}

		n >>= 3
		u.put(row, col, u.amp(int(n&7)-2))
		row++
		if row >= u.rows {
			break
		}

		n >>= 3
		u.put(row, col, u.amp(int(n&7)-2))
		row++
	}
	return nil
}

// fillT37 unpacks two base-11 digits per 7-bit code, each digit an
// amplitude in {-5..+5}.
func (u *valueUnpacker) fillT37(col int) error {
	for row := 0; row < u.rows; {
		code, err := u.getBits(7)
		if err != nil {
			return err
		}
		if int(code) >= len(elevensTable) {
			return fmt.Errorf("%w: packed code %d", ErrInvalidData, code)
		}

		n := elevensTable[code]
		u.put(row, col, u.amp(int(n&15)-5))
		row++
		if row >= u.rows {
			break
		}

		n >>= 4
		u.put(row, col, u.amp(int(n&15)-5))
		row++
	}
	return nil
}
