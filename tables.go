// SPDX-License-Identifier: EPL-2.0

package acm

// Packed-code lookup tables. Some fillers pack several small amplitude
// digits into one code word: the table entry holds the digits side by
// side, width bits apart, so the filler can peel them off with shifts.
var (
	threesTable  = buildPackedTable(3, 3, 2)  // 27 codes, digits 0..2
	fivesTable   = buildPackedTable(5, 3, 3)  // 125 codes, digits 0..4
	elevensTable = buildPackedTable(11, 2, 4) // 121 codes, digits 0..10
)

func buildPackedTable(base, digits, width int) []uint16 {
	entries := 1
	for range digits {
		entries *= base
	}

	table := make([]uint16, entries)
	for i := range table {
		rem := i
		for d := range digits {
			table[i] |= uint16(rem%base) << (d * width)
			rem /= base
		}
	}
	return table
}
