package fec

import "sync"

// golayGenPoly is the generator polynomial for the binary (23,12) Golay
// code used by M17's LICH coding: x^11+x^10+x^6+x^5+x^4+x^2+1. The LICH
// uses the even-parity extension to (24,12), which raises the minimum
// distance from 7 to 8 and corrects up to 3 bit errors per 24-bit
// codeword.
const golayGenPoly = 0xC75

// EncodeGolay maps 12 data bits (in the low 12 bits of data) to a 24-bit
// extended Golay codeword: 12 data bits, 11 parity bits from polynomial
// division by golayGenPoly, and one overall even-parity bit.
func EncodeGolay(data uint16) uint32 {
	data &= 0x0FFF
	remainder := uint32(data) << 11
	for i := 22; i >= 11; i-- {
		if remainder&(1<<uint(i)) != 0 {
			remainder ^= golayGenPoly << uint(i-11)
		}
	}
	codeword := (uint32(data) << 11) | remainder
	parity := uint32(0)
	for i := 0; i < 23; i++ {
		parity ^= (codeword >> uint(i)) & 1
	}
	return (codeword << 1) | parity
}

var golayTable struct {
	once      sync.Once
	codewords [4096]uint32 // codewords[data] = EncodeGolay(data)
}

func golayCodewords() *[4096]uint32 {
	golayTable.once.Do(func() {
		for d := 0; d < 4096; d++ {
			golayTable.codewords[d] = EncodeGolay(uint16(d))
		}
	})
	return &golayTable.codewords
}

// DecodeGolay finds the 12-bit data word whose codeword is closest (in
// Hamming distance) to the given 24-bit received word. It reports ok=false
// if the best distance exceeds 3, the guaranteed correction radius of the
// extended Golay code.
func DecodeGolay(received uint32) (data uint16, ok bool) {
	received &= 0xFFFFFF
	codewords := golayCodewords()
	best, bestDist := 0, 25
	for d, cw := range codewords {
		dist := popcount(cw ^ received)
		if dist < bestDist {
			best, bestDist = d, dist
			if dist == 0 {
				break
			}
		}
	}
	if bestDist > 3 {
		return 0, false
	}
	return uint16(best), true
}

func popcount(v uint32) int {
	n := 0
	for v != 0 {
		n++
		v &= v - 1
	}
	return n
}
