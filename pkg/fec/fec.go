// Package fec implements the M17 rate-1/2, K=5 convolutional code (the
// "type 1 -> type 3" bit transform) and its three puncturing schedules,
// plus extended Golay(24,12) coding for the LICH.
//
// Puncturing schedule P1 (LSF, 240 bits in), P2 (stream payload, 144 bits
// in) and P3 (packet payload, 206 bits in) each select, per encoder step,
// which of the two generator outputs survive; the decoder runs a
// Hamming-distance Viterbi search over the resulting 16-state, 32-edge trellis and
// rejects the result if the best path score exceeds 6.
package fec

import "m17/pkg/bitops"

// transition describes one of the 32 edges of the 16-state encoder trellis: the
// input bit that causes it, the two generator outputs it produces, and
// the state it departs from.
type transition struct {
	input  byte
	output [2]byte
	source int
}

var transitions = [32]transition{
	{0, [2]byte{0, 0}, 0},
	{0, [2]byte{1, 1}, 1},
	{0, [2]byte{1, 0}, 2},
	{0, [2]byte{0, 1}, 3},
	{0, [2]byte{0, 1}, 4},
	{0, [2]byte{1, 0}, 5},
	{0, [2]byte{1, 1}, 6},
	{0, [2]byte{0, 0}, 7},
	{0, [2]byte{0, 1}, 8},
	{0, [2]byte{1, 0}, 9},
	{0, [2]byte{1, 1}, 10},
	{0, [2]byte{0, 0}, 11},
	{0, [2]byte{0, 0}, 12},
	{0, [2]byte{1, 1}, 13},
	{0, [2]byte{1, 0}, 14},
	{0, [2]byte{0, 1}, 15},
	{1, [2]byte{1, 1}, 0},
	{1, [2]byte{0, 0}, 1},
	{1, [2]byte{0, 1}, 2},
	{1, [2]byte{1, 0}, 3},
	{1, [2]byte{1, 0}, 4},
	{1, [2]byte{0, 1}, 5},
	{1, [2]byte{0, 0}, 6},
	{1, [2]byte{1, 1}, 7},
	{1, [2]byte{1, 0}, 8},
	{1, [2]byte{0, 1}, 9},
	{1, [2]byte{0, 0}, 10},
	{1, [2]byte{1, 1}, 11},
	{1, [2]byte{1, 1}, 12},
	{1, [2]byte{0, 0}, 13},
	{1, [2]byte{0, 1}, 14},
	{1, [2]byte{1, 0}, 15},
}

// Puncture reports, for a given encoder step, whether generator outputs
// G1 and G2 survive puncturing.
type Puncture func(step int) (useG1, useG2 bool)

// P1 is the LSF puncturing schedule: a period-61 pattern that drops one
// of the two generator bits roughly every other step.
func P1(step int) (bool, bool) {
	mod61 := step % 61
	isEven := mod61%2 == 0
	return mod61 > 30 || isEven, mod61 < 30 || isEven
}

// P2 is the stream-payload puncturing schedule: G1 always survives, G2
// is dropped on every sixth step.
func P2(step int) (bool, bool) {
	return true, step%6 != 5
}

// P3 is the packet-payload puncturing schedule: G1 always survives, G2
// is dropped on every fourth step.
func P3(step int) (bool, bool) {
	return true, step%4 != 3
}

// maxTrellisSteps bounds the longest supported input (240 type-1 bits)
// plus the 4 flush bits appended by Encode.
const maxTrellisSteps = 244

// Encode runs the convolutional encoder over the first inputLen bits of
// type1 (MSB-first), appending 4 flush bits, and punctures the resulting
// generator stream with puncture. The returned 46-byte buffer holds up
// to 368 type-3 bits; the caller knows how many are populated from
// inputLen and the puncturing schedule in use.
func Encode(type1 []byte, inputLen int, puncture Puncture) [46]byte {
	var out [46]byte
	outIdx := 0
	var state byte
	for i := 0; i < inputLen+4; i++ {
		var b byte
		if i < inputLen {
			b = byte(bitops.GetBit(type1, i))
		}
		useG1, useG2 := puncture(i)
		if useG1 {
			g1 := (b + ((state & 0x02) >> 1) + (state & 0x01)) & 0x01
			bitops.SetBit(out[:], outIdx, int(g1))
			outIdx++
		}
		if useG2 {
			g2 := (b + ((state & 0x08) >> 3) + ((state & 0x04) >> 2) + (state & 0x01)) & 0x01
			bitops.SetBit(out[:], outIdx, int(g2))
			outIdx++
		}
		state = (state >> 1) | (b << 3)
	}
	return out
}

// Decode Viterbi-decodes a type-3 bit stream (as produced by Encode) back
// to the original inputLen type-1 bits, returning ok=false if the best
// surviving path's Hamming-distance score exceeds 6 (too many bit
// errors to trust the result).
func Decode(type3 []byte, inputLen int, puncture Puncture) (out [30]byte, ok bool) {
	steps := inputLen + 4
	var table [maxTrellisSteps][32]byte
	bitIdx := 0
	nextBit := func() byte {
		b := byte(bitops.GetBit(type3, bitIdx))
		bitIdx++
		return b
	}
	for step := 0; step < steps; step++ {
		useG1, useG2 := puncture(step)
		var stepInput [2]byte
		var stepLen int
		stepInput[0] = nextBit()
		stepLen = 1
		if useG1 && useG2 {
			stepInput[1] = nextBit()
			stepLen = 2
		}
		for tIdx, t := range transitions {
			var offer [2]byte
			var offerLen int
			switch {
			case useG1 && useG2:
				offer, offerLen = t.output, 2
			case useG1:
				offer[0], offerLen = t.output[0], 1
			default:
				offer[0], offerLen = t.output[1], 1
			}
			dist := hammingDistance(stepInput[:stepLen], offer[:offerLen])
			table[step][tIdx] = saturatingAdd(bestPrevious(&table, step, t.source), dist)
		}
	}
	bestIdx, best := 0, byte(255)
	for idx, score := range table[steps-1] {
		if score < best {
			best, bestIdx = score, idx
		}
	}
	if best > 6 {
		return out, false
	}
	for step := steps - 1; step >= 0; step-- {
		input := transitions[bestIdx].input
		if step < inputLen {
			bitops.SetBit(out[:], step, int(input))
		}
		if step > 0 {
			state := transitions[bestIdx].source
			prev1 := table[step-1][state*2]
			prev2 := table[step-1][state*2+1]
			if prev1 < prev2 {
				bestIdx = state * 2
			} else {
				bestIdx = state*2 + 1
			}
		}
	}
	return out, true
}

func bestPrevious(table *[maxTrellisSteps][32]byte, step, state int) byte {
	if step == 0 {
		if state == 0 {
			return 0
		}
		return 255
	}
	prev1 := table[step-1][state*2]
	prev2 := table[step-1][state*2+1]
	if prev1 < prev2 {
		return prev1
	}
	return prev2
}

func hammingDistance(a, b []byte) byte {
	var d byte
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

func saturatingAdd(a, b byte) byte {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return byte(sum)
}
