package interleave

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestInterleaveIsInvolutionPair(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		var in [46]byte
		r.Read(in[:])
		interleaved := Interleave(in[:])
		back := Deinterleave(interleaved[:])
		if !bytes.Equal(in[:], back[:]) {
			t.Fatalf("trial %d: Deinterleave(Interleave(x)) != x", trial)
		}
	}
}

func TestInterleavePermutationIsBijective(t *testing.T) {
	seen := make(map[int]bool, frameBits)
	for i := 0; i < frameBits; i++ {
		p := permute(i)
		if p < 0 || p >= frameBits {
			t.Fatalf("permute(%d) = %d out of range", i, p)
		}
		if seen[p] {
			t.Fatalf("permute(%d) = %d collides with an earlier index", i, p)
		}
		seen[p] = true
	}
}

func TestScrambleIsSelfInverse(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for trial := 0; trial < 20; trial++ {
		var in [46]byte
		r.Read(in[:])
		scrambled := Scramble(in[:])
		back := Descramble(scrambled[:])
		if !bytes.Equal(in[:], back[:]) {
			t.Fatalf("trial %d: Descramble(Scramble(x)) != x", trial)
		}
	}
}
