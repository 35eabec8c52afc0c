package fec

import "testing"

func TestLSFFECRoundTrip(t *testing.T) {
	lsf := []byte{
		255, 255, 255, 255, 255, 255, 0, 0, 0, 159, 221, 81, 5, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 131, 53,
	}
	wantEncoded := [46]byte{
		222, 73, 36, 146, 73, 37, 182, 219, 109, 76, 0, 0, 0, 5, 191, 47, 25, 186, 30, 214,
		237, 110, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 42, 153, 208,
		119,
	}

	encoded := Encode(lsf, 240, P1)
	if encoded != wantEncoded {
		t.Fatalf("Encode() = %v, want %v", encoded, wantEncoded)
	}

	decoded, ok := Decode(encoded[:], 240, P1)
	if !ok {
		t.Fatal("Decode() ok = false, want true")
	}
	for i, b := range lsf {
		if decoded[i] != b {
			t.Fatalf("decoded[%d] = %d, want %d", i, decoded[i], b)
		}
	}
}

func TestFECDamageTolerance(t *testing.T) {
	lsf := []byte{
		255, 255, 255, 255, 255, 255, 0, 0, 0, 159, 221, 81, 5, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 131, 53,
	}
	encoded := Encode(lsf, 240, P1)

	// Progressively flip more bits; recovery should hold until the
	// seventh cumulative flip, which pushes the path score past 6.
	flips := []int{50, 90, 51, 200, 15, 7, 100}
	for _, idx := range flips {
		bit := getBit(encoded[:], idx)
		setBit(encoded[:], idx, 1-bit)
		decoded, ok := Decode(encoded[:], 240, P1)
		if idx == 100 {
			if ok {
				t.Fatalf("Decode() ok = true after 7 flips, want false")
			}
			continue
		}
		if !ok {
			t.Fatalf("Decode() ok = false after flip at %d, want true", idx)
		}
		for i, b := range lsf {
			if decoded[i] != b {
				t.Fatalf("decoded[%d] = %d, want %d after flip at %d", i, decoded[i], b, idx)
			}
		}
	}
}

func getBit(buf []byte, i int) int {
	return int(buf[i/8]>>(7-uint(i%8))) & 1
}

func setBit(buf []byte, i, v int) {
	mask := byte(1) << (7 - uint(i%8))
	if v != 0 {
		buf[i/8] |= mask
	} else {
		buf[i/8] &^= mask
	}
}

func TestStreamAndPacketPuncture(t *testing.T) {
	// P2 keeps G2 on 5 of every 6 steps; P3 keeps G2 on 3 of every 4.
	g2P2 := 0
	for step := 0; step < 148; step++ {
		if _, use := P2(step); use {
			g2P2++
		}
	}
	if want := 148 - 148/6; g2P2 != want {
		t.Errorf("P2 G2 count over 148 steps = %d, want %d", g2P2, want)
	}

	g2P3 := 0
	for step := 0; step < 210; step++ {
		if _, use := P3(step); use {
			g2P3++
		}
	}
	if want := 210 - 210/4; g2P3 != want {
		t.Errorf("P3 G2 count over 210 steps = %d, want %d", g2P3, want)
	}
}

func TestStreamFECOutputWidth(t *testing.T) {
	// 144 type-1 bits + 4 flush = 148 steps through P2: G1 every step
	// (148 bits) plus G2 on all but every 6th step (148 - 24 = 124),
	// for 272 total type-3 bits -- the stream payload width before the
	// 96-bit Golay-coded LICH is prepended to reach the 368-bit frame.
	payload := make([]byte, 18)
	encoded := Encode(payload, 144, P2)
	bits := 0
	for step := 0; step < 148; step++ {
		useG1, useG2 := P2(step)
		if useG1 {
			bits++
		}
		if useG2 {
			bits++
		}
	}
	if bits != 272 {
		t.Fatalf("stream type-3 width = %d, want 272", bits)
	}
	decoded, ok := Decode(encoded[:], 144, P2)
	if !ok {
		t.Fatal("Decode() ok = false, want true")
	}
	for i := range payload {
		if decoded[i] != payload[i] {
			t.Fatalf("decoded[%d] = %d, want %d", i, decoded[i], payload[i])
		}
	}
}

func TestPacketFECOutputWidth(t *testing.T) {
	// 206 type-1 bits + 4 flush = 210 steps through P3: G1 every step
	// (210 bits) plus G2 on all but every 4th step (210 - 52 = 158),
	// for 368 total type-3 bits -- the full packet frame width with no
	// separate LICH field.
	payload := make([]byte, 26)
	bits := 0
	for step := 0; step < 210; step++ {
		useG1, useG2 := P3(step)
		if useG1 {
			bits++
		}
		if useG2 {
			bits++
		}
	}
	if bits != 368 {
		t.Fatalf("packet type-3 width = %d, want 368", bits)
	}
	encoded := Encode(payload, 206, P3)
	decoded, ok := Decode(encoded[:], 206, P3)
	if !ok {
		t.Fatal("Decode() ok = false, want true")
	}
	for i := range payload {
		if decoded[i] != payload[i] {
			t.Fatalf("decoded[%d] = %d, want %d", i, decoded[i], payload[i])
		}
	}
}
