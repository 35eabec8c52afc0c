package fec

import "testing"

func TestGolayRoundTrip(t *testing.T) {
	for _, data := range []uint16{0, 1, 0x0AAA, 0x0555, 0x0FFF, 0x0123, 0x0FED} {
		cw := EncodeGolay(data)
		got, ok := DecodeGolay(cw)
		if !ok {
			t.Fatalf("DecodeGolay(EncodeGolay(%#03x)) ok = false", data)
		}
		if got != data {
			t.Fatalf("DecodeGolay(EncodeGolay(%#03x)) = %#03x", data, got)
		}
	}
}

func TestGolayLICHVector(t *testing.T) {
	// The four 12-bit words encoded by encode_lich(counter=2, part=[221,81,5,5,0]).
	cases := []struct {
		data uint16
		want uint32
	}{
		{0xDD5, 0xDD52A2},
		{0x105, 0x1055C8},
		{0x050, 0x050EFE},
		{0x040, 0x040D99},
	}
	for _, c := range cases {
		if got := EncodeGolay(c.data); got != c.want {
			t.Errorf("EncodeGolay(%#03x) = %#06x, want %#06x", c.data, got, c.want)
		}
	}
}

func TestGolayCorrectsThreeErrors(t *testing.T) {
	data := uint16(0x0C3A)
	cw := EncodeGolay(data)
	damaged := cw ^ (1<<2 | 1<<9 | 1<<17)
	got, ok := DecodeGolay(damaged)
	if !ok || got != data {
		t.Fatalf("DecodeGolay(3 errors) = %#03x, %v, want %#03x, true", got, ok, data)
	}
}

func TestGolayMinimumDistance(t *testing.T) {
	// Any two distinct codewords differ in at least 8 bit positions
	// (the extended code's minimum distance); spot check a sample.
	codewords := golayCodewords()
	for _, a := range []int{0, 1, 2, 0x800} {
		for _, b := range []int{0, 1, 2, 0x800} {
			if a == b {
				continue
			}
			if d := popcount(codewords[a] ^ codewords[b]); d < 8 {
				t.Errorf("distance(%#03x,%#03x) = %d, want >= 8", a, b, d)
			}
		}
	}
}
