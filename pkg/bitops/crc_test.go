package bitops

import "testing"

func TestCRC16Vectors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty", []byte{}, 0xFFFF},
		{"A", []byte("A"), 0x206E},
		{"digits", []byte("123456789"), 0x772B},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CRC16(c.data); got != c.want {
				t.Errorf("CRC16(%q) = %#04x, want %#04x", c.data, got, c.want)
			}
		})
	}
}

func TestCRC16FullByteRange(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	if got := CRC16(data); got != 0x1C31 {
		t.Errorf("CRC16(0x00..0xFF) = %#04x, want 0x1C31", got)
	}
}

func TestCRC16Identity(t *testing.T) {
	samples := [][]byte{
		{},
		{0x00},
		[]byte("M17 is fun"),
		{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA},
	}
	for _, data := range samples {
		framed := AppendCRC(append([]byte{}, data...))
		if !VerifyCRC(framed) {
			t.Errorf("VerifyCRC(AppendCRC(%v)) = false, want true", data)
		}
	}
}

func TestBitRoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	for i := 0; i < 32; i++ {
		SetBit(buf, i, i%3)
		want := 0
		if i%3 != 0 {
			want = 1
		}
		if got := GetBit(buf, i); got != want {
			t.Errorf("GetBit(%d) = %d, want %d", i, got, want)
		}
	}
}
