package m17frame

import "m17/pkg/fec"

// EncodeLICH packs a LICH counter (0..5) and a 5-byte LSF fragment into
// 4 extended-Golay(24,12) codewords: 4 x 12-bit words carrying the 40
// payload bits plus the 3-bit counter, each encoded to 3 bytes.
func EncodeLICH(counter byte, part [5]byte) [12]byte {
	toEncode := [4]uint16{
		uint16(part[0])<<4 | uint16(part[1])>>4,
		uint16(part[1]&0x0F)<<8 | uint16(part[2]),
		uint16(part[3])<<4 | uint16(part[4])>>4,
		uint16(part[4]&0x0F)<<8 | uint16(counter)<<5,
	}
	var out [12]byte
	for i, word := range toEncode {
		cw := fec.EncodeGolay(word)
		out[i*3] = byte(cw >> 16)
		out[i*3+1] = byte(cw >> 8)
		out[i*3+2] = byte(cw)
	}
	return out
}

// DecodeLICH reverses EncodeLICH, correcting up to 3 bit errors per
// 24-bit codeword. ok is false if any of the four codewords is
// uncorrectable.
func DecodeLICH(buf [12]byte) (counter byte, part [5]byte, ok bool) {
	var words [4]uint16
	for i := 0; i < 4; i++ {
		cw := uint32(buf[i*3])<<16 | uint32(buf[i*3+1])<<8 | uint32(buf[i*3+2])
		w, good := fec.DecodeGolay(cw)
		if !good {
			return 0, part, false
		}
		words[i] = w
	}
	part[0] = byte(words[0] >> 4)
	part[1] = byte(words[0]<<4) | byte(words[1]>>8)
	part[2] = byte(words[1])
	part[3] = byte(words[2] >> 4)
	part[4] = byte(words[2]<<4) | byte(words[3]>>8)
	counter = byte(words[3]>>5) & 0x07
	return counter, part, true
}

// LichCollection accumulates the six 5-byte LICH fragments that
// together reconstruct an LSF during mid-stream acquisition.
type LichCollection struct {
	parts [6]*[5]byte
}

// SetSegment stores a LICH fragment at its counter slot (0..5).
func (c *LichCollection) SetSegment(counter byte, part [5]byte) {
	if counter > 5 {
		return
	}
	p := part
	c.parts[counter] = &p
}

// Complete reports whether all 6 slots have been filled.
func (c *LichCollection) Complete() bool {
	for _, p := range c.parts {
		if p == nil {
			return false
		}
	}
	return true
}

// TryAssemble builds a 30-byte LSF candidate from the 6 slots, along
// with its own CRC-16 bytes appended at the end -- callers must still
// check CheckCRC before trusting the result, since a mis-acquired LICH
// sequence from different transmissions can assemble into garbage.
func (c *LichCollection) TryAssemble() (LSF, bool) {
	if !c.Complete() {
		return LSF{}, false
	}
	var buf [LSFSize]byte
	for i, p := range c.parts {
		copy(buf[i*5:i*5+5], p[:])
	}
	lsf, err := ParseLSF(buf[:])
	if err != nil {
		return LSF{}, false
	}
	return lsf, true
}

// Reset clears all six slots.
func (c *LichCollection) Reset() {
	for i := range c.parts {
		c.parts[i] = nil
	}
}
