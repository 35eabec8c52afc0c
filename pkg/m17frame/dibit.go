package m17frame

import "m17/pkg/bitops"

// payloadDibits is the number of data dibits per 192-dibit frame after
// the 8-dibit sync burst: 46 bytes * 4 dibits/byte.
const payloadDibits = 184

// dibitLevel maps a 2-bit symbol (msb, lsb read in stream order) to its
// transmitted PAM level.
func dibitLevel(msb, lsb int) float32 {
	switch {
	case msb == 0 && lsb == 0:
		return 1.0 / 3.0
	case msb == 0 && lsb == 1:
		return 1.0
	case msb == 1 && lsb == 0:
		return -1.0 / 3.0
	default:
		return -1.0
	}
}

// bitsForLevel is the hard-decision inverse of dibitLevel: it returns
// the (msb, lsb) pair whose level is closest to v.
func bitsForLevel(v float32) (msb, lsb int) {
	switch {
	case v >= 2.0/3.0:
		return 0, 1
	case v >= 0:
		return 0, 0
	case v >= -2.0/3.0:
		return 1, 0
	default:
		return 1, 1
	}
}

// bytesToSymbols expands a 46-byte (368-bit) buffer into 184 PAM symbol
// levels, two bits per symbol, MSB-first.
func bytesToSymbols(buf [46]byte) [payloadDibits]float32 {
	var out [payloadDibits]float32
	for i := 0; i < payloadDibits; i++ {
		msb := bitops.GetBit(buf[:], i*2)
		lsb := bitops.GetBit(buf[:], i*2+1)
		out[i] = dibitLevel(msb, lsb)
	}
	return out
}

// symbolsToBytes hard-decides 184 PAM symbol levels back into a 46-byte
// buffer.
func symbolsToBytes(symbols [payloadDibits]float32) [46]byte {
	var out [46]byte
	for i, v := range symbols {
		msb, lsb := bitsForLevel(v)
		bitops.SetBit(out[:], i*2, msb)
		bitops.SetBit(out[:], i*2+1, lsb)
	}
	return out
}
