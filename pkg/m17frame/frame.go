// Frame-level encode/decode: each function takes a wire-level payload
// type (LSF, StreamFrame, PacketFrame) and produces or consumes the
// full 192-dibit on-air frame (8 sync dibits + 184 payload dibits),
// applying FEC, the quadratic-permutation interleaver and the PN
// scrambler in the order the over-the-air format requires.
package m17frame

import (
	"m17/pkg/fec"
	"m17/pkg/interleave"
)

// FrameSymbols is a full 192-dibit on-air frame, expressed as PAM
// symbol levels (sync dibits at their literal +-1/+-3 values, payload
// dibits normalized to +-1/+-1/3).
type FrameSymbols [192]float32

func buildFrame(sync SyncBurst, payload [46]byte) FrameSymbols {
	var out FrameSymbols
	s := syncDibits[sync]
	for i, v := range s {
		out[i] = float32(v)
	}
	symbols := bytesToSymbols(payload)
	copy(out[8:], symbols[:])
	return out
}

func payloadOf(f FrameSymbols) [payloadDibits]float32 {
	var p [payloadDibits]float32
	copy(p[:], f[8:])
	return p
}

// EncodeLSFFrame produces the 192-symbol on-air frame for an LSF.
func EncodeLSFFrame(lsf LSF) FrameSymbols {
	type1 := lsf.Bytes()
	type3 := fec.Encode(type1[:], 240, fec.P1)
	interleaved := interleave.Interleave(type3[:])
	scrambled := interleave.Scramble(interleaved[:])
	return buildFrame(SyncLSF, scrambled)
}

// DecodeLSFFrame recovers an LSF from a 192-symbol on-air frame
// believed (by sync correlation) to be LSF-framed.
func DecodeLSFFrame(f FrameSymbols) (LSF, bool) {
	scrambled := symbolsToBytes(payloadOf(f))
	interleaved := interleave.Descramble(scrambled[:])
	type3 := interleave.Deinterleave(interleaved[:])
	out, ok := fec.Decode(type3[:], 240, fec.P1)
	if !ok {
		return LSF{}, false
	}
	lsf, err := ParseLSF(out[:LSFSize])
	if err != nil {
		return LSF{}, false
	}
	return lsf, true
}

// EncodeStreamFrame produces the 192-symbol on-air frame for a stream
// frame: a Golay-coded LICH fragment followed by the P2-punctured inner
// payload.
func EncodeStreamFrame(s StreamFrame) FrameSymbols {
	lich := EncodeLICH(s.LichIdx, s.LichPart)
	inner := s.packInner()
	type3 := fec.Encode(inner[:], streamPayloadLen, fec.P2)

	var combined [46]byte
	copy(combined[:12], lich[:])
	// type3's meaningful bits occupy the low 272 bits (34 bytes) of the
	// 46-byte buffer returned by Encode; pack them immediately after
	// the LICH.
	packBits(combined[12:], type3[:], 272)

	interleaved := interleave.Interleave(combined[:])
	scrambled := interleave.Scramble(interleaved[:])
	return buildFrame(SyncStream, scrambled)
}

// DecodeStreamFrame recovers a StreamFrame from a 192-symbol on-air
// frame believed to be stream-framed.
func DecodeStreamFrame(f FrameSymbols) (StreamFrame, bool) {
	scrambled := symbolsToBytes(payloadOf(f))
	interleaved := interleave.Descramble(scrambled[:])
	combined := interleave.Deinterleave(interleaved[:])

	var lich [12]byte
	copy(lich[:], combined[:12])
	lichIdx, lichPart, lichOK := DecodeLICH(lich)

	var type3 [34]byte
	unpackBits(type3[:], combined[12:], 272)
	var type3Padded [46]byte
	copy(type3Padded[:], type3[:])
	inner, ok := fec.Decode(type3Padded[:], streamPayloadLen, fec.P2)
	if !ok {
		return StreamFrame{}, false
	}
	var innerBuf [18]byte
	copy(innerBuf[:], inner[:18])
	frameNumber, eos, data := unpackInner(innerBuf)

	var s StreamFrame
	s.FrameNumber = frameNumber
	s.EndOfStream = eos
	s.StreamData = data
	if lichOK {
		s.LichIdx = lichIdx
		s.LichPart = lichPart
	}
	return s, true
}

// EncodePacketFrame produces the 192-symbol on-air frame for a packet
// frame. Packet frames carry no LICH; the full 368-bit payload is the
// P3-punctured code over the 206-bit (25-byte payload + 6-bit counter)
// inner buffer.
func EncodePacketFrame(p PacketFrame) FrameSymbols {
	inner := p.packInner()
	type3 := fec.Encode(inner[:], packetPayloadLen, fec.P3)
	interleaved := interleave.Interleave(type3[:])
	scrambled := interleave.Scramble(interleaved[:])
	return buildFrame(SyncPacket, scrambled)
}

// DecodePacketFrame recovers a PacketFrame from a 192-symbol on-air
// frame believed to be packet-framed.
func DecodePacketFrame(f FrameSymbols) (PacketFrame, bool) {
	scrambled := symbolsToBytes(payloadOf(f))
	interleaved := interleave.Descramble(scrambled[:])
	type3 := interleave.Deinterleave(interleaved[:])
	out, ok := fec.Decode(type3[:], packetPayloadLen, fec.P3)
	if !ok {
		return PacketFrame{}, false
	}
	var inner [26]byte
	copy(inner[:], out[:26])
	return unpackPacketInner(inner), true
}

// packBits copies the first n bits of src (MSB-first) into dst starting
// at bit 0.
func packBits(dst, src []byte, n int) {
	for i := 0; i < n; i++ {
		setBitAt(dst, i, getBitAt(src, i))
	}
}

// unpackBits is the inverse of packBits.
func unpackBits(dst, src []byte, n int) {
	for i := 0; i < n; i++ {
		setBitAt(dst, i, getBitAt(src, i))
	}
}

func getBitAt(buf []byte, i int) int {
	return int(buf[i/8]>>(7-uint(i%8))) & 1
}

func setBitAt(buf []byte, i, v int) {
	mask := byte(1) << (7 - uint(i%8))
	if v != 0 {
		buf[i/8] |= mask
	} else {
		buf[i/8] &^= mask
	}
}
