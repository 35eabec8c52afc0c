package m17frame

// StreamFrame is the payload-level representation of a 40 ms voice or
// data stream frame: the accompanying LICH fragment, a 15-bit frame
// counter with its end-of-stream flag, and 16 bytes of payload.
type StreamFrame struct {
	LichIdx     byte // 0..5
	LichPart    [5]byte
	FrameNumber uint16 // 0..0x7FFF, wraps
	EndOfStream bool
	StreamData  [16]byte
}

// streamPayloadLen is the width in bits of the FEC-coded inner payload
// (frame_number/EOS + stream_data), 18 bytes.
const streamPayloadLen = 144

// packInner packs FrameNumber/EndOfStream/StreamData into the 18-byte
// buffer that is convolutionally coded with P2.
func (s StreamFrame) packInner() [18]byte {
	var buf [18]byte
	fn := s.FrameNumber & 0x7FFF
	if s.EndOfStream {
		fn |= 0x8000
	}
	buf[0] = byte(fn >> 8)
	buf[1] = byte(fn)
	copy(buf[2:], s.StreamData[:])
	return buf
}

func unpackInner(buf [18]byte) (frameNumber uint16, eos bool, data [16]byte) {
	fn := uint16(buf[0])<<8 | uint16(buf[1])
	eos = fn&0x8000 != 0
	frameNumber = fn & 0x7FFF
	copy(data[:], buf[2:])
	return
}
