package tnc

import (
	"m17/pkg/kiss"
	"m17/pkg/m17frame"
)

// HandleFrame feeds one demodulated frame into the RX state machine.
// Frames arriving while PTT is asserted are ignored (self-decodes
// during TX are never processed).
func (t *TNC) HandleFrame(burst m17frame.SyncBurst, symbols m17frame.FrameSymbols) {
	if t.ptt {
		return
	}
	switch burst {
	case m17frame.SyncLSF:
		if lsf, ok := m17frame.DecodeLSFFrame(symbols); ok {
			t.handleLSF(lsf)
		}
	case m17frame.SyncStream:
		if sf, ok := m17frame.DecodeStreamFrame(symbols); ok {
			t.handleStream(sf)
		}
	case m17frame.SyncPacket:
		if pf, ok := m17frame.DecodePacketFrame(symbols); ok {
			t.handlePacket(pf)
		}
	}
}

func (t *TNC) handleLSF(lsf m17frame.LSF) {
	if !lsf.CheckCRC() || !t.acceptsCAN(lsf) {
		return
	}
	if lsf.IsStream() {
		t.emit(kiss.NewStreamSetup(lsf.Bytes()))
		t.state = StateRxStream
		t.rxStream = rxStreamState{lsf: lsf, index: 0}
		return
	}
	t.state = StateRxPacket
	t.rxPacket = rxPacketState{lsf: lsf}
}

func (t *TNC) handlePacket(p m17frame.PacketFrame) {
	if t.state != StateRxPacket {
		return
	}
	rp := &t.rxPacket
	if !p.Counter.Final {
		if int(p.Counter.Index) != rp.count || rp.count >= 32 {
			t.state = StateIdle
			return
		}
		copy(rp.buf[25*rp.count:25*rp.count+25], p.Payload[:])
		rp.count++
		return
	}
	n := int(p.Counter.PayloadLen)
	copy(rp.buf[25*rp.count:25*rp.count+n], p.Payload[:n])
	body := make([]byte, 0, 30+25*rp.count+n)
	lsfBytes := rp.lsf.Bytes()
	body = append(body, lsfBytes[:]...)
	body = append(body, rp.buf[:25*rp.count+n]...)
	t.emit(kiss.Encode(kiss.PortPacketFull, kiss.CommandData, body))
	t.state = StateIdle
}

func (t *TNC) handleStream(s m17frame.StreamFrame) {
	switch t.state {
	case StateRxStream:
		if s.FrameNumber < t.rxStream.index {
			// Likely a new transmission from another station, arriving
			// mid-stream; re-acquire via LICH instead of treating this
			// as a wrapped counter.
			t.rxStream.lich = m17frame.LichCollection{}
			t.rxStream.lich.SetSegment(s.LichIdx, s.LichPart)
			t.state = StateRxAcquiringStream
			return
		}
		t.rxStream.index = s.FrameNumber + 1
		t.emit(kiss.NewStreamData(s.LichPart, s.LichIdx, s.FrameNumber, s.EndOfStream, s.StreamData))
		if s.EndOfStream {
			t.state = StateIdle
		}
	case StateRxAcquiringStream:
		t.rxStream.lich.SetSegment(s.LichIdx, s.LichPart)
		if t.rxStream.lich.Complete() {
			if lsf, ok := t.rxStream.lich.TryAssemble(); ok && lsf.CheckCRC() {
				t.rxStream.lsf = lsf
				t.rxStream.index = s.FrameNumber + 1
				t.emit(kiss.NewStreamSetup(lsf.Bytes()))
				t.state = StateRxStream
			}
			// Bad CRC: keep accumulating, never adopt.
		}
	}
}
