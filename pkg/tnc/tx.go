package tnc

import (
	"m17/pkg/address"
	"m17/pkg/bitops"
	"m17/pkg/kiss"
	"m17/pkg/m17frame"
	"m17/pkg/modem"
)

// defaultCSMARecheckSamples is the fallback CSMA recheck interval (40ms
// at 48kHz) used until SetSlotTime configures a different one.
const defaultCSMARecheckSamples = 1920

// defaultPacketLSF addresses a raw port-0 frame from M17RT-PKT to the
// broadcast address, matching the host-protocol default for frames
// that arrive without their own LSF.
func defaultPacketLSF() m17frame.LSF {
	src := address.EncodeCallsign("M17RT-PKT")
	return m17frame.NewLSF(address.BroadcastAddress, src, false, m17frame.DataTypeData, m17frame.EncryptionNone, 0, 0, [14]byte{})
}

// WriteKiss feeds one decoded host KISS frame into the TX writer path.
func (t *TNC) WriteKiss(f kiss.Frame) {
	switch f.Command {
	case kiss.CommandTxDelay:
		if len(f.Payload) == 1 {
			t.SetTxDelay(f.Payload[0])
		}
		return
	case kiss.CommandFullDuplex:
		if len(f.Payload) == 1 {
			t.SetFullDuplex(f.Payload[0] != 0)
		}
		return
	case kiss.CommandP:
		if len(f.Payload) == 1 {
			t.pValue = f.Payload[0]
		}
		return
	}

	switch f.Port {
	case kiss.PortPacketBasic:
		t.enqueueBasicPacket(f.Payload)
	case kiss.PortPacketFull:
		t.enqueueFullPacket(f.Payload)
	case kiss.PortStream:
		t.handleStreamWrite(f.Payload)
	}
}

func (t *TNC) enqueueBasicPacket(payload []byte) {
	if len(payload) < 1 || payload[0] != 0x00 {
		return
	}
	body := bitops.AppendCRC(append([]byte{}, payload[1:]...))
	if len(body) > 825 {
		return
	}
	var pp pendingPacket
	pp.lsf = defaultPacketLSF()
	pp.dataLen = copy(pp.data[:], body)
	t.packetQueue.Push(pp)
}

func (t *TNC) enqueueFullPacket(payload []byte) {
	if len(payload) < m17frame.LSFSize {
		return
	}
	lsf, err := m17frame.ParseLSF(payload[:m17frame.LSFSize])
	if err != nil || !lsf.CheckCRC() {
		return
	}
	body := payload[m17frame.LSFSize:]
	if len(body) == 0 || len(body) > 825 {
		return
	}
	var pp pendingPacket
	pp.lsf = lsf
	pp.dataLen = copy(pp.data[:], body)
	t.packetQueue.Push(pp)
}

func (t *TNC) handleStreamWrite(payload []byte) {
	switch len(payload) {
	case m17frame.LSFSize:
		lsf, err := m17frame.ParseLSF(payload)
		if err != nil || !lsf.CheckCRC() {
			return
		}
		l := lsf
		t.pendingLSF = &l
	case 26:
		parsed, ok := kiss.ParseStreamDataPayload(payload)
		if !ok {
			return
		}
		t.streamQueue.Push(m17frame.StreamFrame{
			LichIdx:     parsed.LichIdx,
			LichPart:    parsed.LichPart,
			FrameNumber: parsed.FrameNumber,
			EndOfStream: parsed.EndOfStream,
			StreamData:  parsed.StreamData,
		})
	}
}

// DCDSource reports whether the channel is currently busy.
type DCDSource interface {
	DataCarrierDetect() bool
}

// ReadTxFrame is the modulator's pull entry point: given the current
// sample clock and carrier-sense state, it returns the next frame the
// modulator should transmit, if any.
func (t *TNC) ReadTxFrame(now int64, dcd DCDSource) (modem.ModulatorFrame, bool) {
	switch t.state {
	case StateIdle, StateRxStream, StateRxAcquiringStream, StateRxPacket:
		return t.admitIfPossible(now, dcd)
	case StateTxStream:
		return t.txStream()
	case StateTxStreamSentEndOfStream:
		t.state = StateTxEnding
		return modem.ModulatorFrame{Kind: modem.ModFrameEndOfTransmission}, true
	case StateTxPacket:
		return t.txPacket()
	case StateTxEnding:
		return modem.ModulatorFrame{}, false
	case StateTxEndingAtTime:
		if now >= t.txEndAt {
			t.ptt = false
			t.state = StateIdle
		}
		return modem.ModulatorFrame{}, false
	}
	return modem.ModulatorFrame{}, false
}

// OnTransmissionWillEnd converts StateTxEnding to StateTxEndingAtTime
// once the modulator reports the sample offset at which the last
// shaped sample of the transmission will be emitted.
func (t *TNC) OnTransmissionWillEnd(now int64, offsetSamples int) {
	if t.state == StateTxEnding {
		t.txEndAt = now + int64(offsetSamples)
		t.state = StateTxEndingAtTime
	}
}

func (t *TNC) hasPendingTx() bool {
	_, hasPacket := t.packetQueue.Peek()
	return hasPacket || t.pendingLSF != nil || t.streamQueue.full || t.streamQueue.head != t.streamQueue.tail
}

func (t *TNC) admitIfPossible(now int64, dcd DCDSource) (modem.ModulatorFrame, bool) {
	if !t.hasPendingTx() {
		return modem.ModulatorFrame{}, false
	}
	if !t.fullDuplex && dcd.DataCarrierDetect() {
		t.csmaDeferred = true
		t.csmaRecheckAt = now + t.csmaRecheckInterval()
		return modem.ModulatorFrame{}, false
	}
	if t.csmaDeferred {
		if now < t.csmaRecheckAt {
			return modem.ModulatorFrame{}, false
		}
		t.csmaDeferred = false
		if dcd.DataCarrierDetect() {
			t.csmaDeferred = true
			t.csmaRecheckAt = now + t.csmaRecheckInterval()
			return modem.ModulatorFrame{}, false
		}
		if !t.rollPersistence() {
			t.csmaDeferred = true
			t.csmaRecheckAt = now + t.csmaRecheckInterval()
			return modem.ModulatorFrame{}, false
		}
	}

	t.ptt = true
	if _, hasPacket := t.packetQueue.Peek(); hasPacket {
		t.state = StateTxPacket
	} else {
		t.state = StateTxStream
	}
	return modem.ModulatorFrame{Kind: modem.ModFramePreamble, TxDelay10ms: t.txDelayUnits}, true
}

// rollPersistence draws from a small xorshift PRNG seeded with a fixed
// constant in New, admitting with probability pValue/256.
func (t *TNC) rollPersistence() bool {
	t.rngState ^= t.rngState << 13
	t.rngState ^= t.rngState >> 17
	t.rngState ^= t.rngState << 5
	return byte(t.rngState) < t.pValue
}

func (t *TNC) txStream() (modem.ModulatorFrame, bool) {
	if t.pendingLSF != nil {
		lsf := *t.pendingLSF
		t.pendingLSF = nil
		return modem.ModulatorFrame{Kind: modem.ModFrameLsf, Symbols: m17frame.EncodeLSFFrame(lsf)}, true
	}
	f, ok := t.streamQueue.Pop()
	if !ok {
		return modem.ModulatorFrame{}, false
	}
	if f.EndOfStream {
		t.state = StateTxStreamSentEndOfStream
	}
	return modem.ModulatorFrame{Kind: modem.ModFrameStream, Symbols: m17frame.EncodeStreamFrame(f)}, true
}

func (t *TNC) txPacket() (modem.ModulatorFrame, bool) {
	pp, ok := t.packetQueue.Peek()
	if !ok {
		// No packet frame to send this poll; the generic
		// StateTxStreamSentEndOfStream handler emits the single EOT on
		// the next poll, matching txStream's deferral.
		t.state = StateTxStreamSentEndOfStream
		return modem.ModulatorFrame{}, false
	}
	if !pp.lsfSent {
		pp.lsfSent = true
		return modem.ModulatorFrame{Kind: modem.ModFrameLsf, Symbols: m17frame.EncodeLSFFrame(pp.lsf)}, true
	}
	return t.nextPacketChunk(pp)
}

func (t *TNC) nextPacketChunk(pp *pendingPacket) (modem.ModulatorFrame, bool) {
	sentBytes := pp.sentLen
	remaining := pp.dataLen - sentBytes
	if remaining <= 0 {
		t.packetQueue.Pop()
		if _, more := t.packetQueue.Peek(); more {
			return t.txPacket()
		}
		// Defer the single EOT to the generic StateTxStreamSentEndOfStream
		// handler on the next poll, matching txStream's deferral.
		t.state = StateTxStreamSentEndOfStream
		return modem.ModulatorFrame{}, false
	}
	if remaining <= 25 {
		var payload [25]byte
		copy(payload[:], pp.data[sentBytes:sentBytes+remaining])
		pf := m17frame.PacketFrame{Payload: payload, Counter: m17frame.PacketCounter{Final: true, PayloadLen: byte(remaining)}}
		pp.sentLen += remaining
		return modem.ModulatorFrame{Kind: modem.ModFramePacket, Symbols: m17frame.EncodePacketFrame(pf)}, true
	}
	var payload [25]byte
	copy(payload[:], pp.data[sentBytes:sentBytes+25])
	index := sentBytes / 25
	pf := m17frame.PacketFrame{Payload: payload, Counter: m17frame.PacketCounter{Final: false, Index: byte(index)}}
	pp.sentLen += 25
	return modem.ModulatorFrame{Kind: modem.ModFramePacket, Symbols: m17frame.EncodePacketFrame(pf)}, true
}
