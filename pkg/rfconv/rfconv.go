// Package rfconv implements the two stateful converters that sit between
// a reflector connection and an RF-facing TNC: NetworkToRf turns inbound
// Voice datagrams into StreamFrames (regenerating the LICH rotation),
// and RfToNetwork turns outbound StreamFrames into Voice datagrams
// (owning the stream_id).
package rfconv

import (
	"m17/pkg/m17frame"
	"m17/pkg/reflector"
)

// NetworkToRf reconstructs the LICH rotation for a reflector voice stream
// as it's handed to an RF TNC for transmission.
type NetworkToRf struct {
	hasLSF  bool
	lsf     m17frame.LSF
	lichCnt byte
}

// Frame is one converted result: an optional freshly-seen LSF (emitted
// only the first time, or when the cached LSF changes) and the stream
// frame built from the current datagram.
type Frame struct {
	LSF      *m17frame.LSF
	Stream   m17frame.StreamFrame
}

// Push converts one inbound Voice datagram. On end-of-stream the cached
// LSF is dropped so the next transmission is treated as new.
func (n *NetworkToRf) Push(v reflector.Voice) Frame {
	lsf := v.LinkSetupFrame()
	var out Frame

	if !n.hasLSF || lsf.Bytes() != n.lsf.Bytes() {
		n.lichCnt = 0
		n.lsf = lsf
		n.hasLSF = true
		emitted := lsf
		out.LSF = &emitted
	}

	lsfBytes := n.lsf.Bytes()
	var part [5]byte
	copy(part[:], lsfBytes[int(n.lichCnt)*5:int(n.lichCnt)*5+5])

	payload := v.Payload()
	out.Stream = m17frame.StreamFrame{
		LichIdx:     n.lichCnt,
		LichPart:    part,
		FrameNumber: v.FrameNumber(),
		EndOfStream: v.EndOfStream(),
		StreamData:  payload,
	}

	n.lichCnt = (n.lichCnt + 1) % 6
	if v.EndOfStream() {
		n.hasLSF = false
	}
	return out
}

// RfToNetwork turns an RF-side voice transmission into Voice datagrams
// for a reflector, owning the stream_id counter.
type RfToNetwork struct {
	hasLSF   bool
	lsf      m17frame.LSF
	streamID uint16
}

// Push converts one outgoing StreamFrame, given the LSF currently in
// effect for the transmission. The stream_id is incremented whenever the
// LSF changes from the cached one.
func (r *RfToNetwork) Push(lsf m17frame.LSF, frame m17frame.StreamFrame) reflector.Voice {
	if !r.hasLSF || lsf.Bytes() != r.lsf.Bytes() {
		r.lsf = lsf
		r.hasLSF = true
		r.streamID++
	}

	v := reflector.NewVoice()
	v.SetStreamID(r.streamID)
	v.SetLinkSetupFrame(r.lsf)
	v.SetFrameNumber(frame.FrameNumber, frame.EndOfStream)
	v.SetPayload(frame.StreamData)

	if frame.EndOfStream {
		r.hasLSF = false
	}
	return v
}
