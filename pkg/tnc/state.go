// Package tnc implements the M17 TNC core: the RX state machine that
// turns decoded frames into KISS output, the TX queues and CSMA
// p-persistence gate that turn host KISS input into modulator frame
// requests, and PTT timing.
package tnc

import "m17/pkg/m17frame"

// State is one of the TNC's lifecycle states. It is per-TNC, not
// per-session: a single state machine governs both RX and TX.
type State int

const (
	StateIdle State = iota
	StateRxAcquiringStream
	StateRxStream
	StateRxPacket
	StateTxStream
	StateTxStreamSentEndOfStream
	StateTxPacket
	StateTxEnding
	StateTxEndingAtTime
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRxAcquiringStream:
		return "RxAcquiringStream"
	case StateRxStream:
		return "RxStream"
	case StateRxPacket:
		return "RxPacket"
	case StateTxStream:
		return "TxStream"
	case StateTxStreamSentEndOfStream:
		return "TxStreamSentEndOfStream"
	case StateTxPacket:
		return "TxPacket"
	case StateTxEnding:
		return "TxEnding"
	case StateTxEndingAtTime:
		return "TxEndingAtTime"
	default:
		return "Unknown"
	}
}

// rxPacketState holds the accumulator for an in-progress RxPacket
// reception.
type rxPacketState struct {
	lsf   m17frame.LSF
	buf   [825]byte
	count int
}

// rxStreamState holds the accumulator for an in-progress RxStream (or
// RxAcquiringStream) reception.
type rxStreamState struct {
	lsf   m17frame.LSF
	index uint16
	lich  m17frame.LichCollection
}

// KissEmitter receives KISS-framed bytes destined for the host.
type KissEmitter func(frame []byte)

// TNC owns the RX state machine, TX ring buffers, CSMA gate and PTT
// line for one over-the-air link.
type TNC struct {
	state State

	rxPacket rxPacketState
	rxStream rxStreamState

	packetQueue packetQueue
	streamQueue streamQueue
	pendingLSF  *m17frame.LSF

	txDelayUnits byte
	fullDuplex   bool
	pValue       byte // out of 255, p=0.25 default
	canFilter    *byte

	ptt bool

	csmaDeferred       bool
	csmaRecheckAt      int64
	csmaRecheckSamples int64
	rngState           uint32

	txEndAt int64

	emit KissEmitter
}

// New constructs a TNC with CSMA p=0.25 and the given host KISS
// emitter.
func New(emit KissEmitter) *TNC {
	return &TNC{
		state:    StateIdle,
		pValue:   64, // 0.25 * 256
		rngState: 0x2545F491,
		emit:     emit,
	}
}

// SetPersistence stores the CSMA p-persistence value as a byte out of
// 255 (KISS P-parameter convention).
func (t *TNC) SetPersistence(p byte) { t.pValue = p }

// SetSlotTime configures the CSMA recheck interval in milliseconds,
// converting to a sample count at the modem's fixed 48kHz clock.
func (t *TNC) SetSlotTime(ms int) {
	if ms <= 0 {
		return
	}
	t.csmaRecheckSamples = int64(ms) * 48
}

// csmaRecheckInterval returns the configured CSMA recheck interval in
// samples, falling back to the default until SetSlotTime is called.
func (t *TNC) csmaRecheckInterval() int64 {
	if t.csmaRecheckSamples <= 0 {
		return defaultCSMARecheckSamples
	}
	return t.csmaRecheckSamples
}

// State returns the current lifecycle state.
func (t *TNC) State() State { return t.state }

// PTT reports whether the transmitter is currently keyed.
func (t *TNC) PTT() bool { return t.ptt }

// SetTxDelay stores the TXDELAY command value (units of 10 ms).
func (t *TNC) SetTxDelay(units byte) { t.txDelayUnits = units }

// SetFullDuplex stores the FULLDUPLEX command value.
func (t *TNC) SetFullDuplex(full bool) { t.fullDuplex = full }

// SetCANFilter restricts RX acceptance to LSFs carrying the given
// Channel Access Number; frames with any other CAN are ignored. A nil
// filter (the default) accepts every CAN.
func (t *TNC) SetCANFilter(can *byte) { t.canFilter = can }

// acceptsCAN reports whether lsf's CAN passes the configured filter.
func (t *TNC) acceptsCAN(lsf m17frame.LSF) bool {
	return t.canFilter == nil || lsf.CAN() == *t.canFilter
}
