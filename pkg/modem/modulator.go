package modem

import "m17/pkg/m17frame"

// ModulatorFrameKind discriminates the frame requests the TNC feeds to
// the modulator's pull API.
type ModulatorFrameKind int

const (
	ModFramePreamble ModulatorFrameKind = iota
	ModFrameLsf
	ModFrameStream
	ModFramePacket
	ModFrameEndOfTransmission
)

// ModulatorFrame is one unit of work the TNC hands to the modulator.
type ModulatorFrame struct {
	Kind        ModulatorFrameKind
	TxDelay10ms byte // valid when Kind == ModFramePreamble
	Symbols     m17frame.FrameSymbols
}

// OutputBuffer is the ring of i16 samples shared between the modulator
// (single writer, via Append) and the sound sink (single reader, via
// Drain), tracking whether the modulator is idle and the sink's
// reported output latency.
type OutputBuffer struct {
	samples []int16
	idling  bool
	latency int // samples of reported output latency
}

// Append adds samples to the tail of the buffer.
func (b *OutputBuffer) Append(samples []int16) {
	b.idling = false
	b.samples = append(b.samples, samples...)
}

// Drain removes and returns up to n samples from the head of the
// buffer, marking it idling if nothing remains.
func (b *OutputBuffer) Drain(n int) []int16 {
	if n > len(b.samples) {
		n = len(b.samples)
	}
	out := b.samples[:n]
	b.samples = b.samples[n:]
	if len(b.samples) == 0 {
		b.idling = true
	}
	return out
}

// QueuedSamples reports how many samples are currently buffered.
func (b *OutputBuffer) QueuedSamples() int { return len(b.samples) }

// SetLatency records the sink's currently reported output latency in
// samples.
func (b *OutputBuffer) SetLatency(n int) { b.latency = n }

// Idling reports whether the buffer has drained to empty.
func (b *OutputBuffer) Idling() bool { return b.idling || len(b.samples) == 0 }

// modulatorScale brings the zero-stuffed upsampled impulse train to
// approximately half full scale after RRC shaping.
const modulatorScale = 35461

// Action is one instruction the modulator returns to its caller after
// processing a frame.
type Action struct {
	SetIdle             *bool
	TransmissionWillEnd *int // sample offset, set exactly once per EOT
}

// Modulator is a pull-model sample source: the TNC supplies
// ModulatorFrame values and the modulator returns the resulting shaped
// i16 samples plus any housekeeping actions.
type Modulator struct {
	fir   [rrcTaps]float64
	firPW int
}

// NewModulator constructs a Modulator with a clean filter history.
func NewModulator() *Modulator { return &Modulator{} }

// Process expands one ModulatorFrame into shaped i16 samples. EOT
// frames additionally emit 80 trailing flush samples.
func (m *Modulator) Process(frame ModulatorFrame, outputLatency, queuedSamples int) ([]int16, []Action) {
	switch frame.Kind {
	case ModFramePreamble:
		delaySamples := int(frame.TxDelay10ms)*480 - outputLatency
		if delaySamples < 0 {
			delaySamples = 0
		}
		return make([]int16, delaySamples), nil
	case ModFrameEndOfTransmission:
		samples := m.shapeDibits(eotDibits())
		samples = append(samples, m.flush()...)
		offset := queuedSamples + outputLatency
		return samples, []Action{{TransmissionWillEnd: &offset}}
	default:
		return m.shapeSymbols(frame.Symbols), nil
	}
}

func eotDibits() [192]float64 {
	var d [192]float64
	sync := m17frame.SyncBytes(m17frame.SyncEOT)
	for i, v := range sync {
		d[i] = float64(v) / 3.0
	}
	return d
}

func (m *Modulator) shapeSymbols(symbols m17frame.FrameSymbols) []int16 {
	var d [192]float64
	for i, v := range symbols {
		d[i] = float64(v)
	}
	return m.shapeDibits(d)
}

// shapeDibits zero-stuffs each dibit 10x and runs it through the shared
// RRC filter, scaling to modulatorScale before shaping.
func (m *Modulator) shapeDibits(dibits [192]float64) []int16 {
	out := make([]int16, 0, len(dibits)*SamplesPerSymbol)
	for _, d := range dibits {
		impulse := d * modulatorScale
		for s := 0; s < SamplesPerSymbol; s++ {
			var in float64
			if s == 0 {
				in = impulse
			}
			out = append(out, m.filterSample(in))
		}
	}
	return out
}

func (m *Modulator) flush() []int16 {
	out := make([]int16, 0, rrcTaps-1)
	for i := 0; i < rrcTaps-1; i++ {
		out = append(out, m.filterSample(0))
	}
	return out
}

func (m *Modulator) filterSample(sample float64) int16 {
	m.fir[m.firPW] = sample
	sum := 0.0
	idx := m.firPW
	for _, tap := range rrcFilter {
		sum += m.fir[idx] * tap
		idx--
		if idx < 0 {
			idx = rrcTaps - 1
		}
	}
	m.firPW = (m.firPW + 1) % rrcTaps
	if sum > 32767 {
		sum = 32767
	}
	if sum < -32768 {
		sum = -32768
	}
	return int16(sum)
}
