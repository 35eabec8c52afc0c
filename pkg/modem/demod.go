package modem

import "m17/pkg/m17frame"

const (
	ringSize        = 1920
	symbolWindow    = 8
	gainMinimum     = 16.0
	symbolDeviation = 0.3
	diffThreshold   = 100.0
	dcdPreambleHold = 240
	dcdDataHold     = 3840
)

// syncTarget is one of the six patterns the demodulator correlates
// against: the four data sync bursts plus preamble/EOT (DCD-only).
type syncTarget struct {
	burst  m17frame.SyncBurst
	levels [8]float64
}

var syncTargets = buildSyncTargets()

func buildSyncTargets() []syncTarget {
	bursts := []m17frame.SyncBurst{
		m17frame.SyncLSF, m17frame.SyncBERT, m17frame.SyncStream, m17frame.SyncPacket,
		m17frame.SyncPreamble, m17frame.SyncEOT,
	}
	out := make([]syncTarget, len(bursts))
	for i, b := range bursts {
		dibits := m17frame.SyncBytes(b)
		var levels [8]float64
		for j, d := range dibits {
			levels[j] = float64(d)
		}
		out[i] = syncTarget{burst: b, levels: levels}
	}
	return out
}

// candidate tracks the best-scoring in-progress sync acquisition for
// one target as consecutive samples are evaluated.
type candidate struct {
	target   syncTarget
	bestDiff float64
	age      int
	active   bool
}

// DecodedFrame is emitted once a scheduled decode slice has been taken
// for a recognized sync burst. No FEC decoding happens here; the symbols
// are checked only when the caller decodes them.
type DecodedFrame struct {
	Burst   m17frame.SyncBurst
	Symbols m17frame.FrameSymbols
}

// Demodulator is a streaming push-sample demodulator: Push feeds raw
// i16 samples one at a time and returns any frame that completes on
// that sample.
type Demodulator struct {
	fir        [rrcTaps]float64
	firPos     int
	ring       [ringSize]float64
	ringPos    int
	ringFilled int

	candidates map[m17frame.SyncBurst]*candidate
	scheduled  bool
	scheduleAt int
	sampleN    int
	schedBurst m17frame.SyncBurst

	dcdUntil int
}

// NewDemodulator constructs a Demodulator ready to accept samples.
func NewDemodulator() *Demodulator {
	d := &Demodulator{candidates: make(map[m17frame.SyncBurst]*candidate)}
	for _, t := range syncTargets {
		d.candidates[t.burst] = &candidate{target: t}
	}
	return d
}

// DataCarrierDetect reports whether the demodulator currently considers
// the channel busy.
func (d *Demodulator) DataCarrierDetect() bool { return d.sampleN < d.dcdUntil }

// Push feeds one raw i16 sample through the FIR filter and the
// symbol-timing/sync-correlation pipeline, returning a decoded frame if
// one completes on this sample.
func (d *Demodulator) Push(sample int16) (DecodedFrame, bool) {
	filtered := d.filter(float64(sample))
	d.ring[d.ringPos] = filtered
	d.ringPos = (d.ringPos + 1) % ringSize
	if d.ringFilled < ringSize {
		d.ringFilled++
	}
	d.sampleN++

	if d.ringFilled >= symbolWindow*SamplesPerSymbol {
		d.evaluateSync()
	}

	if d.scheduled && d.sampleN >= d.scheduleAt {
		d.scheduled = false
		if symbols, ok := d.decodeAt(d.schedBurst); ok {
			return DecodedFrame{Burst: d.schedBurst, Symbols: symbols}, true
		}
	}
	return DecodedFrame{}, false
}

func (d *Demodulator) filter(sample float64) float64 {
	d.fir[d.firPos] = sample
	sum := 0.0
	idx := d.firPos
	for _, tap := range rrcFilter {
		sum += d.fir[idx] * tap
		idx--
		if idx < 0 {
			idx = rrcTaps - 1
		}
	}
	d.firPos = (d.firPos + 1) % rrcTaps
	return sum
}

// window returns the 8 most recent symbol-spaced filtered samples,
// oldest first.
func (d *Demodulator) window() [8]float64 {
	var w [8]float64
	for i := 0; i < 8; i++ {
		back := (8 - 1 - i) * SamplesPerSymbol
		pos := (d.ringPos - 1 - back + ringSize*4) % ringSize
		w[i] = d.ring[pos]
	}
	return w
}

func (d *Demodulator) evaluateSync() {
	w := d.window()
	minV, maxV := w[0], w[0]
	for _, v := range w {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	gain := (maxV - minV) / 2
	shift := maxV + minV

	for burst, c := range d.candidates {
		diff, ok := correlate(w, c.target.levels, gain, shift)
		isDCDOnly := burst == m17frame.SyncPreamble || burst == m17frame.SyncEOT
		if !ok {
			if c.active {
				d.maybeLock(c)
			}
			c.active = false
			continue
		}
		if isDCDOnly {
			d.dcdUntil = max(d.dcdUntil, d.sampleN+dcdPreambleHold)
			continue
		}
		if !c.active || diff < c.bestDiff {
			c.active = true
			c.bestDiff = diff
			c.age = 0
		} else {
			c.age++
			if c.age == 1 {
				d.lockCandidate(burst, c)
			}
		}
	}
}

func correlate(window [8]float64, targetLevels [8]float64, gain, shift float64) (diff float64, ok bool) {
	if gain < gainMinimum {
		return 0, false
	}
	sum := 0.0
	for i, lvl := range targetLevels {
		norm := (window[i] - shift/2) / gain
		want := lvl / 3.0
		dev := norm - want
		if dev < 0 {
			dev = -dev
		}
		if dev > symbolDeviation*3 {
			return 0, false
		}
		sum += dev
	}
	if sum >= diffThreshold {
		return sum, false
	}
	return sum, true
}

func (d *Demodulator) maybeLock(c *candidate) {
	if c.active {
		d.lockCandidate(c.target.burst, c)
	}
}

func (d *Demodulator) lockCandidate(burst m17frame.SyncBurst, c *candidate) {
	if !d.scheduled {
		d.scheduled = true
		d.scheduleAt = d.sampleN + (184 * SamplesPerSymbol) - c.age
		d.schedBurst = burst
	}
	d.dcdUntil = max(d.dcdUntil, d.sampleN+dcdDataHold)
	c.active = false
}

// decodeAt slices 192 post-filter values at stride SamplesPerSymbol,
// normalizes them, and returns the resulting frame symbols.
func (d *Demodulator) decodeAt(burst m17frame.SyncBurst) (m17frame.FrameSymbols, bool) {
	var out m17frame.FrameSymbols
	start := 9
	w := d.window()
	minV, maxV := w[0], w[0]
	for _, v := range w {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	gain := (maxV - minV) / 2
	shift := (maxV + minV) / 2
	if gain == 0 {
		return out, false
	}
	for i := 0; i < 192; i++ {
		back := start + i*SamplesPerSymbol
		pos := (d.ringPos - 1 - back + ringSize*4) % ringSize
		out[i] = float32((d.ring[pos] - shift) / gain)
	}
	return out, true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
