package kiss

// Buffer incrementally reassembles KISS frames from an arbitrarily
// chunked byte stream. Callers append bytes with Write and call
// NextFrame to retrieve complete FEND..FEND slices as they become
// available; runs of consecutive FENDs are coalesced and the
// unconsumed tail is kept at the front of the buffer.
type Buffer struct {
	data          [MaxFrameLen]byte
	written       int
	firstReturned bool
}

// Write appends bytes to the buffer, discarding everything buffered so
// far and resyncing if it would overflow MaxFrameLen.
func (b *Buffer) Write(p []byte) {
	b.flushFirstFrame()
	for _, c := range p {
		if b.written >= MaxFrameLen {
			// Overflow without a closing FEND: discard everything and
			// resync on the next FEND we see.
			b.written = 0
		}
		b.data[b.written] = c
		b.written++
	}
}

// NextFrame returns the next complete FEND..FEND slice with a non-empty
// payload, or ok=false if none is available yet. The returned slice is
// only valid until the next call to Write or NextFrame.
func (b *Buffer) NextFrame() (frame []byte, ok bool) {
	b.flushFirstFrame()

	// Find the first FEND, discarding any leading garbage before it.
	i := 0
	for i < b.written && b.data[i] != FEND {
		i++
	}
	if i != 0 {
		b.moveToStart(i)
	}

	// Coalesce a run of leading FENDs down to one.
	i = 0
	for i < b.written && b.data[i] == FEND {
		i++
	}
	if i > 1 {
		b.moveToStart(i - 1)
	}

	if b.written >= 2 && b.data[0] == FEND && b.data[1] != FEND {
		i = 2
		for i < b.written && b.data[i] != FEND {
			i++
		}
		if i < b.written && b.data[i] == FEND {
			b.firstReturned = true
			return b.data[:i+1], true
		}
	}
	return nil, false
}

func (b *Buffer) flushFirstFrame() {
	if !b.firstReturned {
		return
	}
	b.firstReturned = false
	i := 2
	for i < b.written && b.data[i] != FEND {
		i++
	}
	if i >= b.written {
		// Shouldn't happen: the frame we returned ended in a FEND.
		b.written = 0
		return
	}
	for i+1 < b.written && b.data[i+1] == FEND {
		i++
	}
	b.moveToStart(i)
}

func (b *Buffer) moveToStart(idx int) {
	copy(b.data[0:b.written-idx], b.data[idx:b.written])
	b.written -= idx
}
