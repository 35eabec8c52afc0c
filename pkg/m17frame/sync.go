package m17frame

// SyncBurst identifies which of the four frame sync patterns (or the
// preamble/EOT markers used only to drive carrier detect) a demodulated
// burst matched.
type SyncBurst int

const (
	SyncLSF SyncBurst = iota
	SyncBERT
	SyncStream
	SyncPacket
	SyncPreamble
	SyncEOT
)

// syncDibits holds each burst's 8 dibit values in {-3,-1,+1,+3}, as
// transmitted (not yet scaled to the unit-normalized symbol levels used
// during demodulation).
var syncDibits = map[SyncBurst][8]int8{
	SyncLSF:      {1, 1, 1, 1, -1, -1, 1, -1},
	SyncBERT:     {-1, 1, -1, -1, 1, 1, 1, 1},
	SyncStream:   {-1, -1, -1, -1, 1, 1, -1, 1},
	SyncPacket:   {1, -1, 1, 1, -1, -1, -1, -1},
	SyncPreamble: {1, -1, 1, -1, 1, -1, 1, -1},
	SyncEOT:      {1, 1, 1, 1, 1, 1, -1, 1},
}

// SyncBytes returns the burst's 8 dibit values, unpacked, exactly as
// held in syncDibits; sync bursts are defined directly in dibit units
// rather than as FEC-coded bits.
func SyncBytes(b SyncBurst) [8]int8 { return syncDibits[b] }
