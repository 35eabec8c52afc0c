package m17frame

import "m17/pkg/interleave"

// BertFrame carries a BERT test pattern. Per scope, only sync-burst
// recognition is implemented; the pattern's bit content is opaque here.
type BertFrame struct {
	Payload [46]byte
}

// EncodeBertFrame produces the 192-symbol on-air frame for a BERT test
// pattern, applying only the interleaver and scrambler (BERT payloads
// are not convolutionally coded).
func EncodeBertFrame(b BertFrame) FrameSymbols {
	interleaved := interleave.Interleave(b.Payload[:])
	scrambled := interleave.Scramble(interleaved[:])
	return buildFrame(SyncBERT, scrambled)
}

// DecodeBertFrame extracts the raw (still interleaved+scrambled)
// payload bytes of a frame believed to be BERT-framed; callers that
// need the underlying test sequence are responsible for un-scrambling
// and validating it.
func DecodeBertFrame(f FrameSymbols) BertFrame {
	return BertFrame{Payload: symbolsToBytes(payloadOf(f))}
}
