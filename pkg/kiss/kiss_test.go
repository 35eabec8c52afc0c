package kiss

import (
	"bytes"
	"testing"
)

func TestBufferCoalescesFendsAndYieldsFramesInOrder(t *testing.T) {
	f1 := []byte{FEND, 0x00, 'h', 'i', FEND}
	f2 := []byte{FEND, 0x00, 'b', 'y', 'e', FEND}
	stream := append(append(append([]byte{}, f1...), FEND, FEND), f2...)

	var buf Buffer
	var got [][]byte
	// Feed the stream in small, arbitrary chunks to exercise resumable
	// reassembly across Write boundaries.
	for i := 0; i < len(stream); i += 3 {
		end := i + 3
		if end > len(stream) {
			end = len(stream)
		}
		buf.Write(stream[i:end])
		for {
			frame, ok := buf.NextFrame()
			if !ok {
				break
			}
			cp := append([]byte{}, frame...)
			got = append(got, cp)
		}
	}

	if len(got) != 2 {
		t.Fatalf("got %d frames, want 2: %v", len(got), got)
	}
	if !bytes.Equal(got[0], f1) {
		t.Errorf("frame 0 = %v, want %v", got[0], f1)
	}
	if !bytes.Equal(got[1], f2) {
		t.Errorf("frame 1 = %v, want %v", got[1], f2)
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	payload := []byte{0x00, FEND, 0x01, FESC, 0x02}
	framed := Encode(PortPacketBasic, CommandData, payload)
	decoded, err := DecodePayload(framed)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.Port != PortPacketBasic || decoded.Command != CommandData {
		t.Fatalf("header = (%v,%v), want (%v,%v)", decoded.Port, decoded.Command, PortPacketBasic, CommandData)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("Payload = %v, want %v", decoded.Payload, payload)
	}
}

func TestStreamDataRoundTrip(t *testing.T) {
	lich := [5]byte{1, 2, 3, 4, 5}
	data := [16]byte{}
	for i := range data {
		data[i] = byte(i)
	}
	frame := NewStreamData(lich, 3, 1234, true, data)
	decoded, err := DecodePayload(frame)
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	parsed, ok := ParseStreamDataPayload(decoded.Payload)
	if !ok {
		t.Fatal("ParseStreamDataPayload ok = false")
	}
	if parsed.LichPart != lich || parsed.LichIdx != 3 || parsed.FrameNumber != 1234 ||
		!parsed.EndOfStream || parsed.StreamData != data {
		t.Fatalf("parsed = %+v", parsed)
	}
}
