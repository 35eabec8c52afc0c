package modem

import (
	"testing"

	"m17/pkg/m17frame"
)

func TestOutputBufferIdling(t *testing.T) {
	var buf OutputBuffer
	if !buf.Idling() {
		t.Fatal("new OutputBuffer should start idling")
	}
	buf.Append([]int16{1, 2, 3})
	if buf.Idling() {
		t.Fatal("Idling() = true right after Append")
	}
	if got := buf.QueuedSamples(); got != 3 {
		t.Fatalf("QueuedSamples() = %d, want 3", got)
	}
	buf.Drain(3)
	if !buf.Idling() {
		t.Fatal("Idling() = false after draining all samples")
	}
}

func TestModulatorPreambleAppliesTxDelay(t *testing.T) {
	m := NewModulator()
	samples, _ := m.Process(ModulatorFrame{Kind: ModFramePreamble, TxDelay10ms: 5}, 0, 0)
	if len(samples) != 5*480 {
		t.Fatalf("preamble delay samples = %d, want %d", len(samples), 5*480)
	}
}

func TestModulatorEmitsTransmissionWillEndOnce(t *testing.T) {
	m := NewModulator()
	_, actions := m.Process(ModulatorFrame{Kind: ModFrameEndOfTransmission}, 100, 50)
	found := false
	for _, a := range actions {
		if a.TransmissionWillEnd != nil {
			found = true
			if *a.TransmissionWillEnd != 150 {
				t.Errorf("TransmissionWillEnd offset = %d, want 150", *a.TransmissionWillEnd)
			}
		}
	}
	if !found {
		t.Fatal("expected a TransmissionWillEnd action from an EOT frame")
	}
}

func TestModulatorProducesSamplesForLSFFrame(t *testing.T) {
	raw := []byte{
		255, 255, 255, 255, 255, 255, 0, 0, 0, 159, 221, 81, 5, 5, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 131, 53,
	}
	lsf, err := m17frame.ParseLSF(raw)
	if err != nil {
		t.Fatal(err)
	}
	symbols := m17frame.EncodeLSFFrame(lsf)
	m := NewModulator()
	samples, _ := m.Process(ModulatorFrame{Kind: ModFrameLsf, Symbols: symbols}, 0, 0)
	if len(samples) != 192*SamplesPerSymbol {
		t.Fatalf("len(samples) = %d, want %d", len(samples), 192*SamplesPerSymbol)
	}
}
