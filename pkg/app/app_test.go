package app

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"m17/pkg/address"
	"m17/pkg/kiss"
	"m17/pkg/m17frame"
)

// loopbackTnc is an in-memory Tnc: writes loop back as reads, so the app's
// writer output can be observed by the reader path in tests. Every write
// is also recorded in written, which the reader path never drains.
type loopbackTnc struct {
	mu      sync.Mutex
	pending bytes.Buffer
	written bytes.Buffer
	started bool
	closed  bool
}

func (l *loopbackTnc) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending.Len() == 0 {
		return 0, nil
	}
	return l.pending.Read(p)
}

func (l *loopbackTnc) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.written.Write(p)
	return l.pending.Write(p)
}

func (l *loopbackTnc) Start() error { l.started = true; return nil }
func (l *loopbackTnc) Close() error { l.closed = true; return nil }

type recordingPacketAdapter struct {
	registered, removed, started, closed bool
	received                              [][]byte
}

func (r *recordingPacketAdapter) AdapterRegistered()                              { r.registered = true }
func (r *recordingPacketAdapter) AdapterRemoved()                                 { r.removed = true }
func (r *recordingPacketAdapter) TncStarted()                                     { r.started = true }
func (r *recordingPacketAdapter) TncClosed()                                      { r.closed = true }
func (r *recordingPacketAdapter) PacketReceived(_ m17frame.LSF, _ byte, p []byte) { r.received = append(r.received, p) }

func TestStartOnlyValidFromSetup(t *testing.T) {
	a := New(&loopbackTnc{})
	if err := a.Start(); err != nil {
		t.Fatalf("first Start() should succeed: %v", err)
	}
	if err := a.Start(); err != ErrInvalidStart {
		t.Fatalf("second Start() = %v, want ErrInvalidStart", err)
	}
	a.Close()
}

func TestCloseOnlyValidFromStarted(t *testing.T) {
	a := New(&loopbackTnc{})
	if err := a.Close(); err != ErrInvalidClose {
		t.Fatalf("Close() before Start() = %v, want ErrInvalidClose", err)
	}
	a.Start()
	if err := a.Close(); err != nil {
		t.Fatalf("Close() after Start() should succeed: %v", err)
	}
}

func TestRegisterAdapterNotifiesImmediately(t *testing.T) {
	a := New(&loopbackTnc{})
	pa := &recordingPacketAdapter{}
	a.RegisterPacketAdapter(pa)
	if !pa.registered {
		t.Fatal("RegisterPacketAdapter should call AdapterRegistered synchronously")
	}
	a.RemovePacketAdapter(pa)
	if !pa.removed {
		t.Fatal("RemovePacketAdapter should call AdapterRemoved synchronously")
	}
}

func TestTransmitPacketRejectsOversizedPayload(t *testing.T) {
	h := TransmitHandle{cmds: make(chan Command, 1)}
	lsf := m17frame.NewLSF(address.BroadcastAddress, address.EncodeCallsign("N0CALL"), false, m17frame.DataTypeData, m17frame.EncryptionNone, 0, 0, [14]byte{})
	err := h.TransmitPacket(lsf, []byte{0}, make([]byte, 823))
	if err != ErrPacketTooLarge {
		t.Fatalf("TransmitPacket() = %v, want ErrPacketTooLarge", err)
	}
}

func TestTransmitStreamStartProducesStreamSetupFrame(t *testing.T) {
	tnc := &loopbackTnc{}
	a := New(tnc)
	a.Start()
	defer a.Close()

	lsf := m17frame.NewLSF(address.BroadcastAddress, address.EncodeCallsign("N0CALL"), true, m17frame.DataTypeVoice, m17frame.EncryptionNone, 0, 0, [14]byte{})
	a.Transmit().TransmitStreamStart(lsf)

	want := kiss.NewStreamSetup(lsf.Bytes())

	time.Sleep(50 * time.Millisecond)

	tnc.mu.Lock()
	got := tnc.written.Bytes()
	tnc.mu.Unlock()
	if !bytes.Equal(got, want) {
		t.Errorf("writer output = %x, want %x", got, want)
	}
}
