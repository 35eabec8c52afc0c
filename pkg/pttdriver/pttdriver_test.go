package pttdriver

import (
	"testing"
	"time"

	"m17/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

type recordingControl struct {
	calls []bool
}

func (r *recordingControl) SetPTT(on bool) error {
	r.calls = append(r.calls, on)
	return nil
}
func (r *recordingControl) Close() error { return nil }

type fakeSource struct {
	on bool
}

func (f *fakeSource) PTT() bool { return f.on }

func TestNoopControlRejectsAfterClose(t *testing.T) {
	n := NewNoop(testLogger(), "chan0")
	if err := n.SetPTT(true); err != nil {
		t.Fatalf("SetPTT before close: %v", err)
	}
	n.Close()
	if err := n.SetPTT(true); err != ErrClosed {
		t.Fatalf("SetPTT after close = %v, want ErrClosed", err)
	}
}

func TestWatcherForwardsEdgesOnly(t *testing.T) {
	src := &fakeSource{}
	ctrl := &recordingControl{}
	w := NewWatcher(testLogger(), src, ctrl, 5*time.Millisecond)
	go w.Run()

	time.Sleep(20 * time.Millisecond)
	src.on = true
	time.Sleep(20 * time.Millisecond)
	src.on = false
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	time.Sleep(10 * time.Millisecond)

	if len(ctrl.calls) != 2 {
		t.Fatalf("expected exactly 2 edge transitions, got %d: %v", len(ctrl.calls), ctrl.calls)
	}
	if ctrl.calls[0] != true || ctrl.calls[1] != false {
		t.Fatalf("calls = %v, want [true false]", ctrl.calls)
	}
}

func TestInvertIf(t *testing.T) {
	if !invertIf(false, true) {
		t.Error("invertIf(false, true) should be true")
	}
	if invertIf(true, true) {
		t.Error("invertIf(true, true) should be false")
	}
	if invertIf(true, false) != true {
		t.Error("invertIf(true, false) should be true")
	}
}
