package metrics

import (
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()
	if m == nil || m.Registry() == nil {
		t.Fatal("expected non-nil Metrics with a registry")
	}
}

func TestPacketAndByteCounters(t *testing.T) {
	m := New()
	m.PacketsReceived.Inc()
	m.PacketsReceived.Inc()
	m.PacketsSent.Inc()
	m.BytesReceived.Add(1024)
	m.BytesSent.Add(2048)

	if got := counterValue(t, m.PacketsReceived); got != 2 {
		t.Errorf("PacketsReceived = %v, want 2", got)
	}
	if got := counterValue(t, m.BytesReceived); got != 1024 {
		t.Errorf("BytesReceived = %v, want 1024", got)
	}
	if got := counterValue(t, m.BytesSent); got != 2048 {
		t.Errorf("BytesSent = %v, want 2048", got)
	}
}

func TestStreamOpenedAndClosedTrackActiveGauge(t *testing.T) {
	m := New()
	m.StreamOpened()
	if got := counterValue(t, m.StreamsActive); got != 1 {
		t.Errorf("StreamsActive = %v, want 1", got)
	}
	if got := counterValue(t, m.StreamsStarted); got != 1 {
		t.Errorf("StreamsStarted = %v, want 1", got)
	}
	m.StreamClosed()
	if got := counterValue(t, m.StreamsActive); got != 0 {
		t.Errorf("StreamsActive = %v, want 0", got)
	}
}

func TestSetReflectorConnected(t *testing.T) {
	m := New()
	m.SetReflectorConnected(true)
	if got := counterValue(t, m.ReflectorStatus); got != 1 {
		t.Errorf("ReflectorStatus = %v, want 1", got)
	}
	m.SetReflectorConnected(false)
	if got := counterValue(t, m.ReflectorStatus); got != 0 {
		t.Errorf("ReflectorStatus = %v, want 0", got)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.PacketsReceived.Inc()
			m.BytesReceived.Add(100)
		}()
	}
	wg.Wait()
	if got := counterValue(t, m.PacketsReceived); got != 10 {
		t.Errorf("PacketsReceived = %v, want 10", got)
	}
}
