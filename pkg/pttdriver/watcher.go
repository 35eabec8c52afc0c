package pttdriver

import (
	"time"

	"m17/pkg/logger"
)

// PTTSource is the minimal surface the watcher needs from the TNC
// core: a way to ask whether the transmitter is currently keyed.
type PTTSource interface {
	PTT() bool
}

// Watcher polls a PTTSource at a fixed interval and forwards edge
// transitions to a Control. The TNC core has no notion of GPIO, serial
// ports, or hamlib; this is the glue a host binary wires in.
type Watcher struct {
	log     *logger.Logger
	source  PTTSource
	control Control
	poll    time.Duration
	stop    chan struct{}
}

// NewWatcher constructs a watcher polling every interval (typically a
// few milliseconds; PTT timing is not sample-accurate at this layer).
func NewWatcher(log *logger.Logger, source PTTSource, control Control, interval time.Duration) *Watcher {
	return &Watcher{
		log:     log.WithComponent("pttdriver"),
		source:  source,
		control: control,
		poll:    interval,
		stop:    make(chan struct{}),
	}
}

// Run blocks, polling until Stop is called. Intended to run in its own
// goroutine.
func (w *Watcher) Run() {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	last := false
	for {
		select {
		case <-w.stop:
			if last {
				w.control.SetPTT(false)
			}
			return
		case <-ticker.C:
			cur := w.source.PTT()
			if cur == last {
				continue
			}
			if err := w.control.SetPTT(cur); err != nil {
				w.log.Error("set ptt failed", logger.Error(err))
				continue
			}
			last = cur
		}
	}
}

// Stop ends the polling loop, releasing PTT first if it was held.
func (w *Watcher) Stop() {
	close(w.stop)
}
