// Package pttdriver holds hosted reference implementations of the PTT
// (push-to-talk) line driver the TNC core treats as an external
// collaborator: the core only ever asks "is PTT asserted" via
// TNC.PTT(); something in the host binary has to watch that and
// actually key the radio. Each implementation here is one way to do
// that.
package pttdriver

import (
	"errors"
	"fmt"

	"m17/pkg/logger"
)

// Control drives (and, where the hardware supports it, senses) one
// PTT/DCD pair for a single radio channel.
type Control interface {
	// SetPTT asserts or releases the transmit line.
	SetPTT(on bool) error
	// Close releases any underlying handle (GPIO line, serial port).
	Close() error
}

// DCDSensor additionally reports the state of a data-carrier-detect
// input line, for backends that wire one up (GPIO input, CM108 squelch
// pin). Not every Control implements this.
type DCDSensor interface {
	DataCarrierDetect() (bool, error)
}

var ErrClosed = errors.New("pttdriver: control closed")

// NoopControl logs the requested state transitions and does nothing
// else. It is the reference implementation for VOX-keyed or
// hamlib-less setups where nothing needs to be driven in software.
type NoopControl struct {
	log    *logger.Logger
	name   string
	closed bool
}

// NewNoop constructs a no-op PTT control identified by name in log
// output.
func NewNoop(log *logger.Logger, name string) *NoopControl {
	return &NoopControl{log: log.WithComponent("pttdriver"), name: name}
}

func (n *NoopControl) SetPTT(on bool) error {
	if n.closed {
		return ErrClosed
	}
	n.log.Debug("ptt (noop)", logger.String("channel", n.name), logger.Bool("on", on))
	return nil
}

func (n *NoopControl) Close() error {
	n.closed = true
	return nil
}

var _ Control = (*NoopControl)(nil)

func invertIf(on, invert bool) bool {
	if invert {
		return !on
	}
	return on
}

func (n *NoopControl) String() string { return fmt.Sprintf("noop(%s)", n.name) }
