package pttdriver

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"m17/pkg/logger"
)

// SerialLine selects which modem control line drives PTT on a serial
// port: RTS, or DTR for a second channel sharing the same port.
type SerialLine int

const (
	SerialRTS SerialLine = iota
	SerialDTR
)

// SerialControl drives PTT by toggling a serial port's RTS or DTR
// modem control line via TIOCMGET/TIOCMSET, the traditional method for
// interfacing a TNC to a radio's PTT input through a sound card cable.
type SerialControl struct {
	log    *logger.Logger
	f      *os.File
	line   SerialLine
	invert bool
}

// OpenSerial opens device (e.g. "/dev/ttyUSB0") for PTT control on the
// given modem control line.
func OpenSerial(log *logger.Logger, device string, line SerialLine, invert bool) (*SerialControl, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("pttdriver: open %s: %w", device, err)
	}
	return &SerialControl{
		log:    log.WithComponent("pttdriver"),
		f:      f,
		line:   line,
		invert: invert,
	}, nil
}

func (s *SerialControl) modemBit() int {
	if s.line == SerialDTR {
		return unix.TIOCM_DTR
	}
	return unix.TIOCM_RTS
}

func (s *SerialControl) SetPTT(on bool) error {
	on = invertIf(on, s.invert)
	s.log.Debug("ptt (serial)", logger.Bool("on", on))

	fd := int(s.f.Fd())
	bits, err := unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return fmt.Errorf("pttdriver: TIOCMGET: %w", err)
	}
	if on {
		bits |= s.modemBit()
	} else {
		bits &^= s.modemBit()
	}
	if err := unix.IoctlSetInt(fd, unix.TIOCMSET, bits); err != nil {
		return fmt.Errorf("pttdriver: TIOCMSET: %w", err)
	}
	return nil
}

func (s *SerialControl) Close() error {
	return s.f.Close()
}

var _ Control = (*SerialControl)(nil)
