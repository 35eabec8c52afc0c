// Package app hosts a TNC (of any implementation, RF or reflector-client)
// alongside a set of adapters that receive decoded frames and can request
// transmissions. It owns the reader/writer worker goroutines that bridge
// the TNC's byte stream to KISS frames and back.
package app

import (
	"errors"
	"sync"

	"m17/pkg/bitops"
	"m17/pkg/kiss"
	"m17/pkg/m17frame"
)

// Tnc is the minimal surface any TNC implementation (RF-attached or
// reflector-client) must expose to the app.
type Tnc interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Start() error
	Close() error
}

// PacketAdapter receives packet-mode events.
type PacketAdapter interface {
	AdapterRegistered()
	AdapterRemoved()
	TncStarted()
	TncClosed()
	PacketReceived(linkSetup m17frame.LSF, packetType byte, payload []byte)
}

// StreamAdapter receives voice/stream-mode events.
type StreamAdapter interface {
	AdapterRegistered()
	AdapterRemoved()
	TncStarted()
	TncClosed()
	StreamBegan(linkSetup m17frame.LSF)
	StreamData(frameNumber uint16, isFinal bool, payload [16]byte)
}

// Lifecycle is the app's Setup -> Started -> Closed state.
type Lifecycle int

const (
	Setup Lifecycle = iota
	Started
	Closed
)

var (
	ErrPacketTooLarge = errors.New("app: packet payload too large")
	ErrInvalidStart   = errors.New("app: start() is only valid from Setup")
	ErrInvalidClose   = errors.New("app: close() is only valid from Started")
)

// registry holds both adapter kinds behind one readers-writer lock.
// Notification is always against a snapshot slice taken under the read
// lock so a callback can never deadlock a concurrent register/remove.
type registry struct {
	mu      sync.RWMutex
	packet  []PacketAdapter
	stream  []StreamAdapter
}

func (r *registry) addPacket(a PacketAdapter) {
	r.mu.Lock()
	r.packet = append(r.packet, a)
	r.mu.Unlock()
	a.AdapterRegistered()
}

func (r *registry) addStream(a StreamAdapter) {
	r.mu.Lock()
	r.stream = append(r.stream, a)
	r.mu.Unlock()
	a.AdapterRegistered()
}

func (r *registry) removePacket(a PacketAdapter) {
	r.mu.Lock()
	for i, existing := range r.packet {
		if existing == a {
			r.packet = append(r.packet[:i], r.packet[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	a.AdapterRemoved()
}

func (r *registry) removeStream(a StreamAdapter) {
	r.mu.Lock()
	for i, existing := range r.stream {
		if existing == a {
			r.stream = append(r.stream[:i], r.stream[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	a.AdapterRemoved()
}

func (r *registry) snapshot() ([]PacketAdapter, []StreamAdapter) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := make([]PacketAdapter, len(r.packet))
	copy(p, r.packet)
	s := make([]StreamAdapter, len(r.stream))
	copy(s, r.stream)
	return p, s
}

// Command is one instruction sent to the writer worker.
type Command struct {
	Kiss  []byte
	Start bool
	Close bool
}

const transmitQueueCapacity = 128

// TransmitHandle is a clonable handle for requesting transmissions. Its
// channel is shared by every clone (copying the struct copies only the
// channel reference), matching the "clonable" requirement without an
// explicit Clone method.
type TransmitHandle struct {
	cmds chan Command
}

func (h TransmitHandle) sendKiss(frame []byte) { h.cmds <- Command{Kiss: frame} }

// TransmitPacket validates and enqueues a full-packet transmission:
// type_prefix ∥ payload, CRC16-terminated, at most 823 bytes before the
// CRC.
func (h TransmitHandle) TransmitPacket(linkSetup m17frame.LSF, typePrefix []byte, payload []byte) error {
	if len(typePrefix)+len(payload) > 823 {
		return ErrPacketTooLarge
	}
	body := make([]byte, 0, len(typePrefix)+len(payload)+2)
	body = append(body, typePrefix...)
	body = append(body, payload...)
	body = bitops.AppendCRC(body)
	lsfBytes := linkSetup.Bytes()
	h.sendKiss(kiss.NewFullPacket(lsfBytes, body))
	return nil
}

// TransmitStreamStart enqueues a stream-setup (LSF-only) KISS frame.
func (h TransmitHandle) TransmitStreamStart(linkSetup m17frame.LSF) {
	h.sendKiss(kiss.NewStreamSetup(linkSetup.Bytes()))
}

// TransmitStreamNext enqueues one stream-data KISS frame.
func (h TransmitHandle) TransmitStreamNext(frame m17frame.StreamFrame) {
	h.sendKiss(kiss.NewStreamData(frame.LichPart, frame.LichIdx, frame.FrameNumber, frame.EndOfStream, frame.StreamData))
}

// App hosts one TNC and its adapter set.
type App struct {
	tnc       Tnc
	adapters  registry
	lifecycle Lifecycle
	lifeMu    sync.Mutex

	handle TransmitHandle
	done   chan struct{}
}

// New constructs an App in the Setup state.
func New(tnc Tnc) *App {
	return &App{
		tnc:    tnc,
		handle: TransmitHandle{cmds: make(chan Command, transmitQueueCapacity)},
		done:   make(chan struct{}),
	}
}

// RegisterPacketAdapter adds a packet adapter and notifies it.
func (a *App) RegisterPacketAdapter(p PacketAdapter) { a.adapters.addPacket(p) }

// RegisterStreamAdapter adds a stream adapter and notifies it.
func (a *App) RegisterStreamAdapter(s StreamAdapter) { a.adapters.addStream(s) }

// RemovePacketAdapter removes a packet adapter and notifies it.
func (a *App) RemovePacketAdapter(p PacketAdapter) { a.adapters.removePacket(p) }

// RemoveStreamAdapter removes a stream adapter and notifies it.
func (a *App) RemoveStreamAdapter(s StreamAdapter) { a.adapters.removeStream(s) }

// Transmit returns the handle used to request transmissions.
func (a *App) Transmit() TransmitHandle { return a.handle }

// Start transitions Setup -> Started and launches the reader/writer
// workers. Valid only from Setup.
func (a *App) Start() error {
	a.lifeMu.Lock()
	if a.lifecycle != Setup {
		a.lifeMu.Unlock()
		return ErrInvalidStart
	}
	a.lifecycle = Started
	a.lifeMu.Unlock()

	if err := a.tnc.Start(); err != nil {
		return err
	}

	packetAdapters, streamAdapters := a.adapters.snapshot()
	for _, p := range packetAdapters {
		p.TncStarted()
	}
	for _, s := range streamAdapters {
		s.TncStarted()
	}

	go a.readerLoop()
	go a.writerLoop()
	return nil
}

// Close transitions Started -> Closed, stops the workers, and closes the
// TNC. Valid only from Started.
func (a *App) Close() error {
	a.lifeMu.Lock()
	if a.lifecycle != Started {
		a.lifeMu.Unlock()
		return ErrInvalidClose
	}
	a.lifecycle = Closed
	a.lifeMu.Unlock()

	a.handle.cmds <- Command{Close: true}
	close(a.done)

	packetAdapters, streamAdapters := a.adapters.snapshot()
	for _, p := range packetAdapters {
		p.TncClosed()
	}
	for _, s := range streamAdapters {
		s.TncClosed()
	}
	return a.tnc.Close()
}

func (a *App) readerLoop() {
	var buf kiss.Buffer
	chunk := make([]byte, 4096)
	for {
		select {
		case <-a.done:
			return
		default:
		}
		n, err := a.tnc.Read(chunk)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		buf.Write(chunk[:n])
		for {
			raw, ok := buf.NextFrame()
			if !ok {
				break
			}
			frame, err := kiss.DecodePayload(raw)
			if err != nil {
				continue
			}
			a.dispatch(frame)
		}
	}
}

func (a *App) dispatch(frame kiss.Frame) {
	if frame.Port != kiss.PortPacketFull && frame.Port != kiss.PortStream {
		return
	}
	packetAdapters, streamAdapters := a.adapters.snapshot()

	switch frame.Port {
	case kiss.PortPacketFull:
		if len(frame.Payload) < m17frame.LSFSize {
			return
		}
		lsf, err := m17frame.ParseLSF(frame.Payload[:m17frame.LSFSize])
		if err != nil {
			return
		}
		body := frame.Payload[m17frame.LSFSize:]
		if len(body) == 0 {
			return
		}
		for _, p := range packetAdapters {
			p.PacketReceived(lsf, body[0], body[1:])
		}
	case kiss.PortStream:
		switch len(frame.Payload) {
		case m17frame.LSFSize:
			lsf, err := m17frame.ParseLSF(frame.Payload)
			if err != nil {
				return
			}
			for _, s := range streamAdapters {
				s.StreamBegan(lsf)
			}
		case 26:
			parsed, ok := kiss.ParseStreamDataPayload(frame.Payload)
			if !ok {
				return
			}
			for _, s := range streamAdapters {
				s.StreamData(parsed.FrameNumber, parsed.EndOfStream, parsed.StreamData)
			}
		}
	}
}

func (a *App) writerLoop() {
	for cmd := range a.handle.cmds {
		if cmd.Close {
			return
		}
		if cmd.Start {
			a.tnc.Start()
			continue
		}
		if cmd.Kiss != nil {
			a.tnc.Write(cmd.Kiss)
		}
	}
}
