// Package reflectorclient implements a TNC that behaves like an RF TNC
// toward the app but actually speaks UDP to an M17 reflector: it resolves
// and connects, runs the reflector's connect handshake, and bridges
// Voice/StreamFrame traffic through the rfconv converters.
package reflectorclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"m17/pkg/address"
	"m17/pkg/kiss"
	"m17/pkg/logger"
	"m17/pkg/m17frame"
	"m17/pkg/reflector"
	"m17/pkg/rfconv"
)

// Status is the outer connection state surfaced to callers.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusConnectRejected
	StatusForceDisconnect
	StatusClosed
)

const receiveTimeout = 30 * time.Second
const reconnectDelay = 10 * time.Second

// Client is a reflector-backed TNC: it presents Read/Write like an RF
// TNC, but relays over UDP to a reflector using the Connect handshake.
type Client struct {
	log          *logger.Logger
	hostport     string
	localAddr    address.Address
	module       byte

	conn   *net.UDPConn
	server *net.UDPAddr

	statusMu sync.RWMutex
	status   Status

	netToRf rfconv.NetworkToRf
	rfToNet rfconv.RfToNetwork

	readMu     sync.Mutex
	kissOut    chan []byte // host-bound KISS frames, drained by Read
	pendingLSF *m17frame.LSF

	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs a reflector-client TNC for the given "host:port" and
// local callsign/module.
func New(log *logger.Logger, hostport string, localCallsign string, module byte) *Client {
	return &Client{
		log:       log.WithComponent("reflectorclient"),
		hostport:  hostport,
		localAddr: address.EncodeCallsign(localCallsign),
		module:    module,
		kissOut:   make(chan []byte, 128),
		closed:    make(chan struct{}),
	}
}

// Status reports the current outer connection status.
func (c *Client) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

// Start connects to the reflector and runs the connection lifecycle in
// the background, reconnecting on timeout or rejection until the context
// is cancelled.
func (c *Client) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c.closed
		cancel()
	}()
	go c.run(ctx)
	return nil
}

func (c *Client) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := c.connectOnce(ctx); err != nil {
			c.log.Warn("reflector connection attempt failed", logger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	c.setStatus(StatusConnecting)

	serverAddr, err := net.ResolveUDPAddr("udp", c.hostport)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", c.hostport, err)
	}
	c.server = serverAddr

	conn, err := net.ListenUDP(serverAddr.Network(), nil)
	if err != nil {
		return fmt.Errorf("bind local udp socket: %w", err)
	}
	c.conn = conn
	defer conn.Close()

	connect := reflector.NewConnect(c.localAddr, c.module)
	connBytes := connect.Bytes()
	if _, err := conn.WriteToUDP(connBytes[:], serverAddr); err != nil {
		return fmt.Errorf("send CONN: %w", err)
	}

	msgs := make(chan reflector.ServerMessage, 32)
	readerDone := make(chan struct{})
	go c.readerLoop(conn, msgs, readerDone)
	defer func() { <-readerDone }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("reflector connection closed")
			}
			switch {
			case msg.ConnectAcknowledge != nil:
				c.setStatus(StatusConnected)
			case msg.ConnectNack != nil:
				c.setStatus(StatusConnectRejected)
				return nil
			case msg.ForceDisconnect != nil:
				c.setStatus(StatusForceDisconnect)
				return nil
			case msg.Voice != nil:
				c.handleVoice(*msg.Voice)
			case msg.Ping != nil:
				pong := reflector.NewPong(c.localAddr)
				pongBytes := pong.Bytes()
				conn.WriteToUDP(pongBytes[:], serverAddr)
			}
		case <-time.After(receiveTimeout):
			return fmt.Errorf("reflector receive timeout")
		}
	}
}

func (c *Client) readerLoop(conn *net.UDPConn, out chan<- reflector.ServerMessage, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	buf := make([]byte, 2048)
	for {
		conn.SetReadDeadline(time.Now().Add(receiveTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		msg, ok := reflector.ParseServerMessage(buf[:n])
		if !ok {
			continue
		}
		select {
		case out <- msg:
		default:
		}
	}
}

func (c *Client) handleVoice(v reflector.Voice) {
	result := c.netToRf.Push(v)
	if result.LSF != nil {
		c.emitKiss(kiss.NewStreamSetup(result.LSF.Bytes()))
	}
	f := result.Stream
	c.emitKiss(kiss.NewStreamData(f.LichPart, f.LichIdx, f.FrameNumber, f.EndOfStream, f.StreamData))
}

func (c *Client) emitKiss(frame []byte) {
	select {
	case c.kissOut <- frame:
	default:
	}
}

// Read implements the host-facing TNC surface: it returns queued
// KISS-framed bytes produced from reflector traffic.
func (c *Client) Read(p []byte) (int, error) {
	select {
	case frame := <-c.kissOut:
		return copy(p, frame), nil
	case <-c.closed:
		return 0, fmt.Errorf("reflectorclient: closed")
	default:
		return 0, nil
	}
}

// Write implements the host-facing TNC surface: host KISS writes are
// parsed for port-2 frames (LSF or stream data) and relayed via the
// RF->Network converter.
func (c *Client) Write(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	frame, err := kiss.DecodePayload(p)
	if err != nil {
		return len(p), nil
	}
	if frame.Port != kiss.PortStream {
		return len(p), nil
	}

	switch len(frame.Payload) {
	case m17frame.LSFSize:
		lsf, err := m17frame.ParseLSF(frame.Payload)
		if err == nil {
			c.pendingLSF = &lsf
		}
	case 26:
		parsed, ok := kiss.ParseStreamDataPayload(frame.Payload)
		if !ok || c.pendingLSF == nil {
			return len(p), nil
		}
		sf := m17frame.StreamFrame{
			LichIdx:     parsed.LichIdx,
			LichPart:    parsed.LichPart,
			FrameNumber: parsed.FrameNumber,
			EndOfStream: parsed.EndOfStream,
			StreamData:  parsed.StreamData,
		}
		v := c.rfToNet.Push(*c.pendingLSF, sf)
		if c.conn != nil && c.server != nil {
			b := v.Bytes()
			c.conn.WriteToUDP(b[:], c.server)
		}
		if sf.EndOfStream {
			c.pendingLSF = nil
		}
	}
	return len(p), nil
}

// Close signals the connection goroutine to stop and unblocks Read.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			c.conn.Close()
		}
	})
	return nil
}
