// Package reflector implements the UDP datagram codec spoken between an M17
// station and a reflector (and between reflectors over the Interlink
// extension): fixed-size, magic-dispatched messages with per-type integrity
// rules.
package reflector

import (
	"encoding/binary"

	"m17/pkg/address"
	"m17/pkg/bitops"
	"m17/pkg/m17frame"
)

// Magic values identify a datagram's first four bytes.
var (
	MagicVoice       = [4]byte{'M', '1', '7', ' '}
	MagicVoiceHeader = [4]byte{'M', '1', '7', 'H'}
	MagicVoiceData   = [4]byte{'M', '1', '7', 'D'}
	MagicPacket      = [4]byte{'M', '1', '7', 'P'}
	MagicAcknowledge = [4]byte{'A', 'C', 'K', 'N'}
	MagicConnect     = [4]byte{'C', 'O', 'N', 'N'}
	MagicDisconnect  = [4]byte{'D', 'I', 'S', 'C'}
	MagicListen      = [4]byte{'L', 'S', 'T', 'N'}
	MagicNack        = [4]byte{'N', 'A', 'C', 'K'}
	MagicPing        = [4]byte{'P', 'I', 'N', 'G'}
	MagicPong        = [4]byte{'P', 'O', 'N', 'G'}
)

func buildLSF(src []byte) m17frame.LSF {
	var buf [m17frame.LSFSize]byte
	copy(buf[:28], src)
	crc := bitops.CRC16(buf[:28])
	buf[28], buf[29] = byte(crc>>8), byte(crc)
	lsf, _ := m17frame.ParseLSF(buf[:])
	return lsf
}

func recalcTrailingCRC(buf []byte) {
	n := len(buf)
	crc := bitops.CRC16(buf[:n-2])
	buf[n-2], buf[n-1] = byte(crc>>8), byte(crc)
}

// Voice is a 54-byte voice superframe datagram: stream_id, a 28-byte LSF
// excerpt, frame_number/EOS, a 16-byte payload, and a whole-datagram CRC.
type Voice struct{ raw [54]byte }

// NewVoice builds a zeroed Voice datagram with the magic set.
func NewVoice() Voice {
	var v Voice
	copy(v.raw[0:4], MagicVoice[:])
	v.recalcCRC()
	return v
}

// ParseVoice validates and wraps a 54-byte datagram.
func ParseVoice(b []byte) (Voice, bool) {
	if len(b) != 54 {
		return Voice{}, false
	}
	var v Voice
	copy(v.raw[:], b)
	if !bitops.VerifyCRC(v.raw[:]) {
		return Voice{}, false
	}
	return v, true
}

func (v Voice) Bytes() [54]byte { return v.raw }

func (v Voice) StreamID() uint16 { return binary.BigEndian.Uint16(v.raw[4:6]) }
func (v *Voice) SetStreamID(id uint16) {
	binary.BigEndian.PutUint16(v.raw[4:6], id)
	v.recalcCRC()
}

func (v Voice) LinkSetupFrame() m17frame.LSF { return buildLSF(v.raw[6:34]) }
func (v *Voice) SetLinkSetupFrame(lsf m17frame.LSF) {
	b := lsf.Bytes()
	copy(v.raw[6:34], b[0:28])
	v.recalcCRC()
}

func (v Voice) FrameNumber() uint16 { return binary.BigEndian.Uint16(v.raw[34:36]) & 0x7FFF }
func (v Voice) EndOfStream() bool   { return binary.BigEndian.Uint16(v.raw[34:36])&0x8000 != 0 }
func (v *Voice) SetFrameNumber(n uint16, eos bool) {
	val := n & 0x7FFF
	if eos {
		val |= 0x8000
	}
	binary.BigEndian.PutUint16(v.raw[34:36], val)
	v.recalcCRC()
}

func (v Voice) Payload() [16]byte {
	var p [16]byte
	copy(p[:], v.raw[36:52])
	return p
}
func (v *Voice) SetPayload(p [16]byte) {
	copy(v.raw[36:52], p[:])
	v.recalcCRC()
}

func (v *Voice) recalcCRC() { recalcTrailingCRC(v.raw[:]) }

// VoiceHeader is a 36-byte datagram carrying only the LSF.
type VoiceHeader struct{ raw [36]byte }

func NewVoiceHeader() VoiceHeader {
	var v VoiceHeader
	copy(v.raw[0:4], MagicVoiceHeader[:])
	v.recalcCRC()
	return v
}

func ParseVoiceHeader(b []byte) (VoiceHeader, bool) {
	if len(b) != 36 {
		return VoiceHeader{}, false
	}
	var v VoiceHeader
	copy(v.raw[:], b)
	if !bitops.VerifyCRC(v.raw[:]) {
		return VoiceHeader{}, false
	}
	return v, true
}

func (v VoiceHeader) Bytes() [36]byte { return v.raw }
func (v VoiceHeader) StreamID() uint16 { return binary.BigEndian.Uint16(v.raw[4:6]) }
func (v *VoiceHeader) SetStreamID(id uint16) {
	binary.BigEndian.PutUint16(v.raw[4:6], id)
	v.recalcCRC()
}
func (v VoiceHeader) LinkSetupFrame() m17frame.LSF { return buildLSF(v.raw[6:34]) }
func (v *VoiceHeader) SetLinkSetupFrame(lsf m17frame.LSF) {
	b := lsf.Bytes()
	copy(v.raw[6:34], b[0:28])
	v.recalcCRC()
}
func (v *VoiceHeader) recalcCRC() { recalcTrailingCRC(v.raw[:]) }

// VoiceData is a 26-byte datagram carrying one frame of voice payload
// without re-sending the LSF.
type VoiceData struct{ raw [26]byte }

func NewVoiceData() VoiceData {
	var v VoiceData
	copy(v.raw[0:4], MagicVoiceData[:])
	v.recalcCRC()
	return v
}

func ParseVoiceData(b []byte) (VoiceData, bool) {
	if len(b) != 26 {
		return VoiceData{}, false
	}
	var v VoiceData
	copy(v.raw[:], b)
	if !bitops.VerifyCRC(v.raw[:]) {
		return VoiceData{}, false
	}
	return v, true
}

func (v VoiceData) Bytes() [26]byte { return v.raw }
func (v VoiceData) StreamID() uint16 { return binary.BigEndian.Uint16(v.raw[4:6]) }
func (v *VoiceData) SetStreamID(id uint16) {
	binary.BigEndian.PutUint16(v.raw[4:6], id)
	v.recalcCRC()
}
func (v VoiceData) FrameNumber() uint16 { return binary.BigEndian.Uint16(v.raw[6:8]) & 0x7FFF }
func (v VoiceData) EndOfStream() bool   { return binary.BigEndian.Uint16(v.raw[6:8])&0x8000 != 0 }
func (v *VoiceData) SetFrameNumber(n uint16, eos bool) {
	val := n & 0x7FFF
	if eos {
		val |= 0x8000
	}
	binary.BigEndian.PutUint16(v.raw[6:8], val)
	v.recalcCRC()
}
func (v VoiceData) Payload() [16]byte {
	var p [16]byte
	copy(p[:], v.raw[8:24])
	return p
}
func (v *VoiceData) SetPayload(p [16]byte) {
	copy(v.raw[8:24], p[:])
	v.recalcCRC()
}
func (v *VoiceData) recalcCRC() { recalcTrailingCRC(v.raw[:]) }

// Packet is a variable-length (38-859 byte) packet-mode datagram: a full
// 30-byte LSF followed by a CRC-terminated payload of at least 4 bytes.
// Unlike the voice datagrams, its integrity rests on the LSF's own CRC and
// the payload's trailing CRC, not a whole-datagram CRC.
type Packet struct {
	raw [859]byte
	n   int
}

func NewPacket(lsf m17frame.LSF, payload []byte) (Packet, bool) {
	if len(payload) < 4 || 34+len(payload) > len(Packet{}.raw) {
		return Packet{}, false
	}
	var p Packet
	copy(p.raw[0:4], MagicPacket[:])
	b := lsf.Bytes()
	copy(p.raw[4:34], b[:])
	copy(p.raw[34:34+len(payload)], payload)
	p.n = 34 + len(payload)
	return p, true
}

func ParsePacket(b []byte) (Packet, bool) {
	if len(b) < 38 || len(b) > 859 {
		return Packet{}, false
	}
	var p Packet
	copy(p.raw[:], b)
	p.n = len(b)
	if !p.verify() {
		return Packet{}, false
	}
	return p, true
}

func (p Packet) Bytes() []byte { return p.raw[:p.n] }

func (p Packet) LinkSetupFrame() m17frame.LSF {
	lsf, _ := m17frame.ParseLSF(p.raw[4:34])
	return lsf
}

func (p Packet) Payload() []byte { return p.raw[34:p.n] }

func (p Packet) verify() bool {
	return p.LinkSetupFrame().CheckCRC() && len(p.Payload()) >= 4 && bitops.VerifyCRC(p.Payload())
}

// control messages (no CRC): Connect, Listen, Disconnect, Ping, Pong, and
// the server acknowledgements/nacks.

// Connect requests a reflector join on a given module.
type Connect struct{ raw [11]byte }

func NewConnect(addr address.Address, module byte) Connect {
	var c Connect
	copy(c.raw[0:4], MagicConnect[:])
	c.setAddress(addr)
	c.raw[10] = module
	return c
}

func ParseConnect(b []byte) (Connect, bool) {
	if len(b) != 11 {
		return Connect{}, false
	}
	var c Connect
	copy(c.raw[:], b)
	return c, true
}

func (c Connect) Bytes() [11]byte       { return c.raw }
func (c Connect) Address() address.Address { return address.Decode(binary.BigEndian.Uint64(append([]byte{0, 0}, c.raw[4:10]...))) }
func (c *Connect) setAddress(a address.Address) {
	var buf [6]byte
	v := a.Value()
	for i := 5; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	copy(c.raw[4:10], buf[:])
}
func (c Connect) Module() byte { return c.raw[10] }

// Listen requests read-only (receive only) access to a module.
type Listen struct{ raw [11]byte }

func NewListen(addr address.Address, module byte) Listen {
	c := NewConnect(addr, module)
	l := Listen{raw: c.raw}
	copy(l.raw[0:4], MagicListen[:])
	return l
}

func ParseListen(b []byte) (Listen, bool) {
	if len(b) != 11 {
		return Listen{}, false
	}
	var l Listen
	copy(l.raw[:], b)
	return l, true
}

func (l Listen) Bytes() [11]byte          { return l.raw }
func (l Listen) Address() address.Address { c := Connect{raw: l.raw}; return c.Address() }
func (l Listen) Module() byte             { return l.raw[10] }

// Disconnect is a client-originated leave request, or (from a server, with
// no trailing address) a bare DisconnectAcknowledge.
type Disconnect struct{ raw [10]byte }

func NewDisconnect(addr address.Address) Disconnect {
	var d Disconnect
	copy(d.raw[0:4], MagicDisconnect[:])
	c := Connect{}
	c.setAddress(addr)
	copy(d.raw[4:10], c.raw[4:10])
	return d
}

func ParseDisconnect(b []byte) (Disconnect, bool) {
	if len(b) != 10 {
		return Disconnect{}, false
	}
	var d Disconnect
	copy(d.raw[:], b)
	return d, true
}

func (d Disconnect) Bytes() [10]byte       { return d.raw }
func (d Disconnect) Address() address.Address {
	c := Connect{}
	copy(c.raw[4:10], d.raw[4:10])
	return c.Address()
}

// DisconnectAcknowledge is the server's bare 4-byte reply to Disconnect.
type DisconnectAcknowledge struct{ raw [4]byte }

func NewDisconnectAcknowledge() DisconnectAcknowledge {
	var d DisconnectAcknowledge
	copy(d.raw[:], MagicDisconnect[:])
	return d
}
func (d DisconnectAcknowledge) Bytes() [4]byte { return d.raw }

// ForceDisconnect is the server's 10-byte eviction notice (same magic as
// Disconnect, disambiguated by length).
type ForceDisconnect struct{ raw [10]byte }

func NewForceDisconnect(addr address.Address) ForceDisconnect {
	d := NewDisconnect(addr)
	return ForceDisconnect{raw: d.raw}
}
func (f ForceDisconnect) Bytes() [10]byte          { return f.raw }
func (f ForceDisconnect) Address() address.Address { d := Disconnect{raw: f.raw}; return d.Address() }

// Ping/Pong are the keepalive pair, each carrying the sender's address.
type Ping struct{ raw [10]byte }

func NewPing(addr address.Address) Ping {
	d := NewDisconnect(addr)
	p := Ping{raw: d.raw}
	copy(p.raw[0:4], MagicPing[:])
	return p
}
func ParsePing(b []byte) (Ping, bool) {
	if len(b) != 10 {
		return Ping{}, false
	}
	var p Ping
	copy(p.raw[:], b)
	return p, true
}
func (p Ping) Bytes() [10]byte          { return p.raw }
func (p Ping) Address() address.Address { d := Disconnect{raw: p.raw}; return d.Address() }

type Pong struct{ raw [10]byte }

func NewPong(addr address.Address) Pong {
	d := NewDisconnect(addr)
	p := Pong{raw: d.raw}
	copy(p.raw[0:4], MagicPong[:])
	return p
}
func ParsePong(b []byte) (Pong, bool) {
	if len(b) != 10 {
		return Pong{}, false
	}
	var p Pong
	copy(p.raw[:], b)
	return p, true
}
func (p Pong) Bytes() [10]byte          { return p.raw }
func (p Pong) Address() address.Address { d := Disconnect{raw: p.raw}; return d.Address() }

// ConnectAcknowledge/ConnectNack are the server's 4-byte replies to Connect.
type ConnectAcknowledge struct{ raw [4]byte }

func NewConnectAcknowledge() ConnectAcknowledge {
	var c ConnectAcknowledge
	copy(c.raw[:], MagicAcknowledge[:])
	return c
}
func (c ConnectAcknowledge) Bytes() [4]byte { return c.raw }

type ConnectNack struct{ raw [4]byte }

func NewConnectNack() ConnectNack {
	var c ConnectNack
	copy(c.raw[:], MagicNack[:])
	return c
}
func (c ConnectNack) Bytes() [4]byte { return c.raw }

// ClientMessage is the decoded form of any datagram a station may send to a
// reflector.
type ClientMessage struct {
	Voice       *Voice
	VoiceHeader *VoiceHeader
	VoiceData   *VoiceData
	Packet      *Packet
	Pong        *Pong
	Connect     *Connect
	Listen      *Listen
	Disconnect  *Disconnect
}

// ParseClientMessage magic-dispatches an inbound datagram.
func ParseClientMessage(b []byte) (ClientMessage, bool) {
	if len(b) < 4 {
		return ClientMessage{}, false
	}
	var magic [4]byte
	copy(magic[:], b[0:4])
	switch magic {
	case MagicVoice:
		v, ok := ParseVoice(b)
		return ClientMessage{Voice: &v}, ok
	case MagicVoiceHeader:
		v, ok := ParseVoiceHeader(b)
		return ClientMessage{VoiceHeader: &v}, ok
	case MagicVoiceData:
		v, ok := ParseVoiceData(b)
		return ClientMessage{VoiceData: &v}, ok
	case MagicPacket:
		p, ok := ParsePacket(b)
		return ClientMessage{Packet: &p}, ok
	case MagicPong:
		p, ok := ParsePong(b)
		return ClientMessage{Pong: &p}, ok
	case MagicConnect:
		c, ok := ParseConnect(b)
		return ClientMessage{Connect: &c}, ok
	case MagicListen:
		l, ok := ParseListen(b)
		return ClientMessage{Listen: &l}, ok
	case MagicDisconnect:
		d, ok := ParseDisconnect(b)
		return ClientMessage{Disconnect: &d}, ok
	}
	return ClientMessage{}, false
}

// ServerMessage is the decoded form of any datagram a reflector may send to
// a station.
type ServerMessage struct {
	Voice                 *Voice
	VoiceHeader           *VoiceHeader
	VoiceData             *VoiceData
	Packet                *Packet
	Ping                  *Ping
	DisconnectAcknowledge *DisconnectAcknowledge
	ForceDisconnect       *ForceDisconnect
	ConnectAcknowledge    *ConnectAcknowledge
	ConnectNack           *ConnectNack
}

// ParseServerMessage magic-dispatches an inbound datagram. Disconnect's
// magic is shared by two message shapes, disambiguated by length: 4 bytes
// is an acknowledgement, 10 is a forced eviction carrying an address.
func ParseServerMessage(b []byte) (ServerMessage, bool) {
	if len(b) < 4 {
		return ServerMessage{}, false
	}
	var magic [4]byte
	copy(magic[:], b[0:4])
	switch magic {
	case MagicVoice:
		v, ok := ParseVoice(b)
		return ServerMessage{Voice: &v}, ok
	case MagicVoiceHeader:
		v, ok := ParseVoiceHeader(b)
		return ServerMessage{VoiceHeader: &v}, ok
	case MagicVoiceData:
		v, ok := ParseVoiceData(b)
		return ServerMessage{VoiceData: &v}, ok
	case MagicPacket:
		p, ok := ParsePacket(b)
		return ServerMessage{Packet: &p}, ok
	case MagicPing:
		p, ok := ParsePing(b)
		return ServerMessage{Ping: &p}, ok
	case MagicDisconnect:
		if len(b) == 4 {
			var d DisconnectAcknowledge
			copy(d.raw[:], b)
			return ServerMessage{DisconnectAcknowledge: &d}, true
		}
		f, ok := ParseForceDisconnect(b)
		return ServerMessage{ForceDisconnect: &f}, ok
	case MagicAcknowledge:
		var c ConnectAcknowledge
		if len(b) != 4 {
			return ServerMessage{}, false
		}
		copy(c.raw[:], b)
		return ServerMessage{ConnectAcknowledge: &c}, true
	case MagicNack:
		var c ConnectNack
		if len(b) != 4 {
			return ServerMessage{}, false
		}
		copy(c.raw[:], b)
		return ServerMessage{ConnectNack: &c}, true
	}
	return ServerMessage{}, false
}

func ParseForceDisconnect(b []byte) (ForceDisconnect, bool) {
	if len(b) != 10 {
		return ForceDisconnect{}, false
	}
	var f ForceDisconnect
	copy(f.raw[:], b)
	return f, true
}
