package reflector

import (
	"encoding/binary"

	"m17/pkg/bitops"
	"m17/pkg/m17frame"
)

// VoiceInterlink is the reflector-to-reflector form of Voice: one byte
// longer, with the CRC covering only the first 54 bytes and a trailing
// "relayed" flag sitting outside the CRC.
type VoiceInterlink struct{ raw [55]byte }

func NewVoiceInterlink() VoiceInterlink {
	var v VoiceInterlink
	copy(v.raw[0:4], MagicVoice[:])
	v.recalcCRC()
	return v
}

func ParseVoiceInterlink(b []byte) (VoiceInterlink, bool) {
	if len(b) != 55 {
		return VoiceInterlink{}, false
	}
	var v VoiceInterlink
	copy(v.raw[:], b)
	if !bitops.VerifyCRC(v.raw[:54]) {
		return VoiceInterlink{}, false
	}
	return v, true
}

func (v VoiceInterlink) Bytes() [55]byte { return v.raw }
func (v VoiceInterlink) StreamID() uint16 { return binary.BigEndian.Uint16(v.raw[4:6]) }
func (v *VoiceInterlink) SetStreamID(id uint16) {
	binary.BigEndian.PutUint16(v.raw[4:6], id)
	v.recalcCRC()
}
func (v VoiceInterlink) LinkSetupFrame() m17frame.LSF { return buildLSF(v.raw[6:34]) }
func (v *VoiceInterlink) SetLinkSetupFrame(lsf m17frame.LSF) {
	b := lsf.Bytes()
	copy(v.raw[6:34], b[0:28])
	v.recalcCRC()
}
func (v VoiceInterlink) IsRelayed() bool { return v.raw[54] != 0 }
func (v *VoiceInterlink) SetRelayed(r bool) {
	if r {
		v.raw[54] = 1
	} else {
		v.raw[54] = 0
	}
}
func (v *VoiceInterlink) recalcCRC() {
	crc := bitops.CRC16(v.raw[0:52])
	v.raw[52], v.raw[53] = byte(crc>>8), byte(crc)
}

// PacketInterlink is the reflector-to-reflector form of Packet: one byte
// longer than Packet, with a trailing relayed flag outside the payload CRC.
type PacketInterlink struct {
	raw [860]byte
	n   int
}

func NewPacketInterlink(lsf m17frame.LSF, payload []byte) (PacketInterlink, bool) {
	if len(payload) < 4 || 35+len(payload) > len(PacketInterlink{}.raw) {
		return PacketInterlink{}, false
	}
	var p PacketInterlink
	copy(p.raw[0:4], MagicPacket[:])
	b := lsf.Bytes()
	copy(p.raw[4:34], b[:])
	copy(p.raw[34:34+len(payload)], payload)
	p.n = 34 + len(payload) + 1
	return p, true
}

func ParsePacketInterlink(b []byte) (PacketInterlink, bool) {
	if len(b) < 39 || len(b) > 860 {
		return PacketInterlink{}, false
	}
	var p PacketInterlink
	copy(p.raw[:], b)
	p.n = len(b)
	if !p.verify() {
		return PacketInterlink{}, false
	}
	return p, true
}

func (p PacketInterlink) Bytes() []byte { return p.raw[:p.n] }
func (p PacketInterlink) LinkSetupFrame() m17frame.LSF {
	lsf, _ := m17frame.ParseLSF(p.raw[4:34])
	return lsf
}
func (p PacketInterlink) Payload() []byte { return p.raw[34 : p.n-1] }
func (p PacketInterlink) IsRelayed() bool { return p.raw[p.n-1] != 0 }
func (p *PacketInterlink) SetRelayed(r bool) {
	if r {
		p.raw[p.n-1] = 1
	} else {
		p.raw[p.n-1] = 0
	}
}
func (p PacketInterlink) verify() bool {
	return p.LinkSetupFrame().CheckCRC() && len(p.Payload()) >= 4 && bitops.VerifyCRC(p.Payload())
}
