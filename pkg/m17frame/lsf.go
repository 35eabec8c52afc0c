// Package m17frame encodes and decodes the four M17 over-the-air frame
// types (LSF, Stream, Packet, BERT) between their wire byte layouts and
// the 192-dibit symbol frames that carry them, applying FEC, the
// interleaver and the scrambler in the order the link requires.
package m17frame

import (
	"errors"

	"m17/pkg/address"
	"m17/pkg/bitops"
)

// LSFSize is the wire size of a Link Setup Frame.
const LSFSize = 30

// typeFieldBit0 is the global MSB-first bit index of the TYPE field's
// first bit (byte 12, top bit). The field spans bytes 12-13: bit0
// frame mode, bits1-2 data type, bits3-4 encryption type, bits5-6
// encryption subtype, and the Channel Access Number split across the
// byte boundary (three bits at byte12 bits5-7, one bit at byte13
// bit0 — see CAN/SetCAN).
const typeFieldBit0 = 12 * 8

// DataType enumerates the LSF TYPE field's payload classification.
type DataType byte

const (
	DataTypeReserved DataType = iota
	DataTypeData
	DataTypeVoice
	DataTypeVoiceAndData
)

// EncryptionType enumerates the LSF TYPE field's cipher taxonomy. Only
// None is ever produced or accepted as meaningful; the other values are
// preserved on the wire but never processed.
type EncryptionType byte

const (
	EncryptionNone EncryptionType = iota
	EncryptionScrambler
	EncryptionAES
	EncryptionOther
)

// LSF is a Link Setup Frame: 30 bytes carrying the destination and
// source addresses, a packed TYPE field, 14 bytes of opaque metadata,
// and a trailing CRC-16 over the first 28 bytes.
type LSF struct {
	raw [LSFSize]byte
}

// NewLSF builds an LSF from its addresses, type classification and
// metadata, recalculating the trailing CRC.
func NewLSF(dst, src address.Address, stream bool, dt DataType, enc EncryptionType, encSubtype, can byte, meta [14]byte) LSF {
	var lsf LSF
	putAddress(lsf.raw[0:6], dst)
	putAddress(lsf.raw[6:12], src)
	lsf.setStream(stream)
	lsf.setDataType(dt)
	lsf.setEncryptionType(enc)
	lsf.setEncryptionSubtype(encSubtype)
	copy(lsf.raw[14:28], meta[:])
	lsf.SetCAN(can)
	lsf.recalculateCRC()
	return lsf
}

func putAddress(dst []byte, a address.Address) {
	v := a.Value()
	dst[0] = byte(v >> 40)
	dst[1] = byte(v >> 32)
	dst[2] = byte(v >> 24)
	dst[3] = byte(v >> 16)
	dst[4] = byte(v >> 8)
	dst[5] = byte(v)
}

func getAddressValue(src []byte) uint64 {
	return uint64(src[0])<<40 | uint64(src[1])<<32 | uint64(src[2])<<24 |
		uint64(src[3])<<16 | uint64(src[4])<<8 | uint64(src[5])
}

// ParseLSF wraps a 30-byte buffer as an LSF without validating its CRC;
// call CheckCRC to validate.
func ParseLSF(buf []byte) (LSF, error) {
	if len(buf) != LSFSize {
		return LSF{}, errors.New("m17frame: LSF must be 30 bytes")
	}
	var lsf LSF
	copy(lsf.raw[:], buf)
	return lsf, nil
}

// Bytes returns the raw 30-byte wire representation.
func (l LSF) Bytes() [LSFSize]byte { return l.raw }

// CheckCRC reports whether the trailing CRC-16 validates.
func (l LSF) CheckCRC() bool { return bitops.VerifyCRC(l.raw[:]) }

func (l *LSF) recalculateCRC() {
	crc := bitops.CRC16(l.raw[0:28])
	l.raw[28] = byte(crc >> 8)
	l.raw[29] = byte(crc)
}

// Destination returns the decoded destination address.
func (l LSF) Destination() address.Address { return address.Decode(getAddressValue(l.raw[0:6])) }

// Source returns the decoded source address.
func (l LSF) Source() address.Address { return address.Decode(getAddressValue(l.raw[6:12])) }

// IsStream reports the mode bit: true for stream, false for packet.
func (l LSF) IsStream() bool { return bitops.GetBit(l.raw[:], typeFieldBit0) != 0 }

func (l *LSF) setStream(v bool) {
	b := 0
	if v {
		b = 1
	}
	bitops.SetBit(l.raw[:], typeFieldBit0, b)
}

// Mode reports "stream" or "packet" per the TYPE field's mode bit.
func (l LSF) Mode() string {
	if l.IsStream() {
		return "stream"
	}
	return "packet"
}

func (l LSF) twoBitField(bit0 int) byte {
	return byte(bitops.GetBit(l.raw[:], bit0))<<1 | byte(bitops.GetBit(l.raw[:], bit0+1))
}

func (l *LSF) setTwoBitField(bit0 int, v byte) {
	bitops.SetBit(l.raw[:], bit0, int(v>>1)&1)
	bitops.SetBit(l.raw[:], bit0+1, int(v)&1)
}

// DataType returns the TYPE field's payload classification (bits 1-2).
func (l LSF) DataType() DataType { return DataType(l.twoBitField(typeFieldBit0 + 1)) }

func (l *LSF) setDataType(dt DataType) { l.setTwoBitField(typeFieldBit0+1, byte(dt)&0x03) }

// EncryptionType returns the TYPE field's cipher taxonomy (bits 3-4).
func (l LSF) EncryptionType() EncryptionType {
	return EncryptionType(l.twoBitField(typeFieldBit0 + 3))
}

func (l *LSF) setEncryptionType(enc EncryptionType) {
	l.setTwoBitField(typeFieldBit0+3, byte(enc)&0x03)
}

// EncryptionSubtype returns the 2-bit cipher sub-type (bits 5-6).
func (l LSF) EncryptionSubtype() byte { return l.twoBitField(typeFieldBit0 + 5) }

func (l *LSF) setEncryptionSubtype(v byte) { l.setTwoBitField(typeFieldBit0+5, v&0x03) }

// CAN returns the 4-bit Channel Access Number. It is split across the
// byte boundary: three bits at the end of byte 12 (bits 5-7) and one
// bit at the start of byte 13 (bit 0).
func (l LSF) CAN() byte {
	var v byte
	for i := 0; i < 4; i++ {
		v = v<<1 | byte(bitops.GetBit(l.raw[:], typeFieldBit0+5+i))
	}
	return v
}

// SetCAN sets the 4-bit Channel Access Number without perturbing any
// other field, recalculating the CRC.
func (l *LSF) SetCAN(can byte) {
	can &= 0x0F
	for i := 0; i < 4; i++ {
		bit := int(can>>(3-i)) & 1
		bitops.SetBit(l.raw[:], typeFieldBit0+5+i, bit)
	}
	l.recalculateCRC()
}

// Meta returns the 14-byte opaque metadata field.
func (l LSF) Meta() [14]byte {
	var m [14]byte
	copy(m[:], l.raw[14:28])
	return m
}
