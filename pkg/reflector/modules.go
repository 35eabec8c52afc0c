package reflector

import "m17/pkg/address"

// ConnectInterlink is the reflector-to-reflector join request: an address
// plus a null-terminated list of modules the joining reflector carries.
type ConnectInterlink struct{ raw [37]byte }

func NewConnectInterlink(addr address.Address, modules string) ConnectInterlink {
	var c ConnectInterlink
	copy(c.raw[0:4], MagicConnect[:])
	conn := Connect{}
	conn.setAddress(addr)
	copy(c.raw[4:10], conn.raw[4:10])
	c.SetModules(modules)
	return c
}

func ParseConnectInterlink(b []byte) (ConnectInterlink, bool) {
	if len(b) != 37 {
		return ConnectInterlink{}, false
	}
	var c ConnectInterlink
	copy(c.raw[:], b)
	return c, true
}

func (c ConnectInterlink) Bytes() [37]byte { return c.raw }
func (c ConnectInterlink) Address() address.Address {
	conn := Connect{}
	copy(conn.raw[4:10], c.raw[4:10])
	return conn.Address()
}

// Modules returns an iterator over the null-terminated module list at
// bytes 10..37.
func (c ConnectInterlink) Modules() ModulesIterator {
	return ModulesIterator{modules: c.raw[10:37]}
}

// SetModules writes a module list (max 26 characters, so the terminator
// still fits within the 27-byte field).
func (c *ConnectInterlink) SetModules(list string) {
	idx := 10
	for i := 0; i < len(list) && i < 26; i++ {
		c.raw[idx] = list[i]
		idx++
	}
	c.raw[idx] = 0
}

// ModulesIterator walks a null-terminated ASCII module list.
type ModulesIterator struct {
	modules []byte
	idx     int
}

// Next returns the next module letter, or (0, false) at the terminator.
func (m *ModulesIterator) Next() (byte, bool) {
	if m.idx >= len(m.modules) || m.modules[m.idx] == 0 {
		return 0, false
	}
	c := m.modules[m.idx]
	m.idx++
	return c, true
}
