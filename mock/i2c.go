package mock

import (
	"fmt"

	"periphcore-go/errcode"
	"periphcore-go/i2c"
)

// I2CDevice is a register-file device behind a mock bus: the first written
// byte after a start sets the register pointer, further writes fill
// consecutive registers, reads return consecutive registers. That is the
// shape of most real register-mapped targets.
type I2CDevice struct {
	Regs map[byte]byte

	ptr      byte
	awaitPtr bool
}

func NewI2CDevice(regs map[byte]byte) *I2CDevice {
	if regs == nil {
		regs = map[byte]byte{}
	}
	return &I2CDevice{Regs: regs}
}

// I2C is a scriptable i2c.Target hosting register-file devices. Addresses
// without a device NACK. StretchTicks makes Busy hold the engine off for
// that many polls, simulating clock stretching. Wire is a transcript of bus
// events ("S 40 W", "W 00", "R 12", "P") for order assertions.
type I2C struct {
	Clock        uint32
	Devices      map[i2c.Addr]*I2CDevice
	StretchTicks int

	// Applied configuration, recorded for assertions.
	Div uint32

	Wire []string

	cur *I2CDevice
}

var _ i2c.Target = (*I2C)(nil)

func NewI2C() *I2C {
	return &I2C{Clock: 4_000_000, Devices: map[i2c.Addr]*I2CDevice{}}
}

// AddDevice attaches a register-file device and returns it for seeding.
func (m *I2C) AddDevice(addr i2c.Addr, regs map[byte]byte) *I2CDevice {
	dev := NewI2CDevice(regs)
	m.Devices[addr] = dev
	return dev
}

func (m *I2C) ClockHz() uint32      { return m.Clock }
func (m *I2C) Apply(divider uint32) { m.Div = divider }

func (m *I2C) Busy() bool {
	if m.StretchTicks > 0 {
		m.StretchTicks--
		return true
	}
	return false
}

func (m *I2C) Start(addr i2c.Addr, op i2c.Op) error {
	dir := "W"
	if op == i2c.OpRead {
		dir = "R"
	}
	m.Wire = append(m.Wire, fmt.Sprintf("S %02x %s", uint16(addr), dir))
	dev, ok := m.Devices[addr]
	if !ok {
		return errcode.NoAck
	}
	m.cur = dev
	if op == i2c.OpWrite {
		dev.awaitPtr = true
	}
	return nil
}

func (m *I2C) WriteByte(b byte) error {
	m.Wire = append(m.Wire, fmt.Sprintf("W %02x", b))
	if m.cur.awaitPtr {
		m.cur.ptr = b
		m.cur.awaitPtr = false
		return nil
	}
	m.cur.Regs[m.cur.ptr] = b
	m.cur.ptr++
	return nil
}

func (m *I2C) ReadByte(last bool) (byte, error) {
	b := m.cur.Regs[m.cur.ptr]
	m.cur.ptr++
	m.Wire = append(m.Wire, fmt.Sprintf("R %02x", b))
	return b, nil
}

func (m *I2C) Stop() {
	m.Wire = append(m.Wire, "P")
	m.cur = nil
}
