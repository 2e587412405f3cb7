// Package softi2c bit-bangs an I2C master over two open-collector GPIO
// pins. It implements i2c.Target, so chaining, deadlines and the error
// taxonomy come from the engine; this package only moves SCL and SDA.
//
// Clock stretching is honoured inside each byte: after releasing SCL the
// master waits for the line to actually rise, up to a bounded number of
// polls, and reports errcode.Timeout when a device holds it past that.
package softi2c

import (
	"time"

	"periphcore-go/errcode"
	"periphcore-go/gpio"
	"periphcore-go/i2c"
	"periphcore-go/periph"
)

// clockHz is the timing base for the divider; SCL = clockHz / (4 * div).
const clockHz = 1_000_000

// DefaultStretchLimit bounds how many times a released SCL is re-sampled
// before a stretching device is declared stuck.
const DefaultStretchLimit = 1000

// Master drives both pins open-collector: writing High releases the line to
// the pull-up, writing Low sinks it.
type Master[G gpio.Conn] struct {
	g   G
	scl periph.Pin
	sda periph.Pin

	halfPeriod   time.Duration
	stretchLimit int
	idle         bool
}

var _ i2c.Target = (*Master[gpio.Conn])(nil)

// New configures both pins open-collector with pull-ups and leaves the bus
// released.
func New[G gpio.Conn](g G, scl, sda periph.Pin) (*Master[G], error) {
	cfg := gpio.Config{Direction: gpio.DirOpenCollector, Pull: gpio.PullUp}
	if err := g.Configure(scl, cfg); err != nil {
		return nil, err
	}
	if err := g.Configure(sda, cfg); err != nil {
		return nil, err
	}
	g.Write(scl, gpio.High)
	g.Write(sda, gpio.High)
	return &Master[G]{g: g, scl: scl, sda: sda, stretchLimit: DefaultStretchLimit, idle: true}, nil
}

// SetStretchLimit replaces the per-edge stretch bound.
func (m *Master[G]) SetStretchLimit(n int) { m.stretchLimit = n }

func (m *Master[G]) ClockHz() uint32 { return clockHz }

func (m *Master[G]) Apply(divider uint32) {
	// SCL period is 4*div microseconds at a 1 MHz base; the high and low
	// phases get half each.
	m.halfPeriod = 2 * time.Duration(divider) * time.Microsecond
}

// Busy is always false: stretch waits happen inside the byte operations.
func (m *Master[G]) Busy() bool { return false }

// Start issues a start condition (repeated when the bus is mid-transaction)
// followed by the address byte.
func (m *Master[G]) Start(addr i2c.Addr, op i2c.Op) error {
	if m.idle {
		// SCL and SDA are both high; pull SDA low first.
		m.g.Write(m.sda, gpio.Low)
		m.wait()
		m.g.Write(m.scl, gpio.Low)
		m.idle = false
	} else {
		// Repeated start: release SDA, clock high, then SDA falls while SCL
		// is high.
		m.g.Write(m.sda, gpio.High)
		m.wait()
		if err := m.clockHigh(); err != nil {
			return err
		}
		m.wait()
		m.g.Write(m.sda, gpio.Low)
		m.wait()
		m.g.Write(m.scl, gpio.Low)
	}
	rw := byte(0)
	if op == i2c.OpRead {
		rw = 1
	}
	ack, err := m.writeRaw(byte(addr)<<1 | rw)
	if err != nil {
		return err
	}
	if !ack {
		return errcode.NoAck
	}
	return nil
}

func (m *Master[G]) WriteByte(b byte) error {
	ack, err := m.writeRaw(b)
	if err != nil {
		return err
	}
	if !ack {
		return errcode.NoAck
	}
	return nil
}

func (m *Master[G]) ReadByte(last bool) (byte, error) {
	m.g.Write(m.sda, gpio.High) // release for the device to drive
	var b byte
	for i := 0; i < 8; i++ {
		if err := m.clockHigh(); err != nil {
			return 0, err
		}
		b <<= 1
		if m.g.Read(m.sda) == gpio.High {
			b |= 1
		}
		m.wait()
		m.g.Write(m.scl, gpio.Low)
	}
	// Ack bit: low to keep the device talking, high to end the read.
	m.g.Write(m.sda, gpio.Level(last))
	m.wait()
	if err := m.clockHigh(); err != nil {
		return 0, err
	}
	m.wait()
	m.g.Write(m.scl, gpio.Low)
	m.g.Write(m.sda, gpio.High)
	return b, nil
}

// Stop raises SDA while SCL is high and releases the bus.
func (m *Master[G]) Stop() {
	if m.idle {
		return
	}
	m.g.Write(m.sda, gpio.Low)
	m.wait()
	m.clockHigh() // best effort even against a stuck device
	m.wait()
	m.g.Write(m.sda, gpio.High)
	m.wait()
	m.idle = true
}

// writeRaw shifts out one byte MSB first and samples the ack bit.
func (m *Master[G]) writeRaw(b byte) (bool, error) {
	for i := 7; i >= 0; i-- {
		m.g.Write(m.sda, gpio.Level(b&(1<<i) != 0))
		m.wait()
		if err := m.clockHigh(); err != nil {
			return false, err
		}
		m.wait()
		m.g.Write(m.scl, gpio.Low)
	}
	m.g.Write(m.sda, gpio.High) // release for the ack
	m.wait()
	if err := m.clockHigh(); err != nil {
		return false, err
	}
	ack := m.g.Read(m.sda) == gpio.Low
	m.wait()
	m.g.Write(m.scl, gpio.Low)
	return ack, nil
}

// clockHigh releases SCL and waits for the line to rise, bounded by the
// stretch limit.
func (m *Master[G]) clockHigh() error {
	m.g.Write(m.scl, gpio.High)
	for i := 0; m.g.Read(m.scl) != gpio.High; i++ {
		if i >= m.stretchLimit {
			return errcode.Timeout
		}
	}
	return nil
}

func (m *Master[G]) wait() {
	if m.halfPeriod > 0 {
		time.Sleep(m.halfPeriod)
	}
}
