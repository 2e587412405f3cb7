package softi2c_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periphcore-go/errcode"
	"periphcore-go/gpio"
	"periphcore-go/i2c"
	"periphcore-go/mock"
	"periphcore-go/periph"
	"periphcore-go/soft/softi2c"
)

var (
	pinSCL = periph.Pin{Index: 5}
	pinSDA = periph.Pin{Index: 4}
)

// responder is a 7-bit device simulated at the wire level: it decodes
// start/stop conditions and clock edges from the master's pin writes and
// answers through the external-drive side of the pin matrix.
type responder struct {
	m    *mock.GPIO
	addr byte

	readData []byte
	writes   []byte
	starts   int
	stops    int

	started    bool
	addressing bool
	reading    bool
	matched    bool
	nacked     bool
	cur        byte
	pulse      int
	readIdx    int

	masterSCL gpio.Level
	masterSDA gpio.Level
	drive     gpio.Level
}

func attach(m *mock.GPIO, addr byte, readData []byte) *responder {
	r := &responder{
		m: m, addr: addr, readData: readData,
		masterSCL: gpio.High, masterSDA: gpio.High, drive: gpio.High,
	}
	m.OnWrite = r.onWrite
	return r
}

func (r *responder) onWrite(pin periph.Pin, level gpio.Level) {
	switch pin {
	case pinSDA:
		prev := r.masterSDA
		r.masterSDA = level
		if r.masterSCL != gpio.High {
			return
		}
		if prev == gpio.High && level == gpio.Low {
			r.onStart()
		} else if prev == gpio.Low && level == gpio.High {
			r.onStop()
		}
	case pinSCL:
		prev := r.masterSCL
		r.masterSCL = level
		if prev == level || !r.started {
			return
		}
		if level == gpio.High {
			r.onRising()
		} else {
			r.onFalling()
		}
	}
}

func (r *responder) onStart() {
	r.started = true
	r.addressing = true
	r.reading = false
	r.nacked = false
	r.pulse = 0
	r.cur = 0
	r.starts++
	r.setDrive(gpio.High)
}

func (r *responder) onStop() {
	r.started = false
	r.stops++
	r.setDrive(gpio.High)
}

// onRising samples SDA: data bits shift into cur, the ack slot of a read
// byte carries the master's ack or nack.
func (r *responder) onRising() {
	bit := r.masterSDA && r.drive
	if r.pulse < 8 {
		if r.addressing || !r.reading {
			r.cur <<= 1
			if bit {
				r.cur |= 1
			}
		}
		return
	}
	if r.reading && !r.addressing {
		r.nacked = bit == gpio.High
	}
}

// onFalling counts the clock and prepares SDA for the next slot.
func (r *responder) onFalling() {
	r.pulse++
	switch {
	case r.pulse == 8: // all data bits clocked, ack slot next
		if r.addressing {
			r.matched = r.cur>>1 == r.addr
			r.reading = r.cur&1 == 1
			if r.matched {
				r.setDrive(gpio.Low)
			}
		} else if !r.reading {
			if r.matched {
				r.writes = append(r.writes, r.cur)
				r.setDrive(gpio.Low)
			}
		} else {
			r.setDrive(gpio.High) // master drives the ack of a read byte
			r.readIdx++
		}
	case r.pulse == 9: // byte done
		r.pulse = 0
		r.cur = 0
		r.addressing = false
		r.setDrive(gpio.High)
		if r.reading && r.matched && !r.nacked {
			r.driveReadBit(0)
		}
	default:
		if r.reading && !r.addressing && r.matched && r.pulse < 8 {
			r.driveReadBit(r.pulse)
		}
	}
}

func (r *responder) driveReadBit(i int) {
	if r.readIdx >= len(r.readData) {
		r.setDrive(gpio.High)
		return
	}
	r.setDrive(gpio.Level(r.readData[r.readIdx]&(1<<(7-i)) != 0))
}

func (r *responder) setDrive(level gpio.Level) {
	r.drive = level
	r.m.Drive(pinSDA, level)
}

func newController(t *testing.T) (*i2c.Controller[*softi2c.Master[*mock.GPIO]], *mock.GPIO) {
	t.Helper()
	m := mock.NewGPIO()
	target, err := softi2c.New(m, pinSCL, pinSDA)
	require.NoError(t, err)
	c := i2c.NewController(target)
	require.NoError(t, c.Configure(i2c.Config{Frequency: 250_000}))
	return c, m
}

func TestWriteThenReadAgainstResponder(t *testing.T) {
	c, m := newController(t)
	r := attach(m, 0x3C, []byte{0xBE, 0xEF})

	w := &i2c.Transfer{Addr: 0x3C, Op: i2c.OpWrite, Buf: []byte{0x10}}
	rd := &i2c.Transfer{Addr: 0x3C, Op: i2c.OpRead, Buf: make([]byte, 2)}
	w.Chain(rd)

	require.NoError(t, c.Start(w))
	for !rd.Done() {
		c.Tick()
	}
	require.NoError(t, w.Err())
	require.NoError(t, rd.Err())
	assert.Equal(t, []byte{0xBE, 0xEF}, rd.Buf)
	assert.Equal(t, []byte{0x10}, r.writes)
	assert.Equal(t, 2, r.starts, "write leg plus repeated start")
	assert.Equal(t, 1, r.stops)
}

func TestAddressNack(t *testing.T) {
	c, m := newController(t)
	attach(m, 0x3C, nil)

	xfer := &i2c.Transfer{Addr: 0x2A, Op: i2c.OpWrite, Buf: []byte{1}}
	require.NoError(t, c.Start(xfer))
	c.Tick()
	assert.Equal(t, errcode.NoAck, errcode.Of(xfer.Err()))
	assert.Equal(t, 0, xfer.N())
}

func TestStuckClockTimesOut(t *testing.T) {
	m := mock.NewGPIO()
	target, err := softi2c.New(m, pinSCL, pinSDA)
	require.NoError(t, err)
	target.SetStretchLimit(10)
	c := i2c.NewController(target)
	require.NoError(t, c.Configure(i2c.Config{Frequency: 250_000}))

	m.Drive(pinSCL, gpio.Low) // device holds the clock forever
	xfer := &i2c.Transfer{Addr: 0x3C, Op: i2c.OpWrite, Buf: []byte{1}}
	require.NoError(t, c.Start(xfer))
	c.Tick()
	assert.Equal(t, errcode.Timeout, errcode.Of(xfer.Err()))
}

func TestPinSetup(t *testing.T) {
	m := mock.NewGPIO()
	_, err := softi2c.New(m, pinSCL, pinSDA)
	require.NoError(t, err)
	for _, pin := range []periph.Pin{pinSCL, pinSDA} {
		cfg := m.Config(pin)
		assert.Equal(t, gpio.DirOpenCollector, cfg.Direction)
		assert.Equal(t, gpio.PullUp, cfg.Pull)
		assert.Equal(t, gpio.High, m.Read(pin), "bus must idle released")
	}
}
