// Package periphio bridges the capabilities to periph.io, so consumer code
// written against gpio.Conn and i2c.Conn runs unmodified on a Linux board
// with /dev/i2c-* and memory-mapped pins behind it.
package periphio

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	pi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"periphcore-go/errcode"
	"periphcore-go/gpio"
	"periphcore-go/i2c"
	"periphcore-go/periph"
)

var (
	initOnce sync.Once
	initErr  error
)

func hostInit() error {
	initOnce.Do(func() { _, initErr = host.Init() })
	return initErr
}

// ---------------------------------------------------------------------------
// GPIO
// ---------------------------------------------------------------------------

// GPIO implements the pin capability over periph.io pins. Handles are
// allocated per resolved pin, so the same spec always parses to the same
// handle.
type GPIO struct {
	mu     sync.Mutex
	pins   []pgpio.PinIO
	byName map[string]periph.Pin
}

var _ gpio.Conn = (*GPIO)(nil)

func NewGPIO() *GPIO {
	return &GPIO{byName: map[string]periph.Pin{}}
}

// Add registers p under name and returns its handle. ParsePin uses it after
// registry lookup; tests use it to plant gpiotest pins without touching the
// global registry.
func (g *GPIO) Add(name string, p pgpio.PinIO) periph.Pin {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pin, ok := g.byName[name]; ok {
		g.pins[slot(pin)] = p
		return pin
	}
	n := len(g.pins)
	g.pins = append(g.pins, p)
	pin := periph.Pin{Port: uint8(n >> 8), Index: uint8(n)}
	g.byName[name] = pin
	return pin
}

func slot(pin periph.Pin) int { return int(pin.Port)<<8 | int(pin.Index) }

func (g *GPIO) lookup(pin periph.Pin) pgpio.PinIO {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := slot(pin); n < len(g.pins) {
		return g.pins[n]
	}
	return nil
}

func (g *GPIO) ParsePin(spec string) (periph.Pin, error) {
	g.mu.Lock()
	pin, ok := g.byName[spec]
	g.mu.Unlock()
	if ok {
		return pin, nil
	}
	if err := hostInit(); err != nil {
		return periph.Pin{}, &errcode.E{C: errcode.Error, Op: "periphio.ParsePin", Err: err}
	}
	p := gpioreg.ByName(spec)
	if p == nil {
		return periph.Pin{}, &errcode.E{C: errcode.UnknownPin, Op: "periphio.ParsePin", Msg: spec}
	}
	return g.Add(spec, p), nil
}

// Configure maps the capability directions onto what periph.io pins offer.
// Open-collector output has no portable periph.io form and is rejected, as
// is a pull on a driven output.
func (g *GPIO) Configure(pin periph.Pin, cfg gpio.Config) error {
	p := g.lookup(pin)
	if p == nil {
		return &errcode.E{C: errcode.UnknownPin, Op: "periphio.Configure", Msg: pin.String()}
	}
	switch cfg.Direction {
	case gpio.DirInput:
		if err := p.In(pullOf(cfg.Pull), pgpio.NoEdge); err != nil {
			return &errcode.E{C: errcode.UnsupportedPull, Op: "periphio.Configure", Err: err}
		}
		return nil
	case gpio.DirPushPull:
		if cfg.Pull != gpio.PullNone {
			return errcode.UnsupportedPull
		}
		if err := p.Out(pgpio.Low); err != nil {
			return &errcode.E{C: errcode.UnsupportedDirection, Op: "periphio.Configure", Err: err}
		}
		return nil
	default:
		return errcode.UnsupportedDirection
	}
}

func (g *GPIO) Read(pin periph.Pin) gpio.Level {
	p := g.lookup(pin)
	if p == nil {
		return gpio.Low
	}
	return gpio.Level(p.Read() == pgpio.High)
}

func (g *GPIO) Write(pin periph.Pin, level gpio.Level) {
	if p := g.lookup(pin); p != nil {
		p.Out(pgpio.Level(level))
	}
}

func pullOf(pull gpio.Pull) pgpio.Pull {
	switch pull {
	case gpio.PullUp:
		return pgpio.PullUp
	case gpio.PullDown:
		return pgpio.PullDown
	default:
		return pgpio.Float
	}
}

// ---------------------------------------------------------------------------
// I2C
// ---------------------------------------------------------------------------

// I2C implements the I2C master capability over a periph.io bus. The kernel
// driver is synchronous, so Tick executes the whole pending chain in one
// call; per-transfer deadlines are left to the driver underneath.
type I2C struct {
	bus pi2c.Bus
	now func() time.Time

	cur   atomic.Pointer[i2c.Transfer]
	abort atomic.Bool
}

var _ i2c.Conn = (*I2C)(nil)

func NewI2C(bus pi2c.Bus) *I2C {
	return &I2C{bus: bus, now: time.Now}
}

// OpenI2C resolves name ("1", "/dev/i2c-1", "I2C1") through the periph.io
// registry.
func OpenI2C(name string) (*I2C, error) {
	if err := hostInit(); err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "periphio.OpenI2C", Err: err}
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "periphio.OpenI2C", Msg: name, Err: err}
	}
	return NewI2C(bus), nil
}

func (b *I2C) Close() error {
	if c, ok := b.bus.(pi2c.BusCloser); ok {
		return c.Close()
	}
	return nil
}

func (b *I2C) Configure(cfg i2c.Config) error {
	if b.cur.Load() != nil {
		return errcode.Busy
	}
	if cfg.Frequency == 0 {
		return errcode.FrequencyNotSupported
	}
	if err := b.bus.SetSpeed(physic.Frequency(cfg.Frequency) * physic.Hertz); err != nil {
		return &errcode.E{C: errcode.FrequencyNotSupported, Op: "periphio.Configure", Err: err}
	}
	return nil
}

func (b *I2C) Start(t *i2c.Transfer) error {
	if b.cur.Load() != nil {
		return errcode.InProgress
	}
	now := b.now()
	for q := t; q != nil; q = q.Next() {
		q.Begin(now)
	}
	b.abort.Store(false)
	b.cur.Store(t)
	return nil
}

func (b *I2C) Tick() {
	t := b.cur.Load()
	if t == nil {
		return
	}
	if b.abort.Load() {
		b.fail(t, errcode.Aborted, nil)
		return
	}
	for t != nil {
		// A write chained to a read of the same address collapses into one
		// kernel transaction, which is the only way to get the repeated
		// start out of /dev/i2c.
		if next := t.Next(); t.Op == i2c.OpWrite && next != nil &&
			next.Op == i2c.OpRead && next.Addr == t.Addr {
			if err := b.bus.Tx(uint16(t.Addr), t.Buf, next.Buf); err != nil {
				b.fail(t, txCode(err), err)
				return
			}
			t.Complete(len(t.Buf), "")
			next.Complete(len(next.Buf), "")
			t = next.Next()
			continue
		}
		w, r := t.Buf, []byte(nil)
		if t.Op == i2c.OpRead {
			w, r = nil, t.Buf
		}
		if err := b.bus.Tx(uint16(t.Addr), w, r); err != nil {
			b.fail(t, txCode(err), err)
			return
		}
		t.Complete(len(t.Buf), "")
		t = t.Next()
	}
	b.cur.Store(nil)
}

func (b *I2C) Abort() {
	if b.cur.Load() != nil {
		b.abort.Store(true)
	}
}

func (b *I2C) fail(t *i2c.Transfer, code errcode.Code, cause error) {
	t.CompleteCause(0, code, cause)
	for q := t.Next(); q != nil; q = q.Next() {
		q.Complete(0, errcode.Aborted)
	}
	b.cur.Store(nil)
}

// txCode classifies a kernel Tx failure. Deadline causes become Timeout;
// anything else stays Error with the cause attached, since /dev/i2c does
// not distinguish an address NACK from other bus faults.
func txCode(err error) errcode.Code {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return errcode.Timeout
	}
	return errcode.Error
}
