package i2c_test

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"periphcore-go/errcode"
	"periphcore-go/i2c"
	"periphcore-go/mock"
	"periphcore-go/periph"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}
func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newController(t *testing.T) (*i2c.Controller[*mock.I2C], *mock.I2C) {
	t.Helper()
	target := mock.NewI2C()
	c := i2c.NewController(target)
	if err := c.Configure(i2c.Config{Frequency: 100_000}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return c, target
}

func TestWriteThenRestartReadChain(t *testing.T) {
	c, target := newController(t)
	target.AddDevice(0x40, map[byte]byte{0x00: 0x12, 0x01: 0x34})

	w := &i2c.Transfer{Addr: 0x40, Op: i2c.OpWrite, Buf: []byte{0x00}}
	r := &i2c.Transfer{Addr: 0x40, Op: i2c.OpRead, Buf: make([]byte, 2)}
	w.Chain(r)

	if err := c.Start(w); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for !r.Done() {
		c.Tick()
	}
	if !w.Done() || w.Err() != nil || w.N() != 1 {
		t.Fatalf("write leg = done=%v {%d %v}", w.Done(), w.N(), w.Err())
	}
	if r.Err() != nil || r.N() != 2 {
		t.Fatalf("read leg = {%d %v}", r.N(), r.Err())
	}
	if !bytes.Equal(r.Buf, []byte{0x12, 0x34}) {
		t.Fatalf("read = %#v", r.Buf)
	}
	wantWire := []string{"S 40 W", "W 00", "S 40 R", "R 12", "R 34", "P"}
	if !reflect.DeepEqual(target.Wire, wantWire) {
		t.Fatalf("wire = %v, want %v", target.Wire, wantWire)
	}
}

func TestAddressNackFailsChain(t *testing.T) {
	c, _ := newController(t)

	w := &i2c.Transfer{Addr: 0x29, Op: i2c.OpWrite, Buf: []byte{0x00}}
	r := &i2c.Transfer{Addr: 0x29, Op: i2c.OpRead, Buf: make([]byte, 1)}
	w.Chain(r)

	if err := c.Start(w); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Tick()
	if errcode.Of(w.Err()) != errcode.NoAck || w.N() != 0 {
		t.Fatalf("write leg = {%d %v}, want {0 no_ack}", w.N(), w.Err())
	}
	if errcode.Of(r.Err()) != errcode.Aborted {
		t.Fatalf("queued leg = %v, want aborted", r.Err())
	}
	// Bus released: a fresh transfer starts cleanly.
	if err := c.Start(&i2c.Transfer{Addr: 0x29, Op: i2c.OpWrite}); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

func TestZeroLengthProbe(t *testing.T) {
	c, target := newController(t)
	target.AddDevice(0x50, nil)

	probe := &i2c.Transfer{Addr: 0x50, Op: i2c.OpWrite}
	if err := c.Start(probe); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Tick()
	if !probe.Done() || probe.Err() != nil {
		t.Fatalf("probe = done=%v err=%v", probe.Done(), probe.Err())
	}

	missing := &i2c.Transfer{Addr: 0x51, Op: i2c.OpWrite}
	if err := c.Start(missing); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Tick()
	if errcode.Of(missing.Err()) != errcode.NoAck {
		t.Fatalf("probe of empty address = %v, want no_ack", missing.Err())
	}
}

func TestClockStretchTimeout(t *testing.T) {
	clock := newFakeClock()
	c, target := newController(t)
	c.SetClock(clock.now)
	target.AddDevice(0x40, nil)
	target.StretchTicks = 1 << 30

	xfer := &i2c.Transfer{
		Addr: 0x40, Op: i2c.OpRead, Buf: make([]byte, 10),
		Timeout: periph.Micros(1000, 100),
	}
	if err := c.Start(xfer); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Tick()
	if xfer.Done() {
		t.Fatal("stretched transfer should still be pending")
	}
	clock.advance(2001 * time.Microsecond) // budget is 1000 + 10*100
	c.Tick()
	if errcode.Of(xfer.Err()) != errcode.Timeout || xfer.N() != 0 {
		t.Fatalf("result = {%d %v}, want {0 timeout}", xfer.N(), xfer.Err())
	}
}

func TestStretchThenComplete(t *testing.T) {
	c, target := newController(t)
	dev := target.AddDevice(0x40, map[byte]byte{0x00: 0x55})
	target.StretchTicks = 2

	xfer := &i2c.Transfer{Addr: 0x40, Op: i2c.OpRead, Buf: make([]byte, 1)}
	if err := c.Start(xfer); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Tick()
	c.Tick()
	if xfer.Done() {
		t.Fatal("still stretched")
	}
	c.Tick()
	if !xfer.Done() || xfer.Err() != nil || xfer.Buf[0] != 0x55 {
		t.Fatalf("result = done=%v err=%v buf=%#v", xfer.Done(), xfer.Err(), xfer.Buf)
	}
	_ = dev
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	c, target := newController(t)
	target.AddDevice(0x40, nil)
	target.StretchTicks = 10

	first := &i2c.Transfer{Addr: 0x40, Op: i2c.OpWrite, Buf: []byte{1}}
	if err := c.Start(first); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(&i2c.Transfer{Addr: 0x40, Op: i2c.OpWrite}); errcode.Of(err) != errcode.InProgress {
		t.Fatalf("second Start = %v, want in_progress", err)
	}
}

func TestAbortChain(t *testing.T) {
	c, target := newController(t)
	target.AddDevice(0x40, nil)
	target.StretchTicks = 10

	w := &i2c.Transfer{Addr: 0x40, Op: i2c.OpWrite, Buf: []byte{1}}
	r := &i2c.Transfer{Addr: 0x40, Op: i2c.OpRead, Buf: make([]byte, 1)}
	w.Chain(r)
	if err := c.Start(w); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Abort()
	c.Tick()
	if errcode.Of(w.Err()) != errcode.Aborted || errcode.Of(r.Err()) != errcode.Aborted {
		t.Fatalf("chain = %v / %v, want aborted / aborted", w.Err(), r.Err())
	}
}

func TestConfigure(t *testing.T) {
	target := mock.NewI2C()
	c := i2c.NewController(target)
	if err := c.Configure(i2c.Config{}); errcode.Of(err) != errcode.FrequencyNotSupported {
		t.Fatalf("zero frequency = %v", err)
	}
	if err := c.Configure(i2c.Config{Frequency: 10}); errcode.Of(err) != errcode.FrequencyNotSupported {
		t.Fatalf("divider overflow = %v", err)
	}
	if err := c.Configure(i2c.Config{Frequency: 100_000}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if c.EffectiveFrequency() != 100_000 || target.Div != 10 {
		t.Fatalf("effective=%d div=%d", c.EffectiveFrequency(), target.Div)
	}

	target.AddDevice(0x40, nil)
	target.StretchTicks = 10
	if err := c.Start(&i2c.Transfer{Addr: 0x40, Op: i2c.OpWrite, Buf: []byte{1}}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Configure(i2c.Config{Frequency: 400_000}); errcode.Of(err) != errcode.Busy {
		t.Fatalf("Configure while active = %v, want busy", err)
	}
}
