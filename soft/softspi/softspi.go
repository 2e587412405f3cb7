// Package softspi bit-bangs an SPI master over three GPIO pins. It
// implements spi.Target, so it plugs into the same engine as hardware
// shifters, and it is generic over the GPIO capability: instantiate it with
// a concrete pin driver for a monomorphised build, or with gpio.Conn when
// the pins come from hardware known only at run time (port expanders,
// test matrices).
package softspi

import (
	"time"

	"periphcore-go/gpio"
	"periphcore-go/periph"
	"periphcore-go/spi"
)

// clockHz is the timing base the divider is computed against; the usable
// SCK range tops out at clockHz/2.
const clockHz = 1_000_000

// Bus drives SCK/MOSI as push-pull outputs and samples MISO as an input.
type Bus[G gpio.Conn] struct {
	g    G
	sck  periph.Pin
	mosi periph.Pin
	miso periph.Pin

	mode       spi.Mode
	halfPeriod time.Duration
}

var _ spi.Target = (*Bus[gpio.Conn])(nil)

// New configures the three pins and returns the target. The pin
// configuration errors of the backing GPIO surface here, before the bus is
// ever clocked.
func New[G gpio.Conn](g G, sck, mosi, miso periph.Pin) (*Bus[G], error) {
	if err := g.Configure(sck, gpio.Config{Direction: gpio.DirPushPull}); err != nil {
		return nil, err
	}
	if err := g.Configure(mosi, gpio.Config{Direction: gpio.DirPushPull}); err != nil {
		return nil, err
	}
	if err := g.Configure(miso, gpio.Config{Direction: gpio.DirInput, Pull: gpio.PullUp}); err != nil {
		return nil, err
	}
	return &Bus[G]{g: g, sck: sck, mosi: mosi, miso: miso}, nil
}

func (b *Bus[G]) ClockHz() uint32 { return clockHz }

func (b *Bus[G]) Apply(divider uint32, mode spi.Mode) {
	b.mode = mode
	// SCK = clockHz / (2*div) with clockHz at 1 MHz puts the half period at
	// div microseconds.
	b.halfPeriod = time.Duration(divider) * time.Microsecond
	b.g.Write(b.sck, gpio.Level(mode.CPOL()))
	b.g.Write(b.mosi, gpio.Low)
}

// Ready is always true: the shifter is the CPU itself.
func (b *Bus[G]) Ready() bool { return true }

func (b *Bus[G]) Exchange(out byte) byte {
	idle := gpio.Level(b.mode.CPOL())
	var in byte
	for i := 7; i >= 0; i-- {
		bit := gpio.Level(out&(1<<i) != 0)
		if !b.mode.CPHA() {
			// Data valid before the leading edge, sampled on it.
			b.g.Write(b.mosi, bit)
			b.wait()
			b.g.Write(b.sck, !idle)
			in = in<<1 | b.sample()
			b.wait()
			b.g.Write(b.sck, idle)
		} else {
			// Data shifts on the leading edge, sampled on the trailing one.
			b.g.Write(b.sck, !idle)
			b.g.Write(b.mosi, bit)
			b.wait()
			b.g.Write(b.sck, idle)
			in = in<<1 | b.sample()
			b.wait()
		}
	}
	return in
}

func (b *Bus[G]) sample() byte {
	if b.g.Read(b.miso) == gpio.High {
		return 1
	}
	return 0
}

func (b *Bus[G]) wait() {
	if b.halfPeriod > 0 {
		time.Sleep(b.halfPeriod)
	}
}
