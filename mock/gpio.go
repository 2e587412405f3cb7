package mock

import (
	"periphcore-go/gpio"
	"periphcore-go/periph"
)

type pinState struct {
	cfg    gpio.Config
	out    gpio.Level
	ext    gpio.Level
	driven bool
}

// GPIO is an in-memory gpio.Conn. Pins spring into existence on first use.
// Tests play the "external world" through Drive/Release; open-collector pins
// resolve as wired-AND of the driver's level and the external one, which is
// what bit-banged bus tests need. OnWrite observes every Write in order.
type GPIO struct {
	OnWrite func(pin periph.Pin, level gpio.Level)

	pins map[periph.Pin]*pinState
}

var _ gpio.Conn = (*GPIO)(nil)

func NewGPIO() *GPIO {
	return &GPIO{pins: map[periph.Pin]*pinState{}}
}

func (g *GPIO) pin(p periph.Pin) *pinState {
	st, ok := g.pins[p]
	if !ok {
		st = &pinState{}
		g.pins[p] = st
	}
	return st
}

func (g *GPIO) Configure(pin periph.Pin, cfg gpio.Config) error {
	st := g.pin(pin)
	st.cfg = cfg
	if cfg.Direction == gpio.DirOpenCollector {
		st.out = gpio.High // released
	}
	return nil
}

// Config returns the last configuration applied to pin, for assertions.
func (g *GPIO) Config(pin periph.Pin) gpio.Config { return g.pin(pin).cfg }

func (g *GPIO) Read(pin periph.Pin) gpio.Level {
	st := g.pin(pin)
	switch st.cfg.Direction {
	case gpio.DirPushPull:
		return st.out
	case gpio.DirOpenCollector:
		return st.out && g.line(st)
	default:
		return g.line(st)
	}
}

// line is the level the external world presents: an explicit Drive wins,
// otherwise the configured pull, otherwise low.
func (g *GPIO) line(st *pinState) gpio.Level {
	if st.driven {
		return st.ext
	}
	return st.cfg.Pull == gpio.PullUp
}

func (g *GPIO) Write(pin periph.Pin, level gpio.Level) {
	g.pin(pin).out = level
	if g.OnWrite != nil {
		g.OnWrite(pin, level)
	}
}

func (g *GPIO) ParsePin(spec string) (periph.Pin, error) {
	return periph.ParsePin(spec)
}

// Drive presents an external level on pin, as a connected device would.
func (g *GPIO) Drive(pin periph.Pin, level gpio.Level) {
	st := g.pin(pin)
	st.ext = level
	st.driven = true
}

// Release removes the external drive, leaving the pull to win again.
func (g *GPIO) Release(pin periph.Pin) { g.pin(pin).driven = false }

// Out returns the last level written to pin by the driver side.
func (g *GPIO) Out(pin periph.Pin) gpio.Level { return g.pin(pin).out }
