//go:build rp2040 || rp2350

// Package rp2 backs the capabilities with RP2040/RP2350 silicon through
// the machine package and uartx.
package rp2

import (
	"machine"

	"periphcore-go/errcode"
	"periphcore-go/gpio"
	"periphcore-go/periph"
)

const maxPin = 29

// GPIO implements the pin capability on the single RP2 pin bank.
//
// The SIO has no open-drain mode, so open-collector is emulated the usual
// way: releasing the line switches the pin to input, driving low switches
// it to output low. That is enough for bit-banged buses.
type GPIO struct {
	cfg [maxPin + 1]gpio.Config
}

var _ gpio.Conn = (*GPIO)(nil)

func NewGPIO() *GPIO { return &GPIO{} }

func (g *GPIO) ParsePin(spec string) (periph.Pin, error) {
	pin, err := periph.ParsePin(spec)
	if err != nil {
		return periph.Pin{}, err
	}
	if pin.Port != 0 || pin.Index > maxPin {
		return periph.Pin{}, &errcode.E{C: errcode.UnknownPin, Op: "rp2.ParsePin", Msg: spec}
	}
	return pin, nil
}

func (g *GPIO) Configure(pin periph.Pin, cfg gpio.Config) error {
	if pin.Port != 0 || pin.Index > maxPin {
		return &errcode.E{C: errcode.UnknownPin, Op: "rp2.Configure", Msg: pin.String()}
	}
	hw := machine.Pin(pin.Index)
	switch cfg.Direction {
	case gpio.DirInput:
		hw.Configure(machine.PinConfig{Mode: inputMode(cfg.Pull)})
	case gpio.DirPushPull:
		if cfg.Pull != gpio.PullNone {
			return errcode.UnsupportedPull
		}
		hw.Configure(machine.PinConfig{Mode: machine.PinOutput})
	case gpio.DirOpenCollector:
		// Released by default.
		hw.Configure(machine.PinConfig{Mode: inputMode(cfg.Pull)})
	default:
		return errcode.UnsupportedDirection
	}
	g.cfg[pin.Index] = cfg
	return nil
}

func (g *GPIO) Read(pin periph.Pin) gpio.Level {
	if pin.Port != 0 || pin.Index > maxPin {
		return gpio.Low
	}
	return gpio.Level(machine.Pin(pin.Index).Get())
}

func (g *GPIO) Write(pin periph.Pin, level gpio.Level) {
	if pin.Port != 0 || pin.Index > maxPin {
		return
	}
	hw := machine.Pin(pin.Index)
	cfg := g.cfg[pin.Index]
	if cfg.Direction == gpio.DirOpenCollector {
		if level == gpio.High {
			hw.Configure(machine.PinConfig{Mode: inputMode(cfg.Pull)})
		} else {
			hw.Configure(machine.PinConfig{Mode: machine.PinOutput})
			hw.Low()
		}
		return
	}
	hw.Set(bool(level))
}

func inputMode(pull gpio.Pull) machine.PinMode {
	switch pull {
	case gpio.PullUp:
		return machine.PinInputPullup
	case gpio.PullDown:
		return machine.PinInputPulldown
	default:
		return machine.PinInput
	}
}
