// Package gpio defines the GPIO capability: pin configuration, level
// read/write and run-time pin resolution.
package gpio

import "periphcore-go/periph"

// Level is the logic level of a pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Direction selects how a pin drives its line.
type Direction uint8

const (
	DirInput Direction = iota
	DirPushPull
	DirOpenCollector
)

func (d Direction) String() string {
	switch d {
	case DirPushPull:
		return "push_pull"
	case DirOpenCollector:
		return "open_collector"
	default:
		return "input"
	}
}

// Pull selects the on-chip resistor attached to a pin.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

func (p Pull) String() string {
	switch p {
	case PullUp:
		return "up"
	case PullDown:
		return "down"
	default:
		return "none"
	}
}

// Config describes the desired operating mode of one pin.
// A backend that cannot express the request rejects it; it never downgrades.
type Config struct {
	Direction Direction
	Pull      Pull
}

// Conn is the GPIO capability operation set.
//
// Configure fails with errcode.UnsupportedDirection or errcode.UnsupportedPull
// when the backend cannot express the request, and with errcode.UnknownPin for
// a pin outside its range. Write has no failure path; writing a pin configured
// as an input is a caller logic error. ParsePin resolves a textual pin spec at
// run time, failing with errcode.UnknownPin; it is the dynamic counterpart of
// spelling a periph.Pin constant when a driver is bound to a fixed chip.
type Conn interface {
	Configure(pin periph.Pin, cfg Config) error
	Read(pin periph.Pin) Level
	Write(pin periph.Pin, level Level)
	ParsePin(spec string) (periph.Pin, error)
}

// Verify compiles only when T satisfies the GPIO capability. Instantiate it
// next to a driver's definition so a contract break fails the driver's own
// build, not its first caller's.
func Verify[T Conn]() {}

// Bind type-erases a concrete driver into a capability handle. The handle
// does not own the driver; the driver must outlive it.
func Bind[T Conn](impl T) Conn { return impl }
