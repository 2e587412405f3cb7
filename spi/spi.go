// Package spi defines the SPI capability: clocking configuration and a
// single full-duplex, tick-driven transfer at a time.
package spi

import (
	"sync/atomic"
	"time"

	"periphcore-go/errcode"
	"periphcore-go/periph"
)

// Mode is one of the four standard clock polarity x phase combinations.
//
//	Mode 0: CPOL=0 CPHA=0   clock idle low, sample on rising edge
//	Mode 1: CPOL=0 CPHA=1   clock idle low, sample on falling edge
//	Mode 2: CPOL=1 CPHA=0   clock idle high, sample on falling edge
//	Mode 3: CPOL=1 CPHA=1   clock idle high, sample on rising edge
type Mode uint8

// CPOL reports the idle clock level.
func (m Mode) CPOL() bool { return m&2 != 0 }

// CPHA reports whether data is sampled on the second clock edge.
func (m Mode) CPHA() bool { return m&1 != 0 }

// Config describes the desired bus operating point.
type Config struct {
	Frequency uint32 // SCK rate in Hz
	Mode      Mode
}

// Transfer is one caller-owned full-duplex exchange. Either buffer may be
// nil for half-duplex use; the exchange length is the longer of the two.
// Missing TX bytes are clocked out as 0x00, surplus RX bytes are dropped.
//
// The caller constructs it, passes it to Start and polls Done; the driver is
// the only writer until Done reports true. Buffers must stay valid and
// unmodified until then.
type Transfer struct {
	TX      []byte
	RX      []byte
	Timeout periph.Timeout

	done     atomic.Bool
	n        int
	err      errcode.Code
	deadline time.Time
}

// Len is the exchange length in units.
func (t *Transfer) Len() int {
	if len(t.TX) > len(t.RX) {
		return len(t.TX)
	}
	return len(t.RX)
}

// Done reports completion. Safe to poll from the foreground while Tick runs
// in interrupt context; once true it stays true until the transfer is
// reused by another Start.
func (t *Transfer) Done() bool { return t.done.Load() }

// N is the number of units exchanged, accurate even on error.
// Valid once Done reports true.
func (t *Transfer) N() int { return t.n }

// Err is nil or one of {Timeout, Aborted} from the in-transfer taxonomy.
// Valid once Done reports true.
func (t *Transfer) Err() error {
	if t.err == "" {
		return nil
	}
	return t.err
}

// Conn is the SPI capability operation set. Start never blocks; it fails
// with errcode.InProgress while an exchange is active. Progress happens only
// inside Tick. There is no end-operation: completion of the transfer returns
// the bus to Idle, and results are read off the Transfer itself.
type Conn interface {
	Configure(cfg Config) error
	Start(t *Transfer) error
	Tick()
	Abort()
}

// Verify compiles only when T satisfies the SPI capability.
func Verify[T Conn]() {}

// Bind type-erases a concrete driver into a capability handle.
func Bind[T Conn](impl T) Conn { return impl }
