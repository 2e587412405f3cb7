// Package i2c defines the I2C master capability: bus clocking and
// asynchronous, tick-driven transfers addressed to 7-bit targets, with
// intrusive chaining for write-then-restart-read sequences.
package i2c

import (
	"sync/atomic"
	"time"

	"periphcore-go/errcode"
	"periphcore-go/periph"
)

// Addr is a 7-bit target device address.
type Addr uint16

// Valid reports whether the address fits in 7 bits.
func (a Addr) Valid() bool { return a < 0x80 }

// Op tags a transfer buffer as read xor write.
type Op uint8

const (
	OpWrite Op = iota
	OpRead
)

func (o Op) String() string {
	if o == OpRead {
		return "read"
	}
	return "write"
}

// Config describes the desired bus operating point.
type Config struct {
	Frequency uint32 // SCL rate in Hz
}

// Transfer is one caller-owned exchange with a target device. Buf is written
// to the device for OpWrite and filled from it for OpRead; it must stay
// valid and unmodified until Done reports true. Timeout bounds indefinite
// clock stretching by the device.
//
// Transfers chain through an intrusive link so a write followed by a
// restart-read runs as one sequence without the caller polling in between;
// see Chain.
type Transfer struct {
	Addr    Addr
	Op      Op
	Buf     []byte
	Timeout periph.Timeout

	next     *Transfer
	done     atomic.Bool
	n        int
	err      errcode.Code
	cause    error
	deadline time.Time
}

// Chain appends next after t and returns next, so sequences read in wire
// order: w.Chain(r). Chained transfers run back to back separated by a
// repeated start; the chain completes in order, and if one member fails the
// remainder complete with errcode.Aborted.
func (t *Transfer) Chain(next *Transfer) *Transfer {
	t.next = next
	return next
}

// Begin re-arms t for a new submission: results are cleared and the
// deadline computed from now. Conn implementations call it on every chain
// member when accepting a Start.
func (t *Transfer) Begin(now time.Time) {
	t.n = 0
	t.err = ""
	t.cause = nil
	t.deadline = t.Timeout.Deadline(now, len(t.Buf))
	t.done.Store(false)
}

// Next returns the transfer chained after t, or nil.
func (t *Transfer) Next() *Transfer { return t.next }

// Complete publishes t's result and marks it done. It is the completion
// path for Conn implementations that drive a transport directly instead of
// going through a Target engine; code "" means success.
func (t *Transfer) Complete(n int, code errcode.Code) {
	t.n = n
	t.err = code
	t.done.Store(true)
}

// CompleteCause is Complete with the underlying transport error attached.
// Backends over an OS transport use it so the kernel error stays reachable
// through errors.Is/As behind the closed-set code.
func (t *Transfer) CompleteCause(n int, code errcode.Code, cause error) {
	t.n = n
	t.err = code
	t.cause = cause
	t.done.Store(true)
}

// Done reports completion. Safe to poll from the foreground while Tick runs
// in interrupt context; once true it stays true until the transfer is
// reused by another Start.
func (t *Transfer) Done() bool { return t.done.Load() }

// N is the number of bytes transferred, accurate even on error.
// Valid once Done reports true.
func (t *Transfer) N() int { return t.n }

// Err is nil or one of {Timeout, NoAck, Aborted} from the in-transfer
// taxonomy. Valid once Done reports true. When a backend attached a
// transport cause the code comes wrapped in an *errcode.E that unwraps
// to it; errcode.Of extracts the code either way.
func (t *Transfer) Err() error {
	if t.err == "" {
		return nil
	}
	if t.cause != nil {
		return &errcode.E{C: t.err, Err: t.cause}
	}
	return t.err
}

// Conn is the I2C master capability operation set. Start never blocks; it
// fails with errcode.InProgress while a transfer (or chain) is active.
// Progress happens only inside Tick. Results are read off each Transfer.
type Conn interface {
	Configure(cfg Config) error
	Start(t *Transfer) error
	Tick()
	Abort()
}

// Verify compiles only when T satisfies the I2C capability.
func Verify[T Conn]() {}

// Bind type-erases a concrete driver into a capability handle.
func Bind[T Conn](impl T) Conn { return impl }
