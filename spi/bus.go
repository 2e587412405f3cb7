package spi

import (
	"sync/atomic"
	"time"

	"periphcore-go/errcode"
	"periphcore-go/x/mathx"
)

const maxDivider = 0xFFFF

// Target is the unit-level contract a chip backend implements to be driven
// by Bus. The engine programs SCK = ClockHz / (2 * divider); Ready gates
// each Exchange so a tick never outruns the shifter.
type Target interface {
	ClockHz() uint32
	Apply(divider uint32, mode Mode)
	Ready() bool
	Exchange(b byte) byte
}

// Bus implements the SPI capability over any Target. One exchange may be
// active at a time; the API enforces that rather than convention.
type Bus[T Target] struct {
	target T
	now    func() time.Time

	cur   atomic.Pointer[Transfer]
	abort atomic.Bool

	effective uint32
}

var _ Conn = (*Bus[Target])(nil)

func NewBus[T Target](target T) *Bus[T] {
	return &Bus[T]{target: target, now: time.Now}
}

// SetClock replaces the time source, for simulation and tests.
func (b *Bus[T]) SetClock(now func() time.Time) { b.now = now }

// Target returns the backing target, for backend-specific access.
func (b *Bus[T]) Target() T { return b.target }

// EffectiveFrequency is the SCK rate actually programmed by the last
// successful Configure. It never exceeds the requested rate.
func (b *Bus[T]) EffectiveFrequency() uint32 { return b.effective }

// Configure validates cfg against the target clock and programs it. The
// closed set of rejection codes is {Busy, FrequencyNotSupported,
// ModeNotSupported}.
func (b *Bus[T]) Configure(cfg Config) error {
	if b.cur.Load() != nil {
		return errcode.Busy
	}
	if cfg.Mode > 3 {
		return errcode.ModeNotSupported
	}
	if cfg.Frequency == 0 {
		return errcode.FrequencyNotSupported
	}
	clock := b.target.ClockHz()
	// Round the divider up so the programmed rate never exceeds the request.
	div := mathx.CeilDiv(clock, 2*cfg.Frequency)
	if div == 0 || div > maxDivider {
		return errcode.FrequencyNotSupported
	}
	b.target.Apply(div, cfg.Mode)
	b.effective = clock / (2 * div)
	return nil
}

// Start accepts t for exchange. Fails with errcode.InProgress while another
// transfer is active; the active transfer is left untouched.
func (b *Bus[T]) Start(t *Transfer) error {
	if b.cur.Load() != nil {
		return errcode.InProgress
	}
	t.n = 0
	t.err = ""
	t.deadline = t.Timeout.Deadline(b.now(), t.Len())
	t.done.Store(false)
	b.abort.Store(false)
	b.cur.Store(t)
	return nil
}

// Tick advances the active exchange by however many units the target
// reports ready, then returns. Non-blocking and bounded.
func (b *Bus[T]) Tick() {
	t := b.cur.Load()
	if t == nil {
		return
	}
	if b.abort.Load() {
		b.complete(t, errcode.Aborted)
		return
	}
	total := t.Len()
	for t.n < total && b.target.Ready() {
		var out byte
		if t.n < len(t.TX) {
			out = t.TX[t.n]
		}
		in := b.target.Exchange(out)
		if t.n < len(t.RX) {
			t.RX[t.n] = in
		}
		t.n++
	}
	if t.n == total {
		b.complete(t, "")
		return
	}
	if !t.deadline.IsZero() && b.now().After(t.deadline) {
		b.complete(t, errcode.Timeout)
	}
}

// Abort requests abandonment of the active exchange; it completes with
// errcode.Aborted on the next Tick.
func (b *Bus[T]) Abort() {
	if b.cur.Load() != nil {
		b.abort.Store(true)
	}
}

func (b *Bus[T]) complete(t *Transfer, c errcode.Code) {
	t.err = c
	t.done.Store(true)
	b.cur.Store(nil)
}
