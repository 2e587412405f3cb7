package i2c

import (
	"sync/atomic"
	"time"

	"periphcore-go/errcode"
	"periphcore-go/x/mathx"
)

const maxDivider = 0xFFFF

// Target is the byte-level contract a backend implements to be driven by
// Controller. The engine programs SCL = ClockHz / (4 * divider) and owns
// deadlines, chaining and the taxonomy; the target moves the wire.
//
// Busy reports the device stretching the clock (or the shifter mid-unit);
// the engine retries on a later Tick and charges the wait against the
// transfer's deadline. Start issues a (repeated) start plus the address
// phase. Start and WriteByte fail with errcode.NoAck when unacknowledged;
// any error a target returns must carry an in-transfer taxonomy code.
type Target interface {
	ClockHz() uint32
	Apply(divider uint32)

	Busy() bool
	Start(addr Addr, op Op) error
	WriteByte(b byte) error
	ReadByte(last bool) (byte, error)
	Stop()
}

// Controller implements the I2C master capability over any Target. One
// transfer chain may be active at a time; the API enforces that rather than
// convention.
type Controller[T Target] struct {
	target T
	now    func() time.Time

	cur   atomic.Pointer[Transfer]
	abort atomic.Bool

	// started tracks whether the address phase of the current transfer has
	// been issued. Only the ticking context touches it.
	started bool

	effective uint32
}

var _ Conn = (*Controller[Target])(nil)

func NewController[T Target](target T) *Controller[T] {
	return &Controller[T]{target: target, now: time.Now}
}

// SetClock replaces the time source, for simulation and tests.
func (c *Controller[T]) SetClock(now func() time.Time) { c.now = now }

// Target returns the backing target, for backend-specific access.
func (c *Controller[T]) Target() T { return c.target }

// EffectiveFrequency is the SCL rate actually programmed by the last
// successful Configure. It never exceeds the requested rate.
func (c *Controller[T]) EffectiveFrequency() uint32 { return c.effective }

// Configure validates cfg against the target clock and programs it. The
// closed set of rejection codes is {Busy, FrequencyNotSupported}.
func (c *Controller[T]) Configure(cfg Config) error {
	if c.cur.Load() != nil {
		return errcode.Busy
	}
	if cfg.Frequency == 0 {
		return errcode.FrequencyNotSupported
	}
	clock := c.target.ClockHz()
	div := mathx.CeilDiv(clock, 4*cfg.Frequency)
	if div == 0 || div > maxDivider {
		return errcode.FrequencyNotSupported
	}
	c.target.Apply(div)
	c.effective = clock / (4 * div)
	return nil
}

// Start accepts t (and everything chained after it). Fails with
// errcode.InProgress while a chain is active; the active chain is left
// untouched.
func (c *Controller[T]) Start(t *Transfer) error {
	if c.cur.Load() != nil {
		return errcode.InProgress
	}
	now := c.now()
	for q := t; q != nil; q = q.next {
		q.Begin(now)
	}
	c.started = false
	c.abort.Store(false)
	c.cur.Store(t)
	return nil
}

// Tick advances the active chain. It is non-blocking: a stretching device
// makes it return immediately, with the wait charged against the current
// transfer's deadline.
func (c *Controller[T]) Tick() {
	t := c.cur.Load()
	if t == nil {
		return
	}
	if c.abort.Load() {
		c.fail(t, errcode.Aborted)
		return
	}
	now := c.now()
	for {
		if !t.deadline.IsZero() && now.After(t.deadline) {
			c.fail(t, errcode.Timeout)
			return
		}
		if c.target.Busy() {
			return
		}
		if !c.started {
			if err := c.target.Start(t.Addr, t.Op); err != nil {
				c.fail(t, errcode.Of(err))
				return
			}
			c.started = true
			continue
		}
		if t.n < len(t.Buf) {
			if t.Op == OpWrite {
				if err := c.target.WriteByte(t.Buf[t.n]); err != nil {
					c.fail(t, errcode.Of(err))
					return
				}
			} else {
				b, err := c.target.ReadByte(t.n == len(t.Buf)-1)
				if err != nil {
					c.fail(t, errcode.Of(err))
					return
				}
				t.Buf[t.n] = b
			}
			t.n++
			continue
		}
		// Transfer complete; continue the chain under a repeated start or
		// stop and go idle.
		if t.next != nil {
			next := t.next
			t.done.Store(true)
			t = next
			c.cur.Store(t)
			c.started = false
			continue
		}
		c.target.Stop()
		t.done.Store(true)
		c.cur.Store(nil)
		return
	}
}

// Abort requests abandonment of the active chain; every unfinished member
// completes with errcode.Aborted on the next Tick.
func (c *Controller[T]) Abort() {
	if c.cur.Load() != nil {
		c.abort.Store(true)
	}
}

// fail terminates the chain: the current transfer reports code, everything
// queued behind it reports Aborted, and the bus is released.
func (c *Controller[T]) fail(t *Transfer, code errcode.Code) {
	c.target.Stop()
	t.err = code
	t.done.Store(true)
	for q := t.next; q != nil; q = q.next {
		q.err = errcode.Aborted
		q.done.Store(true)
	}
	c.started = false
	c.cur.Store(nil)
}
