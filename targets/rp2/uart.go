//go:build rp2040 || rp2350

package rp2

import (
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"periphcore-go/uart"
)

// UARTTarget drives one PL011 through uartx. Received bytes come out of the
// uartx IRQ ring, so RxReady never touches the hardware FIFO directly.
//
// The ring does not carry the PL011 error bits, so framing/parity/overrun
// conditions are not reported per byte; a deadline is the caller's guard.
type UARTTarget struct {
	hw     *uartx.UART
	tx, rx machine.Pin

	configured bool
}

var _ uart.Target = (*UARTTarget)(nil)

// UART0 and UART1 return targets for the two PL011 instances with the given
// pin assignment.
func UART0(tx, rx machine.Pin) *UARTTarget {
	return &UARTTarget{hw: uartx.UART0, tx: tx, rx: rx}
}

func UART1(tx, rx machine.Pin) *UARTTarget {
	return &UARTTarget{hw: uartx.UART1, tx: tx, rx: rx}
}

// ClockHz is the PL011 baud clock; clk_peri follows the system clock on
// this family.
func (t *UARTTarget) ClockHz() uint32 { return machine.CPUFrequency() }

func (t *UARTTarget) Caps() uart.Caps {
	return uart.CapParity | uart.CapTwoStopBits |
		uart.CapWord5 | uart.CapWord6 | uart.CapWord7 | uart.CapWord8
}

func (t *UARTTarget) Apply(divider uint32, cfg uart.Config) {
	baud := t.ClockHz() / (16 * divider)
	if !t.configured {
		t.hw.Configure(uartx.UARTConfig{BaudRate: baud, TX: t.tx, RX: t.rx})
		t.configured = true
	} else {
		t.hw.SetBaudRate(baud)
	}

	bits := cfg.DataBits
	if bits == 0 {
		bits = 8
	}
	stop := uint8(1)
	if cfg.StopBits == uart.StopBitsTwo {
		stop = 2
	}
	parity := uartx.ParityNone
	switch cfg.Parity {
	case uart.ParityEven:
		parity = uartx.ParityEven
	case uart.ParityOdd:
		parity = uartx.ParityOdd
	}
	t.hw.SetFormat(bits, stop, parity)
}

// TxReady is always true; back-pressure lives in the 32-entry hardware FIFO
// behind WriteByte.
func (t *UARTTarget) TxReady() bool { return true }

func (t *UARTTarget) WriteByte(b byte) {
	t.hw.WriteByte(b)
}

func (t *UARTTarget) RxReady() bool { return t.hw.Buffered() > 0 }

func (t *UARTTarget) ReadByte() (byte, uart.RxFlags) {
	b, _ := t.hw.ReadByte()
	return b, 0
}
