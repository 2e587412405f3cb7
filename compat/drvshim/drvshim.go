// Package drvshim adapts the async bus capabilities to the blocking Tx
// shapes of tinygo.org/x/drivers, so stock device drivers (sensors,
// displays, flash) run unchanged over any backend. Each call pumps Tick
// inline until the transfer completes, with a default deadline so a dead
// bus cannot spin forever.
package drvshim

import (
	"tinygo.org/x/drivers"

	"periphcore-go/i2c"
	"periphcore-go/periph"
	"periphcore-go/spi"
)

func defaultTimeout() periph.Timeout {
	return periph.Micros(25_000, 100)
}

// I2C adapts an i2c.Conn to drivers.I2C.
type I2C struct {
	conn    i2c.Conn
	timeout periph.Timeout
}

var _ drivers.I2C = I2C{}

func NewI2C(conn i2c.Conn) I2C {
	return I2C{conn: conn, timeout: defaultTimeout()}
}

func (s I2C) WithTimeout(t periph.Timeout) I2C {
	s.timeout = t
	return s
}

// Tx performs write-then-read as one transaction under a repeated start,
// which is what register-style devices expect. Either buffer may be empty;
// both empty probes the address.
func (s I2C) Tx(addr uint16, w, r []byte) error {
	var first, read *i2c.Transfer
	if len(r) > 0 {
		read = &i2c.Transfer{Addr: i2c.Addr(addr), Op: i2c.OpRead, Buf: r, Timeout: s.timeout}
	}
	if len(w) > 0 || read == nil {
		first = &i2c.Transfer{Addr: i2c.Addr(addr), Op: i2c.OpWrite, Buf: w, Timeout: s.timeout}
		if read != nil {
			first.Chain(read)
		}
	} else {
		first = read
	}
	last := first
	if read != nil {
		last = read
	}
	if err := s.conn.Start(first); err != nil {
		return err
	}
	for !last.Done() {
		s.conn.Tick()
	}
	if err := first.Err(); err != nil {
		return err
	}
	return last.Err()
}

// SPI adapts a spi.Conn to drivers.SPI.
type SPI struct {
	conn    spi.Conn
	timeout periph.Timeout
}

var _ drivers.SPI = SPI{}

func NewSPI(conn spi.Conn) SPI {
	return SPI{conn: conn, timeout: defaultTimeout()}
}

func (s SPI) WithTimeout(t periph.Timeout) SPI {
	s.timeout = t
	return s
}

func (s SPI) Tx(w, r []byte) error {
	xfer := &spi.Transfer{TX: w, RX: r, Timeout: s.timeout}
	if err := s.conn.Start(xfer); err != nil {
		return err
	}
	for !xfer.Done() {
		s.conn.Tick()
	}
	return xfer.Err()
}

func (s SPI) Transfer(b byte) (byte, error) {
	var rx [1]byte
	if err := s.Tx([]byte{b}, rx[:]); err != nil {
		return 0, err
	}
	return rx[0], nil
}
