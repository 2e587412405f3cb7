package main

import (
	"testing"

	"periphcore-go/errcode"
	"periphcore-go/i2c"
)

func TestParseBoardDefaults(t *testing.T) {
	b, err := ParseBoard(nil)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	if b.GPIO == nil || b.UART == nil || b.SPI == nil || b.I2C == nil {
		t.Fatal("every capability should be wired")
	}
}

func TestParseBoardFull(t *testing.T) {
	raw := []byte(`
uart:
  clock_hz: 48000000
  baud: 9600
  parity: even
  stop_bits: 2
spi:
  clock_hz: 8000000
  frequency: 2000000
  mode: 3
i2c:
  clock_hz: 4000000
  frequency: 400000
  devices:
    - addr: 0x40
      regs:
        0x00: 0x12
`)
	b, err := ParseBoard(raw)
	if err != nil {
		t.Fatalf("ParseBoard: %v", err)
	}
	if b.UARTMock.Clock != 48_000_000 {
		t.Fatalf("uart clock = %d", b.UARTMock.Clock)
	}
	if b.SPIMock.Mode != 3 {
		t.Fatalf("spi mode = %v", b.SPIMock.Mode)
	}
	if _, ok := b.I2CMock.Devices[i2c.Addr(0x40)]; !ok {
		t.Fatal("device 0x40 should be attached")
	}
}

func TestParseBoardRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bad parity", "uart:\n  parity: mark\n"},
		{"bad stop bits", "uart:\n  stop_bits: 3\n"},
		{"bad flow", "uart:\n  flow: dtr\n"},
		{"i2c addr range", "i2c:\n  devices:\n    - addr: 0x95\n"},
	}
	for _, tc := range cases {
		if _, err := ParseBoard([]byte(tc.raw)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestParseBoardSurfacesEngineCodes(t *testing.T) {
	// A baud no divider can hit comes back with the engine's own rejection.
	raw := []byte("uart:\n  clock_hz: 48000000\n  baud: 40\n")
	_, err := ParseBoard(raw)
	if errcode.Of(err) != errcode.BaudRateNotSupported {
		t.Fatalf("err = %v, want baud_rate_not_supported", err)
	}
}
