package serialport

import (
	"testing"

	"github.com/tarm/serial"

	"periphcore-go/errcode"
	"periphcore-go/uart"
)

func TestMapConfig(t *testing.T) {
	sc, err := MapConfig("/dev/ttyUSB0", uart.Config{
		BaudRate: 115200,
		StopBits: uart.StopBitsTwo,
		Parity:   uart.ParityEven,
	})
	if err != nil {
		t.Fatalf("MapConfig: %v", err)
	}
	if sc.Name != "/dev/ttyUSB0" || sc.Baud != 115200 {
		t.Fatalf("device mapping = %q %d", sc.Name, sc.Baud)
	}
	if sc.Size != 8 {
		t.Fatalf("zero DataBits should default to 8, got %d", sc.Size)
	}
	if sc.Parity != serial.ParityEven || sc.StopBits != serial.Stop2 {
		t.Fatalf("frame mapping = %v %v", sc.Parity, sc.StopBits)
	}
	if sc.ReadTimeout == 0 {
		t.Fatal("reads must not block a Tick forever")
	}
}

func TestMapConfigRejections(t *testing.T) {
	cases := []struct {
		name string
		cfg  uart.Config
		want errcode.Code
	}{
		{"autobaud", uart.Config{AutoBaud: true}, errcode.AutoBaudNotSupported},
		{"zero baud", uart.Config{}, errcode.BaudRateNotSupported},
		{"rtscts", uart.Config{BaudRate: 9600, Flow: uart.FlowRTSCTS}, errcode.FlowControlNotSupported},
		{"nine bits", uart.Config{BaudRate: 9600, DataBits: 9}, errcode.WordSizeNotSupported},
		{"four bits", uart.Config{BaudRate: 9600, DataBits: 4}, errcode.WordSizeNotSupported},
	}
	for _, tc := range cases {
		if _, err := MapConfig("x", tc.cfg); errcode.Of(err) != tc.want {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}
