package gpio_test

import (
	"testing"

	"periphcore-go/errcode"
	"periphcore-go/gpio"
	"periphcore-go/mock"
	"periphcore-go/periph"
)

// The mock matrix is the reference backend; drive it through the capability
// handle so the test covers exactly what dynamic consumers see.
func newConn() gpio.Conn { return gpio.Bind(mock.NewGPIO()) }

func TestOutputReadBack(t *testing.T) {
	g := newConn()
	pin, err := g.ParsePin("PA0")
	if err != nil {
		t.Fatalf("ParsePin: %v", err)
	}
	if err := g.Configure(pin, gpio.Config{Direction: gpio.DirPushPull}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	g.Write(pin, gpio.High)
	if g.Read(pin) != gpio.High {
		t.Fatal("pin should read high")
	}
	g.Write(pin, gpio.Low)
	if g.Read(pin) != gpio.Low {
		t.Fatal("pin should read low")
	}
}

func TestInputFollowsPullThenDrive(t *testing.T) {
	m := mock.NewGPIO()
	g := gpio.Bind(m)
	pin := periph.Pin{Port: 1, Index: 4}

	if err := g.Configure(pin, gpio.Config{Direction: gpio.DirInput, Pull: gpio.PullUp}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if g.Read(pin) != gpio.High {
		t.Fatal("pulled-up input should idle high")
	}
	m.Drive(pin, gpio.Low)
	if g.Read(pin) != gpio.Low {
		t.Fatal("external drive should win over pull")
	}
	m.Release(pin)
	if g.Read(pin) != gpio.High {
		t.Fatal("pull should win again after release")
	}
}

func TestOpenCollectorIsWiredAnd(t *testing.T) {
	m := mock.NewGPIO()
	pin := periph.Pin{Index: 2}
	if err := m.Configure(pin, gpio.Config{Direction: gpio.DirOpenCollector, Pull: gpio.PullUp}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if m.Read(pin) != gpio.High {
		t.Fatal("released open-collector with pull-up should read high")
	}
	m.Write(pin, gpio.Low)
	if m.Read(pin) != gpio.Low {
		t.Fatal("driving low must win")
	}
	m.Write(pin, gpio.High) // release
	m.Drive(pin, gpio.Low)  // another party holds the line
	if m.Read(pin) != gpio.Low {
		t.Fatal("line held low externally should read low")
	}
}

func TestParsePinUnknown(t *testing.T) {
	g := newConn()
	if _, err := g.ParsePin("nonsense"); errcode.Of(err) != errcode.UnknownPin {
		t.Fatalf("ParsePin = %v, want unknown_pin", err)
	}
}

func TestEnumStrings(t *testing.T) {
	if gpio.DirOpenCollector.String() != "open_collector" ||
		gpio.DirPushPull.String() != "push_pull" ||
		gpio.DirInput.String() != "input" {
		t.Fatal("Direction strings")
	}
	if gpio.PullUp.String() != "up" || gpio.PullDown.String() != "down" || gpio.PullNone.String() != "none" {
		t.Fatal("Pull strings")
	}
	if gpio.High.String() != "high" || gpio.Low.String() != "low" {
		t.Fatal("Level strings")
	}
}
