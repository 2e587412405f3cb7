package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"periphcore-go/gpio"
	"periphcore-go/i2c"
	"periphcore-go/mock"
	"periphcore-go/spi"
	"periphcore-go/uart"
)

// boardFile is the YAML shape of a simulated board definition.
type boardFile struct {
	UART struct {
		ClockHz  uint32 `yaml:"clock_hz"`
		Baud     uint32 `yaml:"baud"`
		DataBits uint8  `yaml:"data_bits"`
		Parity   string `yaml:"parity"`
		StopBits uint8  `yaml:"stop_bits"`
		Flow     string `yaml:"flow"`
	} `yaml:"uart"`
	SPI struct {
		ClockHz   uint32 `yaml:"clock_hz"`
		Frequency uint32 `yaml:"frequency"`
		Mode      uint8  `yaml:"mode"`
	} `yaml:"spi"`
	I2C struct {
		ClockHz   uint32 `yaml:"clock_hz"`
		Frequency uint32 `yaml:"frequency"`
		Devices   []struct {
			Addr uint16        `yaml:"addr"`
			Regs map[byte]byte `yaml:"regs"`
		} `yaml:"devices"`
	} `yaml:"i2c"`
}

// Board is a fully wired simulated board: every capability backed by a mock
// target, with the mocks kept reachable so the console can play the
// external world (drive pins, seed registers).
type Board struct {
	GPIO gpio.Conn
	UART uart.Conn
	SPI  spi.Conn
	I2C  i2c.Conn

	GPIOMock *mock.GPIO
	UARTMock *mock.UART
	SPIMock  *mock.SPI
	I2CMock  *mock.I2C
}

func LoadBoard(path string) (*Board, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBoard(raw)
}

// ParseBoard builds a Board from YAML. Missing sections fall back to the
// mock defaults; configuration errors surface with the same codes real
// hardware would produce.
func ParseBoard(raw []byte) (*Board, error) {
	var f boardFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}

	b := &Board{
		GPIOMock: mock.NewGPIO(),
		UARTMock: mock.NewUART(),
		SPIMock:  mock.NewSPI(),
		I2CMock:  mock.NewI2C(),
	}
	b.GPIO = gpio.Bind(b.GPIOMock)

	if f.UART.ClockHz != 0 {
		b.UARTMock.Clock = f.UART.ClockHz
	}
	uartCfg := uart.Config{
		BaudRate: f.UART.Baud,
		DataBits: f.UART.DataBits,
	}
	if uartCfg.BaudRate == 0 {
		uartCfg.BaudRate = 115200
	}
	parity, err := parseParity(f.UART.Parity)
	if err != nil {
		return nil, err
	}
	uartCfg.Parity = parity
	switch f.UART.StopBits {
	case 0, 1:
		uartCfg.StopBits = uart.StopBitsOne
	case 2:
		uartCfg.StopBits = uart.StopBitsTwo
	default:
		return nil, fmt.Errorf("board: stop_bits %d", f.UART.StopBits)
	}
	switch f.UART.Flow {
	case "", "none":
		uartCfg.Flow = uart.FlowNone
	case "rtscts":
		uartCfg.Flow = uart.FlowRTSCTS
	default:
		return nil, fmt.Errorf("board: flow %q", f.UART.Flow)
	}
	port := uart.NewPort(b.UARTMock)
	if err := port.Configure(uartCfg); err != nil {
		return nil, fmt.Errorf("board: uart: %w", err)
	}
	b.UART = uart.Bind(port)

	if f.SPI.ClockHz != 0 {
		b.SPIMock.Clock = f.SPI.ClockHz
	}
	spiFreq := f.SPI.Frequency
	if spiFreq == 0 {
		spiFreq = 1_000_000
	}
	bus := spi.NewBus(b.SPIMock)
	if err := bus.Configure(spi.Config{Frequency: spiFreq, Mode: spi.Mode(f.SPI.Mode)}); err != nil {
		return nil, fmt.Errorf("board: spi: %w", err)
	}
	b.SPI = spi.Bind(bus)

	if f.I2C.ClockHz != 0 {
		b.I2CMock.Clock = f.I2C.ClockHz
	}
	i2cFreq := f.I2C.Frequency
	if i2cFreq == 0 {
		i2cFreq = 100_000
	}
	ctrl := i2c.NewController(b.I2CMock)
	if err := ctrl.Configure(i2c.Config{Frequency: i2cFreq}); err != nil {
		return nil, fmt.Errorf("board: i2c: %w", err)
	}
	for _, dev := range f.I2C.Devices {
		addr := i2c.Addr(dev.Addr)
		if !addr.Valid() {
			return nil, fmt.Errorf("board: i2c address %#x out of 7-bit range", dev.Addr)
		}
		b.I2CMock.AddDevice(addr, dev.Regs)
	}
	b.I2C = i2c.Bind(ctrl)

	return b, nil
}

func parseParity(s string) (uart.Parity, error) {
	switch s {
	case "", "none":
		return uart.ParityNone, nil
	case "even":
		return uart.ParityEven, nil
	case "odd":
		return uart.ParityOdd, nil
	}
	return 0, fmt.Errorf("board: parity %q", s)
}
