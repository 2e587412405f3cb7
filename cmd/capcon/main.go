// capcon is an interactive console for the peripheral capabilities, wired
// to a simulated board. It exists to poke at the transfer protocol by hand:
// every bus command begins a transfer, pumps Tick at a configurable rate
// and reports the outcome, exactly as firmware would.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"periphcore-go/errcode"
	"periphcore-go/gpio"
	"periphcore-go/i2c"
	"periphcore-go/periph"
	"periphcore-go/spi"
	"periphcore-go/x/mathx"
	"periphcore-go/x/timex"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "capcon"
	app.Usage = "interactive console for simulated peripheral buses"
	app.Version = version
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "board",
			Usage: "YAML board definition",
		},
		&cli.IntFlag{
			Name:  "tick-hz",
			Value: 100_000,
			Usage: "rate at which transfers are pumped",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
		})
		charm.SetColorProfile(termenv.ANSI256)
		charm.SetLevel(chlog.InfoLevel)
		if ctx.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Action = repl
	if err := app.Run(os.Args); err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			return exerr.ExitCode()
		}
		slog.Error("fatal", "err", err)
		return 1
	}
	return 0
}

var errQuit = errors.New("quit")

type console struct {
	board  *Board
	period time.Duration
}

func repl(ctx *cli.Context) error {
	var board *Board
	var err error
	if path := ctx.String("board"); path != "" {
		board, err = LoadBoard(path)
	} else {
		board, err = ParseBoard(nil)
	}
	if err != nil {
		return err
	}

	hz := mathx.Clamp(ctx.Int("tick-hz"), 100, 1_000_000)
	c := &console{
		board:  board,
		period: time.Duration(timex.PeriodFromHz(uint32(hz))),
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "capcon> ",
		HistoryFile:     filepath.Join(os.TempDir(), "capcon_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	slog.Info("board ready", "tick_hz", hz)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		args, err := shlex.Split(line)
		if err != nil {
			slog.Error("parse", "err", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if err := c.dispatch(args); err != nil {
			if err == errQuit {
				return nil
			}
			slog.Error(args[0], "err", err)
		}
	}
}

func (c *console) dispatch(args []string) error {
	switch args[0] {
	case "help":
		fmt.Print(usage)
		return nil
	case "exit", "quit":
		return errQuit
	case "gpio":
		return c.gpioCmd(args[1:])
	case "uart":
		return c.uartCmd(args[1:])
	case "spi":
		return c.spiCmd(args[1:])
	case "i2c":
		return c.i2cCmd(args[1:])
	}
	return fmt.Errorf("unknown command %q, try help", args[0])
}

const usage = `commands:
  gpio mode <pin> input|output|oc [up|down]
  gpio write <pin> high|low
  gpio read <pin>
  gpio drive <pin> high|low      drive the pin externally
  gpio release <pin>             release the external drive
  uart send <hex bytes...>
  uart recv <n> [timeout_us]
  uart feed <hex bytes...>       queue bytes on the simulated wire
  uart wire                      show bytes the port transmitted
  spi xfer <hex bytes...>
  spi wire
  i2c write <addr> <hex bytes...>
  i2c read <addr> <n>
  i2c reg <addr> <reg> <n>       write pointer, restart, read
  i2c scan
  i2c wire
  exit
`

// pump ticks the given connection until done reports true.
func (c *console) pump(tick func(), done func() bool) {
	for !done() {
		tick()
		time.Sleep(c.period)
	}
}

// ---------------------------------------------------------------------------
// gpio
// ---------------------------------------------------------------------------

func (c *console) gpioCmd(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: gpio <mode|write|read|drive|release> <pin> ...")
	}
	pin, err := c.board.GPIO.ParsePin(args[1])
	if err != nil {
		return err
	}
	switch args[0] {
	case "mode":
		if len(args) < 3 {
			return errors.New("usage: gpio mode <pin> input|output|oc [up|down]")
		}
		cfg := gpio.Config{}
		switch args[2] {
		case "input":
			cfg.Direction = gpio.DirInput
		case "output":
			cfg.Direction = gpio.DirPushPull
		case "oc":
			cfg.Direction = gpio.DirOpenCollector
		default:
			return fmt.Errorf("direction %q", args[2])
		}
		if len(args) > 3 {
			switch args[3] {
			case "up":
				cfg.Pull = gpio.PullUp
			case "down":
				cfg.Pull = gpio.PullDown
			default:
				return fmt.Errorf("pull %q", args[3])
			}
		}
		return c.board.GPIO.Configure(pin, cfg)
	case "write":
		level, err := parseLevel(args[2:])
		if err != nil {
			return err
		}
		c.board.GPIO.Write(pin, level)
		return nil
	case "read":
		fmt.Printf("%s = %s\n", pin, c.board.GPIO.Read(pin))
		return nil
	case "drive":
		level, err := parseLevel(args[2:])
		if err != nil {
			return err
		}
		c.board.GPIOMock.Drive(pin, level)
		return nil
	case "release":
		c.board.GPIOMock.Release(pin)
		return nil
	}
	return fmt.Errorf("gpio %q", args[0])
}

func parseLevel(args []string) (gpio.Level, error) {
	if len(args) < 1 {
		return gpio.Low, errors.New("missing level")
	}
	switch args[0] {
	case "high", "1":
		return gpio.High, nil
	case "low", "0":
		return gpio.Low, nil
	}
	return gpio.Low, fmt.Errorf("level %q", args[0])
}

// ---------------------------------------------------------------------------
// uart
// ---------------------------------------------------------------------------

func (c *console) uartCmd(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: uart <send|recv|feed|wire> ...")
	}
	switch args[0] {
	case "send":
		buf, err := parseHexBytes(args[1:])
		if err != nil {
			return err
		}
		if err := c.board.UART.BeginSend(buf, periph.Micros(100_000, 100)); err != nil {
			return err
		}
		c.pump(c.board.UART.Tick, c.board.UART.SendDone)
		res, err := c.board.UART.EndSend()
		if err != nil {
			return err
		}
		report("sent", res.N, res.Err)
		return nil
	case "recv":
		if len(args) < 2 {
			return errors.New("usage: uart recv <n> [timeout_us]")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return err
		}
		timeout := periph.Micros(100_000, 100)
		if len(args) > 2 {
			us, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return err
			}
			timeout = periph.Micros(us, 0)
		}
		buf := make([]byte, n)
		if err := c.board.UART.BeginReceive(buf, timeout); err != nil {
			return err
		}
		c.pump(c.board.UART.Tick, c.board.UART.ReceiveDone)
		res, err := c.board.UART.EndReceive()
		if err != nil {
			return err
		}
		report("received", res.N, res.Err)
		if res.N > 0 {
			fmt.Println(hexDump(buf[:res.N]))
		}
		return nil
	case "feed":
		buf, err := parseHexBytes(args[1:])
		if err != nil {
			return err
		}
		c.board.UARTMock.QueueRx(buf...)
		return nil
	case "wire":
		fmt.Println(hexDump(c.board.UARTMock.Tx))
		return nil
	}
	return fmt.Errorf("uart %q", args[0])
}

// ---------------------------------------------------------------------------
// spi
// ---------------------------------------------------------------------------

func (c *console) spiCmd(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: spi <xfer|wire> ...")
	}
	switch args[0] {
	case "xfer":
		tx, err := parseHexBytes(args[1:])
		if err != nil {
			return err
		}
		xfer := &spi.Transfer{
			TX:      tx,
			RX:      make([]byte, len(tx)),
			Timeout: periph.Micros(100_000, 100),
		}
		if err := c.board.SPI.Start(xfer); err != nil {
			return err
		}
		c.pump(c.board.SPI.Tick, xfer.Done)
		report("exchanged", xfer.N(), xfer.Err())
		if xfer.N() > 0 {
			fmt.Println(hexDump(xfer.RX[:xfer.N()]))
		}
		return nil
	case "wire":
		fmt.Println(hexDump(c.board.SPIMock.Tx))
		return nil
	}
	return fmt.Errorf("spi %q", args[0])
}

// ---------------------------------------------------------------------------
// i2c
// ---------------------------------------------------------------------------

func (c *console) i2cCmd(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: i2c <write|read|reg|scan|wire> ...")
	}
	switch args[0] {
	case "write":
		if len(args) < 2 {
			return errors.New("usage: i2c write <addr> <hex bytes...>")
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		buf, err := parseHexBytes(args[2:])
		if err != nil {
			return err
		}
		xfer := &i2c.Transfer{Addr: addr, Op: i2c.OpWrite, Buf: buf, Timeout: periph.Micros(100_000, 100)}
		if err := c.board.I2C.Start(xfer); err != nil {
			return err
		}
		c.pump(c.board.I2C.Tick, xfer.Done)
		report("wrote", xfer.N(), xfer.Err())
		return nil
	case "read":
		if len(args) < 3 {
			return errors.New("usage: i2c read <addr> <n>")
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		xfer := &i2c.Transfer{Addr: addr, Op: i2c.OpRead, Buf: make([]byte, n), Timeout: periph.Micros(100_000, 100)}
		if err := c.board.I2C.Start(xfer); err != nil {
			return err
		}
		c.pump(c.board.I2C.Tick, xfer.Done)
		report("read", xfer.N(), xfer.Err())
		if xfer.N() > 0 {
			fmt.Println(hexDump(xfer.Buf[:xfer.N()]))
		}
		return nil
	case "reg":
		if len(args) < 4 {
			return errors.New("usage: i2c reg <addr> <reg> <n>")
		}
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		reg, err := parseHexBytes(args[2:3])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[3])
		if err != nil {
			return err
		}
		w := &i2c.Transfer{Addr: addr, Op: i2c.OpWrite, Buf: reg, Timeout: periph.Micros(100_000, 100)}
		r := &i2c.Transfer{Addr: addr, Op: i2c.OpRead, Buf: make([]byte, n), Timeout: periph.Micros(100_000, 100)}
		w.Chain(r)
		if err := c.board.I2C.Start(w); err != nil {
			return err
		}
		c.pump(c.board.I2C.Tick, r.Done)
		if err := w.Err(); err != nil {
			return err
		}
		report("read", r.N(), r.Err())
		if r.N() > 0 {
			fmt.Println(hexDump(r.Buf[:r.N()]))
		}
		return nil
	case "scan":
		var found []i2c.Addr
		for addr := i2c.Addr(0x08); addr <= 0x77; addr++ {
			probe := &i2c.Transfer{Addr: addr, Op: i2c.OpWrite, Timeout: periph.Micros(10_000, 0)}
			if err := c.board.I2C.Start(probe); err != nil {
				return err
			}
			c.pump(c.board.I2C.Tick, probe.Done)
			if probe.Err() == nil {
				found = append(found, addr)
			}
		}
		for _, addr := range found {
			fmt.Printf("0x%02x\n", uint16(addr))
		}
		slog.Debug("scan complete", "found", len(found))
		return nil
	case "wire":
		for _, ev := range c.board.I2CMock.Wire {
			fmt.Println(ev)
		}
		return nil
	}
	return fmt.Errorf("i2c %q", args[0])
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func report(verb string, n int, err error) {
	if err != nil {
		fmt.Printf("%s %d units, error %s\n", verb, n, errcode.Of(err))
		return
	}
	fmt.Printf("%s %d units\n", verb, n)
}

func parseAddr(s string) (i2c.Addr, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("address %q", s)
	}
	addr := i2c.Addr(v)
	if !addr.Valid() {
		return 0, fmt.Errorf("address %#x out of 7-bit range", v)
	}
	return addr, nil
}

func parseHexBytes(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, errors.New("missing bytes")
	}
	buf := make([]byte, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("byte %q", a)
		}
		buf = append(buf, byte(v))
	}
	return buf, nil
}

func hexDump(b []byte) string {
	if len(b) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}
