//go:build rp2040 || rp2350

package platform

import (
	"context"
	"image/color"
	"io"
	"log/slog"
	"machine"
	"net"
	"os"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/netdev"
	"tinygo.org/x/drivers/netlink"
	"tinygo.org/x/drivers/netlink/probe"
	"tinygo.org/x/drivers/onewire"
	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyfs/littlefs"

	"envnode-go/drivers/aht20"
	"envnode-go/errcode"
	"envnode-go/services/config"
	"envnode-go/services/firmware"
	"envnode-go/services/sched"
	"envnode-go/services/scheduler"
	"envnode-go/services/uplink"
	"envnode-go/types"
	"envnode-go/x/timex"
)

const (
	oledAddr    = 0x3C
	consoleBaud = 115200
)

var consoleReady bool

// Console configures UART0 once and returns it.
func Console() io.Writer {
	if !consoleReady {
		_ = uartx.UART0.Configure(uartx.UARTConfig{
			BaudRate: consoleBaud,
			TX:       machine.UART0_TX_PIN,
			RX:       machine.UART0_RX_PIN,
		})
		consoleReady = true
	}
	return uartx.UART0
}

// Open brings up a Pico W. Display, flash store and Wi-Fi are required; a
// missing sensor is not fatal, it reads as disconnected.
func Open(_ context.Context, cfg config.Config, log *slog.Logger) (*firmware.Board, error) {
	sleepPin := inputPin(cfg.SleepPin, cfg.ButtonsActiveLow)
	printPin := inputPin(cfg.PrintPin, cfg.ButtonsActiveLow)
	led := machine.Pin(cfg.LEDPin)
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.Low()

	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	}); err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "i2c", err)
	}

	screen, err := openDisplay(i2c)
	if err != nil {
		return nil, err
	}

	fs, err := mountFlash()
	if err != nil {
		return &firmware.Board{Display: screen}, err
	}
	woke := fs.lfs.Remove(wakeMarker) == nil

	sensor, err := openSensor(cfg, i2c, log)
	if err != nil {
		return &firmware.Board{Display: screen}, err
	}

	if err := joinWiFi(cfg, log); err != nil {
		return &firmware.Board{Display: screen}, err
	}

	return &firmware.Board{
		Clock:       timex.NewMonotonic(),
		Sensor:      sensor,
		SleepButton: scheduler.Button{Pin: sleepPin, ActiveLow: cfg.ButtonsActiveLow},
		PrintButton: scheduler.Button{Pin: printPin, ActiveLow: cfg.ButtonsActiveLow},
		LED:         led,
		Store:       fs,
		Display:     screen,
		Uploader:    uplink.NewHTTPClient(cfg.UplinkHost, cfg.UplinkPort, cfg.UplinkPath, tinyDialer{}, log),
		Console:     Console(),
		Power:       &rp2Power{fs: fs, pin: sleepPin, led: led, activeLow: cfg.ButtonsActiveLow, woke: woke},
	}, nil
}

func inputPin(n int, activeLow bool) machine.Pin {
	p := machine.Pin(n)
	mode := machine.PinInputPulldown
	if activeLow {
		mode = machine.PinInputPullup
	}
	p.Configure(machine.PinConfig{Mode: mode})
	return p
}

// ---- sensor ----

func openSensor(cfg config.Config, i2c *machine.I2C, log *slog.Logger) (scheduler.Sensor, error) {
	switch cfg.Sensor {
	case "ds18b20":
		ow := onewire.New(machine.Pin(cfg.SensorPin))
		return &ds18b20Sensor{dev: ds18b20.New(ow), log: log}, nil
	case "aht20":
		dev := aht20.New(i2c, aht20.Config{Address: cfg.I2CAddr})
		if err := dev.Configure(); err != nil {
			log.Warn("aht20 not answering", "err", err)
		}
		return &aht20Sensor{dev: dev, log: log}, nil
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: "sensor", Msg: cfg.Sensor + " on rp2"}
	}
}

// ds18b20Sensor broadcasts a conversion (skip ROM) and reads the single
// device on the bus.
type ds18b20Sensor struct {
	dev ds18b20.Device
	log *slog.Logger
}

func (s *ds18b20Sensor) RequestReading(now time.Duration) types.Reading {
	s.dev.RequestTemperature(nil)
	time.Sleep(750 * time.Millisecond) // 12-bit conversion
	milli, err := s.dev.ReadTemperature(nil)
	if err != nil {
		s.log.Debug("ds18b20 read", "err", err)
		return types.Invalid(now)
	}
	return types.Reading{Temperature: float64(milli) / 1000, At: now}
}

// ---- display ----

type oled struct{ dev *ssd1306.Device }

func openDisplay(i2c *machine.I2C) (*oled, error) {
	// The controller has no ID register; an ACK on a command byte is the
	// presence check.
	if err := i2c.Tx(oledAddr, []byte{0x00, 0xAE}, nil); err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "display", err)
	}
	d := ssd1306.NewI2C(i2c)
	d.Configure(ssd1306.Config{Address: oledAddr, Width: 128, Height: 64})
	d.ClearDisplay()
	return &oled{dev: &d}, nil
}

var white = color.RGBA{255, 255, 255, 255}

func (o *oled) Render(lines []string) {
	o.dev.ClearBuffer()
	for i, l := range lines {
		tinyfont.WriteLine(o.dev, &proggy.TinySZ8pt7b, 0, int16(12+i*15), l, white)
	}
	_ = o.dev.Display()
}

// ---- flash store ----

type flashFS struct{ lfs *littlefs.LFS }

func mountFlash() (*flashFS, error) {
	lfs := littlefs.New(machine.Flash)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	})
	if err := lfs.Mount(); err != nil {
		// First boot on blank flash.
		if err := lfs.Format(); err != nil {
			return nil, errcode.Wrap(errcode.InitFailed, "flash format", err)
		}
		if err := lfs.Mount(); err != nil {
			return nil, errcode.Wrap(errcode.InitFailed, "flash mount", err)
		}
	}
	return &flashFS{lfs: lfs}, nil
}

func (f *flashFS) OpenAppend(name string) (io.WriteCloser, error) {
	return f.lfs.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND)
}

func (f *flashFS) OpenRead(name string) (io.ReadCloser, error) {
	return f.lfs.Open(name)
}

func (f *flashFS) Exists(name string) bool {
	_, err := f.lfs.Stat(name)
	return err == nil
}

// ---- network ----

func joinWiFi(cfg config.Config, log *slog.Logger) error {
	link, dev := probe.Probe()
	netdev.UseNetdev(dev)
	err := link.NetConnect(&netlink.ConnectParams{
		Ssid:       cfg.WiFiSSID,
		Passphrase: cfg.WiFiPassword,
	})
	if err != nil {
		return errcode.Wrap(errcode.InitFailed, "wifi", errcode.Wrap(errcode.LinkDown, cfg.WiFiSSID, err))
	}
	log.Info("wifi up", "ssid", cfg.WiFiSSID)
	return nil
}

type tinyDialer struct{}

func (tinyDialer) DialContext(_ context.Context, network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}

// ---- power ----

// rp2Power leaves a marker in flash, waits for the wake button, then resets
// the chip so the next boot starts from scratch.
type rp2Power struct {
	fs        *flashFS
	pin       machine.Pin
	led       machine.Pin
	activeLow bool
	woke      bool
}

func (p *rp2Power) WokeFromSleep() bool { return p.woke }

func (p *rp2Power) Suspend(_ context.Context) error {
	if w, err := p.fs.OpenAppend(wakeMarker); err == nil {
		_, _ = w.Write([]byte{'1'})
		_ = w.Close()
	}
	p.led.Low()
	for sched.PressedLevel(p.pin.Get(), p.activeLow) {
		time.Sleep(20 * time.Millisecond)
	}
	for !sched.PressedLevel(p.pin.Get(), p.activeLow) {
		time.Sleep(50 * time.Millisecond)
	}
	machine.CPUReset()
	return nil
}
