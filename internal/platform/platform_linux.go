//go:build linux && !(rp2040 || rp2350)

package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"envnode-go/drivers/aht20"
	"envnode-go/errcode"
	"envnode-go/services/config"
	"envnode-go/services/display"
	"envnode-go/services/firmware"
	"envnode-go/services/sched"
	"envnode-go/services/scheduler"
	"envnode-go/services/storage"
	"envnode-go/types"
	"envnode-go/x/timex"
)

// Console is the process stdout.
func Console() io.Writer { return os.Stdout }

// Open brings up a Linux single-board computer: buttons and LED on GPIO, an
// AHT20 or BME280 on the default I2C bus, and the summary log under DataDir.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*firmware.Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "host init", err)
	}

	sleepPin, err := inputPin(cfg.SleepPin, cfg.ButtonsActiveLow)
	if err != nil {
		return nil, err
	}
	printPin, err := inputPin(cfg.PrintPin, cfg.ButtonsActiveLow)
	if err != nil {
		return nil, err
	}
	led := gpioreg.ByName("GPIO" + strconv.Itoa(cfg.LEDPin))
	if led == nil {
		return nil, &errcode.E{C: errcode.InitFailed, Op: "led", Msg: "no GPIO" + strconv.Itoa(cfg.LEDPin)}
	}
	if err := led.Out(gpio.Low); err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "led", err)
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	sensor, err := openSensor(cfg, log, &closers)
	if err != nil {
		closeAll()
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		closeAll()
		return nil, errcode.Wrap(errcode.InitFailed, "store", err)
	}
	marker := filepath.Join(cfg.DataDir, filepath.Base(wakeMarker))
	woke := os.Remove(marker) == nil

	// The OS owns the link; one dial tells us it is usable at all.
	if err := checkLink(ctx, uplinkAddr(cfg), 5*time.Second); err != nil {
		closeAll()
		return nil, errcode.Wrap(errcode.InitFailed, "uplink", err)
	}
	up, closeUp := NewUploader(cfg, log)
	closers = append(closers, func() error { closeUp(); return nil })

	return &firmware.Board{
		Clock:       timex.NewMonotonic(),
		Sensor:      sensor,
		SleepButton: scheduler.Button{Pin: periphIn{sleepPin}, ActiveLow: cfg.ButtonsActiveLow},
		PrintButton: scheduler.Button{Pin: periphIn{printPin}, ActiveLow: cfg.ButtonsActiveLow},
		LED:         periphOut{led},
		Store:       storage.DirFS{Root: cfg.DataDir},
		Display:     display.LogRenderer{Log: log},
		Uploader:    up,
		Console:     os.Stdout,
		Power:       &linuxPower{pin: sleepPin, activeLow: cfg.ButtonsActiveLow, marker: marker, woke: woke, log: log},
		Close:       closeAll,
	}, nil
}

func openSensor(cfg config.Config, log *slog.Logger, closers *[]func() error) (scheduler.Sensor, error) {
	switch cfg.Sensor {
	case "aht20", "bme280":
	default:
		return nil, &errcode.E{C: errcode.Unsupported, Op: "sensor", Msg: cfg.Sensor + " on linux"}
	}
	bus, err := i2creg.Open("")
	if err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "i2c", err)
	}
	*closers = append(*closers, bus.Close)

	if cfg.Sensor == "aht20" {
		dev := aht20.New(bus, aht20.Config{Address: cfg.I2CAddr})
		if err := dev.Configure(); err != nil {
			return nil, errcode.Wrap(errcode.InitFailed, "aht20", err)
		}
		return &aht20Sensor{dev: dev, log: log}, nil
	}
	dev, err := bmxx80.NewI2C(bus, cfg.I2CAddr, &bmxx80.DefaultOpts)
	if err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "bme280", err)
	}
	*closers = append(*closers, dev.Halt)
	return &bmeSensor{dev: dev, log: log}, nil
}

func inputPin(n int, activeLow bool) (gpio.PinIO, error) {
	p := gpioreg.ByName("GPIO" + strconv.Itoa(n))
	if p == nil {
		return nil, &errcode.E{C: errcode.InitFailed, Op: "button", Msg: "no GPIO" + strconv.Itoa(n)}
	}
	pull, edge := gpio.PullDown, gpio.RisingEdge
	if activeLow {
		pull, edge = gpio.PullUp, gpio.FallingEdge
	}
	if err := p.In(pull, edge); err != nil {
		return nil, errcode.Wrap(errcode.InitFailed, "button", err)
	}
	return p, nil
}

type periphIn struct{ p gpio.PinIO }

func (i periphIn) Get() bool { return bool(i.p.Read()) }

type periphOut struct{ p gpio.PinIO }

func (o periphOut) Set(level bool) { _ = o.p.Out(gpio.Level(level)) }

type bmeSensor struct {
	dev *bmxx80.Dev
	log *slog.Logger
}

func (s *bmeSensor) RequestReading(now time.Duration) types.Reading {
	var env physic.Env
	if err := s.dev.Sense(&env); err != nil {
		s.log.Debug("bme280 read", "err", err)
		return types.Invalid(now)
	}
	return types.Reading{
		Temperature: env.Temperature.Celsius(),
		Humidity:    float64(env.Humidity) / float64(physic.PercentRH),
		HasHumidity: true,
		At:          now,
	}
}

// linuxPower has no real deep sleep: it blocks on the wake button edge and
// leaves a marker so the next Open reports a wake boot.
type linuxPower struct {
	pin       gpio.PinIO
	activeLow bool
	marker    string
	woke      bool
	log       *slog.Logger
}

func (p *linuxPower) WokeFromSleep() bool { return p.woke }

// Suspend returns once the wake button has been pressed and let go again.
// Only ctx ends it early.
func (p *linuxPower) Suspend(ctx context.Context) error {
	if err := os.WriteFile(p.marker, []byte("1"), 0o644); err != nil {
		p.log.Warn("wake marker", "err", errcode.Wrap(errcode.StorageWrite, "suspend", err))
	}
	// The press that put us to sleep must not count as the wake.
	if err := p.waitReleased(ctx); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.pin.WaitForEdge(250*time.Millisecond) && p.pressed() {
			break
		}
	}
	return p.waitReleased(ctx)
}

func (p *linuxPower) waitReleased(ctx context.Context) error {
	for p.pressed() {
		if err := sleepCtx(ctx, 20*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func (p *linuxPower) pressed() bool { return sched.PressedLevel(bool(p.pin.Read()), p.activeLow) }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
