// Package simboard is an in-memory board: scripted sensor, settable pins,
// a MemFS store and a recording screen. Tests and cmd/simulate run the
// firmware on it.
package simboard

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/config"
	"envnode-go/services/firmware"
	"envnode-go/services/scheduler"
	"envnode-go/services/storage"
	"envnode-go/services/uplink"
	"envnode-go/types"
	"envnode-go/x/timex"
)

// Pin is a digital line that can be driven from outside.
type Pin struct{ level atomic.Bool }

// NewPin returns a pin at the given level.
func NewPin(level bool) *Pin {
	p := &Pin{}
	p.level.Store(level)
	return p
}

func (p *Pin) Get() bool      { return p.level.Load() }
func (p *Pin) Set(level bool) { p.level.Store(level) }

// LED records every level written.
type LED struct {
	mu      sync.Mutex
	history []bool
}

func (l *LED) Set(level bool) {
	l.mu.Lock()
	l.history = append(l.history, level)
	l.mu.Unlock()
}

// History returns the written levels in order.
func (l *LED) History() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.history...)
}

// Sensor replays Script, then follows a slow sine around Base. Entries equal
// to types.DisconnectedC model a dropped sensor.
type Sensor struct {
	mu       sync.Mutex
	Script   []float64
	Base     float64
	Swing    float64
	Period   time.Duration
	Humidity float64 // > 0 adds a humidity channel
	n        int
}

func (s *Sensor) RequestReading(now time.Duration) types.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t float64
	if s.n < len(s.Script) {
		t = s.Script[s.n]
		s.n++
	} else {
		t = s.Base
		if s.Period > 0 {
			t += s.Swing * math.Sin(2*math.Pi*float64(now)/float64(s.Period))
		}
	}
	if t == types.DisconnectedC {
		return types.Invalid(now)
	}
	r := types.Reading{Temperature: t, At: now}
	if s.Humidity > 0 {
		r.Humidity, r.HasHumidity = s.Humidity, true
	}
	return r
}

// Reads counts RequestReading calls served from the script.
func (s *Sensor) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Screen keeps every rendered frame. OnRender, when set, sees each frame.
type Screen struct {
	mu       sync.Mutex
	frames   [][]string
	OnRender func(lines []string)
}

func (s *Screen) Render(lines []string) {
	s.mu.Lock()
	s.frames = append(s.frames, append([]string(nil), lines...))
	s.mu.Unlock()
	if s.OnRender != nil {
		s.OnRender(lines)
	}
}

// Last returns the most recent frame, or nil.
func (s *Screen) Last() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Console is a goroutine-safe buffer. Writes are copied to Tee when set.
type Console struct {
	mu  sync.Mutex
	buf bytes.Buffer
	Tee io.Writer
}

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Tee != nil {
		_, _ = c.Tee.Write(p)
	}
	return c.buf.Write(p)
}

func (c *Console) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Power models deep sleep. Suspend blocks until Wake is called (or returns
// at once with AutoWake) and releases the sleep button, as the user lets go
// of it after waking the node.
type Power struct {
	AutoWake bool
	release  func()
	wake     chan struct{}
	woke     atomic.Bool
	sleeps   atomic.Int32
}

func newPower(release func()) *Power {
	return &Power{release: release, wake: make(chan struct{}, 1)}
}

func (p *Power) WokeFromSleep() bool { return p.woke.Load() }

func (p *Power) Suspend(ctx context.Context) error {
	p.sleeps.Add(1)
	if !p.AutoWake {
		select {
		case <-p.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.woke.Store(true)
	if p.release != nil {
		p.release()
	}
	return nil
}

// Wake fires the wake input.
func (p *Power) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Sleeps counts Suspend calls.
func (p *Power) Sleeps() int { return int(p.sleeps.Load()) }

// Board is one simulated node. Its peripherals outlive boots so a test can
// inspect them after a power cycle, the same way flash survives on hardware.
type Board struct {
	Clock    timex.Clock
	Sensor   *Sensor
	SleepPin *Pin
	PrintPin *Pin
	LED      *LED
	FS       *storage.MemFS
	Screen   *Screen
	Console  *Console
	Power    *Power
	Uploader uplink.Uploader

	// FailInit makes the next Open fail with an init error naming it.
	FailInit string

	opens atomic.Int32
}

// New returns a board with released active-low buttons.
func New(clock timex.Clock) *Board {
	b := &Board{
		Clock:    clock,
		Sensor:   &Sensor{Base: 21, Swing: 1.5, Period: 10 * time.Minute},
		SleepPin: NewPin(true),
		PrintPin: NewPin(true),
		LED:      &LED{},
		FS:       storage.NewMemFS(),
		Screen:   &Screen{},
		Console:  &Console{},
	}
	b.Power = newPower(b.ReleaseSleep)
	return b
}

// PressSleep / ReleaseSleep drive the active-low sleep button.
func (b *Board) PressSleep()   { b.SleepPin.Set(false) }
func (b *Board) ReleaseSleep() { b.SleepPin.Set(true) }

// PressPrint / ReleasePrint drive the active-low print button.
func (b *Board) PressPrint()   { b.PrintPin.Set(false) }
func (b *Board) ReleasePrint() { b.PrintPin.Set(true) }

// Opens counts successful and failed Open calls.
func (b *Board) Opens() int { return int(b.opens.Load()) }

// Open satisfies firmware.Factory.
func (b *Board) Open(_ context.Context, cfg config.Config, log *slog.Logger) (*firmware.Board, error) {
	b.opens.Add(1)
	if b.FailInit != "" {
		what := b.FailInit
		return nil, errcode.Wrap(errcode.InitFailed, what, errors.New("simulated failure"))
	}
	log.Debug("simboard open", "sensor", cfg.Sensor)
	return &firmware.Board{
		Clock:       b.Clock,
		Sensor:      b.Sensor,
		SleepButton: scheduler.Button{Pin: b.SleepPin, ActiveLow: true},
		PrintButton: scheduler.Button{Pin: b.PrintPin, ActiveLow: true},
		LED:         b.LED,
		Store:       b.FS,
		Display:     b.Screen,
		Uploader:    b.Uploader,
		Console:     b.Console,
		Power:       b.Power,
	}, nil
}
