// Package firmware runs the node's lifecycle:
//
//	Initializing -> Running -> Suspended -> (wake) -> Initializing
//	Initializing -> Halted  (startup failure, terminal)
//
// A wake from deep sleep is a fresh boot on real hardware, so every
// Initializing pass builds new peripherals and a new scheduler.
package firmware

import (
	"context"
	"io"
	"log/slog"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/config"
	"envnode-go/services/display"
	"envnode-go/services/scheduler"
	"envnode-go/services/storage"
	"envnode-go/services/uplink"
	"envnode-go/types"
	"envnode-go/x/timex"
)

// Power is the low-power collaborator.
type Power interface {
	// WokeFromSleep reports whether this boot was caused by the wake input.
	WokeFromSleep() bool
	// Suspend arms the wake input and blocks until it fires. On boards where
	// deep sleep resets the chip it does not return.
	Suspend(ctx context.Context) error
}

// Board is the set of peripherals one boot runs on.
type Board struct {
	Clock       timex.Clock
	Sensor      scheduler.Sensor
	SleepButton scheduler.Button
	PrintButton scheduler.Button
	LED         scheduler.Output
	Store       storage.FS
	Display     display.Renderer
	Uploader    uplink.Uploader // nil when no link came up
	Console     io.Writer
	Power       Power

	// Close releases the board before a suspend. Optional.
	Close func() error
}

// Factory brings up a board. Any error is an initialization failure and
// halts the node.
type Factory func(ctx context.Context, cfg config.Config, log *slog.Logger) (*Board, error)

// Machine drives the lifecycle.
type Machine struct {
	Cfg     config.Config
	Factory Factory
	Log     *slog.Logger

	// HaltDisplay shows a startup failure when the board never came up.
	HaltDisplay display.Renderer
	// OnState observes transitions. Optional.
	OnState func(types.PowerState)
	// Sleep is used for the post-wake settle delay. Defaults to time.Sleep.
	Sleep func(time.Duration)

	state types.PowerState
	boots int
}

// State is the current lifecycle state.
func (m *Machine) State() types.PowerState { return m.state }

// Boots counts Initializing passes.
func (m *Machine) Boots() int { return m.boots }

// Run executes the lifecycle until ctx ends. On a startup failure it enters
// Halted and idles until ctx ends, then returns the failure.
func (m *Machine) Run(ctx context.Context) error {
	if m.Log == nil {
		m.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.Sleep == nil {
		m.Sleep = time.Sleep
	}
	log := m.Log.With("svc", "firmware")

	for {
		m.set(types.StateInitializing)
		m.boots++
		board, err := m.boot(ctx, log)
		if err != nil {
			return m.halt(ctx, log, board, err)
		}

		m.set(types.StateRunning)
		start := board.Clock.Now()
		s := scheduler.New(m.schedConfig(board.Power.WokeFromSleep()), scheduler.Deps{
			Sensor:      board.Sensor,
			SleepButton: board.SleepButton,
			PrintButton: board.PrintButton,
			LED:         board.LED,
			Log:         storage.NewLog(board.Store, m.Cfg.StorageFile),
			Uploader:    board.Uploader,
			Display:     display.NewPresenter(board.Display, m.Cfg.Device),
			Console:     board.Console,
			Logger:      m.Log,
			Sleep:       m.Sleep,
		}, start)

		out, err := s.Run(ctx, board.Clock)
		st := s.Stats()
		log.Info("scheduler stopped", "outcome", out, "awake", timex.Since(board.Clock, start),
			"samples", st.Samples, "batches", st.Batches, "uploads", st.Uploads)
		if err != nil {
			closeBoard(board, log)
			return err
		}

		m.set(types.StateSuspended)
		closeBoard(board, log)
		if err := board.Power.Suspend(ctx); err != nil {
			if ctx.Err() != nil || errcode.Fatal(err) {
				return err
			}
			// A failed marker write or similar loses the wake flag, not the node.
			log.Warn("suspend", "err", err, "code", errcode.Of(err))
		}
		log.Info("wake signal")
	}
}

func (m *Machine) boot(ctx context.Context, log *slog.Logger) (*Board, error) {
	if err := m.Cfg.Validate(); err != nil {
		return nil, err
	}
	board, err := m.Factory(ctx, m.Cfg, m.Log)
	if err != nil {
		if errcode.ClassOf(err) != errcode.ClassInit {
			err = errcode.Wrap(errcode.InitFailed, "board", err)
		}
		return board, err
	}
	if board.Clock == nil || board.Sensor == nil || board.Store == nil || board.Display == nil || board.Power == nil {
		return board, &errcode.E{C: errcode.InitFailed, Op: "board", Msg: "missing peripheral"}
	}
	if board.Power.WokeFromSleep() {
		log.Info("woke from sleep", "boot", m.boots)
		display.NewPresenter(board.Display, m.Cfg.Device).ShowStatus("woke up")
		// Let the wake button be released before it is polled as "sleep".
		m.Sleep(m.Cfg.WakeSettle)
	} else {
		log.Info("cold boot", "board", m.Cfg.Board, "sensor", m.Cfg.Sensor, "transport", m.Cfg.Transport)
	}
	return board, nil
}

func (m *Machine) halt(ctx context.Context, log *slog.Logger, board *Board, cause error) error {
	m.set(types.StateHalted)
	log.Error("startup failed, halting", "err", cause, "code", errcode.Of(cause))

	r := m.HaltDisplay
	if board != nil && board.Display != nil {
		r = board.Display
	}
	if r != nil {
		display.NewPresenter(r, m.Cfg.Device).ShowHalted(string(errcode.Of(cause)))
	}
	<-ctx.Done()
	return cause
}

func (m *Machine) schedConfig(wakeBoot bool) scheduler.Config {
	c := m.Cfg
	return scheduler.Config{
		SampleInterval:     c.SampleInterval,
		UploadInterval:     c.UploadInterval,
		Debounce:           c.Debounce,
		PassDelay:          c.PassDelay,
		LEDSettle:          c.LEDSettle,
		Heartbeat:          c.Heartbeat,
		BufferCapacity:     c.BufferCapacity,
		HistoryK:           c.HistoryK,
		AverageByOccupancy: c.AverageByOccupancy,
		APIKey:             c.APIKey,
		WakeBoot:           wakeBoot,
	}
}

func (m *Machine) set(s types.PowerState) {
	m.state = s
	if m.OnState != nil {
		m.OnState(s)
	}
}

func closeBoard(b *Board, log *slog.Logger) {
	if b == nil || b.Close == nil {
		return
	}
	if err := b.Close(); err != nil {
		log.Warn("board close", "err", err)
	}
}
