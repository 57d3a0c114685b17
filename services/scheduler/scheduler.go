// Package scheduler is the node's single-threaded control loop. Each pass
// checks, in order, the sleep button, the print button, the sampling timer
// and the upload timer. Nothing here runs concurrently; the only blocking
// calls are short fixed settle delays and the print path's log read.
package scheduler

import (
	"context"
	"io"
	"log/slog"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/display"
	"envnode-go/services/heartbeat"
	"envnode-go/services/sched"
	"envnode-go/services/storage"
	"envnode-go/services/uplink"
	"envnode-go/types"
	"envnode-go/x/timex"
)

// Sensor produces one reading on request. A disconnected sensor returns
// types.Invalid rather than an error.
type Sensor interface {
	RequestReading(now time.Duration) types.Reading
}

// Input is a digital level read (button pins).
type Input interface {
	Get() bool
}

// Output is a digital level write (status LED).
type Output interface {
	Set(level bool)
}

// Button is a pin plus its wiring polarity.
type Button struct {
	Pin       Input
	ActiveLow bool
}

func (b Button) pressed() bool {
	if b.Pin == nil {
		return false
	}
	return sched.PressedLevel(b.Pin.Get(), b.ActiveLow)
}

// Deps are the collaborators the loop drives. Sensor, Log and Display are
// required; a nil Uploader disables uploads and a nil LED is skipped.
type Deps struct {
	Sensor      Sensor
	SleepButton Button
	PrintButton Button
	LED         Output
	Log         *storage.Log
	Uploader    uplink.Uploader
	Display     *display.Presenter
	Console     io.Writer
	Logger      *slog.Logger

	// Sleep blocks for a settle delay. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Config holds the loop's timing and batching knobs.
type Config struct {
	SampleInterval     time.Duration
	UploadInterval     time.Duration
	Debounce           time.Duration
	PassDelay          time.Duration
	LEDSettle          time.Duration
	Heartbeat          time.Duration // 0 disables
	BufferCapacity     int
	HistoryK           int
	AverageByOccupancy bool
	APIKey             string

	// WakeBoot keeps the sleep button disarmed until it is first seen
	// released, so the press that woke the node cannot put it back to sleep.
	WakeBoot bool
}

// Outcome tells the caller what to do after a pass.
type Outcome uint8

const (
	Continue Outcome = iota
	PowerDown
)

func (o Outcome) String() string {
	if o == PowerDown {
		return "power_down"
	}
	return "continue"
}

// Stats counts what the loop has done since boot.
type Stats struct {
	Passes         uint64
	Samples        uint64
	SensorErrors   uint64
	Batches        uint64
	StorageErrors  uint64
	Uploads        uint64
	UploadFailures uint64
	UploadsSkipped uint64
	Prints         uint64
}

// Scheduler owns every timer, debounce state and the sample buffer. A new
// one is built on every boot, so nothing survives a power-down.
type Scheduler struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	sampleTimer *sched.PeriodicTimer
	uploadTimer *sched.PeriodicTimer
	sleepBtn    *sched.DebouncedButton
	printBtn    *sched.DebouncedButton
	buf         *sched.SampleBuffer
	beat        *heartbeat.Reporter
	sleepArmed  bool

	stats Stats
}

// New builds a scheduler whose timers start at start (boot time).
func New(cfg Config, deps Deps, start time.Duration) *Scheduler {
	if cfg.HistoryK <= 0 {
		cfg.HistoryK = 5
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	if deps.Console == nil {
		deps.Console = io.Discard
	}
	return &Scheduler{
		cfg:         cfg,
		deps:        deps,
		log:         deps.Logger.With("svc", "scheduler"),
		sampleTimer: sched.NewPeriodicTimer(cfg.SampleInterval, start),
		uploadTimer: sched.NewPeriodicTimer(cfg.UploadInterval, start),
		sleepBtn:    sched.NewDebouncedButton(cfg.Debounce),
		printBtn:    sched.NewDebouncedButton(cfg.Debounce),
		buf:         sched.NewSampleBuffer(cfg.BufferCapacity),
		beat:        heartbeat.New(cfg.Heartbeat, start, deps.Logger),
		sleepArmed:  !cfg.WakeBoot,
	}
}

// Buffer exposes the sample buffer for inspection.
func (s *Scheduler) Buffer() *sched.SampleBuffer { return s.buf }

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats { return s.stats }

// Step runs one pass at now.
func (s *Scheduler) Step(ctx context.Context, now time.Duration) Outcome {
	s.stats.Passes++

	sleepPressed := s.deps.SleepButton.pressed()
	if !s.sleepArmed {
		s.sleepArmed = !sleepPressed
	} else if s.sleepBtn.EdgeDetected(sleepPressed, now) {
		s.enterSleep()
		return PowerDown
	}
	if s.printBtn.EdgeDetected(s.deps.PrintButton.pressed(), now) {
		s.printHistory()
	}
	if s.sampleTimer.Poll(now) {
		s.sample(now)
	}
	if s.uploadTimer.Poll(now) {
		s.upload(ctx)
	}
	s.beat.Tick(now, "samples", s.stats.Samples, "batches", s.stats.Batches,
		"uploads", s.stats.Uploads, "upload_failures", s.stats.UploadFailures,
		"uploads_skipped", s.stats.UploadsSkipped, "buffered", s.buf.Len())
	return Continue
}

// Run drives Step from clock until a power-down is requested or ctx ends.
func (s *Scheduler) Run(ctx context.Context, clock timex.Clock) (Outcome, error) {
	delay := s.cfg.PassDelay
	if delay <= 0 {
		delay = 10 * time.Millisecond
	}
	s.log.Info("running", "sample_every", s.sampleTimer.Interval(), "upload_every", s.uploadTimer.Interval(),
		"pass_delay", delay, "wake_boot", s.cfg.WakeBoot)
	for {
		if err := ctx.Err(); err != nil {
			return Continue, err
		}
		now := clock.Now()
		if s.Step(ctx, now) == PowerDown {
			return PowerDown, nil
		}
		s.deps.Sleep(s.nextDelay(now, delay))
	}
}

// nextDelay is the pass delay, shortened when a timer falls due sooner.
func (s *Scheduler) nextDelay(now, delay time.Duration) time.Duration {
	for _, t := range []*sched.PeriodicTimer{s.sampleTimer, s.uploadTimer} {
		if d := t.Due(now); d > 0 && d < delay {
			delay = d
		}
	}
	return delay
}

func (s *Scheduler) sample(now time.Duration) {
	r := s.deps.Sensor.RequestReading(now)
	r.At = now
	if !r.Valid() {
		s.stats.SensorErrors++
		s.log.Warn("sample skipped", "err", errcode.SensorDisconnected)
		s.deps.Display.ShowReading(r)
		return
	}
	s.stats.Samples++
	if !s.buf.Append(r) {
		// Only reachable when a consumption is still in flight.
		s.log.Warn("sample dropped", "err", errcode.BufferFull, "len", s.buf.Len())
		return
	}
	s.deps.Display.ShowReading(r)
	s.log.Debug("sample", "t", r.Temperature, "h", r.Humidity, "n", s.buf.Len())

	if s.buf.IsFull() {
		s.consume()
	}
}

// consume turns a full buffer into one persisted summary and empties it.
func (s *Scheduler) consume() {
	if !s.buf.BeginConsume() {
		return
	}
	defer s.buf.EndConsume()

	sum := s.buf.Summary()
	s.stats.Batches++
	if err := s.deps.Log.AppendSummary(sum); err != nil {
		s.stats.StorageErrors++
		s.log.Error("persist failed", "err", err, "code", errcode.Of(err))
		s.deps.Display.ShowStatus("store error")
		return
	}
	s.log.Info("batch stored", "record", storage.FormatRecord(sum))
}

func (s *Scheduler) upload(ctx context.Context) {
	if s.deps.Uploader == nil {
		return
	}
	if s.buf.Len() == 0 {
		s.stats.UploadsSkipped++
		s.log.Debug("upload skipped", "reason", "buffer empty")
		return
	}
	sum := s.buf.Summary()
	if s.cfg.AverageByOccupancy {
		sum.AvgTemperature, sum.AvgHumidity = s.buf.AverageOccupied()
	}
	u := uplink.FromSummary(s.cfg.APIKey, sum)

	s.stats.Uploads++
	if err := s.deps.Uploader.Upload(ctx, u); err != nil {
		s.stats.UploadFailures++
		s.log.Warn("upload failed", "err", err, "code", errcode.Of(err))
		s.deps.Display.ShowStatus("upload failed")
		return
	}
	s.log.Info("uploaded", "t", sum.AvgTemperature, "n", s.buf.Len())
	s.deps.Display.ShowStatus("uploaded")
}

func (s *Scheduler) printHistory() {
	s.stats.Prints++
	lines, err := s.deps.Log.ReadLastK(s.cfg.HistoryK)
	switch {
	case errcode.Of(err) == errcode.NotFound:
		io.WriteString(s.deps.Console, "no stored data\n")
		return
	case err != nil:
		s.stats.StorageErrors++
		s.log.Error("history read failed", "err", err)
		io.WriteString(s.deps.Console, "history unavailable\n")
		return
	}
	io.WriteString(s.deps.Console, "--- last stored summaries ---\n")
	for _, l := range lines {
		io.WriteString(s.deps.Console, l+"\n")
	}
}

func (s *Scheduler) enterSleep() {
	s.log.Info("entering sleep", "abandoned", s.buf.Len())
	s.deps.Display.ShowSleeping()
	if s.deps.LED != nil {
		s.deps.LED.Set(true)
		s.deps.Sleep(s.cfg.LEDSettle)
		s.deps.LED.Set(false)
	}
}
