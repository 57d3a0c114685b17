package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/display"
	"envnode-go/services/storage"
	"envnode-go/services/uplink"
	"envnode-go/types"
	"envnode-go/x/timex"
)

// ---- fakes ----

type fakeSensor struct {
	temps []float64
	n     int
}

func (f *fakeSensor) RequestReading(now time.Duration) types.Reading {
	if f.n >= len(f.temps) {
		return types.Invalid(now)
	}
	t := f.temps[f.n]
	f.n++
	if t == types.DisconnectedC {
		return types.Invalid(now)
	}
	return types.Reading{Temperature: t, At: now}
}

type fakePin struct{ level bool }

func (p *fakePin) Get() bool { return p.level }

type fakeLED struct{ history []bool }

func (l *fakeLED) Set(v bool) { l.history = append(l.history, v) }

type fakeUploader struct {
	got []uplink.Update
	err error
}

func (f *fakeUploader) Upload(_ context.Context, u uplink.Update) error {
	f.got = append(f.got, u)
	return f.err
}

type captureRenderer struct{ frames [][]string }

func (c *captureRenderer) Render(lines []string) {
	c.frames = append(c.frames, append([]string(nil), lines...))
}

type rig struct {
	s       *Scheduler
	fs      *storage.MemFS
	log     *storage.Log
	sensor  *fakeSensor
	sleep   *fakePin
	print   *fakePin
	led     *fakeLED
	up      *fakeUploader
	screen  *captureRenderer
	console *bytes.Buffer
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newRig(cfg Config, temps ...float64) *rig {
	r := &rig{
		fs:      storage.NewMemFS(),
		sensor:  &fakeSensor{temps: temps},
		sleep:   &fakePin{level: true}, // active low, released
		print:   &fakePin{level: true},
		led:     &fakeLED{},
		up:      &fakeUploader{},
		screen:  &captureRenderer{},
		console: &bytes.Buffer{},
	}
	r.log = storage.NewLog(r.fs, "")
	r.s = New(cfg, Deps{
		Sensor:      r.sensor,
		SleepButton: Button{Pin: r.sleep, ActiveLow: true},
		PrintButton: Button{Pin: r.print, ActiveLow: true},
		LED:         r.led,
		Log:         r.log,
		Uploader:    r.up,
		Display:     display.NewPresenter(r.screen, "node"),
		Console:     r.console,
		Logger:      quiet(),
		Sleep:       func(time.Duration) {},
	}, 0)
	return r
}

func baseConfig() Config {
	return Config{
		SampleInterval: time.Second,
		UploadInterval: time.Hour,
		Debounce:       200 * time.Millisecond,
		BufferCapacity: 10,
		HistoryK:       3,
		APIKey:         "KEY",
	}
}

func tenReadings() []float64 {
	out := make([]float64, 10)
	for i := range out {
		out[i] = 20 + float64(i)/10
	}
	return out
}

// run steps every 10ms over (from, to].
func (r *rig) run(t *testing.T, from, to time.Duration) {
	t.Helper()
	ctx := context.Background()
	for now := from + 10*time.Millisecond; now <= to; now += 10 * time.Millisecond {
		if r.s.Step(ctx, now) == PowerDown {
			t.Fatalf("unexpected power down at %v", now)
		}
	}
}

func (r *rig) records() []string {
	raw := strings.TrimSpace(string(r.fs.Bytes(r.log.Name())))
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

// ---- tests ----

func TestFullBatchPersistsAverageAndEmptiesBuffer(t *testing.T) {
	r := newRig(baseConfig(), tenReadings()...)
	r.run(t, 0, 10*time.Second)

	recs := r.records()
	if len(recs) != 1 {
		t.Fatalf("records = %q, want exactly one", recs)
	}
	got, err := storage.ParseRecord(recs[0])
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if math.Abs(got.AvgTemperature-20.45) > 0.005 {
		t.Fatalf("stored avg = %v, want 20.45", got.AvgTemperature)
	}
	if r.s.Buffer().Len() != 0 {
		t.Fatalf("buffer len = %d, want 0 after consumption", r.s.Buffer().Len())
	}
}

func TestBatchConsumedExactlyOnceAtHighPassRate(t *testing.T) {
	temps := append(tenReadings(), 21, 21, 21, 21, 21, 21, 21, 21, 21)
	r := newRig(baseConfig(), temps...)
	r.run(t, 0, 19500*time.Millisecond)

	if got := len(r.records()); got != 1 {
		t.Fatalf("records = %d, want 1", got)
	}
	st := r.s.Stats()
	if st.Batches != 1 || st.Samples != 19 {
		t.Fatalf("stats = %+v, want 1 batch / 19 samples", st)
	}
	if r.s.Buffer().Len() != 9 {
		t.Fatalf("buffer len = %d, want 9", r.s.Buffer().Len())
	}
}

func TestSensorErrorSkipsSample(t *testing.T) {
	r := newRig(baseConfig(), 20, types.DisconnectedC, 22)
	r.run(t, 0, 3*time.Second)

	st := r.s.Stats()
	if st.SensorErrors != 1 || st.Samples != 2 {
		t.Fatalf("stats = %+v, want 1 error / 2 samples", st)
	}
	if r.s.Buffer().Len() != 2 {
		t.Fatalf("buffer len = %d, want 2", r.s.Buffer().Len())
	}
	last := r.screen.frames[len(r.screen.frames)-1]
	if last[1] != "T: 22.0 C" {
		t.Fatalf("display = %q", last)
	}
}

func TestSleepAbandonsPartialBuffer(t *testing.T) {
	r := newRig(baseConfig(), 20, 21, 22, 23)
	r.run(t, 0, 3500*time.Millisecond)
	if r.s.Buffer().Len() != 3 {
		t.Fatalf("buffer len = %d, want 3 before sleep", r.s.Buffer().Len())
	}

	r.sleep.level = false
	if got := r.s.Step(context.Background(), 3510*time.Millisecond); got != PowerDown {
		t.Fatalf("Step = %v, want power_down", got)
	}
	if r.fs.Exists(r.log.Name()) {
		t.Fatal("partial buffer was persisted on sleep")
	}
	if len(r.led.history) != 2 || !r.led.history[0] || r.led.history[1] {
		t.Fatalf("led = %v, want [true false]", r.led.history)
	}
	if last := r.screen.frames[len(r.screen.frames)-1]; last[1] != "Sleeping..." {
		t.Fatalf("display = %q", last)
	}

	// A wake boot builds a fresh scheduler: nothing carries over.
	r2 := newRig(baseConfig())
	if r2.s.Buffer().Len() != 0 {
		t.Fatal("buffer state survived power-down")
	}
}

func TestSleepTakesPriorityOverSampling(t *testing.T) {
	r := newRig(baseConfig(), 20)
	r.sleep.level = false
	// Sample timer is due at 1s too; sleep must win and no sample is taken.
	if got := r.s.Step(context.Background(), time.Second); got != PowerDown {
		t.Fatalf("Step = %v, want power_down", got)
	}
	if r.sensor.n != 0 {
		t.Fatal("sensor read after sleep request")
	}
}

func TestPrintButtonEmitsLastK(t *testing.T) {
	r := newRig(baseConfig())
	for i := 1; i <= 5; i++ {
		r.log.AppendSummary(types.Summary{AvgTemperature: float64(i)})
	}
	r.print.level = false
	r.s.Step(context.Background(), 300*time.Millisecond)
	// Held: no second print inside the debounce window.
	r.s.Step(context.Background(), 400*time.Millisecond)

	want := "--- last stored summaries ---\nT:3.00\nT:4.00\nT:5.00\n"
	if got := r.console.String(); got != want {
		t.Fatalf("console = %q, want %q", got, want)
	}
	if r.s.Stats().Prints != 1 {
		t.Fatalf("prints = %d, want 1", r.s.Stats().Prints)
	}
}

func TestPrintWithMissingStore(t *testing.T) {
	r := newRig(baseConfig())
	r.print.level = false
	r.s.Step(context.Background(), 300*time.Millisecond)
	if got := r.console.String(); got != "no stored data\n" {
		t.Fatalf("console = %q", got)
	}
}

func TestUploadUsesCapacityAverage(t *testing.T) {
	cfg := baseConfig()
	cfg.UploadInterval = 2500 * time.Millisecond
	r := newRig(cfg, 20, 22, 24)
	r.run(t, 0, 2500*time.Millisecond)

	if len(r.up.got) != 1 {
		t.Fatalf("uploads = %d, want 1", len(r.up.got))
	}
	u := r.up.got[0]
	if math.Abs(u.Temperature-4.2) > 1e-9 || u.APIKey != "KEY" {
		t.Fatalf("update = %+v, want temperature 4.2", u)
	}
}

func TestUploadByOccupancy(t *testing.T) {
	cfg := baseConfig()
	cfg.UploadInterval = 2500 * time.Millisecond
	cfg.AverageByOccupancy = true
	r := newRig(cfg, 20, 22)
	r.run(t, 0, 2500*time.Millisecond)

	if len(r.up.got) != 1 || math.Abs(r.up.got[0].Temperature-21) > 1e-9 {
		t.Fatalf("updates = %+v, want one at 21", r.up.got)
	}
}

func TestUploadFailureIsNotFatal(t *testing.T) {
	cfg := baseConfig()
	cfg.UploadInterval = 2 * time.Second
	r := newRig(cfg, 20, 21, 22, 23, 24)
	r.up.err = errcode.Wrap(errcode.NetworkConnect, "dial", errors.New("refused"))
	r.run(t, 0, 4*time.Second)

	st := r.s.Stats()
	if st.Uploads != 2 || st.UploadFailures != 2 {
		t.Fatalf("stats = %+v, want 2 attempts / 2 failures", st)
	}
	if r.s.Buffer().Len() != 4 {
		t.Fatalf("buffer len = %d, sampling should continue", r.s.Buffer().Len())
	}
}

func TestUploadSkippedOnEmptyBuffer(t *testing.T) {
	cfg := baseConfig()
	cfg.UploadInterval = 500 * time.Millisecond
	r := newRig(cfg)
	r.run(t, 0, 600*time.Millisecond)
	if len(r.up.got) != 0 {
		t.Fatalf("uploads = %d, want 0", len(r.up.got))
	}
	if st := r.s.Stats(); st.UploadsSkipped != 1 || st.Uploads != 0 {
		t.Fatalf("stats = %+v, want one skipped upload", st)
	}
}

func TestUploadSkippedRightAfterBatchIsCounted(t *testing.T) {
	cfg := baseConfig()
	cfg.BufferCapacity = 2
	cfg.UploadInterval = time.Second
	r := newRig(cfg, 20, 21, 22, 23)
	r.run(t, 0, 4*time.Second)

	// Fires at 2s and 4s follow a consumption and find the buffer empty.
	st := r.s.Stats()
	if st.Batches != 2 || st.Uploads != 2 || st.UploadsSkipped != 2 {
		t.Fatalf("stats = %+v, want 2 batches / 2 uploads / 2 skipped", st)
	}
}

func TestWakeBootIgnoresHeldWakeButton(t *testing.T) {
	cfg := baseConfig()
	cfg.WakeBoot = true
	r := newRig(cfg, 20, 21, 22)
	r.sleep.level = false // still held from the wake press

	r.run(t, 0, 1500*time.Millisecond)
	if r.s.Stats().Samples != 1 {
		t.Fatalf("samples = %d, sampling should run while the wake press is held", r.s.Stats().Samples)
	}

	r.sleep.level = true
	r.run(t, 1500*time.Millisecond, 1600*time.Millisecond)
	r.sleep.level = false
	if got := r.s.Step(context.Background(), 1610*time.Millisecond); got != PowerDown {
		t.Fatalf("Step = %v, want power_down on a fresh press", got)
	}
}

func TestNextDelayStopsAtTimerDeadline(t *testing.T) {
	cfg := baseConfig()
	r := newRig(cfg)
	if got := r.s.nextDelay(995*time.Millisecond, 10*time.Millisecond); got != 5*time.Millisecond {
		t.Fatalf("nextDelay = %v, want 5ms", got)
	}
	if got := r.s.nextDelay(100*time.Millisecond, 10*time.Millisecond); got != 10*time.Millisecond {
		t.Fatalf("nextDelay = %v, want 10ms", got)
	}
}

func TestStorageFailureKeepsRunning(t *testing.T) {
	r := newRig(baseConfig(), tenReadings()...)
	r.fs.FailOpen = true
	r.run(t, 0, 10*time.Second)

	st := r.s.Stats()
	if st.StorageErrors != 1 || st.Batches != 1 {
		t.Fatalf("stats = %+v, want one failed batch", st)
	}
	if r.s.Buffer().Len() != 0 {
		t.Fatal("buffer not cleared after failed persist")
	}
}

func TestRunStopsOnPowerDown(t *testing.T) {
	var clock timex.Manual
	r := newRig(baseConfig())
	r.s.deps.Sleep = func(d time.Duration) { clock.Advance(d) }
	r.sleep.level = false

	out, err := r.s.Run(context.Background(), &clock)
	if err != nil || out != PowerDown {
		t.Fatalf("Run = (%v, %v), want power_down", out, err)
	}
	if clock.Now() <= 200*time.Millisecond {
		t.Fatalf("powered down at %v, inside the debounce window", clock.Now())
	}
}

func TestRunHonoursContext(t *testing.T) {
	var clock timex.Manual
	r := newRig(baseConfig())
	ctx, cancel := context.WithCancel(context.Background())
	r.s.deps.Sleep = func(d time.Duration) {
		if clock.Advance(d) > time.Second {
			cancel()
		}
	}
	out, err := r.s.Run(ctx, &clock)
	if !errors.Is(err, context.Canceled) || out != Continue {
		t.Fatalf("Run = (%v, %v), want canceled", out, err)
	}
}
