//go:build !(rp2040 || rp2350)

// Command simulate runs the node firmware on an in-memory board with real
// time, the configured uplink (or a dry-run logger), and scripted button
// presses.
//
//	simulate -sample 2s -upload 5s -temps "20 20.1 -127 20.3" \
//	         -script "print@12s sleep@30s wake@40s" -for 1m
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"

	"envnode-go/internal/logging"
	"envnode-go/internal/platform"
	"envnode-go/internal/platform/simboard"
	"envnode-go/services/config"
	"envnode-go/services/firmware"
	"envnode-go/services/uplink"
	"envnode-go/x/timex"
)

// press is how long a scripted button press is held.
const press = 300 * time.Millisecond

type event struct {
	at   time.Duration
	what string // sleep, print, wake
}

func main() {
	var (
		sample   = flag.Duration("sample", 0, "sampling interval (0 keeps config)")
		upload   = flag.Duration("upload", 0, "upload interval (0 keeps config)")
		temps    = flag.String("temps", "", "scripted temperatures, -127 for a dropped sensor")
		humidity = flag.Float64("humidity", 0, "constant humidity; 0 disables the channel")
		script   = flag.String("script", "", "button events: print@12s sleep@30s wake@40s")
		dryRun   = flag.Bool("dry-run", true, "log uploads instead of sending them")
		failInit = flag.String("fail-init", "", "make board bring-up fail, naming the peripheral")
		runFor   = flag.Duration("for", 0, "stop after this long; 0 runs until interrupted")
	)
	flag.Parse()

	cfg, err := config.LoadEnv("sim")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *sample > 0 {
		cfg.SampleInterval = *sample
	}
	if *upload > 0 {
		cfg.UploadInterval = *upload
	}
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, "simulate")

	events, err := parseScript(*script)
	if err != nil {
		log.Error("bad -script", "err", err)
		os.Exit(2)
	}
	values, err := parseTemps(*temps)
	if err != nil {
		log.Error("bad -temps", "err", err)
		os.Exit(2)
	}

	board := simboard.New(timex.NewMonotonic())
	board.Sensor.Script = values
	board.Sensor.Humidity = *humidity
	board.FailInit = *failInit
	board.Console.Tee = os.Stdout
	board.Screen.OnRender = func(lines []string) { log.Info("screen", "lines", strings.Join(lines, " | ")) }

	if *dryRun {
		board.Uploader = dryRunUploader{log: log}
	} else {
		up, closeUp := platform.NewUploader(cfg, log)
		defer closeUp()
		board.Uploader = up
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}

	for _, ev := range events {
		schedule(board, ev, log)
	}

	m := &firmware.Machine{Cfg: cfg, Factory: board.Open, Log: log, HaltDisplay: board.Screen}
	err = m.Run(ctx)
	log.Info("simulation ended", "state", m.State(), "boots", m.Boots(), "err", err)
}

func schedule(b *simboard.Board, ev event, log *slog.Logger) {
	time.AfterFunc(ev.at, func() {
		log.Info("script", "event", ev.what)
		switch ev.what {
		case "sleep":
			b.PressSleep()
			time.AfterFunc(press, b.ReleaseSleep)
		case "print":
			b.PressPrint()
			time.AfterFunc(press, b.ReleasePrint)
		case "wake":
			b.Power.Wake()
		}
	})
}

// parseScript reads shell-style words of the form name@duration.
func parseScript(s string) ([]event, error) {
	words, err := shlex.Split(s)
	if err != nil {
		return nil, err
	}
	out := make([]event, 0, len(words))
	for _, w := range words {
		name, at, ok := strings.Cut(w, "@")
		if !ok {
			return nil, fmt.Errorf("%q: want name@duration", w)
		}
		switch name {
		case "sleep", "print", "wake":
		default:
			return nil, fmt.Errorf("%q: unknown event %q", w, name)
		}
		d, err := time.ParseDuration(at)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", w, err)
		}
		out = append(out, event{at: d, what: name})
	}
	return out, nil
}

func parseTemps(s string) ([]float64, error) {
	words, err := shlex.Split(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(words))
	for _, w := range words {
		v, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type dryRunUploader struct{ log *slog.Logger }

func (d dryRunUploader) Upload(_ context.Context, u uplink.Update) error {
	d.log.Info("dry-run upload", "body", uplink.FormBody(u.Fields(false)))
	return nil
}
