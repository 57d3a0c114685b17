//go:build linux && !(rp2040 || rp2350)

package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newTestPower(t *testing.T, marker string) (*linuxPower, *gpiotest.Pin) {
	t.Helper()
	pin := &gpiotest.Pin{N: "GPIO14", Num: 14, L: gpio.High, EdgesChan: make(chan gpio.Level, 1)}
	p := &linuxPower{
		pin:       pin,
		activeLow: true,
		marker:    marker,
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return p, pin
}

func suspendAsync(ctx context.Context, p *linuxPower) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Suspend(ctx) }()
	return done
}

func TestSuspendWaitsForWakeRelease(t *testing.T) {
	marker := filepath.Join(t.TempDir(), ".wake")
	p, pin := newTestPower(t, marker)
	done := suspendAsync(context.Background(), p)

	pin.EdgesChan <- gpio.Low // wake press
	select {
	case err := <-done:
		t.Fatalf("Suspend returned %v while the wake button is held", err)
	case <-time.After(150 * time.Millisecond):
	}

	pin.Out(gpio.High)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Suspend = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Suspend did not return after release")
	}
	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("wake marker: %v", err)
	}
}

func TestSuspendMarkerFailureStillWaits(t *testing.T) {
	p, pin := newTestPower(t, filepath.Join(t.TempDir(), "missing", ".wake"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := suspendAsync(ctx, p)

	select {
	case err := <-done:
		t.Fatalf("Suspend returned %v before any wake input", err)
	case <-time.After(100 * time.Millisecond):
	}

	pin.EdgesChan <- gpio.Low
	time.Sleep(50 * time.Millisecond)
	pin.Out(gpio.High)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Suspend = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Suspend did not return after wake")
	}
}

func TestSuspendHonoursContext(t *testing.T) {
	p, _ := newTestPower(t, filepath.Join(t.TempDir(), ".wake"))
	ctx, cancel := context.WithCancel(context.Background())
	done := suspendAsync(ctx, p)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Suspend = %v, want canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Suspend ignored cancellation")
	}
}
