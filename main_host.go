//go:build !(rp2040 || rp2350)

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"envnode-go/services/config"
)

func loadConfig(board string) (config.Config, error) {
	cfg, err := config.LoadEnv(board)
	if err != nil {
		// Keep the log settings usable even when the rest is rejected.
		d := config.Defaults()
		cfg.LogLevel, cfg.LogFormat = d.LogLevel, d.LogFormat
	}
	return cfg, err
}

func rootContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
