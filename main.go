package main

import (
	"time"

	"envnode-go/internal/logging"
	"envnode-go/internal/platform"
	"envnode-go/services/display"
	"envnode-go/services/firmware"
)

// board selects the embedded profile; override with
// -ldflags "-X main.board=pico-w-aht20".
var board = ""

func main() {
	// Allow USB CDC / UART to settle before we print.
	time.Sleep(2 * time.Second)

	console := platform.Console()
	cfg, cfgErr := loadConfig(board)
	log := logging.New(console, cfg.LogLevel, cfg.LogFormat, "envnode")
	if cfgErr != nil {
		// Machine.Run re-validates and halts on this.
		log.Error("config", "err", cfgErr)
	}

	ctx, stop := rootContext()
	defer stop()

	m := &firmware.Machine{
		Cfg:         cfg,
		Factory:     platform.Open,
		Log:         log,
		HaltDisplay: display.LogRenderer{Log: log},
	}
	if err := m.Run(ctx); err != nil {
		log.Error("stopped", "state", m.State(), "err", err)
	}
}
