//go:build rp2040 || rp2350

package main

import (
	"context"

	"envnode-go/services/config"
)

// Credentials are injected at build time:
//
//	tinygo flash -target pico-w -ldflags "-X main.wifiSSID=... -X main.wifiPass=... -X main.apiKey=..."
var (
	wifiSSID = ""
	wifiPass = ""
	apiKey   = ""
)

func loadConfig(board string) (config.Config, error) {
	cfg, err := config.ForBoard(board)
	if err != nil {
		return cfg, err
	}
	cfg.WiFiSSID, cfg.WiFiPassword, cfg.APIKey = wifiSSID, wifiPass, apiKey
	cfg.Normalise()
	return cfg, cfg.Validate()
}

func rootContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}
