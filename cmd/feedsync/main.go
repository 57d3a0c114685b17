//go:build !(rp2040 || rp2350)

// Command feedsync copies the node's channel feed into a local SQLite
// database and optionally serves it over HTTP.
//
//	feedsync -channel 2765731 -read-key XXXX -db data/feeds.db -listen :8080
//
// Flags default from FEEDSYNC_* variables, read from .env when present.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"

	"envnode-go/internal/logging"
	"envnode-go/services/feedstore"
	"envnode-go/services/feedsync"
	"envnode-go/x/strx"
)

func main() {
	_ = godotenv.Load() // optional

	env := func(k, def string) string { return strx.Coalesce(os.Getenv("FEEDSYNC_"+k), def) }
	envDur := func(k string, def time.Duration) time.Duration {
		if d, err := time.ParseDuration(os.Getenv("FEEDSYNC_" + k)); err == nil {
			return d
		}
		return def
	}

	var (
		dbPath   = flag.String("db", env("DB", "data/feeds.db"), "sqlite database path")
		baseURL  = flag.String("base-url", env("BASE_URL", feedsync.DefaultBaseURL), "read API base URL")
		channel  = flag.String("channel", env("CHANNEL", ""), "channel id")
		readKey  = flag.String("read-key", env("READ_KEY", ""), "channel read API key")
		results  = flag.Int("results", 1, "entries per fetch")
		interval = flag.Duration("interval", envDur("INTERVAL", 30*time.Second), "fetch interval")
		listen   = flag.String("listen", env("LISTEN", ""), "serve the read API on this address; empty disables")
		once     = flag.Bool("once", false, "fetch once and exit")
		level    = flag.String("log-level", env("LOG_LEVEL", "info"), "debug, info, warn, error")
		format   = flag.String("log-format", env("LOG_FORMAT", "tint"), "tint, json, text")
	)
	flag.Parse()

	log := logging.New(os.Stdout, *level, *format, "feedsync")
	if *channel == "" {
		log.Error("missing channel id (-channel or FEEDSYNC_CHANNEL)")
		os.Exit(2)
	}

	store, err := feedstore.Open(*dbPath, log)
	if err != nil {
		log.Error("open store", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	client := feedsync.NewClient(*channel, *readKey)
	client.BaseURL = *baseURL
	client.Results = *results
	syncer := &feedsync.Syncer{Fetcher: client, Store: store, Interval: *interval, Log: log}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		n, err := syncer.SyncOnce(ctx)
		if err != nil {
			log.Error("sync failed", "err", err)
			os.Exit(1)
		}
		log.Info("synced", "stored", n)
		return
	}

	if *listen != "" {
		router := feedsync.NewRouter(store, log)
		srv := &http.Server{
			Addr:              *listen,
			Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, router)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("listening", "addr", *listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server", "err", err)
				stop()
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("sync loop", "err", err)
	}
}
