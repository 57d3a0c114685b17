//go:build !(rp2040 || rp2350)

package feedsync

import (
	"context"
	"log/slog"
	"time"

	"envnode-go/errcode"
	"envnode-go/services/feedstore"
)

// Syncer copies new feed entries into the store on a fixed interval.
type Syncer struct {
	Fetcher  Fetcher
	Store    *feedstore.Store
	Interval time.Duration
	Log      *slog.Logger
}

// SyncOnce fetches once and stores entries not seen before. Entries
// without a usable temperature are skipped.
func (s *Syncer) SyncOnce(ctx context.Context) (stored int, err error) {
	entries, err := s.Fetcher.Fetch(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		s.Log.Info("no data in feed")
		return 0, nil
	}
	for _, e := range entries {
		r, ok := e.Reading()
		if !ok {
			s.Log.Warn("entry skipped", "entry_id", e.EntryID, "reason", "no temperature")
			continue
		}
		added, err := s.Store.Insert(ctx, r)
		if err != nil {
			return stored, err
		}
		if added {
			stored++
		}
	}
	return stored, nil
}

// Run syncs immediately, then every Interval, until ctx ends. Fetch and
// store failures are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	if s.Interval <= 0 {
		s.Interval = 30 * time.Second
	}
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		n, err := s.SyncOnce(ctx)
		if err != nil {
			s.Log.Warn("sync failed", "err", err, "code", errcode.Of(err))
		} else if n > 0 {
			s.Log.Info("synced", "stored", n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
