//go:build rp2040 || rp2350

package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger on the serial console. Time is dropped; the
// device has no wall clock.
func New(w io.Writer, level, _ string, app string) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(h).With("app", app)
}
