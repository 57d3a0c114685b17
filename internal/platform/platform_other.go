//go:build !linux && !(rp2040 || rp2350)

package platform

import (
	"context"
	"io"
	"log/slog"
	"os"

	"envnode-go/errcode"
	"envnode-go/services/config"
	"envnode-go/services/firmware"
)

// Console is the process stdout.
func Console() io.Writer { return os.Stdout }

// Open has no hardware to bind here; use the simulator.
func Open(context.Context, config.Config, *slog.Logger) (*firmware.Board, error) {
	return nil, &errcode.E{C: errcode.Unsupported, Op: "platform", Msg: "no board support for this target"}
}
