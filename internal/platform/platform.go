// Package platform brings up a firmware.Board on real hardware. Open and
// Console are built per target: RP2 (TinyGo), Linux (periph.io), and a
// stub elsewhere that reports errcode.Unsupported.
package platform

import (
	"errors"
	"log/slog"
	"time"

	"envnode-go/drivers/aht20"
	"envnode-go/types"
)

// wakeMarker is written to the store before a suspend. Its presence at the
// next boot means the boot was a wake from sleep.
const wakeMarker = "/.wake"

// aht20Sensor adapts the AHT20 driver to scheduler.Sensor. Any bus or
// protocol failure becomes the disconnected sentinel.
type aht20Sensor struct {
	dev *aht20.Device
	log *slog.Logger
}

func (s *aht20Sensor) RequestReading(now time.Duration) types.Reading {
	m, err := s.dev.Measure()
	if err != nil {
		s.log.Debug("aht20 read", "err", err)
		if errors.Is(err, aht20.ErrTimeout) {
			s.recover()
		}
		return types.Invalid(now)
	}
	return types.Reading{
		Temperature: m.Celsius(),
		Humidity:    m.RelHumidity(),
		HasHumidity: true,
		At:          now,
	}
}

// recover soft-resets a sensor stuck busy and reloads its calibration.
func (s *aht20Sensor) recover() {
	if err := s.dev.Reset(); err != nil {
		s.log.Warn("aht20 reset", "err", err)
		return
	}
	s.dev.Sleep(20 * time.Millisecond)
	if err := s.dev.Configure(); err != nil {
		s.log.Warn("aht20 configure", "err", err)
	}
}
