package types

import "time"

// ------------------------
// Temperature & humidity
// ------------------------

// DisconnectedC is the value a temperature sensor reports when it is absent
// or failed to answer. No physical reading can produce it.
const DisconnectedC = -127.0

// Reading is one sensor sample. At is monotonic time since boot.
type Reading struct {
	Temperature float64       `json:"temperature_c"`
	Humidity    float64       `json:"humidity_pct,omitempty"`
	HasHumidity bool          `json:"has_humidity"`
	At          time.Duration `json:"at"`
}

// Valid reports whether the temperature is a real measurement.
func (r Reading) Valid() bool { return r.Temperature != DisconnectedC }

// Invalid builds the sentinel reading a disconnected sensor yields.
func Invalid(at time.Duration) Reading {
	return Reading{Temperature: DisconnectedC, At: at}
}

// Summary is the average of one full batch of readings.
type Summary struct {
	AvgTemperature float64 `json:"avg_temperature_c"`
	AvgHumidity    float64 `json:"avg_humidity_pct,omitempty"`
	HasHumidity    bool    `json:"has_humidity"`
}

// ------------------------
// Power / lifecycle
// ------------------------

type PowerState uint8

const (
	StateInitializing PowerState = iota
	StateRunning
	StateSuspended
	StateHalted
)

func (s PowerState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}
