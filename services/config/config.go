package config

import (
	"time"

	"envnode-go/errcode"
	"envnode-go/x/mathx"
	"envnode-go/x/strx"
)

// Config is everything a node needs to boot. Zero durations and counts are
// replaced by defaults in Normalise.
type Config struct {
	Board  string
	Device string // title on the display, MQTT client id fallback

	// Scheduling
	SampleInterval time.Duration
	UploadInterval time.Duration
	Debounce       time.Duration
	PassDelay      time.Duration // pause between scheduler passes
	LEDSettle      time.Duration // LED on-time when entering sleep
	WakeSettle     time.Duration // pause after a wake boot so the button is released
	Heartbeat      time.Duration // liveness log interval, 0 disables

	// Batching / history
	BufferCapacity     int
	HistoryK           int
	AverageByOccupancy bool // upload mean over held readings instead of capacity
	StorageFile        string
	DataDir            string // host and Linux builds only

	// Sensor
	Sensor    string // "ds18b20", "aht20", "bme280", "sim"
	SensorPin int    // OneWire data pin for ds18b20
	I2CAddr   uint16

	// Digital I/O
	SleepPin         int
	PrintPin         int
	LEDPin           int
	ButtonsActiveLow bool

	// Network
	WiFiSSID     string
	WiFiPassword string

	// Uplink
	Transport    string // "http" or "mqtt"
	UplinkHost   string
	UplinkPort   int
	UplinkPath   string
	APIKey       string
	ChannelID    string
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Logging
	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json, tint
}

// Defaults mirror the constants the node shipped with.
func Defaults() Config {
	return Config{
		Board:  "pico-w",
		Device: "envnode",

		SampleInterval: 20 * time.Second,
		UploadInterval: 20 * time.Second,
		Debounce:       200 * time.Millisecond,
		PassDelay:      10 * time.Millisecond,
		LEDSettle:      500 * time.Millisecond,
		WakeSettle:     500 * time.Millisecond,
		Heartbeat:      time.Minute,

		BufferCapacity: 10,
		HistoryK:       5,
		StorageFile:    "/summary.txt",
		DataDir:        "data",

		Sensor:    "ds18b20",
		SensorPin: 5,
		I2CAddr:   0x38,

		SleepPin:         14,
		PrintPin:         15,
		LEDPin:           16,
		ButtonsActiveLow: true,

		Transport:  "http",
		UplinkHost: "api.thingspeak.com",
		UplinkPort: 80,
		UplinkPath: "/update",
		MQTTBroker: "tcp://mqtt3.thingspeak.com:1883",

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// ProfileLookup resolves per-board overrides; replaceable in tests.
var ProfileLookup = func(board string) (func(*Config), bool) {
	p, ok := boardProfiles[board]
	return p, ok
}

// ForBoard returns Defaults with the named board profile applied.
func ForBoard(board string) (Config, error) {
	c := Defaults()
	c.Board = strx.Coalesce(board, c.Board)
	apply, ok := ProfileLookup(c.Board)
	if !ok {
		return Config{}, &errcode.E{C: errcode.InvalidConfig, Op: "config", Msg: "no profile for board " + c.Board}
	}
	apply(&c)
	return c, nil
}

// Normalise fills zero values from Defaults and clamps counts into a range
// the fixed buffers can hold.
func (c *Config) Normalise() {
	d := Defaults()
	c.SampleInterval = mathx.OrDefault(c.SampleInterval, d.SampleInterval)
	c.UploadInterval = mathx.OrDefault(c.UploadInterval, d.UploadInterval)
	c.Debounce = mathx.OrDefault(c.Debounce, d.Debounce)
	c.PassDelay = mathx.OrDefault(c.PassDelay, d.PassDelay)
	c.LEDSettle = mathx.OrDefault(c.LEDSettle, d.LEDSettle)
	c.WakeSettle = mathx.OrDefault(c.WakeSettle, d.WakeSettle)
	c.BufferCapacity = mathx.Clamp(mathx.OrDefault(c.BufferCapacity, d.BufferCapacity), 1, 64)
	c.HistoryK = mathx.Clamp(mathx.OrDefault(c.HistoryK, d.HistoryK), 1, 32)
	c.UplinkPort = mathx.OrDefault(c.UplinkPort, d.UplinkPort)
	c.StorageFile = strx.Coalesce(c.StorageFile, d.StorageFile)
	c.Transport = strx.Coalesce(c.Transport, d.Transport)
	c.UplinkPath = strx.Coalesce(c.UplinkPath, d.UplinkPath)
	c.Device = strx.Coalesce(c.Device, d.Device)
	c.MQTTClientID = strx.Coalesce(c.MQTTClientID, c.Device)
	c.LogLevel = strx.Coalesce(c.LogLevel, d.LogLevel)
	c.LogFormat = strx.Coalesce(c.LogFormat, d.LogFormat)
}

// Validate reports settings that make the node unable to run. A failure here
// is a startup error and halts the node.
func (c Config) Validate() error {
	bad := func(msg string) error {
		return &errcode.E{C: errcode.InvalidConfig, Op: "config", Msg: msg}
	}
	switch c.Transport {
	case "http":
		if c.UplinkHost == "" {
			return bad("uplink host is empty")
		}
	case "mqtt":
		if c.MQTTBroker == "" || c.ChannelID == "" {
			return bad("mqtt needs broker and channel id")
		}
	default:
		return bad("unknown transport " + c.Transport)
	}
	switch c.Sensor {
	case "ds18b20", "aht20", "bme280", "sim":
	default:
		return bad("unknown sensor " + c.Sensor)
	}
	if c.SleepPin == c.PrintPin {
		return bad("sleep and print buttons share a pin")
	}
	return nil
}
