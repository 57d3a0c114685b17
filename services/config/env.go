//go:build !(rp2040 || rp2350)

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"envnode-go/errcode"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "ENVNODE_"

// LoadEnv reads an optional .env file, picks the board profile named by
// ENVNODE_BOARD (or board when set), then applies ENVNODE_* overrides.
// A missing .env file is not an error.
func LoadEnv(board string, files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Config{}, errcode.Wrap(errcode.InvalidConfig, "dotenv", err)
			}
		}
	}
	if board == "" {
		board = os.Getenv(EnvPrefix + "BOARD")
	}
	c, err := ForBoard(board)
	if err != nil {
		return Config{}, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	c.Normalise()
	return c, c.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DEVICE":        &c.Device,
		"STORAGE_FILE":  &c.StorageFile,
		"DATA_DIR":      &c.DataDir,
		"SENSOR":        &c.Sensor,
		"WIFI_SSID":     &c.WiFiSSID,
		"WIFI_PASSWORD": &c.WiFiPassword,
		"TRANSPORT":     &c.Transport,
		"UPLINK_HOST":   &c.UplinkHost,
		"UPLINK_PATH":   &c.UplinkPath,
		"API_KEY":       &c.APIKey,
		"CHANNEL_ID":    &c.ChannelID,
		"MQTT_BROKER":   &c.MQTTBroker,
		"MQTT_CLIENT":   &c.MQTTClientID,
		"MQTT_USER":     &c.MQTTUsername,
		"MQTT_PASSWORD": &c.MQTTPassword,
		"LOG_LEVEL":     &c.LogLevel,
		"LOG_FORMAT":    &c.LogFormat,
	}
	for k, p := range str {
		if v, ok := lookup(EnvPrefix + k); ok {
			*p = strings.TrimSpace(v)
		}
	}

	dur := map[string]*time.Duration{
		"SAMPLE_INTERVAL": &c.SampleInterval,
		"UPLOAD_INTERVAL": &c.UploadInterval,
		"DEBOUNCE":        &c.Debounce,
		"PASS_DELAY":      &c.PassDelay,
		"LED_SETTLE":      &c.LEDSettle,
		"WAKE_SETTLE":     &c.WakeSettle,
		"HEARTBEAT":       &c.Heartbeat,
	}
	for k, p := range dur {
		v, ok := lookup(EnvPrefix + k)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return &errcode.E{C: errcode.InvalidConfig, Op: "env", Msg: EnvPrefix + k, Err: err}
		}
		*p = d
	}

	ints := map[string]*int{
		"BUFFER_CAPACITY": &c.BufferCapacity,
		"HISTORY_K":       &c.HistoryK,
		"UPLINK_PORT":     &c.UplinkPort,
		"SENSOR_PIN":      &c.SensorPin,
		"SLEEP_PIN":       &c.SleepPin,
		"PRINT_PIN":       &c.PrintPin,
		"LED_PIN":         &c.LEDPin,
	}
	for k, p := range ints {
		v, ok := lookup(EnvPrefix + k)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &errcode.E{C: errcode.InvalidConfig, Op: "env", Msg: EnvPrefix + k, Err: err}
		}
		*p = n
	}

	bools := map[string]*bool{
		"AVERAGE_BY_OCCUPANCY": &c.AverageByOccupancy,
		"BUTTONS_ACTIVE_LOW":   &c.ButtonsActiveLow,
	}
	for k, p := range bools {
		v, ok := lookup(EnvPrefix + k)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &errcode.E{C: errcode.InvalidConfig, Op: "env", Msg: EnvPrefix + k, Err: err}
		}
		*p = b
	}

	if v, ok := lookup(EnvPrefix + "I2C_ADDR"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 0, 16)
		if err != nil {
			return &errcode.E{C: errcode.InvalidConfig, Op: "env", Msg: EnvPrefix + "I2C_ADDR", Err: err}
		}
		c.I2CAddr = uint16(n)
	}
	return nil
}
