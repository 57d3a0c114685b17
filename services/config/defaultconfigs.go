package config

import "time"

// -----------------------------------------------------------------------------
// Embedded board profiles
//
// Key: board name (config Board field, ENVNODE_BOARD on hosts)
// Val: overrides applied on top of Defaults
// -----------------------------------------------------------------------------

var boardProfiles = map[string]func(*Config){
	// Pico W, DS18B20 on GP5, buttons on GP14/GP15 to ground, LED on GP16.
	"pico-w": func(c *Config) {},

	// Pico W with an AHT20 on I2C0 instead of the DS18B20.
	"pico-w-aht20": func(c *Config) {
		c.Sensor = "aht20"
		c.I2CAddr = 0x38
	},

	// Raspberry Pi with a BME280 on /dev/i2c-1, buttons on GPIO17/27, LED on GPIO22.
	"rpi": func(c *Config) {
		c.Sensor = "bme280"
		c.I2CAddr = 0x76
		c.SleepPin = 17
		c.PrintPin = 27
		c.LEDPin = 22
		c.LogFormat = "tint"
	},

	// Host simulator: scripted sensor, in-memory pins.
	"sim": func(c *Config) {
		c.Sensor = "sim"
		c.SampleInterval = 2 * time.Second
		c.UploadInterval = 5 * time.Second
		c.LogFormat = "tint"
	},
}
