// Package aht20 drives the AHT20 temperature/humidity sensor over I2C.
//
//	d.Trigger()          // start a conversion (no blocking)
//	s, err := d.Collect() // ErrNotReady while the device is busy
//
// Measure does trigger plus bounded polling. The 7-byte frame carries a CRC
// which is checked before the sample is accepted.
//
// I2C.Tx must perform a write followed by a repeated-start read when both w
// and r are given.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Address is the fixed bus address.
const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08

	fullScale = 1 << 20
)

var (
	ErrTimeout  = errors.New("aht20: timeout")
	ErrNotReady = errors.New("aht20: not ready")
	ErrCRC      = errors.New("aht20: crc mismatch")
)

// Config is optional. Zero fields take defaults.
type Config struct {
	Address      uint16        // 0x38
	PollInterval time.Duration // 15ms between Collect attempts in Measure
	Timeout      time.Duration // 250ms total Measure budget
	Settle       time.Duration // 80ms nominal conversion time
}

// Device is one sensor on a bus.
type Device struct {
	bus drivers.I2C
	cfg Config
	buf [7]byte

	// Sleep is used for conversion and poll waits. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// New binds a device to an already configured bus. It does not touch the
// hardware.
func New(bus drivers.I2C, cfg Config) *Device {
	if cfg.Address == 0 {
		cfg.Address = Address
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 250 * time.Millisecond
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 80 * time.Millisecond
	}
	return &Device{bus: bus, cfg: cfg, Sleep: time.Sleep}
}

// Configure loads the calibration when the device reports it missing. It
// fails only when the bus does not answer.
func (d *Device) Configure() error {
	st, err := d.Status()
	if err != nil {
		return err
	}
	if st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	d.Sleep(10 * time.Millisecond)
	return nil
}

// Reset issues a soft reset; allow ~20ms before the next command.
func (d *Device) Reset() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdSoftReset}, nil)
}

// Status reads the status byte.
func (d *Device) Status() (byte, error) {
	var b [1]byte
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdStatus}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// Trigger starts one conversion.
func (d *Device) Trigger() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Collect reads a finished conversion.
func (d *Device) Collect() (Sample, error) {
	data := d.buf[:]
	if err := d.bus.Tx(d.cfg.Address, nil, data); err != nil {
		return Sample{}, err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return Sample{}, ErrNotReady
	}
	if crc8(data[:6]) != data[6] {
		return Sample{}, ErrCRC
	}
	return Sample{
		RawHumidity: uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4,
		RawTemp:     uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}, nil
}

// Measure triggers, waits the nominal conversion time, then polls Collect
// until it succeeds or the timeout elapses.
func (d *Device) Measure() (Sample, error) {
	if err := d.Trigger(); err != nil {
		return Sample{}, err
	}
	d.Sleep(d.cfg.Settle)
	waited := d.cfg.Settle
	for {
		s, err := d.Collect()
		if err != ErrNotReady {
			return s, err
		}
		if waited >= d.cfg.Timeout {
			return Sample{}, ErrTimeout
		}
		d.Sleep(d.cfg.PollInterval)
		waited += d.cfg.PollInterval
	}
}

// Sample is one raw 20-bit measurement pair.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// Celsius converts the raw temperature.
func (s Sample) Celsius() float64 {
	return float64(s.RawTemp)*200/fullScale - 50
}

// RelHumidity converts the raw humidity to percent.
func (s Sample) RelHumidity() float64 {
	return float64(s.RawHumidity) * 100 / fullScale
}

// DeciCelsius is Celsius in tenths, without floating point.
func (s Sample) DeciCelsius() int32 {
	return int32(int64(s.RawTemp)*2000/fullScale) - 500
}

// DeciRelHumidity is RelHumidity in tenths.
func (s Sample) DeciRelHumidity() int32 {
	return int32(int64(s.RawHumidity) * 1000 / fullScale)
}

// crc8 is CRC-8/NRSC-5 style: poly 0x31, init 0xFF.
func crc8(b []byte) byte {
	crc := byte(0xFF)
	for _, v := range b {
		crc ^= v
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
