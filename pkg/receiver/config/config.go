// Package config is the YAML schema for fmlive.
package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	BackendUSB       = "usb"
	BackendLibHackRF = "libhackrf"
	BackendReplay    = "replay"
)

type Config struct {
	Device           string              `yaml:"device"`
	Backend          string              `yaml:"backend"`
	Frequency        int                 `yaml:"frequency"`
	SampleRate       int                 `yaml:"sample_rate"`
	LNAGain          int                 `yaml:"lna_gain"`
	VGAGain          int                 `yaml:"vga_gain"`
	AmpEnable        bool                `yaml:"amp_enable"`
	AntennaEnable    bool                `yaml:"antenna_enable"`
	TuningOffset     int                 `yaml:"tuning_offset"`
	PlaybackLocation string              `yaml:"playback_location"`
	RecordLocation   string              `yaml:"record_location"`
	Audio            Audio               `yaml:"audio"`
	StreamID         int                 `yaml:"stream_id"`
	Outputs          []OutputDestination `yaml:"output_destinations"`
	ControlServer    struct {
		Port int `yaml:"port"`
	} `yaml:"control_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
	LogLevel string `yaml:"log_level"`
}

type Audio struct {
	SampleRate     int    `yaml:"sample_rate"`
	BlockSize      int    `yaml:"block_size"`
	RingCapacity   int    `yaml:"ring_capacity"`
	DeviceIndex    *int   `yaml:"device_index"`
	RecordLocation string `yaml:"record_location"`
	PCMLocation    string `yaml:"pcm_location"`
	AGC            bool   `yaml:"agc"`
	Deemphasis     int    `yaml:"deemphasis"` // microseconds
	Disable        bool   `yaml:"disable"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

const (
	defaultSampleRate   = 2000000
	defaultLNAGain      = 16
	defaultVGAGain      = 16
	defaultAudioRate    = 48000
	defaultBlockSize    = 128
	defaultRingCapacity = 32768
	defaultDeemphasis   = 75
	maxSampleRate       = 20000000
)

// Validate fills in defaults and rejects values no device accepts. It runs
// before any device is touched.
func (c *Config) Validate() error {
	if c.Device == "" {
		c.Device = "hackrf"
	}
	if c.PlaybackLocation != "" {
		c.Backend = BackendReplay
	}
	if c.Backend == "" {
		c.Backend = BackendUSB
	}
	switch c.Backend {
	case BackendUSB, BackendLibHackRF, BackendReplay:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Backend == BackendReplay && c.PlaybackLocation == "" {
		return fmt.Errorf("backend %q needs playback_location", c.Backend)
	}

	if c.SampleRate == 0 {
		c.SampleRate = defaultSampleRate
	}
	if c.SampleRate < 0 || c.SampleRate > maxSampleRate {
		return fmt.Errorf("sample_rate %d outside (0, %d]", c.SampleRate, maxSampleRate)
	}
	if c.Frequency <= 0 {
		return fmt.Errorf("frequency must be set")
	}
	if c.TuningOffset*2 >= c.SampleRate || -c.TuningOffset*2 >= c.SampleRate {
		return fmt.Errorf("tuning_offset %d outside the %d Hz sample band", c.TuningOffset, c.SampleRate)
	}
	if c.Frequency-c.TuningOffset <= 0 {
		return fmt.Errorf("tuning_offset %d larger than frequency", c.TuningOffset)
	}

	if c.LNAGain == 0 {
		c.LNAGain = defaultLNAGain
	}
	if c.VGAGain == 0 {
		c.VGAGain = defaultVGAGain
	}
	if c.LNAGain < 0 || c.LNAGain > 40 {
		return fmt.Errorf("lna_gain %d outside [0, 40]", c.LNAGain)
	}
	if c.VGAGain < 0 || c.VGAGain > 62 {
		return fmt.Errorf("vga_gain %d outside [0, 62]", c.VGAGain)
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = defaultAudioRate
	}
	if c.Audio.BlockSize == 0 {
		c.Audio.BlockSize = defaultBlockSize
	}
	if c.Audio.RingCapacity == 0 {
		c.Audio.RingCapacity = defaultRingCapacity
	}
	if c.Audio.RingCapacity < c.Audio.BlockSize {
		return fmt.Errorf("audio ring_capacity %d smaller than block_size %d", c.Audio.RingCapacity, c.Audio.BlockSize)
	}
	if c.Audio.Deemphasis == 0 {
		c.Audio.Deemphasis = defaultDeemphasis
	}
	if c.Audio.Deemphasis != 50 && c.Audio.Deemphasis != 75 {
		return fmt.Errorf("audio deemphasis %dµs is neither 50 nor 75", c.Audio.Deemphasis)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return fmt.Errorf("audio sample_rate %d outside [8000, 192000]", c.Audio.SampleRate)
	}

	for _, dest := range c.Outputs {
		if dest.Host == "" || dest.Port <= 0 {
			return fmt.Errorf("invalid output destination %s:%d", dest.Host, dest.Port)
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = zerolog.InfoLevel.String()
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// CenterFrequency is where the radio is tuned so the wanted station sits
// TuningOffset above center.
func (c *Config) CenterFrequency() int {
	return c.Frequency - c.TuningOffset
}

// AudioDeviceIndex is the configured PortAudio output, or -1 for the
// default.
func (c *Config) AudioDeviceIndex() int {
	if c.Audio.DeviceIndex == nil {
		return -1
	}
	return *c.Audio.DeviceIndex
}

// DeemphasisTau is the de-emphasis time constant in seconds.
func (c *Config) DeemphasisTau() float64 {
	return float64(c.Audio.Deemphasis) * 1e-6
}
