// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"rfsynth/internal/synth"
)

// Defaults for everything not given in the config file. The synthesis
// values mirror the defaults the synthesizer itself ships with.
const (
	DefaultClockHz          = 200e6
	DefaultLogLevel         = "info"
	DefaultWebsocketAddr    = ":8080"
	DefaultUDPTarget        = "127.0.0.1:9090"
	DefaultSidetonePitchHz  = 600
	DefaultSpectrumInterval = 250 * time.Millisecond
	DefaultDitherSeed       = 1
)

// Config is the application configuration, loaded from YAML with
// environment overrides applied on top.
type Config struct {
	Debug    bool   `yaml:"debug"`     // verbose logging
	LogLevel string `yaml:"log_level"` // "debug", "info", "warn", "error"

	Synth     SynthConfig     `yaml:"synth"`     // carrier synthesis settings
	Monitor   MonitorConfig   `yaml:"monitor"`   // local monitoring (sidetone, websocket)
	Transport TransportConfig `yaml:"transport"` // network publishing (UDP)

	// Set by the command line, never by the file.
	Command string `yaml:"-"` // selected subcommand
	WAVOut  string `yaml:"-"` // waveform export path for the analyze command
}

// SynthConfig seeds the synthesizer's parameter surface. Every field is
// re-validated by the corresponding setter; Validate here exists to reject a
// bad file before any hardware is touched.
type SynthConfig struct {
	ClockHz         float64 `yaml:"clock_hz"`         // serializer clock
	FrequencyHz     float64 `yaml:"frequency_hz"`     // requested carrier frequency
	Mode            int     `yaml:"mode"`             // 0..5, see synth.Mode
	Amplitude       float64 `yaml:"amplitude"`        // 0..2
	DitherAmplitude float64 `yaml:"dither_amplitude"` // 0..3
	HD3Amplitude    float64 `yaml:"hd3_amplitude"`    // -0.5..0.5
	HD3PhaseDeg     float64 `yaml:"hd3_phase_deg"`    // third-harmonic phase, degrees
	MaxBufferWords  int     `yaml:"max_buffer_words"` // 2..10000
	DitherSeed      int64   `yaml:"dither_seed"`      // PRNG seed for the dither stream
}

// MonitorConfig controls the local monitoring surfaces.
type MonitorConfig struct {
	SidetoneEnabled  bool          `yaml:"sidetone_enabled"`  // audible keying tone via the audio device
	SidetonePitchHz  float64       `yaml:"sidetone_pitch_hz"` // sidetone frequency
	WebsocketEnabled bool          `yaml:"websocket_enabled"` // status/spectrum broadcast server
	WebsocketAddr    string        `yaml:"websocket_addr"`    // listen address, e.g. ":8080"
	SpectrumInterval time.Duration `yaml:"spectrum_interval"` // interval between spectrum frames
}

// TransportConfig controls network publishing of spectrum frames.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Synth: SynthConfig{
			ClockHz:         DefaultClockHz,
			FrequencyHz:     synth.DefaultFrequencyHz,
			Mode:            int(synth.DefaultMode),
			Amplitude:       synth.DefaultAmplitude,
			DitherAmplitude: synth.DefaultDitherAmplitude,
			HD3Amplitude:    synth.DefaultHD3Amplitude,
			HD3PhaseDeg:     synth.DefaultHD3PhaseRad * 180 / math.Pi,
			MaxBufferWords:  synth.DefaultMaxBufferWords,
			DitherSeed:      DefaultDitherSeed,
		},
		Monitor: MonitorConfig{
			SidetoneEnabled:  false,
			SidetonePitchHz:  DefaultSidetonePitchHz,
			WebsocketEnabled: false,
			WebsocketAddr:    DefaultWebsocketAddr,
			SpectrumInterval: DefaultSpectrumInterval,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  time.Second,
		},
	}
}

// Load reads configuration from the YAML file at path. An empty path
// searches the default locations and silently falls back to the built-in
// defaults when no file exists. Environment overrides are applied after the
// file, then the result is validated.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{"rfsynth.yaml", "config.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the synthesizer setters would refuse, so a bad
// file fails before construction instead of mid-apply.
func (c *Config) Validate() error {
	s := &c.Synth
	if s.ClockHz <= 0 {
		return fmt.Errorf("synth.clock_hz must be positive, got %g", s.ClockHz)
	}
	if s.FrequencyHz <= 0 {
		return fmt.Errorf("synth.frequency_hz must be positive, got %g", s.FrequencyHz)
	}
	if !synth.Mode(s.Mode).Valid() {
		return fmt.Errorf("synth.mode must be 0..%d, got %d", synth.NumModes-1, s.Mode)
	}
	if s.Amplitude < synth.MinAmplitude || s.Amplitude > synth.MaxAmplitude {
		return fmt.Errorf("synth.amplitude must be in [%g, %g], got %g",
			synth.MinAmplitude, synth.MaxAmplitude, s.Amplitude)
	}
	if s.DitherAmplitude < synth.MinDitherAmplitude || s.DitherAmplitude > synth.MaxDitherAmplitude {
		return fmt.Errorf("synth.dither_amplitude must be in [%g, %g], got %g",
			synth.MinDitherAmplitude, synth.MaxDitherAmplitude, s.DitherAmplitude)
	}
	if s.HD3Amplitude < synth.MinHD3Amplitude || s.HD3Amplitude > synth.MaxHD3Amplitude {
		return fmt.Errorf("synth.hd3_amplitude must be in [%g, %g], got %g",
			synth.MinHD3Amplitude, synth.MaxHD3Amplitude, s.HD3Amplitude)
	}
	if s.MaxBufferWords < synth.MinBufferWords || s.MaxBufferWords > synth.MaxBufferWords {
		return fmt.Errorf("synth.max_buffer_words must be in [%d, %d], got %d",
			synth.MinBufferWords, synth.MaxBufferWords, s.MaxBufferWords)
	}
	if c.Monitor.SidetoneEnabled && c.Monitor.SidetonePitchHz <= 0 {
		return fmt.Errorf("monitor.sidetone_pitch_hz must be positive, got %g",
			c.Monitor.SidetonePitchHz)
	}
	if c.Monitor.WebsocketEnabled && c.Monitor.WebsocketAddr == "" {
		return fmt.Errorf("monitor.websocket_addr must be set when the websocket monitor is enabled")
	}
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

// HD3PhaseRad returns the configured third-harmonic phase in radians.
func (s SynthConfig) HD3PhaseRad() float64 {
	return s.HD3PhaseDeg * math.Pi / 180
}

// applyEnvOverrides lets deployment scripts flip a few switches without
// rewriting the file.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("RFSYNTH_DEBUG"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
	if val, ok := os.LookupEnv("RFSYNTH_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("RFSYNTH_UDP_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = b
		}
	}
	if val, ok := os.LookupEnv("RFSYNTH_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
	}
	if val, ok := os.LookupEnv("RFSYNTH_UDP_SEND_INTERVAL"); ok {
		if d, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = d
		}
	}
}
