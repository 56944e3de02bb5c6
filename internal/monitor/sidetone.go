// SPDX-License-Identifier: MIT
/*
Package monitor provides local monitoring of the synthesizer: an audible
sidetone that tracks the key state through the audio output device.

The sidetone applies the same raised-cosine keying envelope the RF output
uses, so it keys without clicks.
*/
package monitor

import (
	"fmt"
	"math"

	"github.com/gordonklaus/portaudio"

	applog "rfsynth/internal/log"
)

// KeyStateProvider reports whether the transmitter is currently keyed.
// Implementations must be safe to call from the audio callback thread.
type KeyStateProvider interface {
	Transmitting() bool
}

const (
	sidetoneSampleRate = 48000
	sidetoneFrames     = 256
	sidetoneGain       = 0.2
	// envelope traverses 0..1 in about 5ms
	envelopeRiseSec = 0.005
)

// Initialize sets up the PortAudio subsystem. Must be called before any
// audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem. Should be deferred
// immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Sidetone renders a keyed audio tone on the default output device.
type Sidetone struct {
	pitchHz  float64
	provider KeyStateProvider
	stream   *portaudio.Stream

	// Callback state, touched only from the audio thread.
	phase     float64
	phaseStep float64
	level     float64
	levelStep float64
}

// NewSidetone creates a sidetone at the given pitch, keyed by provider.
// PortAudio must be initialized first.
func NewSidetone(pitchHz float64, provider KeyStateProvider) (*Sidetone, error) {
	if pitchHz <= 0 {
		return nil, fmt.Errorf("sidetone pitch must be positive, got %g", pitchHz)
	}
	if provider == nil {
		return nil, fmt.Errorf("sidetone key state provider cannot be nil")
	}

	device, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to get default output device: %w", err)
	}

	s := &Sidetone{
		pitchHz:   pitchHz,
		provider:  provider,
		phaseStep: 2 * math.Pi * pitchHz / sidetoneSampleRate,
		levelStep: 1 / (envelopeRiseSec * sidetoneSampleRate),
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   device,
			Latency:  device.DefaultLowOutputLatency,
		},
		FramesPerBuffer: sidetoneFrames,
		SampleRate:      sidetoneSampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.process)
	if err != nil {
		return nil, fmt.Errorf("failed to open sidetone stream: %w", err)
	}
	s.stream = stream

	applog.Infof("Monitor: Sidetone ready (%.0f Hz, device: %s)", pitchHz, device.Name)
	return s, nil
}

// Start begins audio output.
func (s *Sidetone) Start() error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start sidetone stream: %w", err)
	}
	return nil
}

// Close stops and closes the audio stream.
func (s *Sidetone) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		return err
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

// process is the audio callback. It runs on the PortAudio thread; no
// allocations, no locks.
func (s *Sidetone) process(out []float32) {
	target := 0.0
	if s.provider.Transmitting() {
		target = 1.0
	}

	for i := range out {
		// Slew the keying level toward the target, then shape it with a
		// raised cosine so key edges are click-free.
		if s.level < target {
			s.level = math.Min(s.level+s.levelStep, target)
		} else if s.level > target {
			s.level = math.Max(s.level-s.levelStep, target)
		}

		envelope := 0.5 * (1 - math.Cos(math.Pi*s.level))
		out[i] = float32(sidetoneGain * envelope * math.Sin(s.phase))

		s.phase += s.phaseStep
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
}
