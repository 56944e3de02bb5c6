package synth

import (
	"fmt"
	"math"
)

// Accepted parameter ranges. These double as the validation boundary the
// command layer is expected to enforce before calling in; the setters
// re-check and reject rather than clamp so a bad value never half-applies.
const (
	MinAmplitude       = 0.0
	MaxAmplitude       = 2.0
	MinDitherAmplitude = 0.0
	MaxDitherAmplitude = 3.0
	MinHD3Amplitude    = -0.5
	MaxHD3Amplitude    = 0.5
	MinBufferWords     = 2
	MaxBufferWords     = 10000
)

// Defaults match the values the transmitter ships with. The HD3 term
// pre-distorts the third harmonic; its purpose is downstream of the
// quantizer and it is carried here as an opaque configurable.
const (
	DefaultFrequencyHz     = 3550000.0
	DefaultMode            = ModeTrinarySigmaDeltaClickFree
	DefaultAmplitude       = 1.0
	DefaultDitherAmplitude = 1.0
	DefaultHD3Amplitude    = 0.045
	DefaultMaxBufferWords  = MaxBufferWords
)

// DefaultHD3PhaseRad is -35 degrees in radians.
var DefaultHD3PhaseRad = -35.0 * math.Pi / 180.0

// Params holds the synthesis parameters owned by the control path. Every
// setter validates its argument and marks the parameter set dirty; nothing
// is regenerated until ApplySettings runs, so several changes coalesce into
// a single recomputation.
type Params struct {
	frequency       float64
	mode            Mode
	amplitude       float64
	ditherAmplitude float64
	hd3Amplitude    float64
	hd3PhaseRad     float64
	maxBufferWords  int

	dirty bool
}

// NewParams returns a parameter set populated with the defaults, marked
// dirty so the first apply always regenerates.
func NewParams() *Params {
	return &Params{
		frequency:       DefaultFrequencyHz,
		mode:            DefaultMode,
		amplitude:       DefaultAmplitude,
		ditherAmplitude: DefaultDitherAmplitude,
		hd3Amplitude:    DefaultHD3Amplitude,
		hd3PhaseRad:     DefaultHD3PhaseRad,
		maxBufferWords:  DefaultMaxBufferWords,
		dirty:           true,
	}
}

// Dirty reports whether a setter has changed anything since the last apply.
func (p *Params) Dirty() bool { return p.dirty }

// markClean is called by the apply step once buffers are regenerated.
func (p *Params) markClean() { p.dirty = false }

func (p *Params) SetFrequency(hz float64) error {
	if hz <= 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("frequency must be positive, got %g", hz)
	}
	p.frequency = hz
	p.dirty = true
	return nil
}

func (p *Params) Frequency() float64 { return p.frequency }

func (p *Params) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("invalid mode %d, valid modes are 0..%d", int(m), NumModes-1)
	}
	p.mode = m
	p.dirty = true
	return nil
}

func (p *Params) Mode() Mode { return p.mode }

func (p *Params) SetAmplitude(a float64) error {
	if a < MinAmplitude || a > MaxAmplitude || math.IsNaN(a) {
		return fmt.Errorf("amplitude must be in [%g, %g], got %g", MinAmplitude, MaxAmplitude, a)
	}
	p.amplitude = a
	p.dirty = true
	return nil
}

func (p *Params) Amplitude() float64 { return p.amplitude }

func (p *Params) SetDitherAmplitude(a float64) error {
	if a < MinDitherAmplitude || a > MaxDitherAmplitude || math.IsNaN(a) {
		return fmt.Errorf("dither amplitude must be in [%g, %g], got %g",
			MinDitherAmplitude, MaxDitherAmplitude, a)
	}
	p.ditherAmplitude = a
	p.dirty = true
	return nil
}

func (p *Params) DitherAmplitude() float64 { return p.ditherAmplitude }

func (p *Params) SetHD3Amplitude(a float64) error {
	if a < MinHD3Amplitude || a > MaxHD3Amplitude || math.IsNaN(a) {
		return fmt.Errorf("HD3 amplitude must be in [%g, %g], got %g",
			MinHD3Amplitude, MaxHD3Amplitude, a)
	}
	p.hd3Amplitude = a
	p.dirty = true
	return nil
}

func (p *Params) HD3Amplitude() float64 { return p.hd3Amplitude }

func (p *Params) SetHD3Phase(rad float64) error {
	if math.IsNaN(rad) || math.IsInf(rad, 0) {
		return fmt.Errorf("HD3 phase must be finite, got %g", rad)
	}
	p.hd3PhaseRad = rad
	p.dirty = true
	return nil
}

func (p *Params) HD3Phase() float64 { return p.hd3PhaseRad }

func (p *Params) SetMaxBufferWords(n int) error {
	if n < MinBufferWords || n > MaxBufferWords {
		return fmt.Errorf("max buffer words must be in [%d, %d], got %d",
			MinBufferWords, MaxBufferWords, n)
	}
	p.maxBufferWords = n
	p.dirty = true
	return nil
}

func (p *Params) MaxBufferWords() int { return p.maxBufferWords }
