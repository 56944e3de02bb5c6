package synth

import (
	"math"
	"testing"
)

func TestParamsDirtyLifecycle(t *testing.T) {
	p := NewParams()
	if !p.Dirty() {
		t.Fatal("fresh parameter set must be dirty so the first apply regenerates")
	}
	p.markClean()
	if p.Dirty() {
		t.Fatal("still dirty after markClean")
	}

	if err := p.SetFrequency(7.03e6); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if !p.Dirty() {
		t.Error("setter did not mark the set dirty")
	}
}

func TestParamsRejectionKeepsValueAndCleanliness(t *testing.T) {
	p := NewParams()
	p.markClean()

	if err := p.SetFrequency(-1); err == nil {
		t.Fatal("expected rejection")
	}
	if p.Frequency() != DefaultFrequencyHz {
		t.Errorf("frequency = %g after rejection, want default", p.Frequency())
	}
	if p.Dirty() {
		t.Error("rejected setter dirtied the parameter set")
	}
}

func TestParamsValidation(t *testing.T) {
	tests := []struct {
		name    string
		set     func(*Params) error
		wantErr bool
	}{
		{"frequency zero", func(p *Params) error { return p.SetFrequency(0) }, true},
		{"frequency NaN", func(p *Params) error { return p.SetFrequency(math.NaN()) }, true},
		{"frequency Inf", func(p *Params) error { return p.SetFrequency(math.Inf(1)) }, true},
		{"frequency ok", func(p *Params) error { return p.SetFrequency(14.05e6) }, false},
		{"mode negative", func(p *Params) error { return p.SetMode(-1) }, true},
		{"mode too large", func(p *Params) error { return p.SetMode(NumModes) }, true},
		{"mode ok", func(p *Params) error { return p.SetMode(ModeComparator) }, false},
		{"amplitude low", func(p *Params) error { return p.SetAmplitude(-0.1) }, true},
		{"amplitude high", func(p *Params) error { return p.SetAmplitude(2.1) }, true},
		{"amplitude max", func(p *Params) error { return p.SetAmplitude(MaxAmplitude) }, false},
		{"dither high", func(p *Params) error { return p.SetDitherAmplitude(3.5) }, true},
		{"dither zero", func(p *Params) error { return p.SetDitherAmplitude(0) }, false},
		{"hd3 low", func(p *Params) error { return p.SetHD3Amplitude(-0.6) }, true},
		{"hd3 ok", func(p *Params) error { return p.SetHD3Amplitude(0.045) }, false},
		{"hd3 phase NaN", func(p *Params) error { return p.SetHD3Phase(math.NaN()) }, true},
		{"hd3 phase negative ok", func(p *Params) error { return p.SetHD3Phase(-math.Pi) }, false},
		{"buffer words too small", func(p *Params) error { return p.SetMaxBufferWords(1) }, true},
		{"buffer words too large", func(p *Params) error { return p.SetMaxBufferWords(10001) }, true},
		{"buffer words min", func(p *Params) error { return p.SetMaxBufferWords(MinBufferWords) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.set(NewParams())
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestModeProperties(t *testing.T) {
	tests := []struct {
		mode      Mode
		buffered  bool
		clickFree bool
		trinary   bool
	}{
		{ModeClockDivider, false, false, false},
		{ModeComparator, true, false, false},
		{ModeBinarySigmaDelta, true, false, false},
		{ModeTrinarySigmaDelta, true, false, true},
		{ModeBinarySigmaDeltaClickFree, true, true, false},
		{ModeTrinarySigmaDeltaClickFree, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			if !tt.mode.Valid() {
				t.Fatal("mode reports invalid")
			}
			if got := tt.mode.Buffered(); got != tt.buffered {
				t.Errorf("Buffered() = %v, want %v", got, tt.buffered)
			}
			if got := tt.mode.ClickFree(); got != tt.clickFree {
				t.Errorf("ClickFree() = %v, want %v", got, tt.clickFree)
			}
			if got := tt.mode.Trinary(); got != tt.trinary {
				t.Errorf("Trinary() = %v, want %v", got, tt.trinary)
			}
		})
	}

	if Mode(NumModes).Valid() || Mode(-1).Valid() {
		t.Error("out-of-range modes report valid")
	}
}
