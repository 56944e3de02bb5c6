// SPDX-License-Identifier: MIT
package monitor

import (
	"math"
	"testing"
)

type fakeKeyState struct{ down bool }

func (f *fakeKeyState) Transmitting() bool { return f.down }

// newTestSidetone builds a Sidetone without touching PortAudio so the
// callback can be driven directly.
func newTestSidetone(key *fakeKeyState) *Sidetone {
	return &Sidetone{
		pitchHz:   600,
		provider:  key,
		phaseStep: 2 * math.Pi * 600 / sidetoneSampleRate,
		levelStep: 1 / (envelopeRiseSec * sidetoneSampleRate),
	}
}

func peak(buf []float32) float64 {
	var p float64
	for _, v := range buf {
		if a := math.Abs(float64(v)); a > p {
			p = a
		}
	}
	return p
}

func TestSidetoneKeysUpAndDown(t *testing.T) {
	key := &fakeKeyState{}
	s := newTestSidetone(key)
	buf := make([]float32, sidetoneSampleRate/10) // 100ms

	// Key up: silence.
	s.process(buf)
	if p := peak(buf); p != 0 {
		t.Errorf("expected silence with key up, peak = %g", p)
	}

	// Key down: tone reaches full level well within 100ms.
	key.down = true
	s.process(buf)
	if s.level != 1 {
		t.Errorf("envelope level = %g, want 1 after key down", s.level)
	}
	if p := peak(buf); p < sidetoneGain*0.9 {
		t.Errorf("peak = %g, want close to gain %g", p, sidetoneGain)
	}

	// Key up again: envelope returns to zero and output is silent at the
	// end of the buffer.
	key.down = false
	s.process(buf)
	if s.level != 0 {
		t.Errorf("envelope level = %g, want 0 after key up", s.level)
	}
	tail := buf[len(buf)-16:]
	if p := peak(tail); p != 0 {
		t.Errorf("expected silent tail after release, peak = %g", p)
	}
}

func TestSidetoneRampIsGradual(t *testing.T) {
	key := &fakeKeyState{down: true}
	s := newTestSidetone(key)

	// One 5ms buffer covers exactly the envelope rise time. The first
	// samples must be near zero, not a full-scale step.
	buf := make([]float32, int(envelopeRiseSec*sidetoneSampleRate))
	s.process(buf)

	if a := math.Abs(float64(buf[0])); a > 1e-3 {
		t.Errorf("first sample = %g, want near zero at key-down edge", a)
	}
	if s.level < 0.99 {
		t.Errorf("envelope level = %g, want ~1 after rise time", s.level)
	}
}
