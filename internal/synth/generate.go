// SPDX-License-Identifier: MIT
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"rfsynth/internal/rational"
)

// BufferCapacityWords is the fixed backing size of each of the four waveform
// buffers. The settable per-apply limit (MaxBufferWords) only bounds the
// denominator search; the period-count multiplication below may use the full
// capacity.
const BufferCapacityWords = 15000

// phaseEpsilon nudges the sampled phase off exact zero crossings so the
// quantizers never see a tie at 0.
const phaseEpsilon = 1e-5

// Generator produces the four waveform buffers (steady, ramp-up, ramp-down,
// silent) from a parameter set. All buffers are allocated once at
// construction; Generate only rewrites their contents.
//
// The dither stream comes from a private PRNG that is re-seeded on every
// Generate, so identical parameters always produce identical buffers.
type Generator struct {
	clockHz float64
	seed    int64
	rng     *rand.Rand

	steady   *WaveformBuffer
	rampUp   *WaveformBuffer
	rampDown *WaveformBuffer
	silent   *WaveformBuffer

	nWords   int
	nPeriods int
}

// NewGenerator allocates a generator for the given serializer clock.
func NewGenerator(clockHz float64, ditherSeed int64) (*Generator, error) {
	if clockHz <= 0 {
		return nil, fmt.Errorf("clock frequency must be positive, got %g", clockHz)
	}
	return &Generator{
		clockHz:  clockHz,
		seed:     ditherSeed,
		rng:      rand.New(rand.NewSource(ditherSeed)),
		steady:   NewWaveformBuffer(BufferCapacityWords),
		rampUp:   NewWaveformBuffer(BufferCapacityWords),
		rampDown: NewWaveformBuffer(BufferCapacityWords),
		silent:   NewWaveformBuffer(BufferCapacityWords),
		nWords:   BufferCapacityWords,
		nPeriods: 0,
	}, nil
}

func (g *Generator) Steady() *WaveformBuffer   { return g.steady }
func (g *Generator) RampUp() *WaveformBuffer   { return g.rampUp }
func (g *Generator) RampDown() *WaveformBuffer { return g.rampDown }
func (g *Generator) Silent() *WaveformBuffer   { return g.silent }

// NWords returns the realized buffer length in 32-bit words.
func (g *Generator) NWords() int { return g.nWords }

// NPeriods returns the number of full carrier cycles per buffer pass.
func (g *Generator) NPeriods() int { return g.nPeriods }

// ClockHz returns the serializer clock the buffers are computed for.
func (g *Generator) ClockHz() float64 { return g.clockHz }

// Generate recomputes the buffer length from the frequency and refills all
// four buffers for the given parameters. Only buffered modes use the result;
// callers must not invoke it for ModeClockDivider.
//
// The buffer holds nWords words (16 slots each) over which the tone
// completes exactly nPeriods cycles, so the steady buffer loops with zero
// phase discontinuity.
func (g *Generator) Generate(p *Params) error {
	if !p.Mode().Buffered() {
		return fmt.Errorf("mode %s does not use waveform buffers", p.Mode())
	}

	maxDenom := uint32(min(BufferCapacityWords, p.MaxBufferWords()))
	ratio := p.Frequency() * SlotsPerWord / g.clockHz
	approx := rational.Approximate(ratio, maxDenom)

	nPeriods := int(approx.Numerator)
	nWords := int(approx.Denominator)

	// Repeat the period as many times as fits so the buffer spans at least
	// half the capacity; longer buffers give the completion handler more
	// headroom before the next exhaustion event.
	mult := BufferCapacityWords / nWords
	nPeriods *= mult
	nWords *= mult

	g.nPeriods = nPeriods
	g.nWords = nWords
	g.steady.Resize(nWords)
	g.rampUp.Resize(nWords)
	g.rampDown.Resize(nWords)
	g.silent.Resize(nWords)
	g.silent.Clear()

	g.rng = rand.New(rand.NewSource(g.seed))

	switch {
	case p.Mode() == ModeComparator:
		g.fillComparator(p)
	case p.Mode().Trinary():
		g.fillTrinarySigmaDelta(p)
	default:
		g.fillBinarySigmaDelta(p)
	}
	return nil
}

// raisedCosine maps slot n of nMax to a smooth 0..1 taper (1..0 when
// falling). Multiplying the tone by it removes the amplitude step at keying
// edges that would otherwise radiate broadband clicks.
func raisedCosine(n, nMax int, falling bool) float64 {
	f := float64(n) / float64(nMax)
	if falling {
		f = 1.0 - f
	}
	return 0.5 * (1.0 - math.Cos(f*math.Pi))
}

// dither draws a fresh uniform value in [-amp, amp]. One value per slot is
// shared across the steady and ramp streams, as in the reference quantizer.
func (g *Generator) dither(amp float64) float64 {
	return (g.rng.Float64() - 0.5) * 2 * amp
}

// sample evaluates the pre-distorted sinusoid at the given phase.
func sampleAt(p *Params, phase float64) float64 {
	return p.Amplitude()*math.Sin(phase) + p.HD3Amplitude()*math.Sin(3*phase+p.HD3Phase())
}

// fillComparator does plain 1-bit sign quantization with dither. There is no
// error feedback, so no ramp shaping is possible: ramp-up reuses the steady
// buffer and ramp-down is silence.
func (g *Generator) fillComparator(p *Params) {
	phaseInc := 2 * math.Pi * float64(g.nPeriods) / (float64(g.nWords) * SlotsPerWord)

	for ii := 0; ii < g.nWords; ii++ {
		var word uint32
		for jj := 0; jj < SlotsPerWord; jj++ {
			phase := float64(ii*SlotsPerWord+jj) * phaseInc
			sample := p.Amplitude() * math.Sin(phase+phaseEpsilon)
			if sample+g.dither(p.DitherAmplitude()) > 0 {
				word |= 1 << (2 * jj)
			} else {
				word |= 1 << (2*jj + 1)
			}
		}
		g.steady.setWord(ii, word)
		g.rampUp.setWord(ii, word)
		g.rampDown.setWord(ii, 0)
	}
}

// sdState is the carried state of one first-order error-feedback quantizer
// stream. Each of the steady, ramp-up and ramp-down streams runs its own so
// all three buffers are self-consistent noise-shaped sequences.
type sdState struct {
	carried  float64 // quantization error carried to the next slot
	zeroHigh bool    // next zero symbol uses the both-high encoding
}

// quantizeBinary feeds one sample through the two-level quantizer and
// returns the packed slot bits.
func (s *sdState) quantizeBinary(sample, dither float64, jj int) uint32 {
	acc := sample + s.carried
	var out float64
	var bits uint32
	if acc+dither > 0 {
		out = 1
		bits = 1 << (2 * jj)
	} else {
		out = -1
		bits = 1 << (2*jj + 1)
	}
	s.carried = acc - out
	return bits
}

// quantizeTrinary feeds one sample through the three-level quantizer. Zero
// outputs alternate between the both-low and both-high encodings so that
// neither pin accumulates a duty-cycle bias over long zero runs.
func (s *sdState) quantizeTrinary(sample, dither float64, jj int) uint32 {
	acc := sample + s.carried
	var out float64
	var bits uint32
	switch {
	case acc+dither > 1.0/3.0:
		out = 1
		bits = 1 << (2 * jj)
	case acc+dither > -1.0/3.0:
		out = 0
		if s.zeroHigh {
			bits = 3 << (2 * jj)
		}
		s.zeroHigh = !s.zeroHigh
	default:
		out = -1
		bits = 1 << (2*jj + 1)
	}
	s.carried = acc - out
	return bits
}

// fillBinarySigmaDelta runs three parallel 1-bit noise-shaped streams: the
// steady tone plus the rising- and falling-windowed versions. In the
// non-click-free mode the shaped ramps are discarded: ramp-up reuses the
// steady buffer and ramp-down is silence.
func (g *Generator) fillBinarySigmaDelta(p *Params) {
	phaseInc := 2 * math.Pi * float64(g.nPeriods) / (float64(g.nWords) * SlotsPerWord)
	nSlots := g.nWords * SlotsPerWord
	var steady, up, down sdState

	for ii := 0; ii < g.nWords; ii++ {
		var word, wordUp, wordDown uint32
		for jj := 0; jj < SlotsPerWord; jj++ {
			slot := ii*SlotsPerWord + jj
			phase := float64(slot)*phaseInc + phaseEpsilon
			sample := sampleAt(p, phase)
			dither := g.dither(p.DitherAmplitude())

			word |= steady.quantizeBinary(sample, dither, jj)
			wordUp |= up.quantizeBinary(sample*raisedCosine(slot, nSlots, false), dither, jj)
			wordDown |= down.quantizeBinary(sample*raisedCosine(slot, nSlots, true), dither, jj)
		}
		g.storeWords(ii, p.Mode(), word, wordUp, wordDown)
	}
}

// fillTrinarySigmaDelta is the 1.5-bit variant of fillBinarySigmaDelta.
func (g *Generator) fillTrinarySigmaDelta(p *Params) {
	phaseInc := 2 * math.Pi * float64(g.nPeriods) / (float64(g.nWords) * SlotsPerWord)
	nSlots := g.nWords * SlotsPerWord
	var steady, up, down sdState

	for ii := 0; ii < g.nWords; ii++ {
		var word, wordUp, wordDown uint32
		for jj := 0; jj < SlotsPerWord; jj++ {
			slot := ii*SlotsPerWord + jj
			phase := float64(slot)*phaseInc + phaseEpsilon
			sample := sampleAt(p, phase)
			dither := g.dither(p.DitherAmplitude())

			word |= steady.quantizeTrinary(sample, dither, jj)
			wordUp |= up.quantizeTrinary(sample*raisedCosine(slot, nSlots, false), dither, jj)
			wordDown |= down.quantizeTrinary(sample*raisedCosine(slot, nSlots, true), dither, jj)
		}
		g.storeWords(ii, p.Mode(), word, wordUp, wordDown)
	}
}

// storeWords commits one packed word per buffer. Modes without click-free
// ramps accept the keying step: ramp-up replays the steady word and
// ramp-down is silence.
func (g *Generator) storeWords(ii int, mode Mode, word, wordUp, wordDown uint32) {
	g.steady.setWord(ii, word)
	if mode.ClickFree() {
		g.rampUp.setWord(ii, wordUp)
		g.rampDown.setWord(ii, wordDown)
	} else {
		g.rampUp.setWord(ii, word)
		g.rampDown.setWord(ii, 0)
	}
}
