// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"rfsynth/internal/synth"
)

// Spectrum holds the result of a coherent FFT over one full pass of a
// waveform buffer. Because the buffer contains a whole number of carrier
// periods, the carrier falls exactly on one bin and no window is needed.
type Spectrum struct {
	NumSamples   int     `json:"num_samples"`
	BinHz        float64 `json:"bin_hz"`
	CarrierBin   int     `json:"carrier_bin"`
	CarrierHz    float64 `json:"carrier_hz"`
	CarrierDB    float64 `json:"carrier_db"`
	WorstSpurBin int     `json:"worst_spur_bin"`
	WorstSpurHz  float64 `json:"worst_spur_hz"`
	WorstSpurDB  float64 `json:"worst_spur_db"`
	SFDRdB       float64 `json:"sfdr_db"`

	// Magnitudes is the raw magnitude spectrum, one entry per bin up to
	// Nyquist. Large; omitted from JSON status frames.
	Magnitudes []float64 `json:"-"`
}

// Analyze decodes buf into a symbol stream and computes its coherent
// spectrum. One symbol slot is emitted per serializer clock cycle, so the
// sample rate of the stream equals clockHz.
func Analyze(buf *synth.WaveformBuffer, clockHz float64) (*Spectrum, error) {
	if buf == nil || buf.NumSlots() == 0 {
		return nil, fmt.Errorf("analysis: empty waveform buffer")
	}
	if clockHz <= 0 {
		return nil, fmt.Errorf("analysis: clock must be positive, got %g", clockHz)
	}

	n := buf.NumSlots()
	samples := Samples(buf, make([]float64, 0, n))

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, samples)

	// Single-sided magnitudes, normalized so a full-scale sine reads 1.0.
	mags := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = 2 * cmplx.Abs(c) / float64(n)
	}
	mags[0] /= 2 // DC has no mirror image

	sp := &Spectrum{
		NumSamples: n,
		BinHz:      clockHz / float64(n),
		Magnitudes: mags,
	}

	// Carrier is the strongest non-DC bin.
	sp.CarrierBin = 1
	for i := 2; i < len(mags); i++ {
		if mags[i] > mags[sp.CarrierBin] {
			sp.CarrierBin = i
		}
	}
	// Worst spur is the strongest bin that is neither DC nor the carrier.
	sp.WorstSpurBin = -1
	for i := 1; i < len(mags); i++ {
		if i == sp.CarrierBin {
			continue
		}
		if sp.WorstSpurBin < 0 || mags[i] > mags[sp.WorstSpurBin] {
			sp.WorstSpurBin = i
		}
	}

	sp.CarrierHz = float64(sp.CarrierBin) * sp.BinHz
	sp.CarrierDB = toDB(mags[sp.CarrierBin])
	if sp.WorstSpurBin >= 0 {
		sp.WorstSpurHz = float64(sp.WorstSpurBin) * sp.BinHz
		sp.WorstSpurDB = toDB(mags[sp.WorstSpurBin])
		sp.SFDRdB = sp.CarrierDB - sp.WorstSpurDB
	}
	return sp, nil
}

// Samples appends the decoded symbol stream of buf to dst and returns the
// extended slice. Symbols map to -1, 0, +1.
func Samples(buf *synth.WaveformBuffer, dst []float64) []float64 {
	for i := 0; i < buf.NumSlots(); i++ {
		dst = append(dst, float64(buf.Symbol(i)))
	}
	return dst
}

func toDB(mag float64) float64 {
	if mag <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}
