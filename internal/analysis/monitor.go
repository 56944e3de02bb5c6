// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "rfsynth/internal/log"
	"rfsynth/pkg/bitint"
)

// WindowFunc selects the FFT window applied to monitor frames. Unlike the
// coherent Analyze path, the monitor sees arbitrary slices of the symbol
// stream, so windowing is required to contain leakage.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	Nuttall
)

// Pre-allocated buffers for the monitor's FFT calculations.
type fftWorkspace struct {
	input     []float64    // windowed input signal
	fftOutput []complex128 // FFT complex results
	magnitude []float64    // calculated magnitudes
	window    []float64    // pre-calculated window coefficients
	mu        sync.RWMutex // protects the magnitude buffer
}

// SpectrumMonitor performs windowed FFT analysis over slices of the symbol
// stream as they are handed to the serializer. Results are read by the
// publishing side (websocket, UDP) via GetMagnitudes/GetMagnitudesInto, so
// Process and the getters may run concurrently.
type SpectrumMonitor struct {
	fftCalculator *fourier.FFT
	fftSize       int     // number of FFT points (power of 2)
	sampleRate    float64 // symbol rate of the input stream (Hz)
	workspace     fftWorkspace
}

// NewSpectrumMonitor creates a monitor for the given FFT size and symbol
// rate. fftSize must be a power of two.
func NewSpectrumMonitor(fftSize int, sampleRate float64, windowType WindowFunc) (*SpectrumMonitor, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	applog.Infof("Analysis: Initializing SpectrumMonitor (Size: %d, SymbolRate: %.1f Hz, Window: %v)",
		fftSize, sampleRate, windowType)

	return &SpectrumMonitor{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    windowCoeffs,
		},
	}, nil
}

// Process applies the window, performs the FFT, and stores the magnitudes
// for readers. Input shorter than the FFT size is zero-padded; longer input
// is truncated.
func (m *SpectrumMonitor) Process(samples []float64) {
	m.workspace.mu.Lock()

	inputLen := len(samples)
	for i := range m.fftSize {
		if i < inputLen {
			m.workspace.input[i] = samples[i] * m.workspace.window[i]
		} else {
			m.workspace.input[i] = 0
		}
	}

	m.fftCalculator.Coefficients(m.workspace.fftOutput, m.workspace.input)

	for i, c := range m.workspace.fftOutput {
		m.workspace.magnitude[i] = cmplx.Abs(c)
	}

	m.workspace.mu.Unlock()
}

// GetMagnitudes returns a copy of the latest magnitudes. Allocates; readers
// on a tight loop should use GetMagnitudesInto.
func (m *SpectrumMonitor) GetMagnitudes() []float64 {
	m.workspace.mu.RLock()
	defer m.workspace.mu.RUnlock()

	magCopy := make([]float64, len(m.workspace.magnitude))
	copy(magCopy, m.workspace.magnitude)
	return magCopy
}

// GetMagnitudesInto copies the latest magnitudes into dest, which must have
// length fftSize/2 + 1.
func (m *SpectrumMonitor) GetMagnitudesInto(dest []float64) error {
	m.workspace.mu.RLock()
	defer m.workspace.mu.RUnlock()

	if len(dest) != len(m.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d",
			len(dest), len(m.workspace.magnitude))
	}
	copy(dest, m.workspace.magnitude)
	return nil
}

// GetFrequencyForBin returns the center frequency (Hz) of an FFT bin.
func (m *SpectrumMonitor) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex > m.fftSize/2 {
		return 0.0
	}
	return float64(binIndex) * (m.sampleRate / float64(m.fftSize))
}

// GetFFTSize returns the configured FFT size.
func (m *SpectrumMonitor) GetFFTSize() int {
	return m.fftSize
}

// GetSampleRate returns the configured symbol rate (Hz).
func (m *SpectrumMonitor) GetSampleRate() float64 {
	return m.sampleRate
}

func applyWindow(coeffs []float64, windowType WindowFunc) {
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %v, using Hann", windowType)
		window.Hann(coeffs)
	}
}

// ParseWindowFunc converts a name (case-insensitive) to a WindowFunc. It
// returns Hann and an error for unknown names.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

func (w WindowFunc) String() string {
	switch w {
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Blackman:
		return "Blackman"
	case Nuttall:
		return "Nuttall"
	default:
		return "Unknown"
	}
}
