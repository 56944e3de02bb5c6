package utils

import "math"

// MockTransport stores sent frames for inspection instead of transmitting.
type MockTransport struct {
	LastData any
	Sent     int
}

// Send records the frame.
func (m *MockTransport) Send(data any) error {
	m.LastData = data
	m.Sent++
	return nil
}

// Close is a no-op.
func (m *MockTransport) Close() error { return nil }

// GenerateSineWave returns size samples of a unit sine at the given
// frequency, sampled at sampleRate.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2 * math.Pi * frequency * t)
	}
	return buffer
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin..endBin]. Out-of-range bounds are clamped.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
