package transport

// Transport defines a generic interface for publishing status and spectrum
// frames. Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// SpectrumProvider is the surface publishers read magnitude frames from.
// It decouples the transports from the concrete analysis monitor.
type SpectrumProvider interface {
	GetMagnitudes() []float64
	GetMagnitudesInto(dest []float64) error
	GetFrequencyForBin(binIndex int) float64
	GetFFTSize() int
}
