package synth

import "fmt"

// Mode selects how the carrier is realized on the output pins.
//
// Mode 0 bypasses the waveform buffers entirely and drives the pins from the
// serializer's fractional clock divider. All other modes stream pre-quantized
// symbol buffers through the transfer channels.
type Mode int

const (
	ModeClockDivider      Mode = iota // direct divider output, no buffers
	ModeComparator                    // 1-bit sign quantization, no noise shaping
	ModeBinarySigmaDelta              // 1-bit first-order noise shaping
	ModeTrinarySigmaDelta             // 1.5-bit (three level) noise shaping
	ModeBinarySigmaDeltaClickFree
	ModeTrinarySigmaDeltaClickFree
)

// NumModes is the count of valid modes; valid values are 0..NumModes-1.
const NumModes = 6

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= ModeClockDivider && m < NumModes
}

// Buffered reports whether this mode streams waveform buffers. The clock
// divider mode is realized in hardware and needs no buffer memory.
func (m Mode) Buffered() bool {
	return m != ModeClockDivider
}

// ClickFree reports whether keying edges use dedicated ramp buffers. The
// plain sigma-delta modes accept a hard amplitude step instead.
func (m Mode) ClickFree() bool {
	return m == ModeBinarySigmaDeltaClickFree || m == ModeTrinarySigmaDeltaClickFree
}

// Trinary reports whether the quantizer has a zero output level.
func (m Mode) Trinary() bool {
	return m == ModeTrinarySigmaDelta || m == ModeTrinarySigmaDeltaClickFree
}

func (m Mode) String() string {
	switch m {
	case ModeClockDivider:
		return "CLKDIV"
	case ModeComparator:
		return "Comparator"
	case ModeBinarySigmaDelta:
		return "Binary sigma delta"
	case ModeTrinarySigmaDelta:
		return "Trinary sigma delta"
	case ModeBinarySigmaDeltaClickFree:
		return "Click-free binary sigma delta"
	case ModeTrinarySigmaDeltaClickFree:
		return "Click-free trinary sigma delta"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}
