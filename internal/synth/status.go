package synth

import (
	"fmt"
	"math"
	"strings"
)

// Status is a snapshot of the realized (not requested) synthesis state. The
// rational fit means the realized frequency can differ slightly from the
// request, so status dumps always report both.
type Status struct {
	Mode             int     `json:"mode"`
	ModeName         string  `json:"mode_name"`
	FrequencyHz      float64 `json:"frequency_hz"`
	FrequencyExactHz float64 `json:"frequency_exact_hz"`
	ClockHz          float64 `json:"clock_hz"`
	NWords           int     `json:"n_words"`
	NPeriods         int     `json:"n_periods"`
	Amplitude        float64 `json:"amplitude"`
	DitherAmplitude  float64 `json:"dither_amplitude"`
	HD3Amplitude     float64 `json:"hd3_amplitude"`
	HD3PhaseDeg      float64 `json:"hd3_phase_deg"`
	MaxBufferWords   int     `json:"max_buffer_words"`
	KeyDown          bool    `json:"key_down"`
	Transmitting     bool    `json:"transmitting"`

	// Divider breakdown, only meaningful in mode 0: the hardware realizes
	// DividerInt + DividerFrac256/256.
	DividerInt     int `json:"divider_int,omitempty"`
	DividerFrac256 int `json:"divider_frac256,omitempty"`
}

// Status collects the current realized state.
func (s *Synth) Status() Status {
	st := Status{
		Mode:             int(s.params.Mode()),
		ModeName:         s.params.Mode().String(),
		FrequencyHz:      s.params.Frequency(),
		FrequencyExactHz: s.FrequencyExact(),
		ClockHz:          s.gen.ClockHz(),
		Amplitude:        s.params.Amplitude(),
		DitherAmplitude:  s.params.DitherAmplitude(),
		HD3Amplitude:     s.params.HD3Amplitude(),
		HD3PhaseDeg:      s.params.HD3Phase() * 180 / math.Pi,
		MaxBufferWords:   s.params.MaxBufferWords(),
		KeyDown:          s.enableTransmit.Load(),
		Transmitting:     s.Transmitting(),
	}
	if s.params.Mode().Buffered() {
		st.NWords = s.gen.NWords()
		st.NPeriods = s.gen.NPeriods()
	} else {
		div := s.quantizedDivider()
		st.DividerInt = int(math.Floor(div))
		st.DividerFrac256 = int(math.Round((div - math.Floor(div)) * 256))
	}
	return st
}

// Summary is a one-line form for logs.
func (st Status) Summary() string {
	if st.NWords > 0 {
		return fmt.Sprintf("mode=%q f=%.1f Hz (exact %.3f Hz) n_words=%d n_periods=%d",
			st.ModeName, st.FrequencyHz, st.FrequencyExactHz, st.NWords, st.NPeriods)
	}
	return fmt.Sprintf("mode=%q f=%.1f Hz (exact %.3f Hz) divider=%d+%d/256",
		st.ModeName, st.FrequencyHz, st.FrequencyExactHz, st.DividerInt, st.DividerFrac256)
}

// String renders the multi-line status dump printed after a successful
// apply.
func (st Status) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode:           %s (%d)\n", st.ModeName, st.Mode)
	fmt.Fprintf(&b, "Frequency:      %.1f Hz requested\n", st.FrequencyHz)
	fmt.Fprintf(&b, "                %.3f Hz realized\n", st.FrequencyExactHz)
	fmt.Fprintf(&b, "Clock:          %.0f Hz\n", st.ClockHz)
	if st.NWords > 0 {
		fmt.Fprintf(&b, "Buffer:         %d words, %d periods\n", st.NWords, st.NPeriods)
		fmt.Fprintf(&b, "Amplitude:      %.3f\n", st.Amplitude)
		fmt.Fprintf(&b, "Dither:         %.3f\n", st.DitherAmplitude)
		fmt.Fprintf(&b, "HD3:            %.4f at %.1f deg\n", st.HD3Amplitude, st.HD3PhaseDeg)
		fmt.Fprintf(&b, "Max words:      %d\n", st.MaxBufferWords)
	} else {
		fmt.Fprintf(&b, "Divider:        %d + %d/256\n", st.DividerInt, st.DividerFrac256)
	}
	fmt.Fprintf(&b, "Key down:       %v\n", st.KeyDown)
	fmt.Fprintf(&b, "Transmitting:   %v", st.Transmitting)
	return b.String()
}
