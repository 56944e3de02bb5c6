// SPDX-License-Identifier: MIT
package synth

import (
	"errors"
	"math"
	"testing"

	"rfsynth/internal/hw"
)

func newTestSynth(t *testing.T) (*Synth, *hw.Simulator) {
	t.Helper()
	sim, err := hw.NewSimulator(testClockHz)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	s, err := New(sim, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, sim
}

// bufferName resolves a streamed source against the generator's buffers.
func bufferName(s *Synth, src []uint32) string {
	gen := s.Generator()
	switch {
	case hw.SameSource(src, gen.Steady().Words()):
		return "steady"
	case hw.SameSource(src, gen.RampUp().Words()):
		return "ramp-up"
	case hw.SameSource(src, gen.RampDown().Words()):
		return "ramp-down"
	case hw.SameSource(src, gen.Silent().Words()):
		return "silent"
	default:
		return "unknown"
	}
}

// streamedNames maps the simulator history to buffer names.
func streamedNames(s *Synth, sim *hw.Simulator) []string {
	history := sim.Streamed()
	names := make([]string, len(history))
	for i, src := range history {
		names[i] = bufferName(s, src)
	}
	return names
}

func TestKeyingSequence(t *testing.T) {
	s, sim := newTestSynth(t)

	// Arming streams one silent pass; idle playback stays silent.
	sim.Step()
	sim.Step()

	// Key down. The pass already in flight finishes, then ramp-up plays
	// exactly once, then steady repeats.
	s.EnableOutput()
	for i := 0; i < 5; i++ {
		sim.Step()
	}

	// Key up. The pending steady pass finishes, then ramp-down plays
	// exactly once, then silence repeats.
	s.DisableOutput()
	for i := 0; i < 4; i++ {
		sim.Step()
	}

	got := streamedNames(s, sim)
	want := []string{
		"silent",    // initial arm
		"silent",    // idle pass
		"silent",    // idle pass
		"silent",    // pass pending at key-down
		"ramp-up",   // exactly once
		"steady",
		"steady",
		"steady",
		"steady",    // pass queued before key-up
		"ramp-down", // exactly once
		"silent",
		"silent",
	}
	if len(got) != len(want) {
		t.Fatalf("streamed %d passes, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pass %d = %s, want %s (full sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestKeyDownUpWithinOnePass(t *testing.T) {
	// Keying off before the ramp-up decision lands keeps the output silent.
	s, sim := newTestSynth(t)

	s.EnableOutput()
	s.DisableOutput()
	sim.Step()
	sim.Step()

	for i, name := range streamedNames(s, sim) {
		if name != "silent" {
			t.Fatalf("pass %d = %s, want silent", i, name)
		}
	}
	if s.Transmitting() {
		t.Error("Transmitting() = true, want false")
	}
}

func TestTransmittingLagsRequest(t *testing.T) {
	s, sim := newTestSynth(t)

	s.EnableOutput()
	if !s.OutputEnabled() {
		t.Fatal("OutputEnabled() = false after EnableOutput")
	}
	if s.Transmitting() {
		t.Fatal("Transmitting() = true before the next buffer boundary")
	}

	sim.Step()
	if !s.Transmitting() {
		t.Fatal("Transmitting() = false after a completion event")
	}
}

func TestApplySettingsIsIdempotent(t *testing.T) {
	s, sim := newTestSynth(t)
	before := len(sim.Streamed())

	// Nothing dirty: apply must not quiesce or re-arm.
	if err := s.ApplySettings(); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	if after := len(sim.Streamed()); after != before {
		t.Errorf("no-op apply streamed %d extra passes", after-before)
	}
}

func TestApplySettingsRearmsFromSilent(t *testing.T) {
	s, sim := newTestSynth(t)

	// Get into the transmitting state.
	s.EnableOutput()
	sim.Step()
	sim.Step()
	if !s.Transmitting() {
		t.Fatal("expected transmitting state")
	}

	if err := s.SetFrequency(7.03e6); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if err := s.ApplySettings(); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}

	// Re-arm always starts from the idle/silent state; with the key still
	// down the machine ramps back up at the next boundary.
	names := streamedNames(s, sim)
	if names[len(names)-1] != "silent" {
		t.Fatalf("pass after re-arm = %s, want silent", names[len(names)-1])
	}
	sim.Step()
	names = streamedNames(s, sim)
	if names[len(names)-1] != "ramp-up" {
		t.Fatalf("second pass after re-arm = %s, want ramp-up", names[len(names)-1])
	}
}

func TestApplySettingsSurvivesSlowAbort(t *testing.T) {
	s, sim := newTestSynth(t)
	sim.AbortLatency = 5 // channel absorbs several aborts before going idle

	if err := s.SetFrequency(7.03e6); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	if err := s.ApplySettings(); err != nil {
		t.Fatalf("ApplySettings with slow abort: %v", err)
	}
	if got := s.Frequency(); got != 7.03e6 {
		t.Errorf("frequency = %g, want 7.03e6", got)
	}
}

func TestApplySettingsQuiesceTimeout(t *testing.T) {
	s, sim := newTestSynth(t)
	sim.AbortLatency = quiesceRetryLimit + 10 // channel never goes idle

	if err := s.SetFrequency(7.03e6); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	err := s.ApplySettings()
	if !errors.Is(err, ErrQuiesceTimeout) {
		t.Fatalf("ApplySettings error = %v, want ErrQuiesceTimeout", err)
	}
}

func TestCompletionAfterTeardownIsDropped(t *testing.T) {
	s, sim := newTestSynth(t)
	sim.Step()

	// Switching to the unbuffered mode tears the chain down and releases
	// both channels.
	if err := s.SetMode(ModeClockDivider); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := s.ApplySettings(); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}

	before := len(sim.Streamed())
	s.EnableOutput()

	// An event that was already in flight when the teardown started still
	// invokes the handler. It must bow out: the channels may belong to
	// someone else by now.
	s.onCompletion()

	if s.Transmitting() {
		t.Error("handler advanced playback state on a torn-down chain")
	}
	if after := len(sim.Streamed()); after != before {
		t.Errorf("handler streamed %d passes on a torn-down chain", after-before)
	}
}

func TestSetterRejectionLeavesStateClean(t *testing.T) {
	s, _ := newTestSynth(t)

	if err := s.SetAmplitude(5); err == nil {
		t.Fatal("expected error for out-of-range amplitude")
	}
	if got := s.Amplitude(); got != DefaultAmplitude {
		t.Errorf("amplitude = %g after rejected set, want default %g", got, DefaultAmplitude)
	}
	// A rejected set does not dirty the parameter set.
	if err := s.ApplySettings(); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
}

func TestClockDividerMode(t *testing.T) {
	s, sim := newTestSynth(t)

	if err := s.SetMode(ModeClockDivider); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := s.ApplySettings(); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}

	ser := sim.Serializer()
	if got := ser.Program(); got != hw.ProgramToggle {
		t.Errorf("program = %q, want %q", got, hw.ProgramToggle)
	}

	// Divider is quantized to 1/256 steps.
	wantDiv := math.Round(256*testClockHz/(2*s.Frequency())) / 256
	if got := ser.ClockDiv(); got != wantDiv {
		t.Errorf("clock divider = %v, want %v", got, wantDiv)
	}
	wantExact := testClockHz / (2 * wantDiv)
	if got := s.FrequencyExact(); math.Abs(got-wantExact) > 1e-6 {
		t.Errorf("exact frequency = %g, want %g", got, wantExact)
	}

	// Keying drives the pin enables directly in this mode.
	if ser.PinsEnabled() {
		t.Error("pins enabled before key down")
	}
	s.EnableOutput()
	if !ser.PinsEnabled() {
		t.Error("pins not enabled after key down")
	}
	s.DisableOutput()
	if ser.PinsEnabled() {
		t.Error("pins still enabled after key up")
	}

	// The transfer channels are released; all of them are claimable.
	var claimed []*hw.Channel
	for i := 0; i < hw.NumChannels; i++ {
		ch, err := sim.ClaimChannel()
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		claimed = append(claimed, ch)
	}
	for _, ch := range claimed {
		ch.Unclaim()
	}
}

func TestFrequencyExactMatchesBuffer(t *testing.T) {
	s, _ := newTestSynth(t)

	want := float64(s.NPeriods()) / (float64(s.NWords()) * SlotsPerWord) * testClockHz
	if got := s.FrequencyExact(); math.Abs(got-want) > 1e-9 {
		t.Errorf("exact frequency = %g, want %g", got, want)
	}
	// The realized frequency sits close to the request at full buffer size.
	if math.Abs(s.FrequencyExact()-s.Frequency()) > 10 {
		t.Errorf("exact frequency %g too far from request %g", s.FrequencyExact(), s.Frequency())
	}
}

func TestStatusSnapshot(t *testing.T) {
	s, _ := newTestSynth(t)

	st := s.Status()
	if st.FrequencyHz != s.Frequency() {
		t.Errorf("status frequency = %g, want %g", st.FrequencyHz, s.Frequency())
	}
	if st.ModeName != s.ModeName() {
		t.Errorf("status mode name = %q, want %q", st.ModeName, s.ModeName())
	}
	if st.NWords != s.NWords() {
		t.Errorf("status n_words = %d, want %d", st.NWords, s.NWords())
	}
	if st.KeyDown {
		t.Error("status key_down = true, want false")
	}
	if st.Summary() == "" {
		t.Error("empty status summary")
	}
}
