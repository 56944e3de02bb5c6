package hw

import (
	"errors"
	"fmt"
)

// Programs the serializer engine can run. The shift program pulls 32-bit
// words from the FIFO and drives two pins with one 2-bit slot per clock; the
// toggle program flips the pin pair directly at the divided clock with no
// FIFO involvement.
const (
	ProgramShift  = "shift"
	ProgramToggle = "toggle"
)

// ErrNoProgramSlot is returned when the instruction memory already holds a
// program. There is room for exactly one at a time in this block.
var ErrNoProgramSlot = errors.New("hw: no free serializer program slot")

// Serializer is the simulated serializer engine: one state machine, one
// program slot, a fractional clock divider and the output pin pair.
type Serializer struct {
	sim *Simulator

	program     string
	smClaimed   bool
	clockDiv    float64
	pinsEnabled bool
}

// LoadProgram installs a program and claims the state machine.
func (z *Serializer) LoadProgram(program string) error {
	z.sim.mu.Lock()
	defer z.sim.mu.Unlock()
	if program != ProgramShift && program != ProgramToggle {
		return fmt.Errorf("hw: unknown serializer program %q", program)
	}
	if z.program != "" {
		return ErrNoProgramSlot
	}
	z.program = program
	z.smClaimed = true
	z.clockDiv = 1.0
	return nil
}

// UnloadProgram removes the installed program and releases the state
// machine. A no-op when nothing is loaded.
func (z *Serializer) UnloadProgram() {
	z.sim.mu.Lock()
	z.program = ""
	z.smClaimed = false
	z.sim.mu.Unlock()
}

// Program returns the currently loaded program name, or "".
func (z *Serializer) Program() string {
	z.sim.mu.Lock()
	defer z.sim.mu.Unlock()
	return z.program
}

// SetClockDiv programs the fractional clock divider. The hardware quantizes
// the divider to 1/256 steps; the simulator stores it as given and the
// caller accounts for the quantization in its realized-frequency math.
func (z *Serializer) SetClockDiv(div float64) error {
	if div < 1.0 {
		return fmt.Errorf("hw: clock divider must be >= 1, got %g", div)
	}
	z.sim.mu.Lock()
	z.clockDiv = div
	z.sim.mu.Unlock()
	return nil
}

// ClockDiv returns the programmed divider.
func (z *Serializer) ClockDiv() float64 {
	z.sim.mu.Lock()
	defer z.sim.mu.Unlock()
	return z.clockDiv
}

// SetPinsEnabled drives or releases the output pin pair. Only the toggle
// program keys the carrier this way; buffered modes key through the waveform
// buffers instead.
func (z *Serializer) SetPinsEnabled(enabled bool) {
	z.sim.mu.Lock()
	z.pinsEnabled = enabled
	z.sim.mu.Unlock()
}

// PinsEnabled reports whether the pin pair is currently driven.
func (z *Serializer) PinsEnabled() bool {
	z.sim.mu.Lock()
	defer z.sim.mu.Unlock()
	return z.pinsEnabled
}
