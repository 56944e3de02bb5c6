// SPDX-License-Identifier: MIT
/*
Package synth generates and plays the quantized carrier.

The moving parts are a parameter set owned by the control path, a buffer
generator that quantizes the sinusoid into four packed symbol buffers, and a
playback scheduler spliced into the transfer hardware's completion
interrupt. Once armed, the self-chained channels replay buffers forever; the
interrupt handler only swaps which buffer address is replayed next, so
keying on and off costs no processor time beyond one O(1) decision per
buffer pass.

Concurrency contract: the four buffers are written only while the channels
are quiesced (ApplySettings), and read-only from the handler's point of
view. The variables shared between the control path and the handler are
single-writer atomics: the control path writes enableTransmit and the
restart-channel handle, the handler writes dmaState. ApplySettings clears
the restart-channel handle before tearing the chain down, so a completion
event delivered mid-teardown is dropped rather than re-armed.
*/
package synth

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"rfsynth/internal/hw"
	applog "rfsynth/internal/log"
)

// Playback states. Transitions happen only inside the completion handler,
// at buffer-exhaustion boundaries.
const (
	stateIdle         int32 = 0
	stateTransmitting int32 = 1
)

// quiesceRetryLimit bounds the abort polling loop in ApplySettings. The
// abort of a self-chained pair is documented as unreliable, so it is retried;
// a channel that stays busy past this many attempts is wedged.
const quiesceRetryLimit = 1000

// ErrQuiesceTimeout reports that the transfer channels refused to go idle
// during ApplySettings. There is no fallback; the process needs a restart.
var ErrQuiesceTimeout = errors.New("synth: transfer channels failed to quiesce")

// Synth is the synthesizer control surface: parameter setters and getters,
// the apply step, keying, and realized-value accessors.
type Synth struct {
	params *Params
	gen    *Generator

	sim      *hw.Simulator
	ser      *hw.Serializer
	streamCh *hw.Channel
	armed    bool

	// Shared with the completion handler. restartCh is the handler's only
	// view of the chain; ApplySettings clears it before quiescing, so an
	// event already in flight when the teardown starts sees a nil chain
	// and bows out instead of touching a released channel.
	restartCh      atomic.Pointer[hw.Channel]
	enableTransmit atomic.Bool
	dmaState       atomic.Int32
}

// New claims the serializer and builds the synthesizer with default
// parameters, generating buffers and arming playback before returning.
// Resource exhaustion here is fatal for the caller: the channels and the
// program slot are acquired once for the process lifetime.
func New(sim *hw.Simulator, ditherSeed int64) (*Synth, error) {
	gen, err := NewGenerator(sim.ClockHz(), ditherSeed)
	if err != nil {
		return nil, err
	}
	s := &Synth{
		params: NewParams(),
		gen:    gen,
		sim:    sim,
		ser:    sim.Serializer(),
	}
	sim.SetHandler(s.onCompletion)
	if err := s.ApplySettings(); err != nil {
		return nil, fmt.Errorf("synth: initial apply failed: %w", err)
	}
	return s, nil
}

// onCompletion is the buffer-exhaustion interrupt handler. It runs on the
// hardware event context: no allocation, no blocking, one atomic decision.
// The chosen buffer is the one the restart channel re-arms the stream
// channel with at the NEXT exhaustion event, which gives the ramp buffers
// their played-exactly-once guarantee:
//
//	silent* -> (enable) -> ramp-up -> steady* -> (disable) -> ramp-down -> silent*
func (s *Synth) onCompletion() {
	restart := s.restartCh.Load()
	if restart == nil {
		// Chain torn down between the event firing and the handler
		// running; the channel may already belong to someone else.
		return
	}
	if s.enableTransmit.Load() {
		if s.dmaState.Load() == stateTransmitting {
			restart.SetReadAddr(s.gen.Steady().Words())
		} else {
			restart.SetReadAddr(s.gen.RampUp().Words())
			s.dmaState.Store(stateTransmitting)
		}
	} else {
		if s.dmaState.Load() == stateIdle {
			restart.SetReadAddr(s.gen.Silent().Words())
		} else {
			restart.SetReadAddr(s.gen.RampDown().Words())
			s.dmaState.Store(stateIdle)
		}
	}
}

// EnableOutput requests continuous transmission. Non-blocking: the handler
// observes the flag at the next buffer boundary, so keying latency is at
// most one buffer pass.
func (s *Synth) EnableOutput() {
	if !s.enableTransmit.Load() && s.params.Mode() == ModeClockDivider {
		s.ser.SetPinsEnabled(true)
	}
	s.enableTransmit.Store(true)
}

// DisableOutput requests the output off, with the same latency bound.
func (s *Synth) DisableOutput() {
	if s.enableTransmit.Load() && s.params.Mode() == ModeClockDivider {
		s.ser.SetPinsEnabled(false)
	}
	s.enableTransmit.Store(false)
}

// OutputEnabled reports the requested keying state.
func (s *Synth) OutputEnabled() bool { return s.enableTransmit.Load() }

// Transmitting reports whether the playback machine has actually reached the
// transmitting state (it lags the request by up to one buffer pass).
func (s *Synth) Transmitting() bool { return s.dmaState.Load() == stateTransmitting }

// ApplySettings commits every pending parameter change: quiesce the transfer
// channels, release and reclaim them, regenerate the buffers and re-arm from
// the idle/silent state. A no-op when nothing is dirty, so callers may
// invoke it freely after each setter.
func (s *Synth) ApplySettings() error {
	if !s.params.Dirty() {
		return nil
	}

	if s.armed {
		// Clear the handler's view of the chain first: an event already
		// in flight then skips the re-arm instead of racing the teardown.
		if restart := s.restartCh.Swap(nil); restart != nil {
			if err := s.quiesce(restart); err != nil {
				return err
			}
			restart.Unclaim()
		}
		s.streamCh.Unclaim()
		s.streamCh = nil
		s.armed = false
	}
	s.ser.UnloadProgram()

	if s.params.Mode() == ModeClockDivider {
		if err := s.ser.LoadProgram(hw.ProgramToggle); err != nil {
			return err
		}
		if err := s.ser.SetClockDiv(s.quantizedDivider()); err != nil {
			return err
		}
		s.ser.SetPinsEnabled(s.enableTransmit.Load())
	} else {
		if err := s.ser.LoadProgram(hw.ProgramShift); err != nil {
			return err
		}
		if err := s.ser.SetClockDiv(1.0); err != nil {
			return err
		}
		applog.Debugf("synth: calculating buffers")
		if err := s.gen.Generate(s.params); err != nil {
			return err
		}
		if err := s.arm(); err != nil {
			return err
		}
	}

	s.params.markClean()
	applog.Infof("synth: applied settings: %s", s.Status().Summary())
	return nil
}

// quiesce stops both channels before buffer memory is touched. The enable
// bits are cleared first, then the aborts are retried until both channels
// report idle.
func (s *Synth) quiesce(restart *hw.Channel) error {
	applog.Debugf("synth: waiting for transfer channels to stop")
	s.streamCh.ClearEnable()
	restart.ClearEnable()
	for attempt := 0; ; attempt++ {
		s.streamCh.Abort()
		restart.Abort()
		if !s.streamCh.Busy() && !restart.Busy() {
			return nil
		}
		if attempt >= quiesceRetryLimit {
			applog.Errorf("QUIESCE TIMEOUT: transfer channels still busy after %d abort attempts, restart required", attempt+1)
			return ErrQuiesceTimeout
		}
	}
}

// arm claims the channel pair and starts the self-chained loop in the
// idle/silent state: the stream channel feeds the serializer FIFO and chains
// to the restart channel, whose single-word transfer re-arms the stream
// channel and raises the completion interrupt.
func (s *Synth) arm() error {
	stream, err := s.sim.ClaimChannel()
	if err != nil {
		return err
	}
	restart, err := s.sim.ClaimChannel()
	if err != nil {
		stream.Unclaim()
		return err
	}
	s.streamCh = stream
	s.restartCh.Store(restart)
	s.dmaState.Store(stateIdle)

	stream.Configure(hw.ChannelConfig{
		Source:  s.gen.Steady().Words(),
		ChainTo: restart,
	})
	restart.Configure(hw.ChannelConfig{
		Source:    s.gen.Silent().Words(),
		Retrigger: stream,
		IRQ:       true,
		Start:     true,
	})
	s.armed = true
	return nil
}

// quantizedDivider returns the mode 0 clock divider as the hardware will
// realize it, in 1/256 steps.
func (s *Synth) quantizedDivider() float64 {
	return math.Round(256.0*s.gen.ClockHz()/(2.0*s.params.Frequency())) / 256.0
}

// FrequencyExact returns the carrier frequency actually realized, which can
// differ slightly from the request: buffered modes quantize the period to a
// rational fit and mode 0 quantizes the clock divider.
func (s *Synth) FrequencyExact() float64 {
	if s.params.Mode() == ModeClockDivider {
		return s.gen.ClockHz() / (2.0 * s.quantizedDivider())
	}
	return s.gen.ClockHz() * float64(s.gen.NPeriods()) / (SlotsPerWord * float64(s.gen.NWords()))
}

// NWords returns the realized buffer length in words.
func (s *Synth) NWords() int { return s.gen.NWords() }

// NPeriods returns the realized carrier periods per buffer pass.
func (s *Synth) NPeriods() int { return s.gen.NPeriods() }

// ModeName returns the human-readable name of the active mode.
func (s *Synth) ModeName() string { return s.params.Mode().String() }

// Generator exposes the buffers for analysis and export. Callers must not
// mutate them.
func (s *Synth) Generator() *Generator { return s.gen }

// Parameter surface, delegated to the owned parameter set. Each setter
// validates, rejects bad values without state change, and marks the set
// dirty for the next ApplySettings.

func (s *Synth) SetFrequency(hz float64) error    { return s.params.SetFrequency(hz) }
func (s *Synth) Frequency() float64               { return s.params.Frequency() }
func (s *Synth) SetMode(m Mode) error             { return s.params.SetMode(m) }
func (s *Synth) Mode() Mode                       { return s.params.Mode() }
func (s *Synth) SetAmplitude(a float64) error     { return s.params.SetAmplitude(a) }
func (s *Synth) Amplitude() float64               { return s.params.Amplitude() }
func (s *Synth) SetDitherAmplitude(a float64) error {
	return s.params.SetDitherAmplitude(a)
}
func (s *Synth) DitherAmplitude() float64        { return s.params.DitherAmplitude() }
func (s *Synth) SetHD3Amplitude(a float64) error { return s.params.SetHD3Amplitude(a) }
func (s *Synth) HD3Amplitude() float64           { return s.params.HD3Amplitude() }
func (s *Synth) SetHD3Phase(rad float64) error   { return s.params.SetHD3Phase(rad) }
func (s *Synth) HD3Phase() float64               { return s.params.HD3Phase() }
func (s *Synth) SetMaxBufferWords(n int) error   { return s.params.SetMaxBufferWords(n) }
func (s *Synth) MaxBufferWords() int             { return s.params.MaxBufferWords() }
