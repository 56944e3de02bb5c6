// SPDX-License-Identifier: MIT
/*
Package hw models the streaming hardware the synthesizer drives: a
serializer engine that shifts 2-bit symbol slots out of a FIFO, and a set of
transfer channels that feed it without processor intervention.

The playback topology mirrors the self-chained pair the transmitter uses on
real silicon: a stream channel copies a waveform buffer into the serializer
FIFO and, on exhaustion, chains to a restart channel whose single-word
transfer rewrites the stream channel's read-address trigger. The restart
channel raises the completion interrupt, and the handler's only job is to
decide which buffer address the restart channel writes next time.

This package is an in-process simulator of that topology. It preserves the
hardware's awkward corners on purpose: channels must be claimed and
unclaimed, completion events only fire while the chain is armed, and abort
is unreliable for chained transfers until the channel enable bits have been
cleared first.
*/
package hw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// NumChannels is how many transfer channels the simulated block provides.
const NumChannels = 4

// StreamHistoryCap bounds the streamed-source history. The chain delivers a
// completion event roughly every buffer pass for the process lifetime, so
// the record is a ring keeping only the most recent entries.
const StreamHistoryCap = 4096

// ErrNoFreeChannel is returned when every transfer channel is claimed.
var ErrNoFreeChannel = errors.New("hw: no free transfer channel")

// ChannelConfig programs a claimed channel.
//
// Exactly one of the two roles applies: a stream channel (Retrigger nil)
// copies Source into the serializer FIFO and fires ChainTo when the buffer
// is exhausted; a restart channel (Retrigger set) holds a buffer address and
// writes it into the retrigger target's read-address register when chained
// into, optionally raising the completion interrupt.
type ChannelConfig struct {
	Source    []uint32 // region to stream, or the address a restart channel re-arms with
	ChainTo   *Channel // channel triggered on exhaustion
	Retrigger *Channel // target whose read address this channel rewrites
	IRQ       bool     // raise the completion interrupt after the retrigger write
	Start     bool     // arm immediately
}

// Channel is one simulated transfer channel.
type Channel struct {
	sim *Simulator
	id  int

	claimed    bool
	enabled    bool
	busy       bool
	cfg        ChannelConfig
	src        []uint32
	abortsLeft int
}

// Simulator owns the channel block and the serializer and delivers
// buffer-exhaustion completion events to the registered handler.
type Simulator struct {
	mu       sync.Mutex
	clockHz  float64
	channels [NumChannels]Channel
	ser      Serializer
	handler  func()

	// AbortLatency is how many abort writes a disabled channel absorbs
	// before it reports idle. The default of 1 matches a well-behaved
	// channel; tests raise it to exercise the caller's retry loop.
	AbortLatency int

	// Ring of sources handed to the stream channel, capped at
	// StreamHistoryCap. histStart is the index of the oldest entry once
	// the ring is full.
	history   [][]uint32
	histStart int
}

// NewSimulator creates the hardware block with the given serializer clock.
func NewSimulator(clockHz float64) (*Simulator, error) {
	if clockHz <= 0 {
		return nil, fmt.Errorf("hw: clock frequency must be positive, got %g", clockHz)
	}
	s := &Simulator{clockHz: clockHz, AbortLatency: 1}
	for i := range s.channels {
		s.channels[i] = Channel{sim: s, id: i}
	}
	s.ser.sim = s
	return s, nil
}

// ClockHz returns the serializer clock in Hz. Each 32-bit word takes 16
// clock cycles to shift out, two bits per cycle.
func (s *Simulator) ClockHz() float64 { return s.clockHz }

// SetHandler registers the completion interrupt handler. There is one
// interrupt line, so the handler is exclusive.
func (s *Simulator) SetHandler(fn func()) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

// ClaimChannel claims the lowest-numbered free channel. Exhaustion is an
// error; the synthesizer treats it as fatal at construction.
func (s *Simulator) ClaimChannel() (*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.channels {
		if !s.channels[i].claimed {
			s.channels[i].claimed = true
			s.channels[i].enabled = false
			s.channels[i].busy = false
			s.channels[i].cfg = ChannelConfig{}
			return &s.channels[i], nil
		}
	}
	return nil, ErrNoFreeChannel
}

// Serializer returns the simulated serializer engine.
func (s *Simulator) Serializer() *Serializer { return &s.ser }

// Step advances the simulation by one buffer-exhaustion event: the stream
// channel finishes its pass, the chained restart channel rewrites its read
// address, and the completion interrupt fires. It reports whether an event
// was delivered; an unarmed or quiesced chain delivers none.
func (s *Simulator) Step() bool {
	s.mu.Lock()
	var restart *Channel
	for i := range s.channels {
		c := &s.channels[i]
		if c.claimed && c.enabled && c.busy && c.cfg.Retrigger != nil && c.cfg.Retrigger.enabled {
			restart = c
			break
		}
	}
	if restart == nil {
		s.mu.Unlock()
		return false
	}
	handler := s.fireLocked(restart)
	s.mu.Unlock()

	if handler != nil {
		handler()
	}
	return true
}

// fireLocked performs the restart channel's one-word transfer: the pending
// buffer address becomes the stream channel's new source. Returns the
// handler to invoke after the lock is released, or nil.
func (s *Simulator) fireLocked(restart *Channel) func() {
	target := restart.cfg.Retrigger
	target.src = restart.src
	target.busy = true
	s.recordLocked(restart.src)
	if restart.cfg.IRQ {
		return s.handler
	}
	return nil
}

// recordLocked appends src to the history ring, evicting the oldest entry
// once StreamHistoryCap is reached.
func (s *Simulator) recordLocked(src []uint32) {
	if len(s.history) < StreamHistoryCap {
		s.history = append(s.history, src)
		return
	}
	s.history[s.histStart] = src
	s.histStart = (s.histStart + 1) % StreamHistoryCap
}

// Run delivers completion events at the real-time pace of the serializer:
// one per full buffer playback. It blocks until the context is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		words := 0
		for i := range s.channels {
			c := &s.channels[i]
			if c.claimed && c.busy && c.cfg.Retrigger == nil {
				words = len(c.src)
				break
			}
		}
		clock := s.clockHz
		s.mu.Unlock()

		if words == 0 {
			// Chain idle; poll at a coarse interval.
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		pass := time.Duration(float64(words) * 16 / clock * float64(time.Second))
		select {
		case <-ctx.Done():
			return
		case <-time.After(pass):
		}
		s.Step()
	}
}

// Streamed returns the buffer sources handed to the stream channel, oldest
// first, keeping at most the StreamHistoryCap most recent entries. Intended
// for tests and diagnostics.
func (s *Simulator) Streamed() [][]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]uint32, len(s.history))
	n := copy(out, s.history[s.histStart:])
	copy(out[n:], s.history[:s.histStart])
	return out
}

// Configure programs the channel and optionally arms it. Arming a restart
// channel performs its first transfer immediately, exactly as triggering it
// from software does on the real block.
func (c *Channel) Configure(cfg ChannelConfig) {
	c.sim.mu.Lock()
	c.cfg = cfg
	c.src = cfg.Source
	c.enabled = true
	c.busy = false
	var handler func()
	if cfg.Start {
		c.busy = true
		if cfg.Retrigger != nil {
			handler = c.sim.fireLocked(c)
		}
	}
	c.sim.mu.Unlock()

	if handler != nil {
		handler()
	}
}

// SetReadAddr replaces the channel's pending source. For a restart channel
// this is the buffer the stream channel will be re-armed with at the next
// exhaustion event. Safe to call from the completion handler.
func (c *Channel) SetReadAddr(src []uint32) {
	c.sim.mu.Lock()
	c.src = src
	c.sim.mu.Unlock()
}

// Busy reports whether the channel still has a transfer in flight.
func (c *Channel) Busy() bool {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	return c.busy
}

// ClearEnable clears the channel's control enable bit. Required before an
// abort of a self-chained pair can succeed.
func (c *Channel) ClearEnable() {
	c.sim.mu.Lock()
	c.enabled = false
	c.abortsLeft = c.sim.AbortLatency
	c.sim.mu.Unlock()
}

// Abort requests an abort of the in-flight transfer. For chained transfers
// the abort is unreliable while the enable bit is set: the channel may
// remain busy and the caller must poll. After ClearEnable, the abort lands
// within AbortLatency attempts.
func (c *Channel) Abort() {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	if c.enabled {
		// Chain-retrigger race: the abort can be overtaken by a re-arm.
		return
	}
	if c.abortsLeft > 0 {
		c.abortsLeft--
	}
	if c.abortsLeft == 0 {
		c.busy = false
	}
}

// Unclaim releases the channel back to the pool. The caller must have
// quiesced it first.
func (c *Channel) Unclaim() {
	c.sim.mu.Lock()
	c.claimed = false
	c.enabled = false
	c.busy = false
	c.cfg = ChannelConfig{}
	c.src = nil
	c.sim.mu.Unlock()
}

// SameSource reports whether two transfer sources refer to the same buffer
// region. Slice identity is by base address, as on the hardware bus.
func SameSource(a, b []uint32) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0] && len(a) == len(b)
}
