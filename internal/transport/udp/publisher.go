// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	applog "rfsynth/internal/log"
	"rfsynth/internal/transport"
)

// UDPPublisher periodically fetches spectrum magnitudes from a provider,
// packs them into a binary frame, and sends them over UDP using a UDPSender.
// It runs in a separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender
	provider transport.SpectrumProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // protects ticker and doneChan during Start/Stop

	sequenceNum uint32 // monotonically increasing packet sequence

	// Pre-allocated buffers to keep buildAndSendPacket allocation-free.
	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher. An interval
// of zero or less falls back to one second.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, provider transport.SpectrumProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum provider cannot be nil")
	}

	if interval <= 0 {
		interval = time.Second
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	// Magnitude frames carry N/2 + 1 bins.
	requiredLen := provider.GetFFTSize()/2 + 1
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Bins: %d)", interval, requiredLen)

	return &UDPPublisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		magBuffer:    make([]float64, requiredLen),
		f32Buffer:    make([]float32, requiredLen),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process. Safe to call multiple
// times; subsequent calls are no-ops while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture locals so the goroutine never races Start/Stop on the fields.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Infof("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. Safe to call multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		applog.Infof("UDPPublisher: Initiating stop sequence...")
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Spectrum magnitudes     |
+-----------------------------------------------------------------------------+
*/

// buildAndSendPacket fetches the latest magnitudes, packs the binary frame,
// and hands it to the sender.
func (p *UDPPublisher) buildAndSendPacket() {
	err := p.provider.GetMagnitudesInto(p.magBuffer)
	if err != nil {
		applog.Errorf("UDPPublisher: Error getting magnitudes: %v", err)
		return
	}

	if len(p.f32Buffer) != len(p.magBuffer) {
		applog.Errorf("UDPPublisher: Mismatched internal buffer lengths (%d != %d)! Resizing f32 buffer.",
			len(p.f32Buffer), len(p.magBuffer))
		p.f32Buffer = make([]float32, len(p.magBuffer))
	}
	for i, v := range p.magBuffer {
		p.f32Buffer[i] = float32(v)
	}

	p.sequenceNum++
	timestamp := time.Now().UnixNano()
	magnitudeCount := uint16(len(p.f32Buffer))

	p.packetBuffer.Reset()

	err = binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, magnitudeCount)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.f32Buffer)
	}
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Close implements io.Closer by stopping the publisher goroutine.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, stopping publisher...")
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
