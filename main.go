package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rfsynth/cmd"
	"rfsynth/internal/analysis"
	"rfsynth/internal/config"
	"rfsynth/internal/hw"
	applog "rfsynth/internal/log"
	"rfsynth/internal/monitor"
	"rfsynth/internal/synth"
	"rfsynth/internal/transport"
	"rfsynth/internal/transport/udp"
	"rfsynth/internal/tui"
	"rfsynth/pkg/build"
)

// monitorFFTSize is the window length of the streaming spectrum monitor fed
// to the websocket and UDP publishers.
const monitorFFTSize = 4096

// statusFrame is what the websocket transport broadcasts on every spectrum
// interval.
type statusFrame struct {
	Status   synth.Status       `json:"status"`
	Spectrum *analysis.Spectrum `json:"spectrum,omitempty"`
}

// main runs in three phases:
//
// 1. Startup (cold path): build info, argument parsing, configuration,
// hardware and synthesizer construction. Any failure here is fatal.
//
// 2. Concurrent phase: the simulator pumps completion events at the
// real-time buffer rate, the monitors and transports publish, and the
// carrier stays keyed until shutdown.
//
// 3. Shutdown (cold path): key up, stop the pumps, close the transports.
func main() {
	build.Initialize()

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("main: %v", err)
	}
	if cfg.Command == "" {
		// Cobra already handled the invocation (help, version).
		return
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	}
	if cfg.Debug {
		applog.SetLevel(applog.LevelDebug)
	}

	info := build.GetInfo()
	applog.Infof("main: %s %s (%s, built %s)", info.Name, info.Version, info.Commit, info.Time)

	switch cfg.Command {
	case "modes":
		if err := tui.StartModeListUI(cfg.Synth.FrequencyHz, cfg.Synth.ClockHz, cfg.Synth.MaxBufferWords); err != nil {
			applog.Fatalf("main: %v", err)
		}
	case "analyze":
		if err := runAnalyze(cfg); err != nil {
			applog.Fatalf("main: %v", err)
		}
	case "run":
		if err := runService(cfg); err != nil {
			applog.Fatalf("main: %v", err)
		}
	default:
		applog.Fatalf("main: unknown command %q", cfg.Command)
	}
}

// newSynth builds the simulated hardware and a synthesizer configured from
// cfg, with all parameters applied.
func newSynth(cfg *config.Config) (*synth.Synth, *hw.Simulator, error) {
	sim, err := hw.NewSimulator(cfg.Synth.ClockHz)
	if err != nil {
		return nil, nil, err
	}
	s, err := synth.New(sim, cfg.Synth.DitherSeed)
	if err != nil {
		return nil, nil, err
	}

	sc := cfg.Synth
	setters := []func() error{
		func() error { return s.SetFrequency(sc.FrequencyHz) },
		func() error { return s.SetMode(synth.Mode(sc.Mode)) },
		func() error { return s.SetAmplitude(sc.Amplitude) },
		func() error { return s.SetDitherAmplitude(sc.DitherAmplitude) },
		func() error { return s.SetHD3Amplitude(sc.HD3Amplitude) },
		func() error { return s.SetHD3Phase(sc.HD3PhaseRad()) },
		func() error { return s.SetMaxBufferWords(sc.MaxBufferWords) },
	}
	for _, set := range setters {
		if err := set(); err != nil {
			return nil, nil, err
		}
	}
	if err := s.ApplySettings(); err != nil {
		return nil, nil, err
	}
	return s, sim, nil
}

// runAnalyze generates the buffers once, prints the realized parameters and
// the coherent output spectrum, and optionally exports the symbol stream.
func runAnalyze(cfg *config.Config) error {
	if !synth.Mode(cfg.Synth.Mode).Buffered() {
		return fmt.Errorf("mode %s has no waveform buffer to analyze", synth.Mode(cfg.Synth.Mode))
	}

	s, _, err := newSynth(cfg)
	if err != nil {
		return err
	}

	fmt.Println(s.Status().String())

	sp, err := analysis.Analyze(s.Generator().Steady(), cfg.Synth.ClockHz)
	if err != nil {
		return err
	}
	fmt.Printf("Carrier:        %.3f Hz at %.2f dB (bin %d of %d)\n",
		sp.CarrierHz, sp.CarrierDB, sp.CarrierBin, sp.NumSamples/2+1)
	fmt.Printf("Worst spur:     %.3f Hz at %.2f dB\n", sp.WorstSpurHz, sp.WorstSpurDB)
	fmt.Printf("SFDR:           %.2f dB\n", sp.SFDRdB)

	if cfg.WAVOut != "" {
		if err := synth.ExportWAV(cfg.WAVOut, s.Generator().Steady(), 48000); err != nil {
			return err
		}
		fmt.Printf("Symbol stream written to %s\n", cfg.WAVOut)
	}
	return nil
}

// runService runs the synthesizer continuously: the carrier is keyed on,
// the simulator pumps buffer completions in real time, and the configured
// monitors and transports publish until a termination signal arrives.
func runService(cfg *config.Config) error {
	s, sim, err := newSynth(cfg)
	if err != nil {
		return err
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sim.Run(ctx)

	var closers []interface{ Close() error }
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				applog.Warnf("main: close: %v", err)
			}
		}
	}()

	// Spectrum monitor feeding every publisher.
	specMon, err := analysis.NewSpectrumMonitor(monitorFFTSize, cfg.Synth.ClockHz, analysis.Hann)
	if err != nil {
		return err
	}

	var ws transport.Transport
	if cfg.Monitor.WebsocketEnabled {
		ws = transport.NewWebSocketTransport(cfg.Monitor.WebsocketAddr)
		closers = append(closers, ws)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		closers = append(closers, sender)
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, specMon)
		if err != nil {
			return err
		}
		publisher.Start()
		closers = append(closers, publisher)
	}

	if cfg.Monitor.SidetoneEnabled {
		if err := monitor.Initialize(); err != nil {
			return err
		}
		defer monitor.Terminate()
		tone, err := monitor.NewSidetone(cfg.Monitor.SidetonePitchHz, s)
		if err != nil {
			return err
		}
		if err := tone.Start(); err != nil {
			tone.Close()
			return err
		}
		closers = append(closers, tone)
	}

	go publishLoop(ctx, cfg.Monitor.SpectrumInterval, s, specMon, ws)

	// Key the carrier on. In buffered modes the handler ramps up at the
	// next buffer boundary; mode 0 keys the pins directly.
	s.EnableOutput()
	applog.Infof("main: transmitting, ctrl-c to stop")

	<-done

	s.DisableOutput()
	// Let the ramp-down pass play out before tearing the chain down.
	time.Sleep(2 * bufferPassDuration(s, cfg.Synth.ClockHz))
	applog.Infof("main: shutting down")
	return nil
}

// bufferPassDuration is the wall time of one full buffer playback.
func bufferPassDuration(s *synth.Synth, clockHz float64) time.Duration {
	words := s.NWords()
	if words == 0 {
		return 10 * time.Millisecond
	}
	return time.Duration(float64(words) * synth.SlotsPerWord / clockHz * float64(time.Second))
}

// publishLoop refreshes the spectrum monitor from the steady buffer and
// broadcasts a status frame on every interval.
func publishLoop(ctx context.Context, interval time.Duration, s *synth.Synth, specMon *analysis.SpectrumMonitor, ws transport.Transport) {
	if interval <= 0 {
		interval = config.DefaultSpectrumInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := statusFrame{Status: s.Status()}
		if s.Mode().Buffered() {
			specMon.Process(analysis.Samples(s.Generator().Steady(), nil))
			if sp, err := analysis.Analyze(s.Generator().Steady(), s.Generator().ClockHz()); err == nil {
				frame.Spectrum = sp
			}
		}
		if ws != nil {
			if err := ws.Send(frame); err != nil {
				applog.Warnf("main: websocket send: %v", err)
			}
		}
	}
}
