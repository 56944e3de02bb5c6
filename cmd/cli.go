package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"rfsynth/internal/config"
	"rfsynth/pkg/build"
)

// ParseArgs builds the effective configuration: defaults, then the YAML
// file, then environment overrides, then command-line flags, each layer
// overriding the previous one. The returned config carries the selected
// command; a nil-command config means cobra already handled the invocation
// (help, version).
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetInfo()
	cfg := config.NewConfig()
	defaults := config.NewConfig()

	var (
		configPath string
		frequency  float64
		mode       int
		amplitude  float64
		dither     float64
		hd3        float64
		hd3Phase   float64
		maxWords   int
		clock      float64
		wavOut     string
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "RF carrier synthesizer",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			*cfg = *loaded

			// Flags beat the file, but only when actually given.
			flags := cmd.Flags()
			if flags.Changed("frequency") {
				cfg.Synth.FrequencyHz = frequency
			}
			if flags.Changed("mode") {
				cfg.Synth.Mode = mode
			}
			if flags.Changed("amplitude") {
				cfg.Synth.Amplitude = amplitude
			}
			if flags.Changed("dither") {
				cfg.Synth.DitherAmplitude = dither
			}
			if flags.Changed("hd3") {
				cfg.Synth.HD3Amplitude = hd3
			}
			if flags.Changed("hd3-phase") {
				cfg.Synth.HD3PhaseDeg = hd3Phase
			}
			if flags.Changed("max-words") {
				cfg.Synth.MaxBufferWords = maxWords
			}
			if flags.Changed("clock") {
				cfg.Synth.ClockHz = clock
			}
			if flags.Changed("verbose") {
				cfg.Debug = true
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Command = "run"
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	modesCmd := &cobra.Command{
		Use:   "modes",
		Short: "Browse synthesis modes and the frequency each would realize",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "modes"
		},
	}
	rootCmd.AddCommand(modesCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate the waveform buffers once and report the output spectrum",
		Run: func(cmd *cobra.Command, args []string) {
			cfg.Command = "analyze"
			cfg.WAVOut = wavOut
		},
	}
	analyzeCmd.Flags().StringVarP(&wavOut, "wav", "o", "",
		"Also export the steady buffer's symbol stream to this WAV file")
	rootCmd.AddCommand(analyzeCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the YAML configuration file")

	// Synthesis configuration
	rootCmd.PersistentFlags().Float64VarP(&frequency, "frequency", "f", defaults.Synth.FrequencyHz,
		"Requested carrier frequency in Hz")
	rootCmd.PersistentFlags().IntVarP(&mode, "mode", "m", defaults.Synth.Mode,
		"Synthesis mode (0=CLKDIV, 1=comparator, 2/3=binary/trinary sigma delta, 4/5=click-free)")
	rootCmd.PersistentFlags().Float64VarP(&amplitude, "amplitude", "a", defaults.Synth.Amplitude,
		"Carrier amplitude, 0..2")
	rootCmd.PersistentFlags().Float64Var(&dither, "dither", defaults.Synth.DitherAmplitude,
		"Dither amplitude applied before quantization, 0..3")
	rootCmd.PersistentFlags().Float64Var(&hd3, "hd3", defaults.Synth.HD3Amplitude,
		"Third-harmonic pre-distortion amplitude, -0.5..0.5")
	rootCmd.PersistentFlags().Float64Var(&hd3Phase, "hd3-phase", defaults.Synth.HD3PhaseDeg,
		"Third-harmonic pre-distortion phase in degrees")
	rootCmd.PersistentFlags().IntVarP(&maxWords, "max-words", "w", defaults.Synth.MaxBufferWords,
		"Upper bound for the rational fit's buffer length in words, 2..10000")
	rootCmd.PersistentFlags().Float64Var(&clock, "clock", defaults.Synth.ClockHz,
		"Serializer clock in Hz")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"Show verbose output")

	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return cfg, nil
}
