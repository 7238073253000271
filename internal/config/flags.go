package config

import (
	"flag"

	"github.com/Faultbox/acoustic-scene/internal/solver"
)

// Flags holds the command-line overrides shared by every command.
type Flags struct {
	Config     string
	Debug      bool
	Output     string
	Channels   string
	SampleRate int
	WriteIR    bool
	Materials  string
}

// BindFlags registers the common flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file (.yaml or .toml)")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Output, "output", "", "Output directory prefix")
	fs.StringVar(&f.Channels, "channels", "", "Listener layout: mono, binaural or ambisonics")
	fs.IntVar(&f.SampleRate, "rate", 0, "Sample rate in Hz")
	fs.BoolVar(&f.WriteIR, "write-ir", false, "Write impulse responses as text files")
	fs.StringVar(&f.Materials, "materials", "", "Acoustic material JSON file")
	return f
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f *Flags) error {
	if f == nil {
		return nil
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Output != "" {
		cfg.Output.Directory = f.Output
	}
	if f.Channels != "" {
		var t solver.ChannelType
		if err := t.UnmarshalText([]byte(f.Channels)); err != nil {
			return err
		}
		cfg.Listener = layoutFor(t, cfg.Listener)
	}
	if f.SampleRate > 0 {
		cfg.Acoustics.SampleRate = f.SampleRate
	}
	if f.WriteIR {
		cfg.Acoustics.WriteIRToFile = true
	}
	if f.Materials != "" {
		cfg.Acoustics.MaterialsJSON = f.Materials
	}
	return nil
}

// layoutFor returns the channel layout for t. Ambisonics keeps the current
// count if it already is an ambisonics layout.
func layoutFor(t solver.ChannelType, cur solver.ChannelLayout) solver.ChannelLayout {
	switch t {
	case solver.ChannelMono:
		return solver.ChannelLayout{Type: t, Count: 1}
	case solver.ChannelBinaural:
		return solver.ChannelLayout{Type: t, Count: 2}
	case solver.ChannelAmbisonics:
		if cur.Type == t {
			return cur
		}
		return solver.DefaultChannelLayout()
	}
	// Left for Validate to reject.
	return solver.ChannelLayout{Type: t, Count: cur.Count}
}
