package config

// CLI flag parsing. The watch directory is the single positional argument;
// --config is handled in two passes so file values sit between defaults and
// explicit flags in precedence.

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// ParseFlags parses args (excluding the program name) into cfg. When a
// --config file is given it is loaded first, then flags are re-applied on
// top so the command line always wins.
func ParseFlags(cfg *Config, args []string, version string) error {
	fs := newFlagSet(cfg, version)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cfg.ConfigFile != "" {
		fileCfg := Default()
		if err := LoadFile(&fileCfg, cfg.ConfigFile); err != nil {
			return err
		}
		*cfg = fileCfg
		// Re-parse so explicit flags override file values.
		fs = newFlagSet(cfg, version)
		if err := fs.Parse(args); err != nil {
			return err
		}
	}

	switch fs.NArg() {
	case 0:
		if cfg.WatchDir == "" && !cfg.CheckOnly {
			return fmt.Errorf("missing watch directory argument")
		}
	case 1:
		cfg.WatchDir = fs.Arg(0)
	default:
		return fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}
	return nil
}

func newFlagSet(cfg *Config, version string) *flag.FlagSet {
	fs := flag.NewFlagSet("hbwatch", flag.ContinueOnError)
	fs.Usage = func() { printUsage(fs.Output(), version) }

	fs.StringVar(&cfg.HandBrakePath, "handbrake", cfg.HandBrakePath, "Path to HandBrakeCLI executable")
	fs.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "Path to ffprobe executable")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "Directory for monitor state files")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for per-run event logs")
	fs.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "Delay between scan passes")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (empty = disabled)")
	fs.BoolVar(&cfg.CheckOnly, "check", cfg.CheckOnly, "Run startup checks and exit")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "Optional YAML config file")
	return fs
}

func printUsage(w io.Writer, version string) {
	fmt.Fprintf(w, `hbwatch v%s - watch a directory tree and batch-transcode suffixed video files

Usage:
  hbwatch [flags] <watch-dir>

Files named "<name> xx.<ext>" (or "XX", one or two spaces) inside the
immediate subfolders of <watch-dir> are encoded to "<name>.mp4" next to the
source. Supported extensions: mp4, mkv, avi, wmv, mpg.

Flags:
  --handbrake path     Path to HandBrakeCLI (default: resolve from PATH)
  --ffprobe path       Path to ffprobe (default: resolve from PATH)
  --state-dir dir      Monitor state files (default: state)
  --log-dir dir        Per-run event logs (default: logs)
  --interval dur       Delay between scan passes (default: 30s)
  --log-level level    debug, info, warn, error (default: info)
  --metrics-addr addr  Serve Prometheus metrics (default: disabled)
  --config file        YAML config file (flags override file values)
  --check              Run startup checks and exit
`, version)
}

// ParseOSArgs is the production entry point wrapping ParseFlags over os.Args.
func ParseOSArgs(cfg *Config, version string) error {
	return ParseFlags(cfg, os.Args[1:], version)
}
