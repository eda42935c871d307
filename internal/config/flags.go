package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file (.yaml or .toml)")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging and debug vectors")
	flagManifest  = flag.String("manifest", "", "Asset manifest path")
	flagBudgetMB  = flag.Float64("budget-mb", -1, "Training frame cache budget in MB")
	flagDeltaMode = flag.String("delta-mode", "", "Delta mode: pre_skinning or post_skinning")
	flagEviction  = flag.String("eviction", "", "Cache eviction: freeze_last or round_robin")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the non-flag command-line arguments.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Sampler.DebugVectors = true
	}
	if *flagManifest != "" {
		cfg.Asset.Manifest = *flagManifest
	}
	if *flagBudgetMB >= 0 {
		cfg.Cache.MemoryBudgetMB = *flagBudgetMB
	}
	if *flagDeltaMode != "" {
		cfg.Cache.DeltaMode = *flagDeltaMode
	}
	if *flagEviction != "" {
		cfg.Cache.Eviction = *flagEviction
	}
}
