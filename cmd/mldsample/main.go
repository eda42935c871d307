// mldsample is a CLI utility for inspecting and exercising ML deformer
// training-frame caches.
package main

import (
	"fmt"
	"os"

	"github.com/Faultbox/mldeformer/internal/config"
	"github.com/Faultbox/mldeformer/internal/logger"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := initLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		cmdInfo(cfg, args)
	case "frame":
		cmdFrame(cfg, args)
	case "prefetch":
		cmdPrefetch(cfg, args)
	case "synth":
		cmdSynth(args)
	case "watch":
		cmdWatch(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func initLogger(cfg *config.Config) error {
	if cfg.Logging.JSON && cfg.Logging.LogFile != "" {
		fc := logger.DefaultFileConfig(cfg.Logging.LogFile)
		fc.JSON = true
		return logger.InitWithFileConfig(cfg.Logging.Level, fc, true)
	}
	return logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
}

func printUsage() {
	fmt.Println(`mldsample - ML deformer training-frame sampler

Usage:
  mldsample [flags] <command> [options]

Commands:
  info [manifest]                      Show asset, mapping and cache sizing
  frame [manifest] <n>                 Sample one frame and print its data
  prefetch [manifest] <start> <end>    Fill the cache and print statistics
  synth [options] <dir>                Write a procedural test asset
  watch [manifest]                     Rebuild the cache when the asset changes

The manifest may be omitted when -manifest or asset.manifest is set.

Flags:
  -config <file>       Config file (.yaml or .toml)
  -manifest <file>     Asset manifest
  -budget-mb <n>       Cache memory budget in MB
  -delta-mode <mode>   pre_skinning or post_skinning (default: from asset)
  -eviction <policy>   freeze_last or round_robin
  -debug               Debug logging and debug vectors

Examples:
  mldsample synth ./rig
  mldsample info ./rig/deformer.yaml
  mldsample -budget-mb 0 frame ./rig/deformer.yaml 5
  mldsample -eviction round_robin prefetch ./rig/deformer.yaml 0 9`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
