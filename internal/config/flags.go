package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagPolicy = flag.String("policy", "", "Bone influence policy: truncate or reject")
	flagOut    = flag.String("out", "", "Output directory for converted containers")
	flagPrefix = flag.String("prefix", "", "Texture key prefix")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after the global flags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagPolicy != "" {
		cfg.Convert.InfluencePolicy = *flagPolicy
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagPrefix != "" {
		cfg.Convert.TexturePrefix = *flagPrefix
	}
}
