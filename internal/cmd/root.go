package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shiftsec/eventshift/internal/config"
	"github.com/shiftsec/eventshift/internal/logging"
	"github.com/shiftsec/eventshift/pkg/output"
)

var (
	cfgFile  string
	noColor  bool
	logLevel string

	cfg     *config.Config
	log     *logging.Logger
	printer *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "eventshift",
	Short: "Cloud security event transformation toolkit",
	Long: `eventshift classifies heterogeneous cloud security events and
renders them into CloudTrail Lake, OCSF or ASFF documents through
declarative mappings and YAML templates.

Use "validate" to statically check template files before deploying
them, and "transform" to run one event through the engine locally.`,
	Version:      "0.1.0",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults + EVENTSHIFT_* env)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v\n", err)
		cfg, _ = config.Load("")
	}

	if noColor {
		output.DisableColor()
	}
	printer = output.New()

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log = logging.New(logging.ParseLevel(level), cfg.Log.Format)
	logging.SetDefault(log)
}
