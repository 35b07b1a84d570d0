package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/tablekit/partgen/pkg/config"
	"github.com/tablekit/partgen/pkg/logger"
)

var (
	// Build information variables, set via -ldflags at build time.
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	cfg *config.Config
	log = logger.New("partgen", Version)

	configFile string
	logFile    string
	quiet      bool
)

// printVersionInfo displays detailed version information
func printVersionInfo() {
	fmt.Printf("partgen v%s (commit %s)\n", Version, GitCommit)
	fmt.Printf("Built: %s\n", BuildTime)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "partgen",
	Short: "Partition specification expander for PostgreSQL",
	Long: "partgen expands declarative partition specifications into CREATE TABLE scripts, " +
		"covering START/END/EVERY range series, list partitions, defaults and nested " +
		"sub-partition templates.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Lookup("version") != nil && cmd.Flags().Lookup("version").Changed {
			printVersionInfo()
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.ExpandEnv("$HOME/.partgen/config.yaml"), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append log output to this file")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress console log output")
	rootCmd.PersistentFlags().String("host", "", "Database host")
	rootCmd.PersistentFlags().String("port", "", "Database port")
	rootCmd.PersistentFlags().String("user", "", "Database user")
	rootCmd.PersistentFlags().String("dbname", "", "Database name")

	rootCmd.Flags().Bool("version", false, "Show version information and exit")

	cobra.OnInitialize(func() {
		cfg = config.New()
		if err := initConfigFile(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
			os.Exit(1)
		}
		cfg.LoadEnv()
		applyFlagOverrides()

		if quiet {
			log.DisableConsoleOutput()
		}
		if logFile != "" {
			if err := startLogSink(logFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
				os.Exit(1)
			}
		}
	})

	setupCommands()
}

// applyFlagOverrides copies connection flags over the configuration so
// the precedence is flags, then environment, then the config file, then
// defaults.
func applyFlagOverrides() {
	overrides := map[string]string{
		"host":   "database.host",
		"port":   "database.port",
		"user":   "database.user",
		"dbname": "database.dbname",
	}
	for flag, key := range overrides {
		f := rootCmd.PersistentFlags().Lookup(flag)
		if f != nil && f.Changed {
			cfg.Set(key, f.Value.String())
		}
	}
}

// startLogSink streams log entries into a file alongside the console.
func startLogSink(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	entries := log.Subscribe()
	go func() {
		for entry := range entries {
			fmt.Fprintf(f, "%s [%s] %s\n", entry.Time.Format(time.RFC3339), entry.Level, entry.Message)
		}
	}()
	return nil
}

func main() {
	Execute()
}
