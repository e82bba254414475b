// Package cli implements the halftone command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Fepozopo/halftone/pkg/config"
)

// Version is set at build time with -ldflags "-X ...cli.Version=x.y.z".
var Version = "0.0.0-dev"

var rootCmd = &cobra.Command{
	Use:               "halftone",
	Short:             "Pattern dithering and halftone stylizer",
	SilenceUsage:      true,
	PersistentPreRunE: appPersistentPreRun,
}

var (
	configPath string
	envFiles   []string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configPath, "config", "c",
		"", "Configuration file",
	)
	rootCmd.PersistentFlags().StringVarP(
		&logLevel, "level", "l",
		config.Config.Main.LogLevel, "Log level",
	)
	rootCmd.PersistentFlags().StringSliceVar(
		&envFiles, "env",
		nil, "Environment files (default .env)",
	)
}

// appPersistentPreRun loads the configuration in order: defaults, TOML
// file, environment files and HALFTONE_* variables, then the log level
// flag. Command flags are applied by each command on top of that.
func appPersistentPreRun(cmd *cobra.Command, _ []string) error {
	config.Reset()
	if err := config.LoadConfiguration(configPath); err != nil {
		return fmt.Errorf("error loading configuration (%s)", err)
	}
	if err := config.LoadEnv(envFiles...); err != nil {
		return err
	}
	if cmd.Flags().Changed("level") {
		config.Config.Main.LogLevel = logLevel
	}
	if err := config.Config.Validate(); err != nil {
		return err
	}

	// Setup logger
	lvl, err := log.ParseLevel(config.Config.Main.LogLevel)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.WithField("log_level", lvl).Debug()
	if log.IsLevelEnabled(log.DebugLevel) {
		log.SetFormatter(&log.TextFormatter{
			ForceColors: true,
		})
	}
	return nil
}

// applyFlags runs the setter of every flag given on the command line, then
// validates the resulting configuration.
func applyFlags(cmd *cobra.Command, setters map[string]func()) error {
	for name, set := range setters {
		if cmd.Flags().Changed(name) {
			set()
		}
	}
	return config.Config.Validate()
}

// Run executes the command line. SIGINT and SIGTERM cancel the running
// command.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "halftone %s\n", Version)
		},
	})
}
