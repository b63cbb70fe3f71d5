package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type rootOptions struct {
	debug      bool
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	v := viper.New()

	root := &cobra.Command{
		Use:          "tokutalkd",
		Short:        "Alternate the device between English and Japanese",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug mode")
	flags.StringVar(&opts.configFile, "config", "", fmt.Sprintf("settings file (default %s)", CONFIG_FILE))
	flags.Duration("interval", 600*time.Second, "time between language switches")
	flags.String("config-path", "", "host config.toml to rewrite")
	flags.String("log-path", "", "host log used to infer the operating mode")
	if err := bindFlags(v, flags); err != nil {
		panic("Failed to bind flags: " + err.Error())
	}

	root.AddCommand(
		newRunCmd(opts, v),
		newSwitchCmd(opts, v),
		newStatusCmd(opts, v),
	)
	return root
}

// bindFlags maps command line flags onto settings keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range map[string]string{
		"interval":    "interval",
		"config_path": "config-path",
		"log_path":    "log-path",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}

func newRunCmd(opts *rootOptions, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the switching daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, v)
		},
	}
}

func newSwitchCmd(opts *rootOptions, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "switch",
		Short: "Switch language once, right now",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, settings, err := bootstrap(opts, v)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler, cleanup := buildScheduler(settings, logger)
			defer cleanup()

			result := scheduler.SwitchNow(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "now in %s (lang=%s font=%s mode=%s)\n",
				result.Toggle.CurrentLabel, result.Toggle.Next.Code(), result.Toggle.Font, result.Mode)

			if result.WriteErr != nil || result.RestartErr != nil {
				return errors.Join(result.WriteErr, result.RestartErr)
			}
			if result.Panic != nil {
				return fmt.Errorf("switch panicked: %v", result.Panic)
			}
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current language, inferred mode and data port state",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, settings, err := bootstrap(opts, v)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return printStatus(cmd.OutOrStdout(), settings, logger)
		},
	}
}

func bootstrap(opts *rootOptions, v *viper.Viper) (*zap.Logger, *Settings, error) {
	logger, err := newLogger(opts.debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	settings, err := LoadSettings(v, opts.debug, opts.configFile, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return logger, settings, nil
}
