package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Timeouts
	SHUTDOWN_TIMEOUT  = 5 * time.Second
	GOROUTINE_TIMEOUT = 3 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// buildScheduler wires the scheduler to the real config file, host log,
// systemd and, when enabled, the D-Bus notifier. The returned func releases
// the notifier.
func buildScheduler(settings *Settings, logger *zap.Logger) (*Scheduler, func()) {
	store := NewLineStore(settings.ConfigPath, logger)
	modes := NewModeInspector(settings.LogPath, logger)
	controller := NewServiceController(settings, logger)

	scheduler := NewScheduler(settings.Interval, store, modes, controller, logger).
		WithPower(NewPowerProbe(settings.PowerSupplyPath))

	cleanup := func() {}
	if settings.DBusSignals {
		notifier := NewDBusNotifier(logger)
		if err := notifier.Start(); err != nil {
			logger.Warn("DBus signals disabled", zap.Error(err))
		} else {
			scheduler.WithReporter(notifier)
			cleanup = notifier.Stop
		}
	}
	return scheduler, cleanup
}

func runDaemon(opts *rootOptions, v *viper.Viper) error {
	logger, err := newLogger(opts.debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting tokutalkd daemon")
	logger.Info("Logs are being saved to", zap.String("logFile", logFilePath(opts.debug)))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal, initiating shutdown...",
			zap.String("signal", sig.String()))
		cancel()

		// Force exit if graceful shutdown takes too long
		time.Sleep(SHUTDOWN_TIMEOUT)
		logger.Error("Shutdown timed out, forcing exit...",
			zap.Duration("timeout", SHUTDOWN_TIMEOUT))
		os.Exit(1)
	}()

	settings, err := LoadSettings(v, opts.debug, opts.configFile, logger)
	if err != nil {
		logger.Fatal("Failed to load settings", zap.Error(err))
	}

	scheduler, cleanup := buildScheduler(settings, logger)
	defer cleanup()

	systemdWatchdog := NewSystemdWatchdog(logger)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		systemdWatchdog.Start(egCtx)
		return nil
	})
	eg.Go(func() error {
		scheduler.Start(egCtx)
		return nil
	})

	if err := systemdWatchdog.NotifyReady(); err != nil {
		logger.Warn("Failed to notify systemd, but continuing", zap.Error(err))
	}

	// Block until a signal cancels the context
	<-ctx.Done()
	logger.Info("Shutdown signal received, cleaning up...")
	systemdWatchdog.NotifyStopping()
	scheduler.Stop()

	waitCh := make(chan struct{})
	go func() {
		eg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("All goroutines have terminated cleanly")
	case <-time.After(GOROUTINE_TIMEOUT):
		logger.Warn("Some goroutines did not terminate in time")
	}

	logger.Info("tokutalkd daemon shutdown complete")
	return nil
}
