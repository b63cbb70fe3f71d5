package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
	sddbus "github.com/coreos/go-systemd/v22/dbus"
	"go.uber.org/zap"
)

const (
	RESTART_JOB_MODE       = "replace"
	RESTART_RETRY_INTERVAL = 2 * time.Second
)

// SystemController applies an operating mode to the host and restarts it.
type SystemController interface {
	ApplyModeAndRestart(ctx context.Context, mode OperatingMode) error
}

type restartFunc func(ctx context.Context, unit string) error

// ServiceController drops the mode flag file for the requested mode, then
// restarts the host unit through systemd.
type ServiceController struct {
	service       string
	autoFlag      string
	manualFlag    string
	timeout       time.Duration
	retries       int
	retryInterval time.Duration
	logger        *zap.Logger
	restartUnit   restartFunc
}

func NewServiceController(settings *Settings, logger *zap.Logger) *ServiceController {
	c := &ServiceController{
		service:       settings.Service,
		autoFlag:      settings.AutoFlag,
		manualFlag:    settings.ManualFlag,
		timeout:       settings.RestartTimeout,
		retries:       settings.RestartRetries,
		retryInterval: RESTART_RETRY_INTERVAL,
		logger:        logger,
	}
	c.restartUnit = c.restartViaSystemd
	return c
}

// ApplyModeAndRestart touches the flag file for mode and restarts the unit.
// MODE_UNKNOWN restarts without a flag. A flag that cannot be written aborts
// the restart.
func (c *ServiceController) ApplyModeAndRestart(ctx context.Context, mode OperatingMode) error {
	if flag := c.flagFor(mode); flag != "" {
		// both flags present would leave the host to pick one
		if stale := c.oppositeFlag(mode); stale != "" {
			if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: mode flag %s: %w", ErrRestartFailed, stale, err)
			}
		}
		if err := touch(flag); err != nil {
			return fmt.Errorf("%w: mode flag %s: %w", ErrRestartFailed, flag, err)
		}
		c.logger.Info("Restart: Mode flag set", zap.String("mode", mode.String()), zap.String("flag", flag))
	}

	c.logger.Info("Restart: Restarting service to apply changes", zap.String("service", c.service))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		attemptCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		return c.restartUnit(attemptCtx, c.service)
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("Restart: Attempt failed, retrying",
			zap.String("service", c.service),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", next),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %w", ErrRestartFailed, c.service, attempt, err)
	}

	c.logger.Info("Restart: Service restarted", zap.String("service", c.service))
	return nil
}

func (c *ServiceController) flagFor(mode OperatingMode) string {
	switch mode {
	case MODE_AUTO:
		return c.autoFlag
	case MODE_MANUAL:
		return c.manualFlag
	default:
		return ""
	}
}

func (c *ServiceController) oppositeFlag(mode OperatingMode) string {
	switch mode {
	case MODE_AUTO:
		return c.manualFlag
	case MODE_MANUAL:
		return c.autoFlag
	default:
		return ""
	}
}

// restartViaSystemd asks systemd over D-Bus to restart unit and waits for the
// job result. If the bus is unreachable it falls back to systemctl.
func (c *ServiceController) restartViaSystemd(ctx context.Context, unit string) error {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		c.logger.Warn("Restart: systemd bus unavailable, falling back to systemctl", zap.Error(err))
		return c.restartViaSystemctl(ctx, unit)
	}
	defer conn.Close()

	result := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, unit, RESTART_JOB_MODE, result); err != nil {
		return fmt.Errorf("failed to queue restart job: %w", err)
	}

	select {
	case res := <-result:
		if res != "done" {
			return fmt.Errorf("restart job for %s finished with %q", unit, res)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for restart job: %w", ctx.Err())
	}
}

func (c *ServiceController) restartViaSystemctl(ctx context.Context, unit string) error {
	cmd := exec.CommandContext(ctx, "systemctl", "restart", unit)
	if output, err := cmd.CombinedOutput(); err != nil {
		c.logger.Error("Restart: systemctl restart failed",
			zap.String("service", unit),
			zap.Error(err),
			zap.ByteString("output", output))
		return err
	}
	return nil
}

// touch creates path if needed and bumps its modification time.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}
