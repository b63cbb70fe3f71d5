package main

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
)

const (
	// Used when the unit sets no WatchdogSec
	SYSTEMD_NOTIFY_INTERVAL = 10 * time.Second
)

// SystemdWatchdog handles the systemd readiness and watchdog notifications
type SystemdWatchdog struct {
	logger   *zap.Logger
	interval time.Duration
	enabled  bool
}

// NewSystemdWatchdog pings at half the unit's WatchdogSec. Without a
// configured watchdog, Start returns immediately.
func NewSystemdWatchdog(logger *zap.Logger) *SystemdWatchdog {
	sw := &SystemdWatchdog{
		logger:   logger,
		interval: SYSTEMD_NOTIFY_INTERVAL,
	}

	timeout, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("Failed to read systemd watchdog settings", zap.Error(err))
	} else if timeout > 0 {
		sw.enabled = true
		sw.interval = timeout / 2
	}
	return sw
}

// NotifyReady notifies systemd that the service is ready
func (sw *SystemdWatchdog) NotifyReady() error {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		sw.logger.Error("Failed to notify systemd ready", zap.Error(err))
		return err
	}
	if !sent {
		sw.logger.Warn("Failed to notify systemd, notification not supported. It could because NOTIFY_SOCKET is unset")
		return nil
	}
	sw.logger.Info("Notified systemd that we're ready")
	return nil
}

// NotifyStopping tells systemd that shutdown has begun
func (sw *SystemdWatchdog) NotifyStopping() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		sw.logger.Warn("Failed to notify systemd stopping", zap.Error(err))
	}
}

// Start periodically sends watchdog keep-alive pings to systemd
func (sw *SystemdWatchdog) Start(ctx context.Context) {
	if !sw.enabled {
		sw.logger.Info("Systemd watchdog not enabled for this unit")
		return
	}

	sw.logger.Info("Starting systemd watchdog", zap.Duration("interval", sw.interval))
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("Systemd watchdog goroutine shutting down")
			return
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				sw.logger.Error("Failed to send watchdog ping to systemd", zap.Error(err))
			}
		}
	}
}
