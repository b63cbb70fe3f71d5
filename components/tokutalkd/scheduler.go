package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfigStore is the part of LineStore the scheduler depends on.
type ConfigStore interface {
	ReadKey(key string) (string, bool)
	Rewrite(replacements map[string]string) error
}

type ModeSource interface {
	CurrentMode() OperatingMode
}

type PowerSource interface {
	DataPortConnected() (bool, error)
}

// SchedulerState is owned by the scheduler goroutine and mutated by nothing else.
type SchedulerState struct {
	Current  Language
	Interval time.Duration
}

// TickResult is what a single switch produced.
type TickResult struct {
	ID         string
	Toggle     Toggle
	Mode       OperatingMode
	WriteErr   error
	RestartErr error // nil when the restart succeeded or was skipped
	Panic      interface{}
}

func (r TickResult) OK() bool {
	return r.WriteErr == nil && r.RestartErr == nil && r.Panic == nil
}

// Scheduler flips the device language every interval. Every tick is followed
// by a new timer, whatever happened during the tick.
type Scheduler struct {
	state      SchedulerState
	store      ConfigStore
	modes      ModeSource
	controller SystemController
	reporter   SwitchReporter
	power      PowerSource
	logger     *zap.Logger
	newTimer   func(d time.Duration) *time.Timer
	done       chan struct{}
}

func NewScheduler(
	interval time.Duration,
	store ConfigStore,
	modes ModeSource,
	controller SystemController,
	logger *zap.Logger) *Scheduler {
	return &Scheduler{
		state:      SchedulerState{Interval: interval},
		store:      store,
		modes:      modes,
		controller: controller,
		logger:     logger,
		newTimer:   time.NewTimer,
		done:       make(chan struct{}),
	}
}

// WithReporter attaches a receiver for per-tick switch events.
func (s *Scheduler) WithReporter(reporter SwitchReporter) *Scheduler {
	s.reporter = reporter
	return s
}

// WithPower attaches the data-port probe whose reading is logged each tick.
func (s *Scheduler) WithPower(power PowerSource) *Scheduler {
	s.power = power
	return s
}

func (s *Scheduler) State() SchedulerState {
	return s.state
}

// Load reads the current language from the config file. Anything other than
// a Japanese main.lang, including an unreadable file, means English.
func (s *Scheduler) Load() {
	s.state.Current = LANGUAGE_ENGLISH
	if value, ok := s.store.ReadKey(KEY_LANG); ok {
		s.state.Current = LanguageFromValue(value)
	}

	s.logger.Info("Scheduler: Loaded",
		zap.String("language", s.state.Current.String()),
		zap.Duration("interval", s.state.Interval))
}

// Start loads the current language and switches every interval until ctx is
// cancelled or Stop is called. A running tick is never interrupted.
func (s *Scheduler) Start(ctx context.Context) {
	s.Load()

	for {
		timer := s.newTimer(s.state.Interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Scheduler: Stopping due to context cancellation")
			return
		case <-s.done:
			timer.Stop()
			s.logger.Info("Scheduler: Stopped")
			return
		case <-timer.C:
			// shutdown waits for the tick instead of cutting the restart short
			s.tick(context.WithoutCancel(ctx))
		}
	}
}

// Stop cancels the pending timer. Safe to call more than once.
func (s *Scheduler) Stop() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
}

// SwitchNow loads the current language and runs a single tick.
func (s *Scheduler) SwitchNow(ctx context.Context) TickResult {
	s.Load()
	return s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) (result TickResult) {
	result.ID = uuid.NewString()
	result.Mode = MODE_AUTO
	result.Toggle = s.state.Current.Next()
	logger := s.logger.With(zap.String("tick", result.ID))

	defer func() {
		if r := recover(); r != nil {
			result.Panic = r
			logger.Error("Scheduler: Switch panicked", zap.Any("panic", r))
		}

		s.state.Current = result.Toggle.Next
		logger.Info("Scheduler: Next language", zap.String("next", result.Toggle.NextLabel))

		if s.reporter != nil {
			s.reporter.ReportSwitch(SwitchEvent{
				Language: result.Toggle.Next,
				Font:     result.Toggle.Font,
				Mode:     result.Mode,
				OK:       result.OK(),
			})
		}
	}()

	result.Mode = s.modes.CurrentMode()
	logger.Info("Scheduler: Current mode before switch", zap.String("mode", result.Mode.String()))
	s.logPower(logger)

	if err := s.store.Rewrite(result.Toggle.Replacements()); err != nil {
		result.WriteErr = err
		logger.Error("Scheduler: Failed to switch language and font", zap.Error(err))
		s.logDesync(logger, result.Toggle.Next)
		return result
	}

	logger.Info("Scheduler: Switched",
		zap.String("lang", result.Toggle.Next.Code()),
		zap.String("font", result.Toggle.Font))
	logger.Info(fmt.Sprintf("Scheduler: Now in %s", result.Toggle.CurrentLabel))

	if err := s.controller.ApplyModeAndRestart(ctx, result.Mode); err != nil {
		result.RestartErr = err
		logger.Error("Scheduler: Failed to restart service", zap.Error(err))
	}

	return result
}

func (s *Scheduler) logPower(logger *zap.Logger) {
	if s.power == nil {
		return
	}
	connected, err := s.power.DataPortConnected()
	if err != nil {
		logger.Warn("Scheduler: Failed to detect data port connection", zap.Error(err))
		return
	}
	logger.Debug("Scheduler: Data port", zap.Bool("connected", connected))
}

// logDesync records what is on disk after a failed rewrite, since the
// in-memory language flips regardless.
func (s *Scheduler) logDesync(logger *zap.Logger, memory Language) {
	onDisk := "unknown"
	if value, ok := s.store.ReadKey(KEY_LANG); ok {
		onDisk = LanguageFromValue(value).String()
	}
	logger.Warn("Scheduler: Language in memory may differ from config file",
		zap.String("memory", memory.String()),
		zap.String("disk", onDisk))
}
