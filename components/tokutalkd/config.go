package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	// Configuration file paths
	DEBUG_CONFIG_FILE = "./tokutalkd.toml"
	CONFIG_FILE       = "/etc/pwnagotchi/tokutalkd.toml"

	ENV_PREFIX = "TOKUTALK"

	// Shortest interval the scheduler accepts
	MIN_INTERVAL = time.Second
)

// Settings is the daemon configuration
type Settings struct {
	Interval        time.Duration `mapstructure:"interval"`
	ConfigPath      string        `mapstructure:"config_path"`
	LogPath         string        `mapstructure:"log_path"`
	Service         string        `mapstructure:"service"`
	AutoFlag        string        `mapstructure:"auto_flag"`
	ManualFlag      string        `mapstructure:"manual_flag"`
	RestartTimeout  time.Duration `mapstructure:"restart_timeout"`
	RestartRetries  int           `mapstructure:"restart_retries"`
	DBusSignals     bool          `mapstructure:"dbus_signals"`
	PowerSupplyPath string        `mapstructure:"power_supply_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", 600*time.Second)
	v.SetDefault("config_path", "/etc/pwnagotchi/config.toml")
	v.SetDefault("log_path", "/etc/pwnagotchi/log/pwnagotchi.log")
	v.SetDefault("service", "pwnagotchi.service")
	v.SetDefault("auto_flag", "/root/.pwnagotchi-auto")
	v.SetDefault("manual_flag", "/root/.pwnagotchi-manual")
	v.SetDefault("restart_timeout", 60*time.Second)
	v.SetDefault("restart_retries", 2)
	v.SetDefault("dbus_signals", true)
	v.SetDefault("power_supply_path", USB_POWER_SUPPLY_PATH)
}

// LoadSettings reads the TOML settings file at fp, or the default location
// when fp is empty. A missing file leaves every setting at its default.
// TOKUTALK_* environment variables override the file.
func LoadSettings(v *viper.Viper, debug bool, fp string, logger *zap.Logger) (*Settings, error) {
	if fp == "" {
		fp = getConfigFile(debug)
	}

	setDefaults(v)
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_, err := os.Stat(fp)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("Settings file not found, using defaults", zap.String("file", fp))
	case err != nil:
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	default:
		logger.Info("Loading settings", zap.String("file", fp))
		v.SetConfigFile(fp)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if s.Interval < MIN_INTERVAL {
		return fmt.Errorf("interval must be at least %s, got %s", MIN_INTERVAL, s.Interval)
	}
	if s.ConfigPath == "" {
		return errors.New("config_path is not provided")
	}
	if s.Service == "" {
		return errors.New("service is not provided")
	}
	if s.RestartRetries < 0 {
		return fmt.Errorf("restart_retries must not be negative, got %d", s.RestartRetries)
	}
	return nil
}

// secondsToDurationHookFunc reads bare numbers given for a duration setting
// as seconds, so `interval = 600` and TOKUTALK_INTERVAL=600 both mean ten
// minutes. Strings with a unit are left to StringToTimeDurationHookFunc.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(time.Duration(0)) || f == t {
			return data, nil
		}

		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		case reflect.String:
			n, err := strconv.ParseInt(strings.TrimSpace(data.(string)), 10, 64)
			if err != nil {
				return data, nil
			}
			return time.Duration(n) * time.Second, nil
		default:
			return data, nil
		}
	}
}

// getConfigFile returns the appropriate settings file path
func getConfigFile(debug bool) string {
	if debug {
		return DEBUG_CONFIG_FILE
	}
	return CONFIG_FILE
}
