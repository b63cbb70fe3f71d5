package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zaptest"
)

func TestLoadSettingsDefaults(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "absent.toml")
	s, err := LoadSettings(viper.New(), false, fp, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if s.Interval != 600*time.Second {
		t.Errorf("Interval = %s", s.Interval)
	}
	if s.ConfigPath != "/etc/pwnagotchi/config.toml" || s.LogPath != "/etc/pwnagotchi/log/pwnagotchi.log" {
		t.Errorf("paths = %q, %q", s.ConfigPath, s.LogPath)
	}
	if s.Service != "pwnagotchi.service" {
		t.Errorf("Service = %q", s.Service)
	}
	if s.AutoFlag != "/root/.pwnagotchi-auto" || s.ManualFlag != "/root/.pwnagotchi-manual" {
		t.Errorf("flags = %q, %q", s.AutoFlag, s.ManualFlag)
	}
	if !s.DBusSignals || s.RestartRetries != 2 || s.RestartTimeout != time.Minute {
		t.Errorf("restart settings = %+v", s)
	}
}

func TestLoadSettingsFromFile(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "tokutalkd.toml")
	content := strings.Join([]string{
		`interval = "15m"`,
		`config_path = "/tmp/config.toml"`,
		`service = "pwnagotchi"`,
		`restart_retries = 0`,
		`dbus_signals = false`,
	}, "\n")
	if err := os.WriteFile(fp, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(viper.New(), false, fp, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Interval != 15*time.Minute {
		t.Errorf("Interval = %s", s.Interval)
	}
	if s.ConfigPath != "/tmp/config.toml" || s.Service != "pwnagotchi" {
		t.Errorf("settings = %+v", s)
	}
	if s.RestartRetries != 0 || s.DBusSignals {
		t.Errorf("settings = %+v", s)
	}
	// untouched keys keep their defaults
	if s.LogPath != "/etc/pwnagotchi/log/pwnagotchi.log" {
		t.Errorf("LogPath = %q", s.LogPath)
	}
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	t.Setenv("TOKUTALK_INTERVAL", "30s")
	t.Setenv("TOKUTALK_SERVICE", "custom.service")

	s, err := LoadSettings(viper.New(), false, filepath.Join(t.TempDir(), "absent.toml"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Interval != 30*time.Second || s.Service != "custom.service" {
		t.Errorf("settings = %+v", s)
	}
}

func TestLoadSettingsBareNumbersAreSeconds(t *testing.T) {
	tests := []struct {
		content string
		env     string
		want    time.Duration
	}{
		{content: "interval = 600\n", want: 600 * time.Second},
		{content: "interval = 90\nrestart_timeout = 15\n", want: 90 * time.Second},
		{content: "interval = 2.5\n", want: 2500 * time.Millisecond},
		{env: "45", want: 45 * time.Second},
	}
	for _, tt := range tests {
		fp := filepath.Join(t.TempDir(), "tokutalkd.toml")
		if tt.content != "" {
			if err := os.WriteFile(fp, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
		}
		if tt.env != "" {
			t.Setenv("TOKUTALK_INTERVAL", tt.env)
		}

		s, err := LoadSettings(viper.New(), false, fp, zaptest.NewLogger(t))
		if err != nil {
			t.Fatalf("LoadSettings(%q, env %q): %v", tt.content, tt.env, err)
		}
		if s.Interval != tt.want {
			t.Errorf("LoadSettings(%q, env %q).Interval = %s, want %s", tt.content, tt.env, s.Interval, tt.want)
		}
	}

	fp := filepath.Join(t.TempDir(), "tokutalkd.toml")
	if err := os.WriteFile(fp, []byte("restart_timeout = 15\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSettings(viper.New(), false, fp, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.RestartTimeout != 15*time.Second {
		t.Errorf("RestartTimeout = %s, want 15s", s.RestartTimeout)
	}
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	tests := []string{
		`interval = "0s"`,
		`interval = "500ms"`,
		`interval = "600ns"`,
		`interval = 0`,
		`config_path = ""`,
		`service = ""`,
		`restart_retries = -1`,
		`interval = [`,
	}
	for _, content := range tests {
		fp := filepath.Join(t.TempDir(), "tokutalkd.toml")
		if err := os.WriteFile(fp, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSettings(viper.New(), false, fp, zaptest.NewLogger(t)); err == nil {
			t.Errorf("LoadSettings(%q) succeeded", content)
		}
	}
}

func TestRootCommandFlagsOverrideSettings(t *testing.T) {
	v := viper.New()
	root := newRootCmd()
	if err := bindFlags(v, root.PersistentFlags()); err != nil {
		t.Fatal(err)
	}
	if err := root.PersistentFlags().Parse([]string{"--interval=2m", "--config-path=/srv/config.toml"}); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(v, false, filepath.Join(t.TempDir(), "absent.toml"), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Interval != 2*time.Minute || s.ConfigPath != "/srv/config.toml" {
		t.Errorf("settings = %+v", s)
	}
}
