package main

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Status is a point-in-time view of what the next tick would see.
type Status struct {
	Language      Language
	LanguageKnown bool
	Font          string
	Mode          OperatingMode
	DataPort      bool
	DataPortErr   error
}

func readStatus(settings *Settings, logger *zap.Logger) Status {
	store := NewLineStore(settings.ConfigPath, logger)

	var st Status
	if value, ok := store.ReadKey(KEY_LANG); ok {
		st.Language = LanguageFromValue(value)
		st.LanguageKnown = true
	}
	if font, ok := store.ReadKey(KEY_FONT); ok {
		st.Font = font
	}
	st.Mode = NewModeInspector(settings.LogPath, logger).CurrentMode()
	st.DataPort, st.DataPortErr = NewPowerProbe(settings.PowerSupplyPath).DataPortConnected()
	return st
}

func printStatus(w io.Writer, settings *Settings, logger *zap.Logger) error {
	st := readStatus(settings, logger)

	lang := st.Language.String()
	if !st.LanguageKnown {
		lang += " (default)"
	}
	font := st.Font
	if font == "" {
		font = "-"
	}
	port := fmt.Sprintf("%t", st.DataPort)
	if st.DataPortErr != nil {
		port = "unknown: " + st.DataPortErr.Error()
	}

	_, err := fmt.Fprintf(w,
		"config:    %s\nlanguage:  %s\nfont:      %s\nmode:      %s\ninterval:  %s\nservice:   %s\ndata port: %s\n",
		settings.ConfigPath, lang, font, st.Mode, settings.Interval, settings.Service, port)
	return err
}
