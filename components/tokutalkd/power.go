package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

const (
	USB_POWER_SUPPLY_PATH = "/sys/class/power_supply/usb/online"
)

// PowerProbe reports whether the device is plugged into its USB data port.
// It is telemetry only and feeds no decision.
type PowerProbe struct {
	path string
}

func NewPowerProbe(path string) *PowerProbe {
	return &PowerProbe{path: path}
}

// DataPortConnected reads the power supply's online flag. A missing sysfs
// node means not connected.
func (p *PowerProbe) DataPortConnected() (bool, error) {
	if p.path == "" {
		return false, nil
	}

	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", p.path, err)
	}

	return strings.TrimSpace(string(data)) == "1", nil
}
