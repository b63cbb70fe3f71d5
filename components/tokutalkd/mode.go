package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"
)

const (
	MARKER_AUTO   = "entering auto mode"
	MARKER_MANUAL = "entering manual mode"

	// Size of each backward read through the host log
	MODE_SCAN_BLOCK_SIZE = 64 * 1024
)

type OperatingMode string

const (
	MODE_AUTO    OperatingMode = "AUTO"
	MODE_MANUAL  OperatingMode = "MANU"
	MODE_UNKNOWN OperatingMode = "UNKNOWN"
)

func (m OperatingMode) String() string {
	return string(m)
}

// ModeInspector infers the host's operating mode from the most recent mode
// marker in its log.
type ModeInspector struct {
	path      string
	blockSize int
	logger    *zap.Logger
}

func NewModeInspector(path string, logger *zap.Logger) *ModeInspector {
	return &ModeInspector{
		path:      path,
		blockSize: MODE_SCAN_BLOCK_SIZE,
		logger:    logger,
	}
}

// CurrentMode returns the mode named by the last marker in the log, or
// MODE_AUTO when there is none. Without a configured log it returns
// MODE_UNKNOWN.
func (m *ModeInspector) CurrentMode() OperatingMode {
	if m.path == "" {
		return MODE_UNKNOWN
	}

	file, err := os.Open(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("Mode: Log file not found, defaulting to AUTO", zap.String("path", m.path))
		return MODE_AUTO
	} else if err != nil {
		m.logger.Error("Mode: Failed to open log file", zap.String("path", m.path), zap.Error(err))
		return MODE_AUTO
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		m.logger.Error("Mode: Failed to stat log file", zap.String("path", m.path), zap.Error(err))
		return MODE_AUTO
	}

	mode, found, err := lastMarker(file, info.Size(), m.blockSize)
	if err != nil {
		m.logger.Error("Mode: Failed to read log file", zap.String("path", m.path), zap.Error(err))
		return MODE_AUTO
	}
	if !found {
		m.logger.Warn("Mode: No mode marker in log file, defaulting to AUTO", zap.String("path", m.path))
		return MODE_AUTO
	}
	return mode
}

// lastMarker walks r backwards block by block and reports the mode of the
// last line carrying a marker. Lines are only matched once complete.
func lastMarker(r io.ReaderAt, size int64, blockSize int) (OperatingMode, bool, error) {
	if blockSize <= 0 {
		blockSize = MODE_SCAN_BLOCK_SIZE
	}

	// carry holds the head of the earliest line seen so far, whose start lies
	// in a block not read yet
	var carry []byte
	offset := size
	for offset > 0 {
		n := int64(blockSize)
		if n > offset {
			n = offset
		}
		offset -= n

		buf := make([]byte, n, n+int64(len(carry)))
		if _, err := r.ReadAt(buf, offset); err != nil && err != io.EOF {
			return MODE_AUTO, false, fmt.Errorf("read at %d: %w", offset, err)
		}
		buf = append(buf, carry...)

		start := 0
		if offset > 0 {
			i := bytes.IndexByte(buf, '\n')
			if i < 0 {
				carry = buf
				continue
			}
			start = i + 1
			carry = buf[:start]
		}

		lines := bytes.Split(buf[start:], []byte("\n"))
		for j := len(lines) - 1; j >= 0; j-- {
			if mode, ok := matchMarker(lines[j]); ok {
				return mode, true, nil
			}
		}
	}
	return MODE_AUTO, false, nil
}

func matchMarker(line []byte) (OperatingMode, bool) {
	if bytes.Contains(line, []byte(MARKER_AUTO)) {
		return MODE_AUTO, true
	}
	if bytes.Contains(line, []byte(MARKER_MANUAL)) {
		return MODE_MANUAL, true
	}
	return "", false
}
