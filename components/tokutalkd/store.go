package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
)

const (
	// Longest config line ReadKey will accept
	CONFIG_MAX_LINE_SIZE = 1024 * 1024
)

// LineStore reads and rewrites the host's line-oriented config file.
// Only lines starting with a recognized key are ever touched; everything else
// is written back byte for byte.
type LineStore struct {
	path   string
	logger *zap.Logger
}

func NewLineStore(path string, logger *zap.Logger) *LineStore {
	return &LineStore{
		path:   path,
		logger: logger,
	}
}

func (s *LineStore) Path() string {
	return s.path
}

// ReadKey returns the value of the first line starting with key.
// A missing file, a missing key or a read error all yield ("", false).
func (s *LineStore) ReadKey(key string) (string, bool) {
	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Config: File not found", zap.String("path", s.path))
		return "", false
	} else if err != nil {
		s.logger.Error("Config: Failed to open file", zap.String("path", s.path), zap.Error(err))
		return "", false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), CONFIG_MAX_LINE_SIZE)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, key) {
			return decodeValue(line[len(key):]), true
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("Config: Failed to read file",
			zap.String("path", s.path),
			zap.String("key", key),
			zap.Error(err))
		return "", false
	}

	s.logger.Warn("Config: Key not found", zap.String("path", s.path), zap.String("key", key))
	return "", false
}

// decodeValue turns the remainder of a `key = value` line into its value.
// TOML strings are unquoted; anything TOML cannot parse is returned trimmed.
func decodeValue(rest string) string {
	_, raw, found := strings.Cut(rest, "=")
	if !found {
		return strings.TrimSpace(rest)
	}

	var doc map[string]interface{}
	if _, err := toml.Decode("v = "+raw, &doc); err == nil {
		switch v := doc["v"].(type) {
		case string:
			return v
		case nil:
		default:
			return fmt.Sprint(v)
		}
	}
	return strings.Trim(strings.TrimSpace(raw), `"'`)
}

// Rewrite replaces every line starting with a key of replacements by the
// corresponding text, in place. The file is swapped atomically.
func (s *LineStore) Rewrite(replacements map[string]string) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
	}

	lines := splitLines(data)
	replaced := 0
	for i, line := range lines {
		if key := matchKey(line, replacements); key != "" {
			lines[i] = []byte(replacements[key])
			replaced++
		}
	}

	if err := writeFileAtomic(s.path, bytes.Join(lines, nil), info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigUnwritable, err)
	}

	s.logger.Debug("Config: Rewritten",
		zap.String("path", s.path),
		zap.Int("lines", len(lines)),
		zap.Int("replaced", replaced))
	return nil
}

// splitLines splits data after every newline, keeping the terminators so the
// file can be reassembled verbatim. A final line without newline is kept as is.
func splitLines(data []byte) [][]byte {
	lines := bytes.SplitAfter(data, []byte("\n"))
	if len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// matchKey returns the longest replacement key that prefixes line.
func matchKey(line []byte, replacements map[string]string) string {
	match := ""
	for key := range replacements {
		if len(key) > len(match) && bytes.HasPrefix(line, []byte(key)) {
			match = key
		}
	}
	return match
}

// writeFileAtomic writes to a temporary file next to path, then renames it
// over path.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to finalize config file: %w", err)
	}
	return nil
}
