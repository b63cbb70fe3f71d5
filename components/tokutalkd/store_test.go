package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

const sampleConfig = `main.name = "tokutalk"
main.lang = "en"
main.whitelist = [
  "home-network",
]
ui.font.name = "DejaVuSansMono"
ui.font.size_offset = 0
ui.display.enabled = true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLineStoreReadKey(t *testing.T) {
	store := NewLineStore(writeConfig(t, sampleConfig), zaptest.NewLogger(t))

	if v, ok := store.ReadKey(KEY_LANG); !ok || v != "en" {
		t.Errorf("ReadKey(main.lang) = (%q, %t), want (\"en\", true)", v, ok)
	}
	if v, ok := store.ReadKey(KEY_FONT); !ok || v != "DejaVuSansMono" {
		t.Errorf("ReadKey(ui.font.name) = (%q, %t)", v, ok)
	}
	if v, ok := store.ReadKey("ui.font.size_offset"); !ok || v != "0" {
		t.Errorf("ReadKey(ui.font.size_offset) = (%q, %t)", v, ok)
	}
	if _, ok := store.ReadKey("main.missing"); ok {
		t.Error("ReadKey on absent key reported found")
	}
}

func TestLineStoreReadKeyFirstMatchWins(t *testing.T) {
	store := NewLineStore(writeConfig(t, "main.lang = \"ja\"\nmain.lang = \"en\"\n"), zaptest.NewLogger(t))
	if v, _ := store.ReadKey(KEY_LANG); v != "ja" {
		t.Errorf("ReadKey = %q, want first occurrence \"ja\"", v)
	}
}

func TestLineStoreReadKeyUnquotedValue(t *testing.T) {
	store := NewLineStore(writeConfig(t, "main.lang = ja\n"), zaptest.NewLogger(t))
	if v, ok := store.ReadKey(KEY_LANG); !ok || v != "ja" {
		t.Errorf("ReadKey = (%q, %t), want raw value", v, ok)
	}
}

func TestLineStoreReadKeyMissingFile(t *testing.T) {
	store := NewLineStore(filepath.Join(t.TempDir(), "absent.toml"), zaptest.NewLogger(t))
	if v, ok := store.ReadKey(KEY_LANG); ok || v != "" {
		t.Errorf("ReadKey on missing file = (%q, %t)", v, ok)
	}
}

func TestLineStoreRewritePreservesOtherLines(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	store := NewLineStore(path, zaptest.NewLogger(t))

	if err := store.Rewrite(LANGUAGE_ENGLISH.Next().Replacements()); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	before := strings.SplitAfter(sampleConfig, "\n")
	after := strings.SplitAfter(string(data), "\n")
	if len(after) != len(before) {
		t.Fatalf("line count changed: %d -> %d", len(before), len(after))
	}

	changed := 0
	for i := range before {
		if before[i] == after[i] {
			continue
		}
		changed++
		switch {
		case strings.HasPrefix(before[i], KEY_LANG):
			if after[i] != "main.lang = \"ja\"\n" {
				t.Errorf("line %d = %q", i, after[i])
			}
		case strings.HasPrefix(before[i], KEY_FONT):
			if after[i] != "ui.font.name = \"fonts-japanese-gothic\"\n" {
				t.Errorf("line %d = %q", i, after[i])
			}
		default:
			t.Errorf("unrelated line %d changed: %q -> %q", i, before[i], after[i])
		}
	}
	if changed != 2 {
		t.Errorf("changed %d lines, want 2", changed)
	}
}

func TestLineStoreRewriteKeepsModeAndLineEndings(t *testing.T) {
	content := "# header\r\nmain.lang='en'\r\nui.font.name = \"x\"\nlast = 1"
	path := writeConfig(t, content)
	store := NewLineStore(path, zaptest.NewLogger(t))

	if err := store.Rewrite(LANGUAGE_ENGLISH.Next().Replacements()); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	data, _ := os.ReadFile(path)
	want := "# header\r\nmain.lang = \"ja\"\nui.font.name = \"fonts-japanese-gothic\"\nlast = 1"
	if string(data) != want {
		t.Errorf("rewritten = %q, want %q", data, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0640 {
		t.Errorf("mode = %v, want 0640", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestLineStoreRewriteIsIdempotent(t *testing.T) {
	path := writeConfig(t, sampleConfig)
	store := NewLineStore(path, zaptest.NewLogger(t))
	replacements := LANGUAGE_ENGLISH.Next().Replacements()

	if err := store.Rewrite(replacements); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(path)
	if err := store.Rewrite(replacements); err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Errorf("second rewrite changed the file:\n%s\n---\n%s", first, second)
	}
}

func TestLineStoreRewriteMissingFile(t *testing.T) {
	store := NewLineStore(filepath.Join(t.TempDir(), "absent.toml"), zaptest.NewLogger(t))
	err := store.Rewrite(LANGUAGE_ENGLISH.Next().Replacements())
	if !errors.Is(err, ErrConfigUnreadable) {
		t.Errorf("Rewrite on missing file = %v, want ErrConfigUnreadable", err)
	}
}
