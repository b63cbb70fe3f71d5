package main

import "testing"

func TestLanguageNext(t *testing.T) {
	tests := []struct {
		from    Language
		next    Language
		font    string
		current string
		after   string
	}{
		{LANGUAGE_ENGLISH, LANGUAGE_JAPANESE, "fonts-japanese-gothic", "Japanese", "English"},
		{LANGUAGE_JAPANESE, LANGUAGE_ENGLISH, "DejaVuSansMono", "English", "Japanese"},
	}

	for _, tt := range tests {
		got := tt.from.Next()
		if got.Next != tt.next {
			t.Errorf("%s.Next().Next = %s, want %s", tt.from, got.Next, tt.next)
		}
		if got.Font != tt.font {
			t.Errorf("%s.Next().Font = %q, want %q", tt.from, got.Font, tt.font)
		}
		if got.CurrentLabel != tt.current || got.NextLabel != tt.after {
			t.Errorf("%s.Next() labels = (%q, %q), want (%q, %q)",
				tt.from, got.CurrentLabel, got.NextLabel, tt.current, tt.after)
		}
	}
}

func TestLanguageNextTwiceReturnsToStart(t *testing.T) {
	for _, l := range []Language{LANGUAGE_ENGLISH, LANGUAGE_JAPANESE} {
		back := l.Next().Next.Next()
		if back.Next != l || back.Font != l.Font() {
			t.Errorf("double toggle from %s ended at (%s, %q)", l, back.Next, back.Font)
		}
	}
}

func TestLanguageFromValue(t *testing.T) {
	tests := map[string]Language{
		"ja":    LANGUAGE_JAPANESE,
		"ja_JP": LANGUAGE_JAPANESE,
		"en":    LANGUAGE_ENGLISH,
		"":      LANGUAGE_ENGLISH,
		"de":    LANGUAGE_ENGLISH,
	}
	for value, want := range tests {
		if got := LanguageFromValue(value); got != want {
			t.Errorf("LanguageFromValue(%q) = %s, want %s", value, got, want)
		}
	}
}

func TestToggleReplacements(t *testing.T) {
	r := LANGUAGE_ENGLISH.Next().Replacements()
	if got := r[KEY_LANG]; got != "main.lang = \"ja\"\n" {
		t.Errorf("lang line = %q", got)
	}
	if got := r[KEY_FONT]; got != "ui.font.name = \"fonts-japanese-gothic\"\n" {
		t.Errorf("font line = %q", got)
	}
}
