package main

import (
	"fmt"
	"strings"
)

const (
	// Recognized keys in the host config.toml
	KEY_LANG = "main.lang"
	KEY_FONT = "ui.font.name"

	FONT_ENGLISH  = "DejaVuSansMono"
	FONT_JAPANESE = "fonts-japanese-gothic"
)

type Language int

const (
	LANGUAGE_ENGLISH Language = iota
	LANGUAGE_JAPANESE
)

func (l Language) Code() string {
	if l == LANGUAGE_JAPANESE {
		return "ja"
	}
	return "en"
}

func (l Language) Font() string {
	if l == LANGUAGE_JAPANESE {
		return FONT_JAPANESE
	}
	return FONT_ENGLISH
}

func (l Language) String() string {
	if l == LANGUAGE_JAPANESE {
		return "Japanese"
	}
	return "English"
}

// LanguageFromValue maps a main.lang value to a Language. Anything that does
// not mention "ja" is English.
func LanguageFromValue(value string) Language {
	if strings.Contains(value, "ja") {
		return LANGUAGE_JAPANESE
	}
	return LANGUAGE_ENGLISH
}

// Toggle is the outcome of switching away from a language.
// CurrentLabel is the language the device ends up in, NextLabel the one the
// following switch will go to.
type Toggle struct {
	Next         Language
	Font         string
	CurrentLabel string
	NextLabel    string
}

// Next returns the toggle from l to the other language.
func (l Language) Next() Toggle {
	next := LANGUAGE_JAPANESE
	if l == LANGUAGE_JAPANESE {
		next = LANGUAGE_ENGLISH
	}
	return Toggle{
		Next:         next,
		Font:         next.Font(),
		CurrentLabel: next.String(),
		NextLabel:    l.String(),
	}
}

// Replacements returns the config lines that put the device into t.Next.
func (t Toggle) Replacements() map[string]string {
	return map[string]string{
		KEY_LANG: fmt.Sprintf("%s = \"%s\"\n", KEY_LANG, t.Next.Code()),
		KEY_FONT: fmt.Sprintf("%s = \"%s\"\n", KEY_FONT, t.Font),
	}
}
