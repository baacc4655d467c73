package prefs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTheme is returned for theme names other than light and dark.
var ErrInvalidTheme = errors.New("invalid theme")

// Theme is the colour scheme of the page.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// EditorTheme is the editor colour theme matching t.
func (t Theme) EditorTheme() string {
	if t == ThemeDark {
		return "ace/theme/tomorrow_night"
	}
	return "ace/theme/clouds"
}

func (t Theme) String() string {
	return string(t)
}
