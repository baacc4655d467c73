package prefs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Registry validates stored mode ids.
type Registry interface {
	Has(id string) bool
}

// Preferences reads and writes typed preferences on top of a Store. Missing
// or unusable values fall back to the defaults: the default mode and the
// light theme.
type Preferences struct {
	store       Store
	registry    Registry
	defaultMode string
	logger      *zap.Logger
}

// New creates preferences backed by store. defaultMode is returned for
// clients without a saved mode.
func New(store Store, registry Registry, defaultMode string, logger *zap.Logger) *Preferences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preferences{
		store:       store,
		registry:    registry,
		defaultMode: defaultMode,
		logger:      logger,
	}
}

// Mode returns the mode saved for client.
func (p *Preferences) Mode(ctx context.Context, client string) string {
	mode, err := p.store.Get(ctx, client, KeyMode)
	if err != nil {
		p.logFailure(err, client, KeyMode)
		return p.defaultMode
	}
	if !p.registry.Has(mode) {
		p.logger.Debug("discarding saved mode", zap.String("client", client), zap.String("mode", mode))
		return p.defaultMode
	}
	return mode
}

// SetMode saves the mode of client.
func (p *Preferences) SetMode(ctx context.Context, client, mode string) error {
	if !p.registry.Has(mode) {
		return fmt.Errorf("cannot save mode %q: not registered", mode)
	}
	return p.store.Set(ctx, client, KeyMode, mode)
}

// Theme returns the theme saved for client.
func (p *Preferences) Theme(ctx context.Context, client string) Theme {
	value, err := p.store.Get(ctx, client, KeyTheme)
	if err != nil {
		p.logFailure(err, client, KeyTheme)
		return ThemeLight
	}
	theme, err := ParseTheme(value)
	if err != nil {
		return ThemeLight
	}
	return theme
}

// SetTheme saves the theme of client.
func (p *Preferences) SetTheme(ctx context.Context, client string, theme Theme) error {
	if _, err := ParseTheme(string(theme)); err != nil {
		return err
	}
	return p.store.Set(ctx, client, KeyTheme, string(theme))
}

// ToggleTheme switches the theme of client and returns the new one.
func (p *Preferences) ToggleTheme(ctx context.Context, client string) (Theme, error) {
	theme := p.Theme(ctx, client).Toggle()
	if err := p.SetTheme(ctx, client, theme); err != nil {
		return "", err
	}
	return theme, nil
}

func (p *Preferences) logFailure(err error, client, key string) {
	if errors.Is(err, ErrNotFound) {
		return
	}
	p.logger.Warn("failed to read preference",
		zap.String("client", client),
		zap.String("key", key),
		zap.Error(err),
	)
}
