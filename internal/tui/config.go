package tui

import (
	"context"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/engine"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/Veraticus/receipt-review/internal/tui/themes"
)

// Loader produces the extraction results for one batch.
type Loader func(ctx context.Context) ([]model.ExtractionResult, error)

// BatchSaver persists a reviewed batch.
type BatchSaver interface {
	SaveBatch(ctx context.Context, session *batch.Session) (*engine.SaveSummary, error)
}

// Config holds TUI configuration.
type Config struct {
	Theme  themes.Theme
	Saver  BatchSaver
	Loader Loader
	Width  int
	Height int
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:  themes.Default,
		Width:  80,
		Height: 24,
	}
}

// WithSaver sets the collaborator that persists the batch.
func WithSaver(saver BatchSaver) Option {
	return func(c *Config) {
		c.Saver = saver
	}
}

// WithLoader sets the source of extraction results.
func WithLoader(loader Loader) Option {
	return func(c *Config) {
		c.Loader = loader
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}
