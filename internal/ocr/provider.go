package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/article-matcher/internal/common"
)

// Provider is one OCR engine.
type Provider interface {
	Name() string
	// Available reports whether the engine can be used at all (binary installed, endpoint set).
	Available(ctx context.Context) bool
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Chain tries providers in priority order; the first success wins.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	ps := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &Chain{providers: ps, logger: logger}
}

// Providers returns the configured providers in priority order.
func (c *Chain) Providers() []Provider { return c.providers }

// Recognize returns normalized text and the name of the provider that produced it.
func (c *Chain) Recognize(ctx context.Context, image []byte) (string, string, error) {
	var errs []error
	tried := 0
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		if !p.Available(ctx) {
			c.logger.Debug("ocr.provider.unavailable", "provider", p.Name())
			continue
		}
		tried++
		start := time.Now()
		txt, err := p.Recognize(ctx, image)
		if err != nil {
			c.logger.Warn("ocr.provider.failed",
				"provider", p.Name(),
				"error", err,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		c.logger.Info("ocr.provider.ok",
			"provider", p.Name(),
			"chars", len(txt),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Normalize(txt), p.Name(), nil
	}
	if tried == 0 {
		return "", "", common.ErrNoOCRBackend
	}
	return "", "", errors.Join(errs...)
}
