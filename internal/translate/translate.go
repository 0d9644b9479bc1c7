// Package translate provides the translation collaborator used by the
// pipeline: a small Translator interface, concrete providers and a caching
// decorator.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderGoogle     = "google"
	ProviderGemini     = "gemini"
	ProviderDictionary = "dictionary"
	ProviderNone       = "none"
)

// AutoDetect asks the provider to detect the source language.
const AutoDetect = "auto"

// Translator translates a single piece of text into the configured target
// language. Implementations must be safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	SourceLang string
	TargetLang string

	GoogleAPIKey   string
	GeminiAPIKey   string
	GeminiModel    string
	DictionaryPath string

	Cache CacheConfig
}

// CacheConfig configures the caching decorator. With RedisAddr empty an
// in-process store bounded to Size entries is used.
type CacheConfig struct {
	Enabled       bool
	Size          int
	TTLSec        int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New builds the configured provider and wraps it in a cache when enabled.
func New(ctx context.Context, cfg Config) (Translator, error) {
	var (
		t   Translator
		err error
	)
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderGoogle
	}
	switch provider {
	case ProviderGoogle:
		t, err = NewGoogle(ctx, cfg.GoogleAPIKey, cfg.SourceLang, cfg.TargetLang)
	case ProviderGemini:
		t, err = NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.SourceLang, cfg.TargetLang)
	case ProviderDictionary:
		t, err = LoadDictionary(cfg.DictionaryPath)
	case ProviderNone:
		t = None{}
	default:
		return nil, fmt.Errorf("unknown translation provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s translator: %w", cfg.Provider, err)
	}

	if !cfg.Cache.Enabled {
		return t, nil
	}
	store, err := NewStore(ctx, cfg.Cache)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	slog.Info("Translation cache enabled", "redis", cfg.Cache.RedisAddr != "", "ttl_sec", cfg.Cache.TTLSec)
	return NewCached(t, store, provider, cfg.SourceLang, cfg.TargetLang), nil
}

// None is the provider that returns no translation, so only the recognized
// text is shown.
type None struct{}

// Translate implements Translator.
func (None) Translate(context.Context, string) (string, error) { return "", nil }

// Close implements Translator.
func (None) Close() error { return nil }
