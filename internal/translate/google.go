package translate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"
)

// Google translates with the Cloud Translation v2 API.
type Google struct {
	svc    *translatev2.Service
	source string
	target string
}

// NewGoogle creates a Cloud Translation client authenticated with apiKey.
func NewGoogle(ctx context.Context, apiKey, source, target string) (*Google, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("google translate api key is empty")
	}
	svc, err := translatev2.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create translate service: %w", err)
	}
	return &Google{svc: svc, source: source, target: target}, nil
}

// Translate implements Translator.
func (g *Google) Translate(ctx context.Context, text string) (string, error) {
	call := g.svc.Translations.List([]string{text}, g.target).Format("text").Context(ctx)
	if g.source != "" && g.source != AutoDetect {
		call = call.Source(g.source)
	}
	resp, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", nil
	}
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}

// Close implements Translator.
func (g *Google) Close() error { return nil }
