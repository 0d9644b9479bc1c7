package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini translates by prompting a Gemini model. The client is created once
// and shared by all requests.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini dials the Gemini API.
func NewGemini(ctx context.Context, apiKey, model, source, target string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultGeminiModel
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	m := cl.GenerativeModel(model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "text/plain",
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(source, target))},
	}
	return &Gemini{client: cl, model: m}, nil
}

// Translate implements Translator.
func (g *Gemini) Translate(ctx context.Context, text string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("gemini translate: %w", err)
	}
	return strings.TrimSpace(firstText(resp)), nil
}

// Close implements Translator.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func systemPrompt(source, target string) string {
	from := "the detected source language"
	if source != "" && source != AutoDetect {
		from = "language " + source
	}
	return fmt.Sprintf("Translate the user's text from %s into language %s. "+
		"The text was recognized from a screenshot and may contain OCR noise. "+
		"Reply with the translation only, without quotes, notes or alternatives.", from, target)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
