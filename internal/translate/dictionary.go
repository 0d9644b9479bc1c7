package translate

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DictionaryFile is the YAML phrase table read by LoadDictionary:
//
//	phrases:
//	  Hola: Hello
//	  Mundo: World
type DictionaryFile struct {
	Phrases map[string]string `yaml:"phrases"`
}

// Dictionary translates by phrase lookup. Lookups try the exact text, then a
// case-insensitive match; unknown text is returned unchanged, as online
// translators do for untranslatable input.
type Dictionary struct {
	exact  map[string]string
	folded map[string]string
}

// NewDictionary builds a dictionary from phrase pairs.
func NewDictionary(phrases map[string]string) *Dictionary {
	d := &Dictionary{
		exact:  make(map[string]string, len(phrases)),
		folded: make(map[string]string, len(phrases)),
	}
	for k, v := range phrases {
		k = strings.TrimSpace(k)
		d.exact[k] = v
		d.folded[strings.ToLower(k)] = v
	}
	return d
}

// LoadDictionary reads a phrase table from path.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return nil, fmt.Errorf("dictionary path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	var f DictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	return NewDictionary(f.Phrases), nil
}

// Translate implements Translator.
func (d *Dictionary) Translate(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := strings.TrimSpace(text)
	if v, ok := d.exact[key]; ok {
		return v, nil
	}
	if v, ok := d.folded[strings.ToLower(key)]; ok {
		return v, nil
	}
	return text, nil
}

// Close implements Translator.
func (d *Dictionary) Close() error { return nil }
