package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Zero(t, cfg.Server.AdminPort)
	assert.Empty(t, cfg.Server.WebSocketPath)
	assert.False(t, cfg.Server.RateLimit.Enabled)

	assert.Equal(t, "remote", cfg.OCR.Engine)
	assert.Equal(t, "es", cfg.OCR.SourceLang)
	assert.True(t, cfg.OCR.UseGPU)
	assert.Equal(t, 1, cfg.OCR.BatchSize)
	assert.Equal(t, 4, cfg.OCR.Workers)

	assert.Equal(t, "google", cfg.Translate.Provider)
	assert.Equal(t, "auto", cfg.Translate.SourceLang)
	assert.Equal(t, "en", cfg.Translate.TargetLang)

	assert.InDelta(t, 0.2, cfg.Pipeline.MinConfidence, 1e-9)
	assert.False(t, cfg.Pipeline.MergeXOverlapping)
	assert.Equal(t, 20, cfg.Pipeline.MergeMaxYDiff)

	assert.Equal(t, "report.txt", cfg.Report.FilePath)
	assert.True(t, cfg.Report.Stdout)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"admin port out of range", func(c *Config) { c.Server.AdminPort = -1 }, "invalid admin port"},
		{"admin port equals server port", func(c *Config) { c.Server.AdminPort = c.Server.Port }, "must differ"},
		{"upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"queue timeout", func(c *Config) { c.Server.QueueTimeoutSec = -5 }, "queue timeout"},
		{"websocket path", func(c *Config) { c.Server.WebSocketPath = "ws" }, "websocket path"},
		{"engine", func(c *Config) { c.OCR.Engine = "paddle" }, "invalid OCR engine"},
		{"ocr language", func(c *Config) { c.OCR.SourceLang = "not a language" }, "ocr.source_lang"},
		{"batch size", func(c *Config) { c.OCR.BatchSize = 0 }, "batch size"},
		{"workers", func(c *Config) { c.OCR.Workers = 0 }, "OCR workers"},
		{"max image size", func(c *Config) { c.OCR.MaxImageSize = -1 }, "max image size"},
		{"provider", func(c *Config) { c.Translate.Provider = "deepl" }, "translation provider"},
		{"source language", func(c *Config) { c.Translate.SourceLang = "!!" }, "translate.source_lang"},
		{"target language", func(c *Config) { c.Translate.TargetLang = "" }, "translate.target_lang"},
		{"confidence", func(c *Config) { c.Pipeline.MinConfidence = 1.2 }, "pipeline.min_confidence"},
		{"merge y diff", func(c *Config) { c.Pipeline.MergeMaxYDiff = -1 }, "merge max y diff"},
		{"translate workers", func(c *Config) { c.Pipeline.TranslateWorkers = 0 }, "translate workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AcceptsAlternatives(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.AdminPort = 9090
	cfg.Server.WebSocketPath = "/ws"
	cfg.OCR.Engine = "fixture"
	cfg.OCR.SourceLang = "ja"
	cfg.Translate.Provider = "none"
	cfg.Translate.SourceLang = "ja"
	cfg.Translate.TargetLang = "pt-BR"
	cfg.Pipeline.MergeMaxYDiff = 0

	assert.NoError(t, cfg.Validate())
}

func TestToComponentConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OCR.MaxImageSize = 1920
	cfg.OCR.Fixture.Path = "fixture.yaml"
	cfg.Translate.Cache.Enabled = true
	cfg.Translate.Cache.RedisAddr = "localhost:6379"
	cfg.Pipeline.MergeXOverlapping = true
	cfg.Pipeline.TranslationFallback = true
	cfg.Report.PostgresDSN = "postgres://localhost/subtext"

	o := cfg.ToOCRConfig()
	assert.Equal(t, "remote", o.Engine)
	assert.Equal(t, []string{"es", "en"}, o.Languages)
	assert.True(t, o.UseGPU)
	assert.Equal(t, 1, o.BatchSize)
	assert.Equal(t, 4, o.Workers)
	assert.Equal(t, 1920, o.MaxImageSize)
	assert.Equal(t, "fixture.yaml", o.FixturePath)

	tr := cfg.ToTranslateConfig()
	assert.Equal(t, "google", tr.Provider)
	assert.Equal(t, "en", tr.TargetLang)
	assert.True(t, tr.Cache.Enabled)
	assert.Equal(t, "localhost:6379", tr.Cache.RedisAddr)

	p := cfg.ToPipelineConfig()
	assert.True(t, p.Merge.Enabled)
	assert.Equal(t, 20, p.Merge.MaxYDiff)
	assert.InDelta(t, 0.2, p.MinConfidence, 1e-9)
	assert.True(t, p.TranslationFallback)

	r := cfg.ToReportConfig()
	assert.Equal(t, "report.txt", r.FilePath)
	assert.True(t, r.Stdout)
	assert.Equal(t, "postgres://localhost/subtext", r.PostgresDSN)

	srv := cfg.ToServerConfig()
	assert.Equal(t, 8888, srv.Port)
	assert.Equal(t, int64(20), srv.MaxUploadMB)
	assert.Equal(t, 30, srv.QueueTimeoutSec)
	assert.Equal(t, 4, srv.Workers)
	assert.False(t, srv.RateLimit.Enabled)
	assert.Equal(t, 60, srv.RateLimit.RequestsPerMinute)
}
