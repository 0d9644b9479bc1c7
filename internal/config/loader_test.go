package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subtext.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	require.NotNil(t, loader)
	assert.Same(t, viper.GetViper(), loader.GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := newTestLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subtext.yaml"), []byte("server:\n  port: 9000\n"), 0o644))

	loader := newTestLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Contains(t, loader.GetConfigFileUsed(), "subtext.yaml")
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
server:
  port: 9090
  admin_port: 9091
  websocket_path: /ws
ocr:
  engine: fixture
  source_lang: ja
  use_gpu: false
  fixture:
    path: testdata/fixture.yaml
translate:
  provider: dictionary
  target_lang: de
  dictionary:
    path: testdata/dict.yaml
pipeline:
  merge_x_overlapping: true
  merge_max_y_diff: 12
report:
  file_path: /tmp/subtext-report.txt
  stdout: false
`)

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 9091, cfg.Server.AdminPort)
	assert.Equal(t, "/ws", cfg.Server.WebSocketPath)
	assert.Equal(t, "fixture", cfg.OCR.Engine)
	assert.Equal(t, "ja", cfg.OCR.SourceLang)
	assert.False(t, cfg.OCR.UseGPU)
	assert.Equal(t, "testdata/fixture.yaml", cfg.OCR.Fixture.Path)
	assert.Equal(t, "dictionary", cfg.Translate.Provider)
	assert.Equal(t, "de", cfg.Translate.TargetLang)
	assert.True(t, cfg.Pipeline.MergeXOverlapping)
	assert.Equal(t, 12, cfg.Pipeline.MergeMaxYDiff)
	assert.Equal(t, "/tmp/subtext-report.txt", cfg.Report.FilePath)
	assert.False(t, cfg.Report.Stdout)

	// Unset keys keep their defaults.
	assert.Equal(t, 4, cfg.OCR.Workers)
	assert.InDelta(t, 0.2, cfg.Pipeline.MinConfidence, 1e-9)
}

func TestLoadWithEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("SUBTEXT_SERVER_PORT", "7777")
	t.Setenv("SUBTEXT_PIPELINE_MERGE_X_OVERLAPPING", "true")
	t.Setenv("SUBTEXT_TRANSLATE_GOOGLE_API_KEY", "secret")

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.True(t, cfg.Pipeline.MergeXOverlapping)
	assert.Equal(t, "secret", cfg.Translate.Google.APIKey)
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	path := writeConfig(t, "log_level: debug\n  invalid indentation\n    more\n")

	_, err := newTestLoader().LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithInvalidValues(t *testing.T) {
	path := writeConfig(t, "ocr:\n  engine: paddle\n")

	_, err := newTestLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestLoadWithMissingFile(t *testing.T) {
	_, err := newTestLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := newTestLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join("/xdg", "subtext"))
	assert.Equal(t, "/etc/subtext", paths[len(paths)-1])
}
