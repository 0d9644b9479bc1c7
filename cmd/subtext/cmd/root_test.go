package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/subtext/internal/config"
	"github.com/MeKo-Tech/subtext/internal/version"
)

// resetFlags restores every flag of c and its children to its default so
// tests sharing the global command tree do not leak state.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)
	cfgFile = ""
	globalConfig = nil
	t.Cleanup(func() { resetFlags(RootCmd) })

	buf := new(bytes.Buffer)
	RootCmd.SetOut(buf)
	RootCmd.SetErr(buf)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return buf.String(), err
}

// isolate moves the test into an empty working directory and home so no
// stray subtext.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return dir
}

func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "subtext.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "subtext", RootCmd.Use)
	assert.NotEmpty(t, RootCmd.Short)
	assert.NotEmpty(t, RootCmd.Long)

	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "translate", "config"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestRootCommandHelp(t *testing.T) {
	out, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "overlay client")
}

func TestRootCommandVersion(t *testing.T) {
	out, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, "commit:")
}

func TestSetupLoggingLevels(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.LogLevel = name
			setupLogging(&cfg)

			ctx := context.Background()
			assert.True(t, slog.Default().Enabled(ctx, want))
			assert.False(t, slog.Default().Enabled(ctx, want-1))
		})
	}

	cfg := config.DefaultConfig()
	cfg.LogLevel = "error"
	cfg.Verbose = true
	setupLogging(&cfg)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
}
