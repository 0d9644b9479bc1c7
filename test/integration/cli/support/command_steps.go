package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/subtext/cmd/subtext/cmd"
	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

// resetFlags restores every flag of c and its children to its default so
// scenarios sharing the command tree do not leak state.
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

// writeConfig stores the scenario configuration as a subtext.yaml.
func (testCtx *TestContext) writeConfig() (string, error) {
	if err := testCtx.writeInputs(); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(testCtx.Config)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	path := testCtx.TempPath("subtext.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}

// iRunSubtextWith runs the CLI in process with the scenario configuration.
// "{screenshot}" and "{tmp}" in the arguments are replaced with the rendered
// screenshot and the scenario temp directory.
func (testCtx *TestContext) iRunSubtextWith(args string) error {
	cfgPath, err := testCtx.writeConfig()
	if err != nil {
		return err
	}
	shot, err := testCtx.writeScreenshot()
	if err != nil {
		return err
	}

	argv := []string{"--config", cfgPath}
	for _, a := range strings.Fields(args) {
		a = strings.ReplaceAll(a, "{screenshot}", shot)
		a = strings.ReplaceAll(a, "{tmp}", testCtx.TempDir)
		argv = append(argv, a)
	}

	resetFlags(cmd.RootCmd)
	defer resetFlags(cmd.RootCmd)

	var out bytes.Buffer
	cmd.RootCmd.SetOut(&out)
	cmd.RootCmd.SetErr(&out)
	cmd.RootCmd.SetArgs(argv)

	testCtx.LastCommand = "subtext " + strings.Join(argv, " ")
	testCtx.LastError = cmd.RootCmd.ExecuteContext(context.Background())
	testCtx.LastOutput = out.String()
	testCtx.LastExitCode = 0
	if testCtx.LastError != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command %q failed: %v\nOutput: %s", testCtx.LastCommand, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFailWith(text string) error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded, expected failure", testCtx.LastCommand)
	}
	if !strings.Contains(testCtx.LastError.Error(), text) {
		return fmt.Errorf("expected error to contain %q, got %q", text, testCtx.LastError.Error())
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("expected output to contain %q\nOutput: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theOutputEntriesShouldBe compares the JSON printed by translate.
func (testCtx *TestContext) theOutputEntriesShouldBe(table *godog.Table) error {
	want, err := entriesFromTable(table)
	if err != nil {
		return err
	}
	var got []pipeline.Entry
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &got); err != nil {
		return fmt.Errorf("output is not an entry list: %w\nOutput: %s", err, testCtx.LastOutput)
	}
	if len(got) != len(want) {
		return fmt.Errorf("expected %d entries, got %d\nOutput: %s", len(want), len(got), testCtx.LastOutput)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("entry %d: expected %+v, got %+v", i+1, want[i], got[i])
		}
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.TempPath(name)); err != nil {
		return fmt.Errorf("expected %s in the temp directory: %w", name, err)
	}
	return nil
}

// RegisterCommandSteps registers the steps that drive the CLI.
func (testCtx *TestContext) RegisterCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run subtext with "([^"]*)"$`, testCtx.iRunSubtextWith)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output entries should be:$`, testCtx.theOutputEntriesShouldBe)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
}
