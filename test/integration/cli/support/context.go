package support

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/subtext/internal/config"
	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastError    error
	LastExitCode int

	// Test environment
	WorkingDir string
	TempDir    string

	// Scenario inputs
	Detections []ocr.FixtureDetection
	Phrases    map[string]string
	Config     config.Config
	ReportPath string

	// Server management
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    http.Header
}

// NewTestContext creates a new test context.
func NewTestContext() (*TestContext, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// Test execution runs in the package directory; walk up to the module root.
	currentDir := workingDir
	for {
		if _, err := os.Stat(filepath.Join(currentDir, "go.mod")); err == nil {
			workingDir = currentDir
			break
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	tempDir, err := os.MkdirTemp("", "subtext-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.OCR.Engine = ocr.EngineFixture
	cfg.Translate.Provider = translate.ProviderDictionary
	cfg.Report.Stdout = false
	cfg.Server.QueueTimeoutSec = 5
	cfg.Server.TimeoutSec = 10

	reportPath := filepath.Join(tempDir, "report.txt")
	cfg.Report.FilePath = reportPath

	return &TestContext{
		WorkingDir: workingDir,
		TempDir:    tempDir,
		Phrases:    map[string]string{},
		Config:     cfg,
		ReportPath: reportPath,
	}, nil
}

// Cleanup stops the server and removes the scenario's temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if err := testCtx.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// TempPath returns name inside the scenario's temp directory.
func (testCtx *TestContext) TempPath(name string) string {
	return filepath.Join(testCtx.TempDir, name)
}
