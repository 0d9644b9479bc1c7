package support

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/pipeline"
	"github.com/MeKo-Tech/subtext/internal/report"
	"github.com/MeKo-Tech/subtext/internal/server"
	"github.com/MeKo-Tech/subtext/internal/translate"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Pipeline   *pipeline.Pipeline
}

// URL returns the base URL of the running server.
func (w *HTTPTestServerWrapper) URL() string { return w.Server.URL }

// Close stops the listener and releases the pipeline.
func (w *HTTPTestServerWrapper) Close() error {
	w.Server.Close()
	return w.TestServer.Close()
}

// startTestHTTPServer builds the real pipeline from the scenario's
// configuration, using the fixture engine and the dictionary translator,
// and serves it with httptest.
func (testCtx *TestContext) startTestHTTPServer() error {
	if testCtx.HTTPTestServer != nil {
		return errors.New("server is already running")
	}
	if err := testCtx.writeInputs(); err != nil {
		return err
	}
	cfg := &testCtx.Config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	engine, err := ocr.New(ctx, cfg.ToOCRConfig())
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	translator, err := translate.New(ctx, cfg.ToTranslateConfig())
	if err != nil {
		return errors.Join(fmt.Errorf("create translator: %w", err), engine.Close())
	}
	sink, err := report.New(ctx, cfg.ToReportConfig())
	if err != nil {
		return errors.Join(fmt.Errorf("open report: %w", err), engine.Close(), translator.Close())
	}

	p, err := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithEngine(engine).
		WithTranslator(translator).
		WithSink(sink).
		Build()
	if err != nil {
		return errors.Join(err, engine.Close(), translator.Close(), sink.Close())
	}

	srv := server.NewServer(cfg.ToServerConfig(), p)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
		Pipeline:   p,
	}
	return nil
}

// StopServer stops the running server, if any.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer == nil {
		return nil
	}
	err := testCtx.HTTPTestServer.Close()
	testCtx.HTTPTestServer = nil
	return err
}

// GetServerURL returns the base URL of the running server.
func (testCtx *TestContext) GetServerURL() (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPTestServer.URL(), nil
}
