package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

const requestTimeout = 10 * time.Second

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startTestHTTPServer()
}

func (testCtx *TestContext) theServerIsRunningWithWebSocketPath(path string) error {
	testCtx.Config.Server.WebSocketPath = path
	return testCtx.startTestHTTPServer()
}

func (testCtx *TestContext) theServerIsRunningWithAnUploadLimitOfMB(mb int) error {
	testCtx.Config.Server.MaxUploadMB = mb
	return testCtx.startTestHTTPServer()
}

// doRequest sends a request to the running server and records the response.
func (testCtx *TestContext) doRequest(method, path string, body []byte) error {
	base, err := testCtx.GetServerURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing response body: %v\n", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(data)
	testCtx.LastHTTPHeaders = resp.Header
	return nil
}

func (testCtx *TestContext) iPOSTAScreenshotTo(path string) error {
	data, err := testCtx.screenshot()
	if err != nil {
		return err
	}
	return testCtx.doRequest(http.MethodPost, path, data)
}

func (testCtx *TestContext) iPOSTTheScreenshotTimesTo(n int, path string) error {
	for range n {
		if err := testCtx.iPOSTAScreenshotTo(path); err != nil {
			return err
		}
		if testCtx.LastHTTPStatusCode != http.StatusOK {
			return fmt.Errorf("expected status 200, got %d: %s", testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
		}
	}
	return nil
}

func (testCtx *TestContext) iPOSTAnEmptyBodyTo(path string) error {
	return testCtx.doRequest(http.MethodPost, path, nil)
}

func (testCtx *TestContext) iPOSTTheTextTo(text, path string) error {
	return testCtx.doRequest(http.MethodPost, path, []byte(text))
}

func (testCtx *TestContext) iPOSTAnImageLargerThanMBTo(mb int, path string) error {
	return testCtx.doRequest(http.MethodPost, path, bytes.Repeat([]byte{0x89}, mb*1024*1024+1))
}

func (testCtx *TestContext) iSendARequestTo(method, path string) error {
	return testCtx.doRequest(method, path, nil)
}

// iSendTheScreenshotOverTheWebSocket sends one binary frame and records the
// reply as the last response.
func (testCtx *TestContext) iSendTheScreenshotOverTheWebSocket(path string) error {
	base, err := testCtx.GetServerURL()
	if err != nil {
		return err
	}
	data, err := testCtx.screenshot()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	url := "ws" + strings.TrimPrefix(base, "http") + path
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPHeaders = resp.Header

	if err := conn.SetReadDeadline(time.Now().Add(requestTimeout)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}
	_, reply, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("websocket read failed: %w", err)
	}
	testCtx.LastHTTPResponse = string(reply)
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(expectedStatus int) error {
	if testCtx.LastHTTPStatusCode != expectedStatus {
		return fmt.Errorf("expected status %d, got %d\nResponse: %s",
			expectedStatus, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseShouldBeValidJSON verifies response is valid JSON.
func (testCtx *TestContext) theResponseShouldBeValidJSON() error {
	var js json.RawMessage
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &js); err != nil {
		return fmt.Errorf("response is not valid JSON: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldBeAnEmptyJSONArray() error {
	if strings.TrimSpace(testCtx.LastHTTPResponse) != "[]" {
		return fmt.Errorf("expected [], got %s", testCtx.LastHTTPResponse)
	}
	return nil
}

// entries decodes the last response body as a list of entries.
func (testCtx *TestContext) entries() ([]pipeline.Entry, error) {
	var entries []pipeline.Entry
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &entries); err != nil {
		return nil, fmt.Errorf("response is not an entry list: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}
	return entries, nil
}

func (testCtx *TestContext) theResponseShouldContainEntries(n int) error {
	entries, err := testCtx.entries()
	if err != nil {
		return err
	}
	if len(entries) != n {
		return fmt.Errorf("expected %d entries, got %d: %s", n, len(entries), testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseEntriesShouldBe compares the entries in order. The table
// columns are x, y, w, h, message and translation.
func (testCtx *TestContext) theResponseEntriesShouldBe(table *godog.Table) error {
	got, err := testCtx.entries()
	if err != nil {
		return err
	}
	want, err := entriesFromTable(table)
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return fmt.Errorf("expected %d entries, got %d: %s", len(want), len(got), testCtx.LastHTTPResponse)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("entry %d: expected %+v, got %+v", i+1, want[i], got[i])
		}
	}
	return nil
}

func entriesFromTable(table *godog.Table) ([]pipeline.Entry, error) {
	if len(table.Rows) < 1 {
		return nil, errors.New("entry table needs a header")
	}
	header := map[string]int{}
	for i, cell := range table.Rows[0].Cells {
		header[cell.Value] = i
	}
	for _, col := range []string{"x", "y", "w", "h", "message", "translation"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("entry table is missing column %q", col)
		}
	}

	var out []pipeline.Entry
	for _, row := range table.Rows[1:] {
		var e pipeline.Entry
		for _, f := range []struct {
			col string
			dst *int
		}{{"x", &e.X}, {"y", &e.Y}, {"w", &e.W}, {"h", &e.H}} {
			if _, err := fmt.Sscanf(row.Cells[header[f.col]].Value, "%d", f.dst); err != nil {
				return nil, fmt.Errorf("column %s: %w", f.col, err)
			}
		}
		e.Message = row.Cells[header["message"]].Value
		e.Translation = row.Cells[header["translation"]].Value
		out = append(out, e)
	}
	return out, nil
}

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("response is not an error object: %w\nResponse: %s", err, testCtx.LastHTTPResponse)
	}
	if !strings.Contains(resp.Error, text) {
		return fmt.Errorf("expected error to mention %q, got %q", text, resp.Error)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldHaveHeader(name string) error {
	if testCtx.LastHTTPHeaders.Get(name) == "" {
		return fmt.Errorf("expected response header %s", name)
	}
	return nil
}

// theReportFileShouldContain compares the whole report file.
func (testCtx *TestContext) theReportFileShouldContain(doc *godog.DocString) error {
	data, err := os.ReadFile(testCtx.ReportPath)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	// Doc strings cannot end in blank lines; every block does.
	want := doc.Content + "\n\n"
	if string(data) != want {
		return fmt.Errorf("unexpected report content:\n%q\nwant:\n%q", string(data), want)
	}
	return nil
}

func (testCtx *TestContext) theReportFileShouldBeEmpty() error {
	data, err := os.ReadFile(testCtx.ReportPath)
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	if len(data) != 0 {
		return fmt.Errorf("expected an empty report, got %q", string(data))
	}
	return nil
}

func (testCtx *TestContext) noReportFileShouldExist() error {
	if _, err := os.Stat(testCtx.ReportPath); !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("expected no report file at %s", testCtx.ReportPath)
	}
	return nil
}

// RegisterServerSteps registers all server mode step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	// Server lifecycle
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with WebSocket path "([^"]*)"$`, testCtx.theServerIsRunningWithWebSocketPath)
	sc.Step(`^the server is running with an upload limit of (\d+) MB$`, testCtx.theServerIsRunningWithAnUploadLimitOfMB)

	// Requests
	sc.Step(`^I POST a screenshot to "([^"]*)"$`, testCtx.iPOSTAScreenshotTo)
	sc.Step(`^I POST the screenshot (\d+) times to "([^"]*)"$`, testCtx.iPOSTTheScreenshotTimesTo)
	sc.Step(`^I POST an empty body to "([^"]*)"$`, testCtx.iPOSTAnEmptyBodyTo)
	sc.Step(`^I POST the text "([^"]*)" to "([^"]*)"$`, testCtx.iPOSTTheTextTo)
	sc.Step(`^I POST an image larger than (\d+) MB to "([^"]*)"$`, testCtx.iPOSTAnImageLargerThanMBTo)
	sc.Step(`^I send a ([A-Z]+) request to "([^"]*)"$`, testCtx.iSendARequestTo)
	sc.Step(`^I send the screenshot over the WebSocket "([^"]*)"$`, testCtx.iSendTheScreenshotOverTheWebSocket)

	// Responses
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should be valid JSON$`, testCtx.theResponseShouldBeValidJSON)
	sc.Step(`^the response should be an empty JSON array$`, testCtx.theResponseShouldBeAnEmptyJSONArray)
	sc.Step(`^the response should contain (\d+) entr(?:y|ies)$`, testCtx.theResponseShouldContainEntries)
	sc.Step(`^the response entries should be:$`, testCtx.theResponseEntriesShouldBe)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the response should have an? "([^"]*)" header$`, testCtx.theResponseShouldHaveHeader)

	// Report
	sc.Step(`^the report file should contain:$`, testCtx.theReportFileShouldContain)
	sc.Step(`^the report file should be empty$`, testCtx.theReportFileShouldBeEmpty)
	sc.Step(`^no report file should exist$`, testCtx.noReportFileShouldExist)
}
