package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/subtext/internal/geometry"
)

// RemoteEngine posts images to an EasyOCR-compatible sidecar and decodes the
// readtext result shape: [[[[x,y] x4], text, confidence], ...].
type RemoteEngine struct {
	endpoint string
	query    url.Values
	client   *http.Client
}

// NewRemoteEngine validates the sidecar URL and prepares the query forwarded
// with every request.
func NewRemoteEngine(cfg Config) (*RemoteEngine, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote OCR url is empty")
	}
	u, err := url.Parse(cfg.RemoteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote OCR url: %q", cfg.RemoteURL)
	}

	timeout := time.Duration(cfg.RemoteTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	q := url.Values{}
	q.Set("langs", strings.Join(cfg.Languages, ","))
	q.Set("gpu", strconv.FormatBool(cfg.UseGPU))
	q.Set("batch_size", strconv.Itoa(cfg.BatchSize))
	q.Set("workers", strconv.Itoa(cfg.Workers))

	return &RemoteEngine{
		endpoint: cfg.RemoteURL,
		query:    q,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// Detect implements Engine.
func (e *RemoteEngine) Detect(ctx context.Context, data []byte) ([]Detection, error) {
	u, _ := url.Parse(e.endpoint)
	q := u.Query()
	for k, v := range e.query {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote OCR request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("remote OCR error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read remote OCR response: %w", err)
	}
	return parseReadtext(body)
}

// Close implements Engine.
func (e *RemoteEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// parseReadtext decodes the positional EasyOCR item list.
func parseReadtext(body []byte) ([]Detection, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode readtext response: %w", err)
	}

	dets := make([]Detection, 0, len(items))
	for i, raw := range items {
		var fields []json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || len(fields) != 3 {
			return nil, fmt.Errorf("readtext item %d: expected [box, text, confidence]", i)
		}

		var box [][]float64
		if err := json.Unmarshal(fields[0], &box); err != nil || len(box) != 4 {
			return nil, fmt.Errorf("readtext item %d: box must have 4 points", i)
		}
		var q geometry.Quad
		for j, p := range box {
			if len(p) != 2 {
				return nil, fmt.Errorf("readtext item %d: point %d must be [x, y]", i, j)
			}
			q[j] = geometry.Point{X: p[0], Y: p[1]}
		}

		var det Detection
		det.Quad = q
		if err := json.Unmarshal(fields[1], &det.Text); err != nil {
			return nil, fmt.Errorf("readtext item %d: text: %w", i, err)
		}
		if err := json.Unmarshal(fields[2], &det.Confidence); err != nil {
			return nil, fmt.Errorf("readtext item %d: confidence: %w", i, err)
		}
		dets = append(dets, det)
	}
	return dets, nil
}
