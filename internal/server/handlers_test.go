package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/subtext/internal/ocr"
	"github.com/MeKo-Tech/subtext/internal/pipeline"
)

func TestServer_PostAnyPathReturnsEntries(t *testing.T) {
	p := &mockProcessor{entries: helloWorld()}
	handler := newTestServer(p).Handler()

	for _, path := range []string{"/", "/translate", "/a/b/c"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("image-bytes"))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var got []pipeline.Entry
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, helloWorld(), got)
		})
	}
	assert.Equal(t, []byte("image-bytes"), p.images[0])
}

func TestServer_PostWithNoEntriesReturnsEmptyArray(t *testing.T) {
	handler := newTestServer(&mockProcessor{}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestServer_MethodDispatch(t *testing.T) {
	p := &mockProcessor{entries: helloWorld()}
	handler := newTestServer(p).Handler()

	tests := []struct {
		method string
		status int
	}{
		{http.MethodGet, http.StatusNotFound},
		{http.MethodPut, http.StatusNotFound},
		{http.MethodDelete, http.StatusNotImplemented},
		{http.MethodPatch, http.StatusNotImplemented},
		{http.MethodOptions, http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/anything", strings.NewReader("x"))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	assert.Zero(t, p.calls(), "only POST reaches the pipeline")
}

func TestServer_RequestBodyErrors(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		p := &mockProcessor{}
		w := httptest.NewRecorder()
		newTestServer(p).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, p.calls())
	})

	t.Run("body too large", func(t *testing.T) {
		p := &mockProcessor{}
		body := bytes.Repeat([]byte{0xff}, 1024*1024+1)
		w := httptest.NewRecorder()
		newTestServer(p).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Zero(t, p.calls())
	})
}

func TestNewServer_DefaultsUploadLimit(t *testing.T) {
	p := &mockProcessor{entries: helloWorld()}
	s := NewServer(Config{Workers: 1}, p)
	assert.Equal(t, int64(DefaultMaxUploadMB), s.maxUploadMB)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(make([]byte, 1024*1024))))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	big := bytes.NewReader(make([]byte, DefaultMaxUploadMB*1024*1024+1))
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "invalid image",
			err:    &pipeline.StageError{Stage: pipeline.StageOCR, Err: fmt.Errorf("decode: %w", ocr.ErrInvalidImage)},
			status: http.StatusBadRequest,
		},
		{
			name:   "ocr failure",
			err:    &pipeline.StageError{Stage: pipeline.StageOCR, Err: errors.New("engine down")},
			status: http.StatusInternalServerError,
		},
		{
			name:   "translate failure",
			err:    &pipeline.StageError{Stage: pipeline.StageTranslate, Err: errors.New("quota")},
			status: http.StatusBadGateway,
		},
		{
			name:   "unclassified",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(&mockProcessor{err: tt.err}).Handler()

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.err.Error(), resp.Error)
		})
	}
}

func TestServer_RequestIDPropagates(t *testing.T) {
	p := &mockProcessor{entries: helloWorld()}
	handler := newTestServer(p).Handler()

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x")))

		id := w.Header().Get(requestIDHeader)
		require.NotEmpty(t, id)
		assert.Equal(t, id, p.ids[len(p.ids)-1])
	})

	t.Run("supplied by client", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
		req.Header.Set(requestIDHeader, "client-id")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "client-id", w.Header().Get(requestIDHeader))
		assert.Equal(t, "client-id", p.ids[len(p.ids)-1])
	})
}

func TestServer_PoolSaturationReturns503(t *testing.T) {
	p := &mockProcessor{
		entries: helloWorld(),
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	s := NewServer(Config{MaxUploadMB: 1, Workers: 1, QueueTimeoutSec: 0}, p)
	s.queueTimeout = 50 * time.Millisecond
	handler := s.Handler()

	first := make(chan int, 1)
	go func() {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x")))
		first <- w.Code
	}()
	<-p.started

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("y")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	close(p.block)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, 1, p.calls())
}

func TestServer_MissingProcessor(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer(nil).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_HealthHandler(t *testing.T) {
	server := &Server{}

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{"GET request success", http.MethodGet, http.StatusOK, true},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Version)
				assert.NotEmpty(t, response.Time)
			}
		})
	}
}

func TestServer_AdminHandler(t *testing.T) {
	handler := newTestServer(&mockProcessor{}).AdminHandler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "subtext_worker_pool_rejected_total")
}

func TestServer_Close(t *testing.T) {
	p := &mockProcessor{closeErr: errors.New("close failed")}
	err := newTestServer(p).Close()
	assert.EqualError(t, err, "close failed")
	assert.True(t, p.closed)

	assert.NoError(t, newTestServer(nil).Close())
}

func TestServer_WriteErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()
	(&Server{}).writeErrorResponse(w, "bad things", http.StatusTeapot)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.JSONEq(t, `{"error":"bad things"}`, w.Body.String())
}
