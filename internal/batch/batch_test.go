package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatch(t *testing.T) {
	paths := writeImages(t, "one", "two")
	dir := filepath.Dir(paths[0])

	result, err := ProcessBatch(context.Background(), &fakeProcessor{}, []string{dir}, &Config{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.WorkerCount)
	require.Len(t, result.Files, 2)
	assert.Equal(t, paths[0], result.Files[0].File)
	assert.Equal(t, paths[1], result.Files[1].File)
	assert.Zero(t, result.Failed())
}

func TestProcessBatch_NoImages(t *testing.T) {
	_, err := ProcessBatch(context.Background(), &fakeProcessor{}, []string{t.TempDir()}, &Config{})
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestProcessBatch_DefaultsToOneWorker(t *testing.T) {
	paths := writeImages(t, "one")

	result, err := ProcessBatch(context.Background(), &fakeProcessor{}, paths, &Config{Workers: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, result.WorkerCount)
}

func TestResult_SaveResults(t *testing.T) {
	result := &Result{Files: sampleResults()}

	t.Run("writer", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, result.SaveResults(&buf, FormatText, "", false))
		assert.Contains(t, buf.String(), "Hola Mundo -> Hello World")
	})

	t.Run("file", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.jsonl")
		var buf bytes.Buffer
		require.NoError(t, result.SaveResults(&buf, FormatJSONL, out, false))
		assert.Equal(t, "Results written to "+out+"\n", buf.String())

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"file":"/shots/one.png"`)
	})

	t.Run("bad format", func(t *testing.T) {
		err := result.SaveResults(&bytes.Buffer{}, "xml", "", false)
		assert.Error(t, err)
	})
}

func TestResult_PrintStats(t *testing.T) {
	result := &Result{Files: sampleResults(), Duration: 3 * time.Second, WorkerCount: 2}

	var buf bytes.Buffer
	result.PrintStats(&buf, false)
	out := buf.String()
	assert.Contains(t, out, "Total images: 3")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Entries: 1")
	assert.Contains(t, out, "Avg per image: 1s")
	assert.Contains(t, out, "Throughput: 1.0 images/sec")

	buf.Reset()
	result.PrintStats(&buf, true)
	assert.Empty(t, buf.String())
}
