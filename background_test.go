package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"composition-corrector/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This our appStub for background processing isolation without real invocation
type appStubBG struct {
	calls atomic.Int32
	err   error
}

func (a *appStubBG) processWatchDir(ctx context.Context) (int, error) {
	a.calls.Add(1)
	return 0, a.err
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestProcessFolder(t *testing.T) {
	app := newTestApp(t)
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")

	writeFile(t, filepath.Join(in, "essay.png"), pagePNG(t))
	writeFile(t, filepath.Join(in, "essay.json"), sampleWordsJSON(t))
	writeFile(t, filepath.Join(in, "scan.png"), pagePNG(t))
	writeFile(t, filepath.Join(in, "scan.hocr"), []byte(testHOCR))
	writeFile(t, filepath.Join(in, "lonely.png"), pagePNG(t))
	writeFile(t, filepath.Join(in, "notes.txt"), []byte("not a page"))

	count, err := app.processFolder(context.Background(), in, out, 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.FileExists(t, filepath.Join(out, "essay"+constants.AnnotatedSuffix))
	assert.FileExists(t, filepath.Join(out, "scan"+constants.AnnotatedSuffix))
	assert.NoFileExists(t, filepath.Join(out, "lonely"+constants.AnnotatedSuffix), "no sidecar and no OCR")

	md, err := os.ReadFile(filepath.Join(out, "essay"+constants.ReportSuffix))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# essay")
	assert.Contains(t, string(md), "summer")

	runs, err := GetAllRuns(app.Database)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	count, err = app.processFolder(context.Background(), in, out, 2, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count, "pages with output are not processed again")
}

func TestProcessFolder_UsesOCRWithoutSidecar(t *testing.T) {
	app := newTestApp(t)
	app.OCRProvider = &stubProvider{words: sampleWords()}
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "lonely.png"), pagePNG(t))

	count, err := app.processFolder(context.Background(), in, in, 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.FileExists(t, filepath.Join(in, "lonely"+constants.AnnotatedSuffix))

	pages, err := app.pendingPages(in, in)
	require.NoError(t, err)
	assert.Empty(t, pages, "annotated output is never picked up as a page")
}

func TestProcessFolder_ContinuesAfterFailure(t *testing.T) {
	app := newTestApp(t)
	in, out := t.TempDir(), t.TempDir()

	writeFile(t, filepath.Join(in, "good.png"), pagePNG(t))
	writeFile(t, filepath.Join(in, "good.json"), sampleWordsJSON(t))
	writeFile(t, filepath.Join(in, "bad.png"), []byte("corrupt"))
	writeFile(t, filepath.Join(in, "bad.json"), sampleWordsJSON(t))

	count, err := app.processFolder(context.Background(), in, out, 2, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.png")
	assert.Equal(t, 1, count)
	assert.FileExists(t, filepath.Join(out, "good"+constants.AnnotatedSuffix))
	assert.NoFileExists(t, filepath.Join(out, "bad"+constants.AnnotatedSuffix))
}

func TestProcessFolder_Timeout(t *testing.T) {
	app := newTestApp(t)
	app.OCRProvider = &stubProvider{block: true}
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "slow.png"), pagePNG(t))

	count, err := app.processFolder(context.Background(), in, in, 1, 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, count)
}

func TestProcessFolder_MissingDir(t *testing.T) {
	app := newTestApp(t)
	_, err := app.processFolder(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir(), 1, time.Minute)
	assert.Error(t, err)
}

func TestStartBackgroundTasks(t *testing.T) {
	minBackoffDuration, pollingInterval = time.Millisecond, time.Millisecond

	stub := &appStubBG{err: errors.New("watch dir unavailable")}
	ctx, cancel := context.WithCancel(context.Background())
	StartBackgroundTasks(ctx, stub)

	assert.Eventually(t, func() bool { return stub.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
}
