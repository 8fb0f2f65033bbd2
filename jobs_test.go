package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	app, router := setupTestRouter(t)

	rec := postForm(t, router, "/api/jobs",
		map[string][]byte{"image": pagePNG(t), "words": sampleWordsJSON(t)}, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	job := <-jobQueue
	pending, ok := jobStore.getJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, "pending", pending.Status)
	assert.Equal(t, http.StatusConflict, get(router, "/api/jobs/"+job.ID+"/image").Code)

	processJob(app, job)

	done, ok := jobStore.getJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, 3, done.Flagged)
	assert.NotZero(t, done.RunID)

	rec = get(router, "/api/jobs/"+job.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)

	rec = get(router, "/api/jobs/"+job.ID+"/image")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = get(router, "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), job.ID)
}

func TestJobNotFound(t *testing.T) {
	_, router := setupTestRouter(t)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/jobs/missing").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/jobs/missing/image").Code)
}

func TestProcessJobFailure(t *testing.T) {
	app := newTestApp(t)
	job := &Job{ID: generateJobID(), Source: "broken.png", input: AnnotateInput{Source: "broken.png", Image: []byte("garbage"), HasWords: true}}
	jobStore.addJob(job)

	processJob(app, job)

	got, ok := jobStore.getJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, "failed", got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestCancelJob(t *testing.T) {
	app := newTestApp(t)
	app.OCRProvider = &stubProvider{block: true}

	job := &Job{ID: generateJobID(), Source: "slow.png", input: AnnotateInput{Source: "slow.png", Image: pagePNG(t)}}
	jobStore.addJob(job)
	assert.False(t, cancelJob(job.ID), "not running yet")

	done := make(chan struct{})
	go func() {
		processJob(app, job)
		close(done)
	}()

	require.Eventually(t, func() bool { return cancelJob(job.ID) }, 2*time.Second, 10*time.Millisecond)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop after cancel")
	}

	got, _ := jobStore.getJob(job.ID)
	assert.Equal(t, "cancelled", got.Status)
}

func TestGetAllJobsNewestFirst(t *testing.T) {
	store := &JobStore{jobs: make(map[string]*Job)}
	first := &Job{ID: "first"}
	store.addJob(first)
	time.Sleep(time.Millisecond)
	second := &Job{ID: "second"}
	store.addJob(second)

	jobs := store.GetAllJobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "second", jobs[0].ID)
}
