package ocr

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformJobLifecycle(t *testing.T) {
	job := &platformJob{id: "job-1", done: make(chan struct{})}

	assert.Equal(t, "job-1", job.ID())
	assert.Equal(t, JobStateRunning, job.State())

	job.text = "native text"
	close(job.done)

	assert.Equal(t, JobStateSucceeded, job.State())
	text, err := job.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "native text", text)
}

func TestPlatformJobFailure(t *testing.T) {
	job := &platformJob{id: "job-2", done: make(chan struct{})}
	job.err = errors.New("recognizer crashed")
	close(job.done)

	assert.Equal(t, JobStateFailed, job.State())
	_, err := job.Wait(context.Background())
	assert.EqualError(t, err, "recognizer crashed")
}

func TestPlatformJobWaitHonorsContext(t *testing.T) {
	job := &platformJob{id: "job-3", done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := job.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlatformEngineOnUnsupportedOS(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("host has a native recognizer")
	}

	eng := NewPlatformEngine()
	assert.Error(t, eng.Probe(context.Background()))

	// Start still hands back a job; the job resolves with the failure.
	job, err := eng.Start(context.Background(), Input{Image: []byte("png")})
	require.NoError(t, err)

	_, err = job.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), runtime.GOOS)
	assert.Equal(t, JobStateFailed, job.State())
}

func TestPlatformRecognizeBridgesJob(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("host has a native recognizer")
	}

	eng := NewPlatformEngine()
	_, err := eng.Recognize(context.Background(), Input{Image: []byte("png")})
	assert.Error(t, err, "synchronous bridge must surface the job error")
}
