package ocr

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// PlatformEngine drives the recognizer built into the host operating system:
// the Vision framework on macOS, Windows.Media.Ocr on Windows. The native
// operation is asynchronous; Start launches it and returns a Job, and
// Recognize blocks on that Job to satisfy the synchronous Engine contract.
type PlatformEngine struct{}

// NewPlatformEngine constructs the platform-native engine.
func NewPlatformEngine() *PlatformEngine { return &PlatformEngine{} }

func (e *PlatformEngine) ID() EngineID { return EnginePlatform }

func (e *PlatformEngine) Info() string { return "Built into the OS, fast" }

// Probe reports whether this build and host carry a native recognizer.
func (e *PlatformEngine) Probe(ctx context.Context) error {
	return probePlatform(ctx)
}

// platformJob resolves when the spawned native recognizer exits.
type platformJob struct {
	id   string
	done chan struct{}
	text string
	err  error
}

func (j *platformJob) ID() string { return j.id }

func (j *platformJob) State() JobState {
	select {
	case <-j.done:
		if j.err != nil {
			return JobStateFailed
		}
		return JobStateSucceeded
	default:
		return JobStateRunning
	}
}

func (j *platformJob) Wait(ctx context.Context) (string, error) {
	select {
	case <-j.done:
		return j.text, j.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Start writes the image to a scratch file and launches the native
// recognizer on it.
func (e *PlatformEngine) Start(ctx context.Context, in Input) (Job, error) {
	f, err := os.CreateTemp("", "pagelens-ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("create scratch image: %w", err)
	}
	if _, err := f.Write(in.Image); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("write scratch image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("close scratch image: %w", err)
	}

	job := &platformJob{
		id:   uuid.New().String(),
		done: make(chan struct{}),
	}
	go func() {
		defer close(job.done)
		defer os.Remove(f.Name())
		job.text, job.err = recognizeNative(ctx, f.Name())
	}()
	return job, nil
}

// Recognize bridges the asynchronous native operation back to the
// synchronous engine contract by blocking the calling goroutine.
func (e *PlatformEngine) Recognize(ctx context.Context, in Input) (string, error) {
	job, err := e.Start(ctx, in)
	if err != nil {
		return "", err
	}
	return job.Wait(ctx)
}
