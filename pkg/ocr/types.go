package ocr

import (
	"context"
	"errors"
)

// EngineID identifies a recognition backend.
type EngineID string

const (
	// EngineTesseract is the local binary engine. It heads the detection
	// order and serves as the default.
	EngineTesseract EngineID = "tesseract"
	// EngineOllama is the neural engine backed by a local model server.
	EngineOllama EngineID = "ollama"
	// EnginePlatform is the recognizer built into the host operating system.
	EnginePlatform EngineID = "platform"
)

// ErrUnsupportedEngine is returned when a caller names an engine the adapter
// does not know about.
var ErrUnsupportedEngine = errors.New("unsupported OCR engine")

// Input encapsulates a single image submitted for recognition.
type Input struct {
	// Image is the PNG-encoded image payload.
	Image []byte
	// DPI carries the effective dots-per-inch of the image. Engines with
	// scaling heuristics read it; zero means unknown.
	DPI int
	// Languages is a list of language hints (e.g. "eng") that engines can
	// use to select trained data. Empty means the engine's own default.
	Languages []string
}

// Engine is the recognition provider contract: one image in, one text out.
// Implementations return the backend's text without post-processing beyond
// what the backend itself defines.
type Engine interface {
	ID() EngineID
	// Info returns a short human-readable description of the engine.
	Info() string
	// Probe reports whether the engine is usable on this host. A nil error
	// means the engine may be offered to callers.
	Probe(ctx context.Context) error
	Recognize(ctx context.Context, in Input) (string, error)
}

// JobState models the lifecycle of an asynchronous recognition request.
type JobState string

const (
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// Job represents an in-flight recognition started by an AsyncEngine.
type Job interface {
	ID() string
	State() JobState
	// Wait blocks until the job resolves and returns its text or error.
	Wait(ctx context.Context) (string, error)
}

// AsyncEngine is implemented by engines whose native operation completes
// asynchronously. The adapter bridges them back to the synchronous Engine
// contract by blocking on Wait inside the calling goroutine.
type AsyncEngine interface {
	Start(ctx context.Context, in Input) (Job, error)
}
