package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
)

// RecognizeOption mutates the Input built for a single adapter call.
type RecognizeOption func(*Input)

// WithDPI sets the effective dots-per-inch hint on the input.
func WithDPI(dpi int) RecognizeOption {
	return func(in *Input) { in.DPI = dpi }
}

// WithLanguages sets language hints on the input.
func WithLanguages(langs ...string) RecognizeOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// Adapter is the uniform recognition entry point over the registry's
// engines. All engine state hangs off the adapter's registry instance;
// callers construct one adapter and pass it to wherever recognition
// happens.
type Adapter struct {
	registry *Registry
}

// NewAdapter wraps a registry in the recognition entry point.
func NewAdapter(registry *Registry) *Adapter {
	return &Adapter{registry: registry}
}

// Registry exposes the engine set behind the adapter.
func (a *Adapter) Registry() *Registry { return a.registry }

// Recognize encodes the bitmap once and dispatches it to the named engine.
// An identifier outside the usable set fails immediately with
// ErrUnsupportedEngine; engine errors propagate unchanged with no retry.
func (a *Adapter) Recognize(ctx context.Context, img image.Image, engine EngineID, opts ...RecognizeOption) (string, error) {
	eng, ok := a.registry.Engine(engine)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEngine, engine)
	}

	data, err := encodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encode bitmap: %w", err)
	}

	in := Input{Image: data}
	for _, opt := range opts {
		opt(&in)
	}
	return eng.Recognize(ctx, in)
}

// Close releases process-scoped engine state (e.g. a loaded neural model
// client). Intended for shutdown; not safe concurrently with Recognize.
func (a *Adapter) Close() error {
	var firstErr error
	for _, eng := range a.registry.engines {
		if closer, ok := eng.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Crop returns the subregion of img described by rect, intersected with the
// image bounds.
func Crop(img image.Image, rect image.Rectangle) (image.Image, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("selection outside image bounds")
	}
	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("image does not support sub-image cropping")
	}
	return sub.SubImage(rect), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
