package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs the local tesseract binary through gosseract. A fresh
// client is created per call; gosseract clients are cheap and not safe for
// concurrent use.
type TesseractEngine struct {
	// Language is the trained data selector used when the input carries no
	// language hints (e.g. "eng", "eng+fra").
	Language string
	// PageSegMode controls tesseract's layout analysis.
	PageSegMode gosseract.PageSegMode

	clientFactory func() *gosseract.Client
}

// NewTesseractEngine constructs the local binary engine with automatic page
// segmentation.
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{
		Language:      language,
		PageSegMode:   gosseract.PSM_AUTO,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) ID() EngineID { return EngineTesseract }

func (e *TesseractEngine) Info() string { return "Fast, accurate, 100+ languages" }

// Probe always succeeds; the local binary engine is part of every
// installation and heads the detection order.
func (e *TesseractEngine) Probe(ctx context.Context) error { return nil }

// Recognize extracts text from the input image. The returned string is
// tesseract's output verbatim, internal line breaks included.
func (e *TesseractEngine) Recognize(ctx context.Context, in Input) (string, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	langs := in.Languages
	if len(langs) == 0 {
		langs = []string{e.Language}
	}
	if err := c.SetLanguage(langs...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}

	if err := c.SetPageSegMode(e.PageSegMode); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}

	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
