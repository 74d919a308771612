package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ProcessingError represents a non-retryable document processing error.
type ProcessingError struct {
	Message string
}

func (e *ProcessingError) Error() string {
	return e.Message
}

// TextLayerExtractor pulls the text layer embedded in a PDF, bypassing
// recognition entirely. Scanned documents typically have no layer; that is
// reported through the metadata, not as an error.
type TextLayerExtractor struct {
	MaxPages int
}

// NewTextLayerExtractor returns an extractor with a defensive page cap.
func NewTextLayerExtractor() *TextLayerExtractor {
	return &TextLayerExtractor{MaxPages: 1000}
}

// Extract returns the embedded text and extraction metadata for a PDF given
// as raw bytes.
func (t *TextLayerExtractor) Extract(ctx context.Context, content []byte) (string, map[string]string, error) {
	metadata := map[string]string{
		"type": "text-layer",
		"size": fmt.Sprintf("%d", len(content)),
	}

	if len(content) < 4 || string(content[:4]) != "%PDF" {
		preview := content
		if len(preview) > 20 {
			preview = preview[:20]
		}
		return "", metadata, &ProcessingError{
			Message: fmt.Sprintf("not a valid PDF file - content starts with: %q", string(preview)),
		}
	}

	reader := bytes.NewReader(content)
	doc, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", metadata, &ProcessingError{
			Message: fmt.Sprintf("failed to parse PDF: %v", err),
		}
	}

	var textBuilder strings.Builder
	var extracted int

	for i := 1; i <= doc.NumPage(); i++ {
		select {
		case <-ctx.Done():
			return "", metadata, ctx.Err()
		default:
		}

		if t.MaxPages > 0 && extracted >= t.MaxPages {
			break
		}

		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Damaged pages are skipped; the rest still extract.
			continue
		}
		extracted++

		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n\n")
	}

	text := strings.TrimSpace(textBuilder.String())

	metadata["pages"] = fmt.Sprintf("%d", doc.NumPage())
	metadata["extracted_pages"] = fmt.Sprintf("%d", extracted)
	metadata["text_length"] = fmt.Sprintf("%d", len(text))
	if text == "" {
		metadata["status"] = "empty"
	} else {
		metadata["status"] = "success"
	}

	return text, metadata, nil
}
