package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRejectsNonPDFContent(t *testing.T) {
	ex := NewTextLayerExtractor()

	tests := []struct {
		name    string
		content []byte
	}{
		{name: "empty", content: nil},
		{name: "too short", content: []byte("%P")},
		{name: "html masquerading as pdf", content: []byte("<html><body>404</body></html>")},
		{name: "plain text", content: []byte("just some text")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, metadata, err := ex.Extract(context.Background(), tt.content)
			require.Error(t, err)

			var perr *ProcessingError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Error(), "not a valid PDF")
			assert.Equal(t, "text-layer", metadata["type"])
		})
	}
}

func TestExtractRejectsCorruptPDF(t *testing.T) {
	ex := NewTextLayerExtractor()

	// Valid magic, garbage body.
	_, _, err := ex.Extract(context.Background(), []byte("%PDF-1.4\ngarbage with no xref"))
	require.Error(t, err)

	var perr *ProcessingError
	assert.ErrorAs(t, err, &perr)
}

func TestProcessingErrorMessage(t *testing.T) {
	err := &ProcessingError{Message: "page table damaged"}
	assert.Equal(t, "page table damaged", err.Error())
}
