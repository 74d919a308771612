package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Result represents the text produced by one recognition operation. Each
// completed operation replaces the session's previous result; there is no
// history.
type Result struct {
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Engine    string    `json:"engine"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
}

// Empty reports whether the result carries no savable text.
func (r *Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// PageSource labels a single-page result, e.g. "Page 3 (tesseract)".
// pageIndex is zero-based.
func PageSource(pageIndex int, engine string) string {
	return fmt.Sprintf("Page %d (%s)", pageIndex+1, engine)
}

// SelectionSource labels a selection result.
func SelectionSource(engine string) string {
	return fmt.Sprintf("Selection (%s)", engine)
}

// DocumentSource labels a whole-document result.
func DocumentSource(engine string) string {
	return fmt.Sprintf("Entire Document (%s)", engine)
}

// Section is one page's contribution to a whole-document run.
type Section struct {
	Page int    `json:"page"` // 1-based page number
	Text string `json:"text"`
}

// Header returns the section's page marker line.
func (s Section) Header() string {
	return fmt.Sprintf("--- Page %d ---", s.Page)
}

// String renders the section as it appears in the assembled document text:
// the marker line, the page's text, and a trailing newline.
func (s Section) String() string {
	return fmt.Sprintf("%s\n%s\n", s.Header(), s.Text)
}

// Assemble concatenates sections in order, separated by blank lines.
func Assemble(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "\n")
}

// SaveText writes text to path, fully replacing any existing file. The
// text is stripped of leading and trailing whitespace before writing. A
// path without an extension gets ".txt" appended. Returns the path
// written.
func SaveText(path, text string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("save path cannot be empty")
	}
	if filepath.Ext(path) == "" {
		path += ".txt"
	}
	if err := os.WriteFile(path, []byte(strings.TrimSpace(text)), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
