package render

import (
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// BaseDPI is the rasterization density at zoom factor 1.0. PDF geometry is
// defined at 72 points per inch; the zoom factor scales it linearly.
const BaseDPI = 72.0

// DPIForZoom maps a zoom factor to its rasterization density.
func DPIForZoom(zoom float64) float64 { return BaseDPI * zoom }

// Document wraps an open PDF for page rasterization. Output for identical
// (page, zoom) inputs is deterministic and never cached here; callers
// re-render on every page or zoom change. Calls are serialized internally
// because fitz handles are not reentrant; that serializes rasterization
// only, never recognition.
type Document struct {
	mu    sync.Mutex
	doc   *fitz.Document
	path  string
	pages int
}

// Open decodes the PDF at path.
func Open(path string) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &Document{doc: doc, path: path, pages: doc.NumPage()}, nil
}

// Path returns the file the document was opened from.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int { return d.pages }

// Render rasterizes one page at the given zoom factor.
func (d *Document) Render(pageIndex int, zoom float64) (image.Image, error) {
	if pageIndex < 0 || pageIndex >= d.pages {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", pageIndex, d.pages)
	}
	if zoom <= 0 {
		return nil, fmt.Errorf("non-positive zoom factor %g", zoom)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil, fmt.Errorf("document %s is closed", d.path)
	}
	img, err := d.doc.ImageDPI(pageIndex, DPIForZoom(zoom))
	if err != nil {
		return nil, fmt.Errorf("render page %d at zoom %g: %w", pageIndex, zoom, err)
	}
	return img, nil
}

// Metadata returns the PDF's metadata dictionary, or nil once closed.
func (d *Document) Metadata() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	return d.doc.Metadata()
}

// Close releases the underlying fitz handle. Further Render calls fail.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return nil
	}
	err := d.doc.Close()
	d.doc = nil
	return err
}
