package viewer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/dispatch"
	"github.com/pagelens/pagelens/pkg/ocr"
)

// fakeDoc is an in-memory Document that renders blank bitmaps and records
// every render call.
type fakeDoc struct {
	path  string
	pages int

	mu      sync.Mutex
	renders []renderCall
	closed  bool
}

type renderCall struct {
	page int
	zoom float64
}

func (f *fakeDoc) Path() string   { return f.path }
func (f *fakeDoc) PageCount() int { return f.pages }

func (f *fakeDoc) Render(pageIndex int, zoom float64) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, errors.New("document closed")
	}
	f.renders = append(f.renders, renderCall{page: pageIndex, zoom: zoom})
	return image.NewRGBA(image.Rect(0, 0, 200, 100)), nil
}

func (f *fakeDoc) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDoc) renderCalls() []renderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]renderCall(nil), f.renders...)
}

// stubEngine answers every recognition with a fixed text and records the
// decoded bounds of each submitted image.
type stubEngine struct {
	text string
	err  error

	mu     sync.Mutex
	calls  int
	bounds []image.Rectangle
}

func (e *stubEngine) ID() ocr.EngineID                { return ocr.EngineTesseract }
func (e *stubEngine) Info() string                    { return "stub" }
func (e *stubEngine) Probe(ctx context.Context) error { return nil }

func (e *stubEngine) Recognize(ctx context.Context, in ocr.Input) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if img, err := png.Decode(bytes.NewReader(in.Image)); err == nil {
		e.bounds = append(e.bounds, img.Bounds())
	}
	return e.text, e.err
}

func (e *stubEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func newTestSession(t *testing.T, engine *stubEngine) (*Session, *dispatch.Dispatcher) {
	t.Helper()
	registry := ocr.NewRegistry(context.Background(), engine)
	adapter := ocr.NewAdapter(registry)
	dispatcher := dispatch.NewDispatcher(adapter, dispatch.NewCollector())

	s := NewSession("test-session", ocr.EngineTesseract, nil)
	t.Cleanup(func() { s.Close() })
	return s, dispatcher
}

func waitTask(t *testing.T, task *dispatch.Task) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return task.Wait(ctx)
}

func TestPagingClampsAtBoundaries(t *testing.T) {
	s, _ := newTestSession(t, &stubEngine{})
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 3}, ""))

	// Previous at page 0 stays at 0.
	require.NoError(t, s.PrevPage())
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Page)

	require.NoError(t, s.NextPage())
	require.NoError(t, s.NextPage())
	snap, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Page)

	// Next at the last page stays put.
	require.NoError(t, s.NextPage())
	snap, err = s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Page)
}

func TestZoomSteppingAndClamping(t *testing.T) {
	s, _ := newTestSession(t, &stubEngine{})

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.Zoom)

	// Steps are exactly 0.25 from the initial 1.0.
	require.NoError(t, s.ZoomIn())
	snap, _ = s.Snapshot()
	assert.Equal(t, 1.25, snap.Zoom)

	// Repeated zoom-in stabilizes at the maximum.
	for i := 0; i < 20; i++ {
		require.NoError(t, s.ZoomIn())
	}
	snap, _ = s.Snapshot()
	assert.Equal(t, 3.0, snap.Zoom)

	// Repeated zoom-out stabilizes at the minimum.
	for i := 0; i < 20; i++ {
		require.NoError(t, s.ZoomOut())
	}
	snap, _ = s.Snapshot()
	assert.Equal(t, 0.25, snap.Zoom)
}

func TestPageAndZoomChangesClearSelection(t *testing.T) {
	s, _ := newTestSession(t, &stubEngine{})
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 2}, ""))

	require.NoError(t, s.SelectionPress(10, 10))
	require.NoError(t, s.SelectionRelease(60, 40))
	snap, _ := s.Snapshot()
	require.NotNil(t, snap.Selection)

	require.NoError(t, s.NextPage())
	snap, _ = s.Snapshot()
	assert.Nil(t, snap.Selection)

	require.NoError(t, s.SetSelection(10, 10, 60, 40))
	require.NoError(t, s.ZoomIn())
	snap, _ = s.Snapshot()
	assert.Nil(t, snap.Selection)

	// A zoom call clamped into a no-op keeps the selection: the bitmap
	// did not change.
	for i := 0; i < 10; i++ {
		require.NoError(t, s.ZoomIn())
	}
	require.NoError(t, s.SetSelection(10, 10, 60, 40))
	require.NoError(t, s.ZoomIn())
	snap, _ = s.Snapshot()
	assert.NotNil(t, snap.Selection)
}

func TestOCRPageInstallsResult(t *testing.T) {
	engine := &stubEngine{text: "recognized text"}
	s, d := newTestSession(t, engine)
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 2}, ""))

	task, err := s.OCRPage(d)
	require.NoError(t, err)
	require.NotNil(t, task)

	text, err := waitTask(t, task)
	require.NoError(t, err)
	assert.Equal(t, "recognized text", text)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "recognized text", snap.Result.Text)
	assert.Equal(t, "Page 1 (tesseract)", snap.Result.Source)
	assert.Equal(t, "OCR complete: Page 1 (tesseract)", snap.Status)
	assert.Equal(t, 0, snap.InFlight)
	assert.Empty(t, snap.Error)
}

func TestOCRPageWithoutDocumentIssuesNoEngineCall(t *testing.T) {
	engine := &stubEngine{text: "never"}
	s, d := newTestSession(t, engine)

	task, err := s.OCRPage(d)
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Nil(t, task)
	assert.Equal(t, 0, engine.callCount())
}

func TestOCRSelectionCropsToRectangle(t *testing.T) {
	engine := &stubEngine{text: "cropped"}
	s, d := newTestSession(t, engine)
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 1}, ""))

	require.NoError(t, s.SelectionPress(60, 40))
	require.NoError(t, s.SelectionRelease(10, 10))

	task, err := s.OCRSelection(d)
	require.NoError(t, err)
	_, err = waitTask(t, task)
	require.NoError(t, err)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	require.Len(t, engine.bounds, 1)
	b := engine.bounds[0]
	assert.Equal(t, 50, b.Dx())
	assert.Equal(t, 30, b.Dy())
}

func TestOCRSelectionAfterPageChangeWarns(t *testing.T) {
	engine := &stubEngine{}
	s, d := newTestSession(t, engine)
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 2}, ""))

	require.NoError(t, s.SetSelection(10, 10, 60, 40))
	require.NoError(t, s.NextPage())

	task, err := s.OCRSelection(d)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Nil(t, task)
	assert.Equal(t, 0, engine.callCount())
}

func TestOCRDocumentAssemblesHeadersInOrder(t *testing.T) {
	engine := &stubEngine{text: "page body"}
	s, d := newTestSession(t, engine)
	doc := &fakeDoc{path: "threepager.pdf", pages: 3}
	require.NoError(t, s.Open(doc, ""))

	// The interactive zoom must not leak into the document render.
	require.NoError(t, s.ZoomIn())
	require.NoError(t, s.ZoomIn())

	task, err := s.OCRDocument(d)
	require.NoError(t, err)
	text, err := waitTask(t, task)
	require.NoError(t, err)

	want := "--- Page 1 ---\npage body\n" +
		"\n--- Page 2 ---\npage body\n" +
		"\n--- Page 3 ---\npage body\n"
	assert.Equal(t, want, text)

	// Exactly one header per page, ascending.
	for n := 1; n <= 3; n++ {
		assert.Equal(t, 1, strings.Count(text, fmt.Sprintf("--- Page %d ---", n)))
	}
	assert.Less(t, strings.Index(text, "--- Page 1 ---"), strings.Index(text, "--- Page 2 ---"))
	assert.Less(t, strings.Index(text, "--- Page 2 ---"), strings.Index(text, "--- Page 3 ---"))

	for _, call := range doc.renderCalls() {
		assert.Equal(t, DocumentZoom, call.zoom)
	}

	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "Entire Document (tesseract)", snap.Result.Source)
	assert.Equal(t, 3, snap.Result.Pages)
}

func TestOCRDocumentPublishesProgressPerPage(t *testing.T) {
	bus := NewEventBus(100, 1)
	defer bus.Close()

	var mu sync.Mutex
	var pages []int
	_, err := bus.Subscribe([]EventType{EventOCRProgress}, func(ctx context.Context, event *SessionEvent) error {
		mu.Lock()
		pages = append(pages, event.Metadata["page"].(int))
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	engine := &stubEngine{text: "x"}
	registry := ocr.NewRegistry(context.Background(), engine)
	d := dispatch.NewDispatcher(ocr.NewAdapter(registry), nil)

	s := NewSession("progress-session", ocr.EngineTesseract, bus)
	defer s.Close()
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 3}, ""))

	task, err := s.OCRDocument(d)
	require.NoError(t, err)
	_, err = waitTask(t, task)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pages) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, pages)
}

func TestOCRFailureSetsStatusAndKeepsNoPartialResult(t *testing.T) {
	engine := &stubEngine{err: errors.New("backend exploded")}
	s, d := newTestSession(t, engine)
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 1}, ""))

	task, err := s.OCRPage(d)
	require.NoError(t, err)
	_, err = waitTask(t, task)
	require.Error(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "OCR failed.", snap.Status)
	assert.Contains(t, snap.Error, "backend exploded")
	assert.Nil(t, snap.Result)
	assert.Equal(t, 0, snap.InFlight)
}

func TestSaveResult(t *testing.T) {
	engine := &stubEngine{text: "saved body"}
	s, d := newTestSession(t, engine)
	require.NoError(t, s.Open(&fakeDoc{path: "a.pdf", pages: 1}, ""))

	// Nothing to save yet.
	_, err := s.SaveResult(filepath.Join(t.TempDir(), "out"))
	assert.ErrorIs(t, err, ErrEmptyResult)

	task, err := s.OCRPage(d)
	require.NoError(t, err)
	_, err = waitTask(t, task)
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "out")
	written, err := s.SaveResult(target)
	require.NoError(t, err)
	assert.Equal(t, target+".txt", written)

	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "saved body", string(data))
}

func TestOpenReplacesAndReleasesDocument(t *testing.T) {
	s, _ := newTestSession(t, &stubEngine{})
	first := &fakeDoc{path: "first.pdf", pages: 5}
	require.NoError(t, s.Open(first, ""))
	require.NoError(t, s.NextPage())
	require.NoError(t, s.ZoomIn())
	require.NoError(t, s.ZoomIn())

	second := &fakeDoc{path: "second.pdf", pages: 2}
	require.NoError(t, s.Open(second, ""))

	first.mu.Lock()
	assert.True(t, first.closed)
	first.mu.Unlock()

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "second.pdf", snap.DocumentPath)
	assert.Equal(t, 0, snap.Page)
	assert.Equal(t, ZoomDefault, snap.Zoom)
	assert.Nil(t, snap.Result)
}

func TestSessionCloseReleasesDocument(t *testing.T) {
	s := NewSession("closing", ocr.EngineTesseract, nil)
	doc := &fakeDoc{path: "a.pdf", pages: 1}
	require.NoError(t, s.Open(doc, ""))

	require.NoError(t, s.Close())
	doc.mu.Lock()
	assert.True(t, doc.closed)
	doc.mu.Unlock()

	assert.ErrorIs(t, s.NextPage(), ErrSessionClosed)
	_, err := s.Snapshot()
	assert.ErrorIs(t, err, ErrSessionClosed)

	// Close is idempotent.
	assert.NoError(t, s.Close())
}
