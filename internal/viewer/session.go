package viewer

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagelens/pagelens/pkg/document"
	"github.com/pagelens/pagelens/pkg/logging"
	"github.com/pagelens/pagelens/pkg/ocr"
)

// Zoom bounds and stepping for the interactive view.
const (
	ZoomMin     = 0.25
	ZoomMax     = 3.0
	ZoomStep    = 0.25
	ZoomDefault = 1.0

	// DocumentZoom is the fixed render zoom used by whole-document
	// recognition, independent of the interactively chosen zoom.
	DocumentZoom = 1.5
)

// StatusReady is the status line of a session with no document.
const StatusReady = "Ready. Open a PDF to begin."

// Precondition errors. Operations surface these without touching any
// engine; the shell presents them as warnings, not failures.
var (
	ErrNoDocument    = errors.New("no document open")
	ErrNoSelection   = errors.New("no region selected")
	ErrEmptyResult   = errors.New("no recognized text to save")
	ErrSessionClosed = errors.New("session closed")
)

// Document is the page-rendering collaborator a session views. Rendering
// must be deterministic for identical inputs; sessions never cache the
// output.
type Document interface {
	Path() string
	PageCount() int
	Render(pageIndex int, zoom float64) (image.Image, error)
	Close() error
}

// Session owns all interactive state for one open viewer: the document
// handle, current page, zoom, selection, engine choice, result text and
// status line. All state lives on a single loop goroutine; every access
// goes through a closure posted onto that loop, so the state needs no
// locks. Background recognition goroutines hand their outcome back the
// same way.
type Session struct {
	id     string
	bus    *EventBus
	logger zerolog.Logger

	posts     chan func()
	closed    chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the loop goroutine.
	doc       Document
	tempPath  string
	page      int
	zoom      float64
	selection *SelectionTracker
	engine    ocr.EngineID
	result    *document.Result
	status    string
	lastErr   error
	inFlight  int
	createdAt time.Time
}

// Snapshot is a point-in-time copy of a session's interactive state.
type Snapshot struct {
	ID           string           `json:"id"`
	DocumentPath string           `json:"document_path,omitempty"`
	PageCount    int              `json:"page_count"`
	Page         int              `json:"page"`
	Zoom         float64          `json:"zoom"`
	Engine       string           `json:"engine"`
	Selection    *image.Rectangle `json:"selection,omitempty"`
	Status       string           `json:"status"`
	Result       *document.Result `json:"result,omitempty"`
	Error        string           `json:"error,omitempty"`
	InFlight     int              `json:"in_flight"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NewSession starts a session loop with no document, zoom 1.0 and the
// given default engine.
func NewSession(id string, engine ocr.EngineID, bus *EventBus) *Session {
	s := &Session{
		id:        id,
		bus:       bus,
		logger:    logging.GetSessionLogger(id),
		posts:     make(chan func(), 64),
		closed:    make(chan struct{}),
		zoom:      ZoomDefault,
		selection: NewSelectionTracker(),
		engine:    engine,
		status:    StatusReady,
		createdAt: time.Now(),
	}
	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) run() {
	for {
		select {
		case fn := <-s.posts:
			fn()
		case <-s.closed:
			return
		}
	}
}

// Post schedules fn for execution on the session loop. This is the only
// way session state may be mutated.
func (s *Session) Post(fn func()) error {
	select {
	case s.posts <- fn:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	}
}

// call runs fn on the loop and waits for it to finish.
func (s *Session) call(fn func()) error {
	done := make(chan struct{})
	if err := s.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.closed:
		return ErrSessionClosed
	}
}

// Close shuts down the loop, closes the document and removes any uploaded
// temp file. Idempotent.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		_ = s.call(func() {
			closeErr = s.releaseDocument()
		})
		close(s.closed)
		s.publish(NewSessionEvent(EventSessionClosed, s.id))
		s.logger.Debug().Msg("Session closed")
	})
	return closeErr
}

// releaseDocument closes the open document and removes its temp file.
// Loop-owned.
func (s *Session) releaseDocument() error {
	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	if s.tempPath != "" {
		os.Remove(s.tempPath)
		s.tempPath = ""
	}
	return err
}

// Open installs a freshly loaded document, replacing and releasing any
// previous one. tempPath, when non-empty, names an uploaded temp file the
// session deletes when the document is replaced or the session closes.
// The view resets to page 0 at zoom 1.0 and the selection clears.
func (s *Session) Open(doc Document, tempPath string) error {
	return s.call(func() {
		s.releaseDocument()
		s.doc = doc
		s.tempPath = tempPath
		s.page = 0
		s.zoom = ZoomDefault
		s.selection.Reset()
		s.result = nil
		s.lastErr = nil
		s.setStatus(fmt.Sprintf("Loaded: %s (%d pages)", doc.Path(), doc.PageCount()))
		s.publish(NewSessionEvent(EventSessionOpened, s.id).
			With("path", doc.Path()).
			With("pages", doc.PageCount()))
	})
}

// NextPage advances to the following page. At the last page the index is
// left unchanged.
func (s *Session) NextPage() error {
	return s.call(func() {
		if s.doc == nil || s.page >= s.doc.PageCount()-1 {
			return
		}
		s.page++
		s.selection.Reset()
	})
}

// PrevPage steps back one page. At page 0 the index is left unchanged.
func (s *Session) PrevPage() error {
	return s.call(func() {
		if s.doc == nil || s.page <= 0 {
			return
		}
		s.page--
		s.selection.Reset()
	})
}

// ZoomIn raises the zoom one step, clamped at the maximum. Any change
// clears the selection because its coordinates refer to the old bitmap.
func (s *Session) ZoomIn() error {
	return s.call(func() { s.setZoom(s.zoom + ZoomStep) })
}

// ZoomOut lowers the zoom one step, clamped at the minimum.
func (s *Session) ZoomOut() error {
	return s.call(func() { s.setZoom(s.zoom - ZoomStep) })
}

// setZoom clamps and installs a zoom factor. Loop-owned.
func (s *Session) setZoom(zoom float64) {
	if zoom < ZoomMin {
		zoom = ZoomMin
	}
	if zoom > ZoomMax {
		zoom = ZoomMax
	}
	if zoom == s.zoom {
		return
	}
	s.zoom = zoom
	s.selection.Reset()
}

// SelectEngine installs the engine used by subsequent operations. The
// caller validates the identifier against the registry first.
func (s *Session) SelectEngine(engine ocr.EngineID) error {
	return s.call(func() { s.engine = engine })
}

// SelectionPress, SelectionDrag and SelectionRelease feed the selection
// gesture into the tracker.
func (s *Session) SelectionPress(x, y int) error {
	return s.call(func() { s.selection.Press(x, y) })
}

func (s *Session) SelectionDrag(x, y int) error {
	return s.call(func() { s.selection.Drag(x, y) })
}

func (s *Session) SelectionRelease(x, y int) error {
	return s.call(func() { s.selection.Release(x, y) })
}

// SetSelection installs a literal rectangle, normalized.
func (s *Session) SetSelection(x1, y1, x2, y2 int) error {
	return s.call(func() { s.selection.Set(x1, y1, x2, y2) })
}

// ClearSelection discards any selection.
func (s *Session) ClearSelection() error {
	return s.call(func() {
		s.selection.Clear()
		s.setStatus("Selection cleared.")
	})
}

// RenderCurrent rasterizes the current page at the current zoom. Fails
// with ErrNoDocument when nothing is open.
func (s *Session) RenderCurrent() (image.Image, error) {
	var img image.Image
	var err error
	if callErr := s.call(func() {
		if s.doc == nil {
			err = ErrNoDocument
			return
		}
		img, err = s.doc.Render(s.page, s.zoom)
	}); callErr != nil {
		return nil, callErr
	}
	return img, err
}

// SaveResult writes the current result text to path, fully replacing any
// existing file. An empty result is a precondition failure and writes
// nothing. Returns the path actually written.
func (s *Session) SaveResult(path string) (string, error) {
	var written string
	var err error
	if callErr := s.call(func() {
		if s.result == nil || s.result.Empty() {
			err = ErrEmptyResult
			return
		}
		written, err = document.SaveText(path, s.result.Text)
		if err != nil {
			return
		}
		s.setStatus(fmt.Sprintf("Saved to: %s", written))
	}); callErr != nil {
		return "", callErr
	}
	return written, err
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() {
		snap = Snapshot{
			ID:        s.id,
			Page:      s.page,
			Zoom:      s.zoom,
			Engine:    string(s.engine),
			Status:    s.status,
			Result:    s.result,
			InFlight:  s.inFlight,
			CreatedAt: s.createdAt,
		}
		if s.doc != nil {
			snap.DocumentPath = s.doc.Path()
			snap.PageCount = s.doc.PageCount()
		}
		if rect, ok := s.selection.Rect(); ok {
			r := rect
			snap.Selection = &r
		}
		if s.lastErr != nil {
			snap.Error = s.lastErr.Error()
		}
	})
	return snap, err
}

// setStatus updates the status line and publishes the change. Loop-owned.
func (s *Session) setStatus(status string) {
	s.status = status
	s.publish(NewSessionEvent(EventStatusChanged, s.id).With("status", status))
}

func (s *Session) publish(event *SessionEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event)
}
