package api

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/dispatch"
	"github.com/pagelens/pagelens/internal/extract"
	"github.com/pagelens/pagelens/internal/render"
	"github.com/pagelens/pagelens/internal/viewer"
	"github.com/pagelens/pagelens/pkg/logging"
	"github.com/pagelens/pagelens/pkg/ocr"
)

// DocumentOpener loads a PDF from disk into a viewable document. The
// default opener uses the fitz-backed renderer; tests substitute fakes.
type DocumentOpener func(path string) (viewer.Document, error)

// RenderOpener is the production document opener.
func RenderOpener(path string) (viewer.Document, error) {
	return render.Open(path)
}

// Handlers contains the HTTP handlers for the API
type Handlers struct {
	manager    *viewer.Manager
	registry   *ocr.Registry
	dispatcher *dispatch.Dispatcher
	extractor  *extract.TextLayerExtractor
	upload     *config.UploadConfig
	open       DocumentOpener
	logger     zerolog.Logger
}

// NewHandlers creates a new handlers instance over the given components.
func NewHandlers(manager *viewer.Manager, registry *ocr.Registry, dispatcher *dispatch.Dispatcher, extractor *extract.TextLayerExtractor, upload *config.UploadConfig) *Handlers {
	return &Handlers{
		manager:    manager,
		registry:   registry,
		dispatcher: dispatcher,
		extractor:  extractor,
		upload:     upload,
		open:       RenderOpener,
		logger:     logging.GetLogger("api"),
	}
}

// WithDocumentOpener replaces the document opener. Test seam.
func (h *Handlers) WithDocumentOpener(open DocumentOpener) *Handlers {
	h.open = open
	return h
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "pagelens",
		"version":   "0.1.0",
		"engines":   len(h.registry.Available()),
		"sessions":  h.manager.Count(),
		"timestamp": time.Now().UTC(),
	})
}

// EngineInfo describes one usable engine to clients
type EngineInfo struct {
	ID      string `json:"id"`
	Info    string `json:"info"`
	Default bool   `json:"default"`
}

// ListEngines returns the usable engines in detection order
func (h *Handlers) ListEngines(c *fiber.Ctx) error {
	def, _ := h.registry.Default()

	engines := make([]EngineInfo, 0, len(h.registry.Available()))
	for _, id := range h.registry.Available() {
		engines = append(engines, EngineInfo{
			ID:      string(id),
			Info:    h.registry.Info(id),
			Default: id == def,
		})
	}

	return c.JSON(fiber.Map{
		"engines": engines,
		"default": string(def),
	})
}

// CreateSessionRequest is the JSON body for path-based session creation
type CreateSessionRequest struct {
	Path string `json:"path"`
}

// CreateSession opens a PDF into a new viewer session. The document comes
// either from a multipart upload (field "file") or from a local path in a
// JSON body. A load failure leaves no session behind.
func (h *Handlers) CreateSession(c *fiber.Ctx) error {
	defaultEngine, ok := h.registry.Default()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no OCR engine is available on this host",
		})
	}

	path, tempPath, ok := h.resolveDocument(c)
	if !ok {
		return nil // response already written
	}

	doc, err := h.open(path)
	if err != nil {
		if tempPath != "" {
			os.Remove(tempPath)
		}
		h.logger.Error().Err(err).Str("path", path).Msg("Document load failed")
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   "Failed to load document",
			"details": err.Error(),
		})
	}

	session := h.manager.Create(defaultEngine)
	if err := session.Open(doc, tempPath); err != nil {
		h.manager.Close(session.ID())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	snap, err := session.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	h.logger.Info().
		Str("session_id", session.ID()).
		Str("path", path).
		Int("pages", snap.PageCount).
		Msg("Session created")

	return c.Status(fiber.StatusCreated).JSON(snap)
}

// resolveDocument extracts the PDF location from the request: an uploaded
// file is validated and written to a temp file, a JSON body supplies a
// local path directly. On failure the response has already been written
// and ok is false.
func (h *Handlers) resolveDocument(c *fiber.Ctx) (path, tempPath string, ok bool) {
	file, ferr := c.FormFile("file")
	if ferr != nil {
		// No multipart upload: expect a JSON body with a path.
		var req CreateSessionRequest
		if err := c.BodyParser(&req); err != nil || req.Path == "" {
			c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Provide a PDF as multipart field 'file' or a JSON body with 'path'",
			})
			return "", "", false
		}
		return req.Path, "", true
	}

	if file.Size > h.upload.MaxFileSize {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("File too large: %d bytes. Maximum size is %d bytes", file.Size, h.upload.MaxFileSize),
		})
		return "", "", false
	}

	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".pdf" {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Unsupported file type: %q. Only .pdf is accepted", ext),
		})
		return "", "", false
	}

	tmp, err := os.CreateTemp(h.upload.TempDir, "pagelens-upload-*.pdf")
	if err != nil {
		c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to store uploaded file",
			"details": err.Error(),
		})
		return "", "", false
	}
	tmp.Close()

	if err := c.SaveFile(file, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to store uploaded file",
			"details": err.Error(),
		})
		return "", "", false
	}
	return tmp.Name(), tmp.Name(), true
}

// session resolves the :id path parameter. A non-nil second return is a
// finished 404 response.
func (h *Handlers) session(c *fiber.Ctx) (*viewer.Session, error) {
	s, err := h.manager.Get(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return s, nil
}

// GetSession returns the session's state snapshot
func (h *Handlers) GetSession(c *fiber.Ctx) error {
	s, errResp := h.session(c)
	if s == nil {
		return errResp
	}
	return h.snapshot(c, s)
}

// CloseSession shuts the session down and releases its document
func (h *Handlers) CloseSession(c *fiber.Ctx) error {
	if err := h.manager.Close(c.Params("id")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "closed"})
}

// GetPage renders the current page at the current zoom and returns it as
// PNG.
func (h *Handlers) GetPage(c *fiber.Ctx) error {
	s, errResp := h.session(c)
	if s == nil {
		return errResp
	}

	img, err := s.RenderCurrent()
	if err != nil {
		if errors.Is(err, viewer.ErrNoDocument) {
			return warning(c, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}

// NextPage advances the session one page, clamped at the last page
func (h *Handlers) NextPage(c *fiber.Ctx) error {
	return h.mutate(c, func(s *viewer.Session) error { return s.NextPage() })
}

// PrevPage steps the session back one page, clamped at page 0
func (h *Handlers) PrevPage(c *fiber.Ctx) error {
	return h.mutate(c, func(s *viewer.Session) error { return s.PrevPage() })
}

// ZoomIn raises the zoom one step, clamped at the maximum
func (h *Handlers) ZoomIn(c *fiber.Ctx) error {
	return h.mutate(c, func(s *viewer.Session) error { return s.ZoomIn() })
}

// ZoomOut lowers the zoom one step, clamped at the minimum
func (h *Handlers) ZoomOut(c *fiber.Ctx) error {
	return h.mutate(c, func(s *viewer.Session) error { return s.ZoomOut() })
}

// SelectEngineRequest selects the engine for subsequent operations
type SelectEngineRequest struct {
	Engine string `json:"engine"`
}

// SelectEngine validates and installs the session's engine choice. Unknown
// identifiers are rejected before anything is dispatched.
func (h *Handlers) SelectEngine(c *fiber.Ctx) error {
	s, errResp := h.session(c)
	if s == nil {
		return errResp
	}

	var req SelectEngineRequest
	if err := c.BodyParser(&req); err != nil || req.Engine == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Body must carry an 'engine' identifier",
		})
	}
	if !h.registry.Has(ocr.EngineID(req.Engine)) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unsupported OCR engine: %s", req.Engine),
		})
	}

	if err := s.SelectEngine(ocr.EngineID(req.Engine)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return h.snapshot(c, s)
}

// SelectionRequest carries either one mouse event or a literal rectangle
type SelectionRequest struct {
	Event string `json:"event,omitempty"` // press | drag | release
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Rect  *struct {
		X1 int `json:"x1"`
		Y1 int `json:"y1"`
		X2 int `json:"x2"`
		Y2 int `json:"y2"`
	} `json:"rect,omitempty"`
}

// UpdateSelection feeds a selection gesture event, or installs a literal
// rectangle, into the session's tracker.
func (h *Handlers) UpdateSelection(c *fiber.Ctx) error {
	s, errResp := h.session(c)
	if s == nil {
		return errResp
	}

	var req SelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid selection body",
		})
	}

	var err error
	switch {
	case req.Rect != nil:
		err = s.SetSelection(req.Rect.X1, req.Rect.Y1, req.Rect.X2, req.Rect.Y2)
	case req.Event == "press":
		err = s.SelectionPress(req.X, req.Y)
	case req.Event == "drag":
		err = s.SelectionDrag(req.X, req.Y)
	case req.Event == "release":
		err = s.SelectionRelease(req.X, req.Y)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unknown selection event: %q", req.Event),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return h.snapshot(c, s)
}

// ClearSelection discards the session's selection
func (h *Handlers) ClearSelection(c *fiber.Ctx) error {
	return h.mutate(c, func(s *viewer.Session) error { return s.ClearSelection() })
}

// OCRPage dispatches recognition of the current page
func (h *Handlers) OCRPage(c *fiber.Ctx) error {
	return h.dispatchOp(c, func(s *viewer.Session) (*dispatch.Task, error) {
		return s.OCRPage(h.dispatcher)
	})
}

// OCRSelection dispatches recognition of the selected region
func (h *Handlers) OCRSelection(c *fiber.Ctx) error {
	return h.dispatchOp(c, func(s *viewer.Session) (*dispatch.Task, error) {
		return s.OCRSelection(h.dispatcher)
	})
}

// OCRDocument dispatches recognition of every page in order
func (h *Handlers) OCRDocument(c *fiber.Ctx) error {
	return h.dispatchOp(c, func(s *viewer.Session) (*dispatch.Task, error) {
		return s.OCRDocument(h.dispatcher)
	})
}

// ExtractTextLayer installs the PDF's embedded text layer as the result
func (h *Handlers) ExtractTextLayer(c *fiber.Ctx) error {
	return h.dispatchOp(c, func(s *viewer.Session) (*dispatch.Task, error) {
		return s.ExtractTextLayer(h.dispatcher, h.extractor)
	})
}

// dispatchOp runs one operation starter and reports the outcome: 409 for
// precondition failures (nothing dispatched), 202 with the task id
// otherwise. ?wait=1 blocks on the task handle and returns the final
// session snapshot instead.
func (h *Handlers) dispatchOp(c *fiber.Ctx, start func(*viewer.Session) (*dispatch.Task, error)) error {
	s, errResp := h.session(c)
	if s == nil {
		return errResp
	}

	task, err := start(s)
	if err != nil {
		if errors.Is(err, viewer.ErrNoDocument) || errors.Is(err, viewer.ErrNoSelection) {
			return warning(c, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if wait := c.Query("wait"); wait == "1" || wait == "true" {
		if _, err := task.Wait(c.Context()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":     err.Error(),
				"operation": string(task.Op()),
			})
		}
		return h.snapshot(c, s)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id":   task.ID(),
		"operation": string(task.Op()),
	})
}

// SaveTextRequest names the output file for the result text
type SaveTextRequest struct {
	Path string `json:"path"`
}

// SaveText writes the session's result text to disk with a full overwrite
func (h *Handlers) SaveText(c *fiber.Ctx) error {
	s, errResp := h.session(c)
	if s == nil {
		return errResp
	}

	var req SaveTextRequest
	if err := c.BodyParser(&req); err != nil || req.Path == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Body must carry a 'path'",
		})
	}

	written, err := s.SaveResult(req.Path)
	if err != nil {
		if errors.Is(err, viewer.ErrEmptyResult) {
			return warning(c, err)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to save text",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"path": written})
}

// OCRStats returns the dispatcher's metrics summary
func (h *Handlers) OCRStats(c *fiber.Ctx) error {
	return c.JSON(h.dispatcher.Metrics().Summary())
}

// mutate runs a session mutation and answers with the fresh snapshot.
func (h *Handlers) mutate(c *fiber.Ctx, fn func(*viewer.Session) error) error {
	s, errResp := h.session(c)
	if s == nil {
		return errResp
	}
	if err := fn(s); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return h.snapshot(c, s)
}

func (h *Handlers) snapshot(c *fiber.Ctx, s *viewer.Session) error {
	snap, err := s.Snapshot()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(snap)
}

// warning answers a precondition failure: the operation was not attempted.
func warning(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"warning": err.Error(),
	})
}
