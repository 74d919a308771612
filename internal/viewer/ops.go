package viewer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pagelens/pagelens/internal/dispatch"
	"github.com/pagelens/pagelens/internal/extract"
	"github.com/pagelens/pagelens/internal/render"
	"github.com/pagelens/pagelens/pkg/document"
	"github.com/pagelens/pagelens/pkg/ocr"
)

// OCRPage recognizes the currently rendered bitmap on a background
// goroutine. Preconditions are checked on the session loop before anything
// is dispatched: with no document open the call fails with ErrNoDocument
// and no engine is touched.
func (s *Session) OCRPage(d *dispatch.Dispatcher) (*dispatch.Task, error) {
	var task *dispatch.Task
	var opErr error
	if err := s.call(func() {
		if s.doc == nil {
			opErr = ErrNoDocument
			return
		}
		img, err := s.doc.Render(s.page, s.zoom)
		if err != nil {
			opErr = fmt.Errorf("render page %d: %w", s.page+1, err)
			return
		}

		engine := s.engine
		dpi := int(render.DPIForZoom(s.zoom))
		source := document.PageSource(s.page, string(engine))

		s.beginOperation(fmt.Sprintf("Performing OCR on current page using %s...", engine))
		task = d.Dispatch(dispatch.OpPage, engine, func(ctx context.Context) (string, int, error) {
			text, err := d.Adapter().Recognize(ctx, img, engine, ocr.WithDPI(dpi))
			return text, 1, err
		}, s.installResult(source, string(engine), 1))
	}); err != nil {
		return nil, err
	}
	return task, opErr
}

// OCRSelection recognizes the selected region of the current bitmap. The
// crop happens at dispatch time with integer-truncated bounds; without a
// document or a finalized selection the call fails before any dispatch.
func (s *Session) OCRSelection(d *dispatch.Dispatcher) (*dispatch.Task, error) {
	var task *dispatch.Task
	var opErr error
	if err := s.call(func() {
		if s.doc == nil {
			opErr = ErrNoDocument
			return
		}
		rect, ok := s.selection.Rect()
		if !ok {
			opErr = ErrNoSelection
			return
		}
		img, err := s.doc.Render(s.page, s.zoom)
		if err != nil {
			opErr = fmt.Errorf("render page %d: %w", s.page+1, err)
			return
		}
		cropped, err := ocr.Crop(img, rect)
		if err != nil {
			opErr = err
			return
		}

		engine := s.engine
		dpi := int(render.DPIForZoom(s.zoom))
		source := document.SelectionSource(string(engine))

		s.beginOperation(fmt.Sprintf("Performing OCR on selection using %s...", engine))
		task = d.Dispatch(dispatch.OpSelection, engine, func(ctx context.Context) (string, int, error) {
			text, err := d.Adapter().Recognize(ctx, cropped, engine, ocr.WithDPI(dpi))
			return text, 1, err
		}, s.installResult(source, string(engine), 1))
	}); err != nil {
		return nil, err
	}
	return task, opErr
}

// OCRDocument recognizes every page in order on one background goroutine.
// Pages render at the fixed DocumentZoom regardless of the interactive
// zoom; a progress status is posted before each page's recognition. The
// loop stops at the first error and cannot be cancelled once started.
func (s *Session) OCRDocument(d *dispatch.Dispatcher) (*dispatch.Task, error) {
	var task *dispatch.Task
	var opErr error
	if err := s.call(func() {
		if s.doc == nil {
			opErr = ErrNoDocument
			return
		}
		doc := s.doc
		pageCount := doc.PageCount()
		engine := s.engine
		dpi := int(render.DPIForZoom(DocumentZoom))
		source := document.DocumentSource(string(engine))

		s.beginOperation(fmt.Sprintf("Performing OCR on entire document using %s...", engine))
		task = d.Dispatch(dispatch.OpDocument, engine, func(ctx context.Context) (string, int, error) {
			sections := make([]document.Section, 0, pageCount)
			for i := 0; i < pageCount; i++ {
				pageNum := i + 1
				s.Post(func() {
					s.setStatus(fmt.Sprintf("Processing page %d of %d using %s...", pageNum, pageCount, engine))
					s.publish(NewSessionEvent(EventOCRProgress, s.id).
						With("page", pageNum).
						With("total", pageCount))
				})

				img, err := doc.Render(i, DocumentZoom)
				if err != nil {
					return "", i, fmt.Errorf("render page %d: %w", pageNum, err)
				}
				text, err := d.Adapter().Recognize(ctx, img, engine, ocr.WithDPI(dpi))
				if err != nil {
					return "", i, fmt.Errorf("page %d: %w", pageNum, err)
				}
				sections = append(sections, document.Section{Page: pageNum, Text: text})
			}
			return document.Assemble(sections), pageCount, nil
		}, s.installResult(source, string(engine), pageCount))
	}); err != nil {
		return nil, err
	}
	return task, opErr
}

// ExtractTextLayer installs the document's embedded text layer as the
// result without touching any recognition engine. A document with no
// layer reports an empty result, not an error.
func (s *Session) ExtractTextLayer(d *dispatch.Dispatcher, extractor *extract.TextLayerExtractor) (*dispatch.Task, error) {
	var task *dispatch.Task
	var opErr error
	if err := s.call(func() {
		if s.doc == nil {
			opErr = ErrNoDocument
			return
		}
		path := s.doc.Path()
		pageCount := s.doc.PageCount()

		s.beginOperation("Extracting embedded text layer...")
		task = d.Dispatch(dispatch.OpTextLayer, "", func(ctx context.Context) (string, int, error) {
			content, err := os.ReadFile(path)
			if err != nil {
				return "", 0, fmt.Errorf("read %s: %w", path, err)
			}
			text, _, err := extractor.Extract(ctx, content)
			return text, pageCount, err
		}, func(text string, err error) {
			s.Post(func() {
				s.inFlight--
				if err != nil {
					s.lastErr = err
					s.setStatus("Text layer extraction failed.")
					s.publish(failedEvent(s.id, "Text Layer", err))
					return
				}
				s.result = &document.Result{
					Text:      text,
					Source:    "Text Layer",
					Engine:    "embedded",
					Pages:     pageCount,
					CreatedAt: time.Now(),
				}
				s.lastErr = nil
				if text == "" {
					s.setStatus("No embedded text layer found.")
				} else {
					s.setStatus("Text layer extracted.")
				}
				s.publish(NewSessionEvent(EventOCRResult, s.id).
					With("source", "Text Layer").
					With("chars", len(text)))
			})
		})
	}); err != nil {
		return nil, err
	}
	return task, opErr
}

// beginOperation marks one more operation in flight and announces it on
// the status line. Loop-owned.
func (s *Session) beginOperation(status string) {
	s.inFlight++
	s.setStatus(status)
}

// installResult returns the completion that posts an operation's outcome
// back onto the session loop. Success overwrites the single shared result;
// failure keeps the error on the session until the next operation.
func (s *Session) installResult(source, engine string, pages int) dispatch.Complete {
	return func(text string, err error) {
		s.Post(func() {
			s.inFlight--
			if err != nil {
				s.lastErr = err
				s.setStatus("OCR failed.")
				s.publish(failedEvent(s.id, source, err))
				return
			}
			s.result = &document.Result{
				Text:      text,
				Source:    source,
				Engine:    engine,
				Pages:     pages,
				CreatedAt: time.Now(),
			}
			s.lastErr = nil
			s.setStatus(fmt.Sprintf("OCR complete: %s", source))
			s.publish(NewSessionEvent(EventOCRResult, s.id).
				With("source", source).
				With("chars", len(text)))
		})
	}
}

func failedEvent(sessionID, source string, err error) *SessionEvent {
	event := NewSessionEvent(EventOCRFailed, sessionID).With("source", source)
	event.Error = err.Error()
	return event
}
