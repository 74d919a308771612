package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pagelens/pagelens/pkg/logging"
	"github.com/pagelens/pagelens/pkg/ocr"
)

// Op names a recognition operation shape.
type Op string

const (
	OpPage      Op = "page"
	OpSelection Op = "selection"
	OpDocument  Op = "document"
	OpTextLayer Op = "text-layer"
)

// Work produces the text for one operation on a background goroutine. It
// returns the recognized text and the number of pages it touched.
type Work func(ctx context.Context) (text string, pages int, err error)

// Complete receives the operation's outcome. The dispatcher invokes it from
// the worker goroutine after the metric is recorded and before the task
// resolves; callers that own an event loop post the outcome onto it here.
type Complete func(text string, err error)

// Task is the handle for one dispatched operation. Callers may discard it;
// holding it allows waiting for completion.
type Task struct {
	id     string
	op     Op
	engine string
	done   chan struct{}
	text   string
	err    error
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// Op returns the operation shape the task runs.
func (t *Task) Op() Op { return t.op }

// Done is closed when the task resolves.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task resolves or ctx is cancelled, then returns the
// operation's text and error. Waiting does not cancel the operation; there
// is no cancellation once dispatched.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.text, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Dispatcher runs recognition operations on short-lived background
// goroutines, one per dispatch. It does not serialize operations: two
// dispatches run concurrently and their completions may land in either
// order.
type Dispatcher struct {
	adapter *ocr.Adapter
	metrics *Collector
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given adapter. A nil metrics
// collector disables metric recording.
func NewDispatcher(adapter *ocr.Adapter, metrics *Collector) *Dispatcher {
	return &Dispatcher{
		adapter: adapter,
		metrics: metrics,
		logger:  logging.GetLogger("dispatch"),
	}
}

// Adapter exposes the recognition entry point for work functions.
func (d *Dispatcher) Adapter() *ocr.Adapter { return d.adapter }

// Metrics exposes the dispatcher's collector.
func (d *Dispatcher) Metrics() *Collector { return d.metrics }

// Dispatch starts the operation on a fresh goroutine and returns its task
// handle immediately. complete fires exactly once; a nil complete is
// allowed.
func (d *Dispatcher) Dispatch(op Op, engine ocr.EngineID, work Work, complete Complete) *Task {
	task := &Task{
		id:     uuid.New().String(),
		op:     op,
		engine: string(engine),
		done:   make(chan struct{}),
	}

	d.logger.Debug().
		Str("task_id", task.id).
		Str("operation", string(op)).
		Str("engine", string(engine)).
		Msg("Operation dispatched")

	go func() {
		opLog := logging.GetOCRLogger(string(op), string(engine))

		start := time.Now()
		text, pages, err := work(context.Background())
		duration := time.Since(start)

		if d.metrics != nil {
			d.metrics.Record(Metric{
				Operation: op,
				Engine:    string(engine),
				Duration:  duration,
				Pages:     pages,
				Success:   err == nil,
				Error:     err,
			})
		}

		if err != nil {
			opLog.Error().
				Err(err).
				Str("task_id", task.id).
				Dur("duration", duration).
				Msg("Operation failed")
		} else {
			opLog.Info().
				Str("task_id", task.id).
				Int("pages", pages).
				Int("text_length", len(text)).
				Dur("duration", duration).
				Msg("Operation complete")
		}

		if complete != nil {
			complete(text, err)
		}

		task.text = text
		task.err = err
		close(task.done)
	}()

	return task
}
