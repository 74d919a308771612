package viewer

import "image"

// SelectionState names a phase of the region selection gesture.
type SelectionState string

const (
	// SelectionIdle means no press has been registered.
	SelectionIdle SelectionState = "idle"
	// SelectionDragging means a press was registered and the rectangle is
	// being previewed.
	SelectionDragging SelectionState = "dragging"
	// SelectionSelected means a release finalized the rectangle.
	SelectionSelected SelectionState = "selected"
)

// SelectionTracker turns press/drag/release events into a normalized
// rectangle in the coordinate space of the currently rendered bitmap. Any
// page or zoom change must Reset the tracker because the coordinates would
// otherwise refer to a stale bitmap.
type SelectionTracker struct {
	state  SelectionState
	startX int
	startY int
	curX   int
	curY   int
	rect   image.Rectangle
}

// NewSelectionTracker returns a tracker in the idle state.
func NewSelectionTracker() *SelectionTracker {
	return &SelectionTracker{state: SelectionIdle}
}

// State returns the tracker's current phase.
func (t *SelectionTracker) State() SelectionState { return t.state }

// Press anchors a new selection at (x, y). A press always starts over,
// discarding any finalized rectangle.
func (t *SelectionTracker) Press(x, y int) {
	t.startX, t.startY = x, y
	t.curX, t.curY = x, y
	t.rect = image.Rectangle{}
	t.state = SelectionDragging
}

// Drag moves the free corner of the previewed rectangle. Ignored unless a
// press is in progress.
func (t *SelectionTracker) Drag(x, y int) {
	if t.state != SelectionDragging {
		return
	}
	t.curX, t.curY = x, y
}

// Release finalizes the rectangle, normalizing the corners so x1<=x2 and
// y1<=y2 regardless of drag direction. Ignored unless a press is in
// progress.
func (t *SelectionTracker) Release(x, y int) {
	if t.state != SelectionDragging {
		return
	}
	t.rect = normalizeRect(t.startX, t.startY, x, y)
	t.state = SelectionSelected
}

// Clear discards any selection and returns the tracker to idle.
func (t *SelectionTracker) Clear() {
	t.rect = image.Rectangle{}
	t.state = SelectionIdle
}

// Reset is Clear under the name used when the displayed bitmap changes.
func (t *SelectionTracker) Reset() { t.Clear() }

// Set installs a literal, already-drawn rectangle, normalizing its corners.
func (t *SelectionTracker) Set(x1, y1, x2, y2 int) {
	t.rect = normalizeRect(x1, y1, x2, y2)
	t.state = SelectionSelected
}

// Rect returns the finalized rectangle. ok is false unless the tracker is
// in the selected state.
func (t *SelectionTracker) Rect() (image.Rectangle, bool) {
	if t.state != SelectionSelected {
		return image.Rectangle{}, false
	}
	return t.rect, true
}

// Preview returns the rectangle currently being dragged. ok is false unless
// a press is in progress.
func (t *SelectionTracker) Preview() (image.Rectangle, bool) {
	if t.state != SelectionDragging {
		return image.Rectangle{}, false
	}
	return normalizeRect(t.startX, t.startY, t.curX, t.curY), true
}

func normalizeRect(x1, y1, x2, y2 int) image.Rectangle {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return image.Rect(x1, y1, x2, y2)
}
