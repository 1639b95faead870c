package interaction

import (
	"strings"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

// ============================================================
// States
// ============================================================

// State is the controller's interaction mode.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateDragging
	StateTransforming
	StateEditing
	StateCreating
)

func (s State) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateDragging:
		return "dragging"
	case StateTransforming:
		return "transforming"
	case StateEditing:
		return "editing"
	case StateCreating:
		return "creating"
	default:
		return "idle"
	}
}

// ============================================================
// Tools
// ============================================================

// Tool is the active pointer tool: select, or a shape kind to create.
type Tool string

const ToolSelect Tool = "select"

// ParseTool accepts "select" or any known shape kind.
func ParseTool(s string) (Tool, error) {
	if s == "" || s == string(ToolSelect) {
		return ToolSelect, nil
	}
	if !shapes.Known(shapes.Kind(s)) {
		return "", errors.Validation("unknown tool %q", s)
	}
	return Tool(s), nil
}

// Kind returns the shape kind the tool creates, or "" for select.
func (t Tool) Kind() shapes.Kind {
	if t == ToolSelect || t == "" {
		return ""
	}
	return shapes.Kind(t)
}

// ============================================================
// Events
// ============================================================

// EventType names an input event.
type EventType string

const (
	EventPointerDown EventType = "pointerdown"
	EventPointerMove EventType = "pointermove"
	EventPointerUp   EventType = "pointerup"
	EventKey         EventType = "key"
	EventHandle      EventType = "handle"
	EventEditBegin   EventType = "editbegin"
	EventEditSubmit  EventType = "editsubmit"
	EventEditCancel  EventType = "editcancel"
	EventTool        EventType = "tool"
	EventCancel      EventType = "cancel"
)

// Event is one pointer, keyboard or overlay event.
type Event struct {
	Type EventType `json:"type"`

	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Shift bool    `json:"shift,omitempty"`
	Ctrl  bool    `json:"ctrl,omitempty"`

	// Key uses DOM key names: "Delete", "Escape", "ArrowLeft", "a", ...
	Key string `json:"key,omitempty"`

	// Handle is a transformer handle name for EventHandle.
	Handle string `json:"handle,omitempty"`
	// ID targets a shape for EventHandle and EventEditBegin.
	ID string `json:"id,omitempty"`

	Text     string `json:"text,omitempty"`
	Tool     string `json:"tool,omitempty"`
	SymbolID string `json:"symbolId,omitempty"`
}

// Point returns the pointer position of the event.
func (e Event) Point() geometry.Point {
	return geometry.Point{X: e.X, Y: e.Y}
}

func PointerDown(x, y float64) Event { return Event{Type: EventPointerDown, X: x, Y: y} }
func PointerMove(x, y float64) Event { return Event{Type: EventPointerMove, X: x, Y: y} }
func PointerUp(x, y float64) Event   { return Event{Type: EventPointerUp, X: x, Y: y} }
func Key(key string) Event           { return Event{Type: EventKey, Key: key} }

// GrabHandle is the event sent when a transformer handle is pressed at (x, y).
func GrabHandle(id string, h geometry.Handle, x, y float64) Event {
	return Event{Type: EventHandle, ID: id, Handle: h.String(), X: x, Y: y}
}

func normalizeKey(k string) string {
	if len(k) == 1 {
		return strings.ToLower(k)
	}
	return k
}
