// Package render turns scene shapes into drawable primitives. Each shape
// family has an adapter; mounted shapes register a live node in a shared
// NodeRegistry, and the Canvas keeps the mounted set in step with the store.
package render

import (
	"github.com/charmbracelet/log"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

// Committer receives geometry and rotation reported by committed nodes.
// *scene.Store satisfies it.
type Committer interface {
	UpdateShape(id string, c geometry.Coordinates) error
	UpdateAttrs(id string, a shapes.Attrs) error
}

// SymbolResolver supplies display labels for library symbols.
type SymbolResolver interface {
	Label(symbolID string) (string, bool)
}

// Stats counts what Sync did to the mounted set.
type Stats struct {
	Mounts   int `json:"mounts"`
	Repaints int `json:"repaints"`
	Skips    int `json:"skips"`
	Unmounts int `json:"unmounts"`
}

// Canvas is not safe for concurrent use. It belongs to one document's
// event loop.
type Canvas struct {
	registry  *NodeRegistry
	committer Committer
	symbols   SymbolResolver
	onSelect  func(SelectEvent)
	log       *log.Logger

	order   []string
	comps   map[string]*Component
	unknown map[string]struct{}
	stats   Stats
}

type CanvasOption func(*Canvas)

func WithSymbols(r SymbolResolver) CanvasOption {
	return func(c *Canvas) { c.symbols = r }
}

func WithLogger(l *log.Logger) CanvasOption {
	return func(c *Canvas) { c.log = l }
}

// WithRegistry shares an existing node registry.
func WithRegistry(r *NodeRegistry) CanvasOption {
	return func(c *Canvas) { c.registry = r }
}

// NewCanvas creates an empty canvas committing through committer.
func NewCanvas(committer Committer, opts ...CanvasOption) *Canvas {
	c := &Canvas{
		committer: committer,
		comps:     make(map[string]*Component),
		unknown:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewNodeRegistry()
	}
	if c.log == nil {
		c.log = log.Default()
	}
	return c
}

// OnSelect sets the handler pointer presses on nodes are forwarded to.
func (c *Canvas) OnSelect(fn func(SelectEvent)) {
	c.onSelect = fn
}

func (c *Canvas) Registry() *NodeRegistry { return c.registry }
func (c *Canvas) Stats() Stats            { return c.stats }

// ============================================================
// Sync
// ============================================================

// Sync mounts, updates and unmounts components so they mirror list (in
// z-order) and selection. Shapes of unknown kinds are skipped and logged
// once per id.
func (c *Canvas) Sync(list []shapes.Shape, selection []string) {
	selected := make(map[string]bool, len(selection))
	for _, id := range selection {
		selected[id] = true
	}

	seen := make(map[string]struct{}, len(list))
	order := make([]string, 0, len(list))

	for _, sh := range list {
		seen[sh.ID] = struct{}{}
		props := c.props(sh, selected[sh.ID])

		if comp, ok := c.comps[sh.ID]; ok {
			changed, err := comp.Update(props)
			if err != nil {
				c.log.Warn("remounting shape", "id", sh.ID, "err", err)
				comp.Unmount()
				delete(c.comps, sh.ID)
				c.stats.Unmounts++
			} else {
				if changed {
					c.stats.Repaints++
				} else {
					c.stats.Skips++
				}
				order = append(order, sh.ID)
				continue
			}
		}

		comp, err := Mount(props)
		if err != nil {
			c.skip(sh, err)
			continue
		}
		c.comps[sh.ID] = comp
		c.stats.Mounts++
		order = append(order, sh.ID)
	}

	for id, comp := range c.comps {
		if _, ok := seen[id]; !ok {
			comp.Unmount()
			delete(c.comps, id)
			c.stats.Unmounts++
		}
	}
	for id := range c.unknown {
		if _, ok := seen[id]; !ok {
			delete(c.unknown, id)
		}
	}
	c.order = order
}

func (c *Canvas) skip(sh shapes.Shape, err error) {
	if _, warned := c.unknown[sh.ID]; warned {
		return
	}
	c.unknown[sh.ID] = struct{}{}
	if errors.Is(err, errors.CodeUnknownKind) {
		c.log.Warn("not rendering shape of unknown kind", "id", sh.ID, "type", sh.Type)
		return
	}
	c.log.Warn("not rendering malformed shape", "id", sh.ID, "type", sh.Type, "err", err)
}

func (c *Canvas) props(sh shapes.Shape, selected bool) Props {
	p := Props{
		Shape:    sh,
		Selected: selected,
		Registry: c.registry,
		OnSelect: func(ev SelectEvent) {
			if c.onSelect != nil {
				c.onSelect(ev)
			}
		},
		OnTransform: func(id string, coords geometry.Coordinates) error {
			return c.committer.UpdateShape(id, coords)
		},
		OnRotate: func(id string, deg float64) error {
			return c.committer.UpdateAttrs(id, shapes.Attrs{Rotation: &deg})
		},
	}
	if sh.Type.IsLibrary() && c.symbols != nil {
		if label, ok := c.symbols.Label(sh.SymbolID()); ok {
			p.Label = label
		}
	}
	return p
}

// ============================================================
// Queries
// ============================================================

// Component returns the mounted component for id.
func (c *Canvas) Component(id string) (*Component, bool) {
	comp, ok := c.comps[id]
	return comp, ok
}

// Primitives returns the live primitives in z-order.
func (c *Canvas) Primitives() []Primitive {
	out := make([]Primitive, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.comps[id].Primitive())
	}
	return out
}

// Bounds is the union of the committed bounds of every mounted shape.
func (c *Canvas) Bounds() (geometry.Rect, bool) {
	var (
		out   geometry.Rect
		found bool
	)
	for _, id := range c.order {
		b := geometry.Bounds(c.comps[id].Shape().Coordinates)
		if !found {
			out, found = b, true
			continue
		}
		out = out.Union(b)
	}
	return out, found
}

// HitTest returns the topmost shape under p.
func (c *Canvas) HitTest(p geometry.Point, tol float64) (string, bool) {
	for i := len(c.order) - 1; i >= 0; i-- {
		id := c.order[i]
		if c.comps[id].Hit(p, tol) {
			return id, true
		}
	}
	return "", false
}

// PointerDown hit-tests p and forwards the press to the hit node's
// OnSelect.
func (c *Canvas) PointerDown(p geometry.Point, shift bool, tol float64) (string, bool) {
	id, ok := c.HitTest(p, tol)
	if !ok {
		return "", false
	}
	c.comps[id].PointerDown(p, shift)
	return id, true
}

// ============================================================
// Node transforms
// ============================================================

// Offset sets the in-flight drag offset of id.
func (c *Canvas) Offset(id string, dx, dy float64) {
	if n, ok := c.registry.Get(id); ok {
		n.OffsetX, n.OffsetY = dx, dy
	}
}

// Scale sets the in-flight scale of id.
func (c *Canvas) Scale(id string, sx, sy float64) {
	if n, ok := c.registry.Get(id); ok {
		n.ScaleX, n.ScaleY = sx, sy
	}
}

// Turn sets the in-flight rotation delta of id.
func (c *Canvas) Turn(id string, deg float64) {
	if n, ok := c.registry.Get(id); ok {
		n.RotationDelta = deg
	}
}

// Reset drops any in-flight transform of id.
func (c *Canvas) Reset(id string) {
	if n, ok := c.registry.Get(id); ok {
		n.Reset()
	}
}

// Node returns the registered node for id.
func (c *Canvas) Node(id string) (*Node, bool) {
	return c.registry.Get(id)
}

// Commit hands committed coordinates for id to its component.
func (c *Canvas) Commit(id string, coords geometry.Coordinates) error {
	comp, ok := c.comps[id]
	if !ok {
		return errors.NotFound("node %s", id)
	}
	return comp.Commit(coords)
}

// CommitRotation hands a committed rotation for id to its component.
func (c *Canvas) CommitRotation(id string, deg float64) error {
	comp, ok := c.comps[id]
	if !ok {
		return errors.NotFound("node %s", id)
	}
	return comp.CommitRotation(deg)
}
