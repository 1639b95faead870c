// Package interaction turns pointer and keyboard events into scene
// mutations. The Controller is a state machine; in-flight gestures live in
// session values and only reach the store when a gesture commits.
package interaction

import (
	stderrors "errors"
	"math"
	"strings"

	"github.com/charmbracelet/log"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/render"
	"space-planner/internal/planner/scene"
	"space-planner/internal/planner/shapes"
)

// ============================================================
// Dependencies
// ============================================================

// Scene is the store surface the controller mutates. *scene.Store
// satisfies it.
type Scene interface {
	Get(id string) (shapes.Shape, bool)
	Shapes() []shapes.Shape
	Selected() []shapes.Shape
	Selection() []string
	IsSelected(id string) bool

	Select(ids []string, mode scene.SelectMode)
	ClearSelection()
	SelectAll()

	AddShape(kind shapes.Kind, c geometry.Coordinates, a shapes.Attrs) (string, error)
	UpdateShape(id string, c geometry.Coordinates) error
	UpdateAttrs(id string, a shapes.Attrs) error
	RemoveShape(id string) error
	BringToFront(id string) error
	SendToBack(id string) error

	Undo() bool
	Redo() bool
	Group(fn func() error) error
}

// Surface is the render side: live nodes the controller moves during a
// gesture and commits through. *render.Canvas satisfies it.
type Surface interface {
	Sync(list []shapes.Shape, selection []string)
	OnSelect(fn func(render.SelectEvent))
	PointerDown(p geometry.Point, shift bool, tol float64) (string, bool)

	Offset(id string, dx, dy float64)
	Scale(id string, sx, sy float64)
	Turn(id string, deg float64)
	Reset(id string)

	Commit(id string, c geometry.Coordinates) error
	CommitRotation(id string, deg float64) error
}

// SymbolSizer gives the default footprint of a library symbol.
type SymbolSizer interface {
	Size(symbolID string) (w, h float64, ok bool)
}

// Config tunes gesture recognition.
type Config struct {
	DragThreshold  float64
	HitTolerance   float64
	NudgeStep      float64
	NudgeStepLarge float64
	DefaultText    string
	SymbolSize     float64
}

func DefaultConfig() Config {
	return Config{
		DragThreshold:  3,
		HitTolerance:   4,
		NudgeStep:      1,
		NudgeStepLarge: 10,
		DefaultText:    "Text",
		SymbolSize:     60,
	}
}

// ============================================================
// Controller
// ============================================================

type press struct {
	start   geometry.Point
	current geometry.Point
	target  string
	hit     bool
	shift   bool
}

// Controller is not safe for concurrent use; the workspace runs it under
// the document lock.
type Controller struct {
	scene   Scene
	surface Surface
	symbols SymbolSizer
	cfg     Config
	log     *log.Logger

	state    State
	tool     Tool
	symbolID string

	press     *press
	drag      DragSession
	transform TransformSession
	create    *createSession
	editing   string
}

type Option func(*Controller)

func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

func WithSymbols(s SymbolSizer) Option {
	return func(c *Controller) { c.symbols = s }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New wires a controller to a scene and a surface and syncs the surface.
func New(sc Scene, surface Surface, opts ...Option) *Controller {
	c := &Controller{
		scene:   sc,
		surface: surface,
		cfg:     DefaultConfig(),
		tool:    ToolSelect,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = log.Default()
	}
	if c.cfg.DragThreshold < 0 {
		c.cfg.DragThreshold = 0
	}
	surface.OnSelect(c.handleSelect)
	c.Refresh()
	return c
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Tool() Tool   { return c.tool }

// Drag returns the active drag session, if any.
func (c *Controller) Drag() (DragSession, bool) {
	return c.drag, c.state == StateDragging
}

// Transform returns the active transform session, if any.
func (c *Controller) Transform() (TransformSession, bool) {
	return c.transform, c.state == StateTransforming
}

// Refresh syncs the surface with the scene.
func (c *Controller) Refresh() {
	c.surface.Sync(c.scene.Shapes(), c.scene.Selection())
}

// Dispatch feeds one event through the state machine and re-syncs the
// surface. Events that mean nothing in the current state are ignored.
func (c *Controller) Dispatch(ev Event) error {
	err := c.dispatch(ev)
	c.Refresh()
	return err
}

func (c *Controller) dispatch(ev Event) error {
	switch ev.Type {
	case EventPointerDown, EventPointerMove, EventPointerUp, EventKey,
		EventHandle, EventEditBegin, EventEditSubmit, EventEditCancel:
	case EventCancel:
		c.cancel()
		return nil
	case EventTool:
		return c.setTool(ev)
	default:
		return errors.Validation("unknown event type %q", ev.Type)
	}

	switch c.state {
	case StateIdle:
		return c.idle(ev)
	case StateSelecting:
		return c.selecting(ev)
	case StateDragging:
		return c.dragging(ev)
	case StateTransforming:
		return c.transforming(ev)
	case StateEditing:
		return c.editingEvent(ev)
	case StateCreating:
		return c.creating(ev)
	default:
		return errors.New(errors.CodeInternal, "controller in unknown state %d", c.state)
	}
}

func (c *Controller) to(s State) {
	if s != c.state {
		c.log.Debug("state", "from", c.state, "to", s)
	}
	c.state = s
}

// cancel discards any in-flight gesture without touching the store.
func (c *Controller) cancel() {
	switch c.state {
	case StateDragging:
		for _, id := range c.drag.IDs {
			c.surface.Reset(id)
		}
	case StateTransforming:
		c.surface.Reset(c.transform.ID)
	}
	c.press = nil
	c.drag = DragSession{}
	c.transform = TransformSession{}
	c.create = nil
	c.editing = ""
	c.to(StateIdle)
}

func (c *Controller) setTool(ev Event) error {
	t, err := ParseTool(ev.Tool)
	if err != nil {
		return err
	}
	if c.state != StateIdle {
		c.cancel()
	}
	c.tool = t
	c.symbolID = ev.SymbolID
	return nil
}

// ============================================================
// Idle
// ============================================================

func (c *Controller) idle(ev Event) error {
	switch ev.Type {
	case EventPointerDown:
		return c.pointerDown(ev)
	case EventKey:
		return c.key(ev)
	case EventHandle:
		return c.grabHandle(ev)
	case EventEditBegin:
		return c.beginEdit(ev.ID)
	}
	return nil
}

func (c *Controller) pointerDown(ev Event) error {
	p := ev.Point()
	if kind := c.tool.Kind(); kind != "" {
		c.create = &createSession{Kind: kind, SymbolID: c.symbolID, Start: p, Current: p}
		c.create.add(p)
		c.to(StateCreating)
		return nil
	}

	// A hit is forwarded by the node to handleSelect before this returns.
	id, hit := c.surface.PointerDown(p, ev.Shift, c.cfg.HitTolerance)
	if !hit && !ev.Shift {
		c.scene.ClearSelection()
	}
	c.press = &press{start: p, current: p, target: id, hit: hit, shift: ev.Shift}
	c.to(StateSelecting)
	return nil
}

// handleSelect is the OnSelect callback of every mounted node.
func (c *Controller) handleSelect(ev render.SelectEvent) {
	switch {
	case ev.Shift:
		c.scene.Select([]string{ev.ID}, scene.ModeToggle)
	case !c.scene.IsSelected(ev.ID):
		c.scene.Select([]string{ev.ID}, scene.ModeReplace)
	}
}

func (c *Controller) key(ev Event) error {
	k := normalizeKey(ev.Key)
	switch {
	case k == "Delete" || k == "Backspace":
		return c.deleteSelection()
	case k == "Escape":
		c.scene.ClearSelection()
	case ev.Ctrl && k == "a":
		c.scene.SelectAll()
	case ev.Ctrl && (k == "y" || (k == "z" && ev.Shift)):
		c.scene.Redo()
	case ev.Ctrl && k == "z":
		c.scene.Undo()
	case ev.Ctrl && k == "]":
		return c.reorderSelection(c.scene.BringToFront)
	case ev.Ctrl && k == "[":
		return c.reorderSelection(c.scene.SendToBack)
	default:
		if dx, dy, ok := c.arrow(k, ev.Shift); ok {
			return c.nudge(dx, dy)
		}
	}
	return nil
}

func (c *Controller) arrow(k string, large bool) (float64, float64, bool) {
	step := c.cfg.NudgeStep
	if large {
		step = c.cfg.NudgeStepLarge
	}
	switch k {
	case "ArrowLeft":
		return -step, 0, true
	case "ArrowRight":
		return step, 0, true
	case "ArrowUp":
		return 0, -step, true
	case "ArrowDown":
		return 0, step, true
	}
	return 0, 0, false
}

// nudge moves the selection as one undo step.
func (c *Controller) nudge(dx, dy float64) error {
	selected := c.scene.Selected()
	if len(selected) == 0 {
		return nil
	}
	return c.scene.Group(func() error {
		var errs []error
		for _, sh := range selected {
			if sh.Coordinates == nil {
				continue
			}
			if err := c.scene.UpdateShape(sh.ID, geometry.Translate(sh.Coordinates, dx, dy)); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	})
}

func (c *Controller) deleteSelection() error {
	ids := c.scene.Selection()
	if len(ids) == 0 {
		return nil
	}
	return c.scene.Group(func() error {
		var errs []error
		for _, id := range ids {
			if err := c.scene.RemoveShape(id); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	})
}

func (c *Controller) reorderSelection(fn func(id string) error) error {
	ids := c.scene.Selection()
	if len(ids) == 0 {
		return nil
	}
	return c.scene.Group(func() error {
		for _, id := range ids {
			if err := fn(id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ============================================================
// Selecting
// ============================================================

func (c *Controller) selecting(ev Event) error {
	p := ev.Point()
	switch ev.Type {
	case EventPointerMove:
		c.press.current = p
		if !c.press.hit || p.Dist(c.press.start) <= c.cfg.DragThreshold {
			return nil
		}
		if !c.scene.IsSelected(c.press.target) {
			return nil
		}
		c.beginDrag()
		c.dragMove(p)
	case EventPointerUp:
		c.press.current = p
		if !c.press.hit {
			c.finishMarquee()
		}
		c.press = nil
		c.to(StateIdle)
	case EventHandle:
		c.press = nil
		c.to(StateIdle)
		return c.grabHandle(ev)
	case EventPointerDown:
		c.cancel()
		return c.idle(ev)
	case EventKey:
		if ev.Key == "Escape" {
			c.cancel()
		}
	}
	return nil
}

// Marquee returns the rubber band of an empty-canvas press.
func (c *Controller) Marquee() (geometry.Rect, bool) {
	if c.state != StateSelecting || c.press == nil || c.press.hit {
		return geometry.Rect{}, false
	}
	return geometry.RectFromPoints(c.press.start, c.press.current), true
}

func (c *Controller) finishMarquee() {
	if c.press.current.Dist(c.press.start) <= c.cfg.DragThreshold {
		return
	}
	box := geometry.RectFromPoints(c.press.start, c.press.current)

	var ids []string
	for _, sh := range c.scene.Shapes() {
		if sh.Coordinates == nil {
			continue
		}
		if box.Intersects(geometry.Bounds(sh.Coordinates)) {
			ids = append(ids, sh.ID)
		}
	}
	mode := scene.ModeReplace
	if c.press.shift {
		mode = scene.ModeAdd
	}
	c.scene.Select(ids, mode)
}

// ============================================================
// Dragging
// ============================================================

func (c *Controller) beginDrag() {
	c.drag = newDragSession(c.press.start, c.scene.Selected())
	c.press = nil
	c.to(StateDragging)
}

// dragMove repositions the affected nodes only; the store is untouched.
func (c *Controller) dragMove(p geometry.Point) {
	c.drag.MoveTo(p)
	for _, id := range c.drag.IDs {
		c.surface.Offset(id, c.drag.DX, c.drag.DY)
	}
}

func (c *Controller) dragging(ev Event) error {
	p := ev.Point()
	switch ev.Type {
	case EventPointerMove:
		c.dragMove(p)
	case EventPointerUp:
		c.dragMove(p)
		return c.commitDrag()
	case EventPointerDown:
		c.cancel()
		return c.idle(ev)
	case EventHandle:
		c.cancel()
		return c.grabHandle(ev)
	case EventKey:
		if ev.Key == "Escape" {
			c.cancel()
		}
	}
	return nil
}

// commitDrag writes each dragged shape exactly once, as one undo step.
func (c *Controller) commitDrag() error {
	sess := c.drag
	c.drag = DragSession{}
	c.to(StateIdle)

	if sess.DX == 0 && sess.DY == 0 {
		for _, id := range sess.IDs {
			c.surface.Reset(id)
		}
		return nil
	}
	return c.scene.Group(func() error {
		var errs []error
		for _, id := range sess.IDs {
			coords, _ := sess.Committed(id)
			if err := c.surface.Commit(id, coords); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	})
}

// ============================================================
// Transforming
// ============================================================

func (c *Controller) grabHandle(ev Event) error {
	h := geometry.ParseHandle(ev.Handle)
	if h == geometry.HandleNone {
		return errors.Validation("unknown handle %q", ev.Handle)
	}
	sel := c.scene.Selection()
	if len(sel) != 1 || (ev.ID != "" && sel[0] != ev.ID) {
		return errors.Validation("transform handles need exactly one selected shape")
	}
	sh, ok := c.scene.Get(sel[0])
	if !ok {
		return errors.NotFound("shape %s", sel[0])
	}
	if sh.Coordinates == nil {
		return errors.UnknownKind(string(sh.Type))
	}

	c.transform = newTransformSession(sh, h, ev.Point())
	c.to(StateTransforming)
	return nil
}

func (c *Controller) transforming(ev Event) error {
	p := ev.Point()
	switch ev.Type {
	case EventPointerMove:
		c.transformMove(p)
	case EventPointerUp:
		c.transformMove(p)
		return c.commitTransform()
	case EventPointerDown:
		c.cancel()
		return c.idle(ev)
	case EventKey:
		if ev.Key == "Escape" {
			c.cancel()
		}
	}
	return nil
}

func (c *Controller) transformMove(p geometry.Point) {
	c.transform.MoveTo(p)
	if c.transform.Rotating() {
		c.surface.Turn(c.transform.ID, c.transform.Angle)
		return
	}
	c.surface.Scale(c.transform.ID, c.transform.ScaleX, c.transform.ScaleY)
}

// commitTransform makes one store write, then the node is back at scale
// (1,1) with no rotation delta.
func (c *Controller) commitTransform() error {
	sess := c.transform
	c.transform = TransformSession{}
	c.to(StateIdle)

	if sess.Rotating() {
		if sess.Angle == 0 {
			c.surface.Reset(sess.ID)
			return nil
		}
		if coords, ok := sess.RotatedPoints(); ok {
			return c.surface.Commit(sess.ID, coords)
		}
		return c.surface.CommitRotation(sess.ID, sess.Rotated())
	}

	if sess.ScaleX == 1 && sess.ScaleY == 1 {
		c.surface.Reset(sess.ID)
		return nil
	}
	return c.surface.Commit(sess.ID, sess.Resized())
}

// ============================================================
// Editing
// ============================================================

// Editing returns the id of the text shape under edit.
func (c *Controller) Editing() (string, bool) {
	return c.editing, c.state == StateEditing
}

func (c *Controller) beginEdit(id string) error {
	sh, ok := c.scene.Get(id)
	if !ok {
		return errors.NotFound("shape %s", id)
	}
	if sh.Type != shapes.KindText {
		return errors.Validation("only text shapes can be edited, %s is %s", id, sh.Type)
	}
	c.editing = id
	c.to(StateEditing)
	return nil
}

func (c *Controller) editingEvent(ev Event) error {
	switch ev.Type {
	case EventEditSubmit:
		id := c.editing
		c.editing = ""
		c.to(StateIdle)
		// An emptied label is dropped rather than left invisible.
		if strings.TrimSpace(ev.Text) == "" {
			return c.scene.RemoveShape(id)
		}
		text := ev.Text
		return c.scene.UpdateAttrs(id, shapes.Attrs{Text: &text})
	case EventEditCancel:
		c.cancel()
	case EventKey:
		if ev.Key == "Escape" {
			c.cancel()
		}
	case EventPointerDown:
		c.cancel()
		return c.idle(ev)
	}
	return nil
}

// ============================================================
// Creating
// ============================================================

func (c *Controller) creating(ev Event) error {
	p := ev.Point()
	cs := c.create
	polygon := cs.Kind == shapes.KindPolygon

	switch ev.Type {
	case EventPointerMove:
		cs.Current = p
		if cs.Kind == shapes.KindFreehand {
			cs.add(p)
		}
	case EventPointerDown:
		if !polygon {
			return nil
		}
		if len(cs.Points) >= 3 && p.Dist(cs.Points[0]) <= math.Max(c.cfg.HitTolerance, c.cfg.DragThreshold) {
			return c.commitCreate()
		}
		cs.add(p)
	case EventPointerUp:
		if polygon {
			return nil
		}
		cs.Current = p
		if cs.Kind == shapes.KindFreehand {
			cs.add(p)
		}
		return c.commitCreate()
	case EventKey:
		switch ev.Key {
		case "Escape":
			c.cancel()
		case "Enter":
			if polygon {
				return c.commitCreate()
			}
		}
	}
	return nil
}

// Draft returns the coordinates the creation in progress would commit.
func (c *Controller) Draft() (geometry.Coordinates, bool) {
	if c.state != StateCreating || c.create == nil {
		return nil, false
	}
	coords, _, ok := c.draft(c.create)
	return coords, ok
}

func (c *Controller) commitCreate() error {
	cs := c.create
	c.create = nil
	c.to(StateIdle)

	coords, attrs, ok := c.draft(cs)
	if !ok {
		c.log.Debug("discarding gesture too small to create a shape", "kind", cs.Kind)
		return nil
	}
	id, err := c.scene.AddShape(cs.Kind, coords, attrs)
	if err != nil {
		return err
	}
	c.scene.Select([]string{id}, scene.ModeReplace)

	if cs.Kind == shapes.KindText {
		c.editing = id
		c.to(StateEditing)
	}
	return nil
}

func (c *Controller) draft(cs *createSession) (geometry.Coordinates, shapes.Attrs, bool) {
	entry, err := shapes.Lookup(cs.Kind)
	if err != nil {
		return nil, shapes.Attrs{}, false
	}
	dragged := cs.Current.Dist(cs.Start) > c.cfg.DragThreshold

	switch entry.Adapter {
	case shapes.AdapterText:
		text := c.cfg.DefaultText
		return geometry.AnchorCoords{X: cs.Start.X, Y: cs.Start.Y}, shapes.Attrs{Text: &text}, true

	case shapes.AdapterSymbol:
		var attrs shapes.Attrs
		if cs.SymbolID != "" {
			id := cs.SymbolID
			attrs.SymbolID = &id
		}
		if dragged {
			return boxCoords(geometry.RectFromPoints(cs.Start, cs.Current)), attrs, true
		}
		w, h := c.cfg.SymbolSize, c.cfg.SymbolSize
		if c.symbols != nil {
			if sw, sh, ok := c.symbols.Size(cs.SymbolID); ok {
				w, h = sw, sh
			}
		}
		box := geometry.Rect{X: cs.Start.X - w/2, Y: cs.Start.Y - h/2, W: w, H: h}
		return boxCoords(box), attrs, true

	case shapes.AdapterCircle:
		if !dragged {
			return nil, shapes.Attrs{}, false
		}
		r := math.Max(cs.Current.Dist(cs.Start), geometry.MinDimension)
		return geometry.CircleCoords{CX: cs.Start.X, CY: cs.Start.Y, Radius: r}, shapes.Attrs{}, true

	case shapes.AdapterPath:
		if len(cs.Points) < entry.MinPoints {
			return nil, shapes.Attrs{}, false
		}
		pts := append([]geometry.Point(nil), cs.Points...)
		return geometry.PathCoords{Points: pts}, shapes.Attrs{}, true

	default:
		if !dragged {
			return nil, shapes.Attrs{}, false
		}
		return boxCoords(geometry.RectFromPoints(cs.Start, cs.Current)), shapes.Attrs{}, true
	}
}

func boxCoords(r geometry.Rect) geometry.RectCoords {
	return geometry.RectCoords{
		Left:   r.X,
		Top:    r.Y,
		Width:  math.Max(r.W, geometry.MinDimension),
		Height: math.Max(r.H, geometry.MinDimension),
	}
}

// ============================================================
// View
// ============================================================

// View is a serializable summary of the controller for clients.
type View struct {
	State     string               `json:"state"`
	Tool      string               `json:"tool"`
	Selection []string             `json:"selection"`
	Editing   string               `json:"editing,omitempty"`
	Marquee   *geometry.Rect       `json:"marquee,omitempty"`
	Draft     geometry.Coordinates `json:"draft,omitempty"`
}

func (c *Controller) View() View {
	v := View{
		State:     c.state.String(),
		Tool:      string(c.tool),
		Selection: c.scene.Selection(),
	}
	if id, ok := c.Editing(); ok {
		v.Editing = id
	}
	if box, ok := c.Marquee(); ok {
		v.Marquee = &box
	}
	if d, ok := c.Draft(); ok {
		v.Draft = d
	}
	return v
}
