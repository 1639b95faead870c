// Package scene owns the authoritative shape list and selection of one
// floor-plan document. Every mutation goes through the Store; nothing else
// holds writable shape state.
package scene

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"space-planner/internal/common/errors"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

// ============================================================
// Snapshot
// ============================================================

// Snapshot is a deep copy of the scene at one revision.
type Snapshot struct {
	Revision  uint64         `json:"revision"`
	Shapes    []shapes.Shape `json:"shapes"`
	Selection []string       `json:"selection,omitempty"`
}

// Clone returns a copy sharing no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Revision: s.Revision}
	out.Shapes = make([]shapes.Shape, len(s.Shapes))
	for i, sh := range s.Shapes {
		out.Shapes[i] = sh.Clone()
	}
	if s.Selection != nil {
		out.Selection = append([]string(nil), s.Selection...)
	}
	return out
}

// ============================================================
// Selection modes
// ============================================================

// SelectMode controls how Select combines ids with the current selection.
type SelectMode int

const (
	ModeReplace SelectMode = iota
	ModeAdd
	ModeToggle
)

func (m SelectMode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeToggle:
		return "toggle"
	default:
		return "replace"
	}
}

// ParseSelectMode maps "replace", "add" and "toggle"; empty means replace.
func ParseSelectMode(s string) (SelectMode, error) {
	switch s {
	case "", "replace":
		return ModeReplace, nil
	case "add":
		return ModeAdd, nil
	case "toggle":
		return ModeToggle, nil
	default:
		return ModeReplace, errors.Validation("unknown selection mode %q", s)
	}
}

// ============================================================
// Store
// ============================================================

// NewShape describes a shape to insert; the store assigns its id.
type NewShape struct {
	Kind        shapes.Kind
	Coordinates geometry.Coordinates
	Attrs       shapes.Attrs
}

// Store holds the ordered shape list (z-order, last drawn on top) and the
// selected id set.
type Store struct {
	mu sync.RWMutex

	docID     string
	order     []string
	byID      map[string]shapes.Shape
	issued    map[string]struct{} // every id ever held, removed ones included
	selection []string
	revision  uint64

	newID   func() string
	history *History
	bus     *Bus
	log     *log.Logger

	group         int
	groupRecorded bool
}

// Option configures a Store.
type Option func(*Store)

// WithDocumentID tags published changes with the owning document.
func WithDocumentID(id string) Option {
	return func(s *Store) { s.docID = id }
}

// WithIDGenerator replaces the uuid generator, mainly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithHistory sets the undo history; nil disables undo.
func WithHistory(h *History) Option {
	return func(s *Store) { s.history = h }
}

// WithBus publishes every committed change on b.
func WithBus(b *Bus) Option {
	return func(s *Store) { s.bus = b }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		byID:    make(map[string]shapes.Shape),
		issued:  make(map[string]struct{}),
		newID:   uuid.NewString,
		history: NewHistory(DefaultHistoryLimit),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.Default()
	}
	return s
}

// DocumentID returns the document this store belongs to.
func (s *Store) DocumentID() string { return s.docID }

// Subscribe returns the change feed of this store's document. Without a bus
// the channel is nil and never delivers.
func (s *Store) Subscribe() (<-chan Change, func()) {
	return s.bus.Subscribe(s.docID)
}

// ============================================================
// Mutations
// ============================================================

// AddShape validates and appends a shape, returning its fresh id.
func (s *Store) AddShape(kind shapes.Kind, coords geometry.Coordinates, attrs shapes.Attrs) (string, error) {
	ids, err := s.AddShapes([]NewShape{{Kind: kind, Coordinates: coords, Attrs: attrs}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddShapes appends a batch as one undo step. Either every shape is added
// or none is.
func (s *Store) AddShapes(batch []NewShape) ([]string, error) {
	for i, ns := range batch {
		if err := shapes.ValidateCoordinates(ns.Kind, ns.Coordinates); err != nil {
			return nil, wrapIndex(err, i, len(batch))
		}
		if err := shapes.ValidateAttrs(ns.Kind, ns.Attrs); err != nil {
			return nil, wrapIndex(err, i, len(batch))
		}
	}
	if len(batch) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for i := range batch {
		id := s.newID()
		_, used := s.issued[id]
		_, repeated := seen[id]
		if id == "" || used || repeated {
			return nil, errors.New(errors.CodeInternal, "id generator returned unusable id %q", id)
		}
		seen[id] = struct{}{}
		ids[i] = id
	}

	s.record()
	for i, ns := range batch {
		shape := ns.Attrs.Apply(shapes.Shape{
			ID:          ids[i],
			Type:        ns.Kind,
			Coordinates: geometry.Clone(ns.Coordinates),
		})
		s.byID[shape.ID] = shape
		s.issued[shape.ID] = struct{}{}
		s.order = append(s.order, shape.ID)
	}
	s.commit(ChangeAdd, ids...)
	return ids, nil
}

func wrapIndex(err error, i, n int) error {
	if n == 1 {
		return err
	}
	return errors.Wrap(errors.GetCode(err), err, "shape %d of %d", i+1, n)
}

// UpdateShape replaces the whole coordinate payload of id in one step,
// keeping every other attribute.
func (s *Store) UpdateShape(id string, coords geometry.Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return errors.NotFound("shape %s", id)
	}
	if err := shapes.ValidateCoordinates(cur.Type, coords); err != nil {
		return err
	}

	next := cur.Clone()
	next.Coordinates = geometry.Clone(coords)
	if cur.Inert() {
		// Repairing an inert shape: its stored attributes must hold too.
		next.Opaque = nil
		if err := shapes.Validate(next); err != nil {
			return err
		}
	}

	s.record()
	s.byID[id] = next
	s.commit(ChangeUpdate, id)
	return nil
}

// UpdateAttrs applies an attribute patch to id.
func (s *Store) UpdateAttrs(id string, attrs shapes.Attrs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return errors.NotFound("shape %s", id)
	}
	if _, err := shapes.Lookup(cur.Type); err != nil {
		return err
	}
	if err := shapes.ValidateAttrs(cur.Type, attrs); err != nil {
		return err
	}
	if attrs.Empty() {
		return nil
	}

	s.record()
	s.byID[id] = attrs.Apply(cur)
	s.commit(ChangeUpdate, id)
	return nil
}

// RemoveShape deletes id and drops it from the selection.
func (s *Store) RemoveShape(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return errors.NotFound("shape %s", id)
	}

	s.record()
	delete(s.byID, id)
	s.order = without(s.order, id)
	s.selection = without(s.selection, id)
	s.commit(ChangeRemove, id)
	return nil
}

// BringToFront moves id to the top of the z-order.
func (s *Store) BringToFront(id string) error {
	return s.reorder(id, true)
}

// SendToBack moves id to the bottom of the z-order.
func (s *Store) SendToBack(id string) error {
	return s.reorder(id, false)
}

func (s *Store) reorder(id string, front bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return errors.NotFound("shape %s", id)
	}
	if n := len(s.order); (front && s.order[n-1] == id) || (!front && s.order[0] == id) {
		return nil
	}

	s.record()
	rest := without(s.order, id)
	if front {
		s.order = append(rest, id)
	} else {
		s.order = append([]string{id}, rest...)
	}
	s.commit(ChangeOrder, id)
	return nil
}

// Restore replaces the whole scene with snap and clears the selection. A
// missing or repeated id rejects the snapshot and leaves the scene unchanged.
// Shapes of unknown kinds are kept as they are; malformed shapes of known
// kinds are kept inert, so they are saved back but never drawn.
func (s *Store) Restore(snap Snapshot) error {
	list := make([]shapes.Shape, 0, len(snap.Shapes))
	seen := make(map[string]struct{}, len(snap.Shapes))
	for _, sh := range snap.Shapes {
		if sh.ID == "" {
			return errors.Validation("shape id is required")
		}
		if _, dup := seen[sh.ID]; dup {
			return errors.Validation("duplicate shape id %s", sh.ID)
		}
		seen[sh.ID] = struct{}{}

		switch {
		case !shapes.Known(sh.Type):
			s.log.Warn("keeping shape of unknown kind", "id", sh.ID, "type", sh.Type)
		case sh.Inert():
			s.log.Warn("keeping malformed shape inert", "id", sh.ID, "type", sh.Type)
		default:
			if err := shapes.Validate(sh); err != nil {
				s.log.Warn("keeping malformed shape inert", "id", sh.ID, "type", sh.Type, "err", err)
				sh = shapes.MakeInert(sh)
			}
		}
		list = append(list, sh)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.record()
	s.replaceLocked(Snapshot{Shapes: list}.Clone().Shapes)
	s.selection = nil
	s.commit(ChangeRestore)
	return nil
}

// ClearHistory drops every undo and redo step.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history != nil {
		s.history.Reset()
	}
}

// Undo reverts the last committed mutation. It reports false when there is
// nothing to undo.
func (s *Store) Undo() bool {
	return s.step(true)
}

// Redo re-applies the last undone mutation.
func (s *Store) Redo() bool {
	return s.step(false)
}

func (s *Store) step(undo bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.history == nil {
		return false
	}
	current := s.snapshotLocked()
	var (
		target Snapshot
		ok     bool
	)
	if undo {
		target, ok = s.history.Undo(current)
	} else {
		target, ok = s.history.Redo(current)
	}
	if !ok {
		return false
	}

	s.replaceLocked(target.Shapes)
	kept := s.selection[:0:0]
	for _, id := range s.selection {
		if _, ok := s.byID[id]; ok {
			kept = append(kept, id)
		}
	}
	s.selection = kept
	s.commit(ChangeRestore)
	return true
}

// Group runs fn and records every mutation it makes as a single undo step.
// Callers are expected to be the document's event loop.
func (s *Store) Group(fn func() error) error {
	s.mu.Lock()
	if s.group == 0 {
		s.groupRecorded = false
	}
	s.group++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.group--
		s.mu.Unlock()
	}()
	return fn()
}

// ============================================================
// Selection
// ============================================================

// Select combines ids with the current selection according to mode. Ids
// that name no shape are dropped.
func (s *Store) Select(ids []string, mode SelectMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok && !contains(valid, id) {
			valid = append(valid, id)
		}
	}

	var next []string
	switch mode {
	case ModeAdd:
		next = append([]string(nil), s.selection...)
		for _, id := range valid {
			if !contains(next, id) {
				next = append(next, id)
			}
		}
	case ModeToggle:
		next = append([]string(nil), s.selection...)
		for _, id := range valid {
			if contains(next, id) {
				next = without(next, id)
			} else {
				next = append(next, id)
			}
		}
	default:
		next = valid
	}

	if sameSet(next, s.selection) {
		return
	}
	s.selection = next
	s.publish(ChangeSelect, next...)
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.Select(nil, ModeReplace)
}

// SelectAll selects every shape.
func (s *Store) SelectAll() {
	s.Select(s.IDs(), ModeReplace)
}

// ============================================================
// Queries
// ============================================================

// Get returns a copy of shape id.
func (s *Store) Get(id string) (shapes.Shape, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.byID[id]
	if !ok {
		return shapes.Shape{}, false
	}
	return sh.Clone(), true
}

// Shapes returns copies of every shape in z-order.
func (s *Store) Shapes() []shapes.Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shapesLocked()
}

// IDs returns the shape ids in z-order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Selection returns the selected ids in selection order.
func (s *Store) Selection() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selection...)
}

// Selected returns copies of the selected shapes.
func (s *Store) Selected() []shapes.Shape {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shapes.Shape, 0, len(s.selection))
	for _, id := range s.selection {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return contains(s.selection, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Revision is bumped by every committed content change.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history != nil && s.history.CanUndo()
}

func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history != nil && s.history.CanRedo()
}

// Snapshot returns a deep copy of the current scene.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// ============================================================
// Internals (callers hold s.mu)
// ============================================================

func (s *Store) shapesLocked() []shapes.Shape {
	out := make([]shapes.Shape, len(s.order))
	for i, id := range s.order {
		out[i] = s.byID[id].Clone()
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Revision:  s.revision,
		Shapes:    s.shapesLocked(),
		Selection: append([]string(nil), s.selection...),
	}
}

func (s *Store) replaceLocked(list []shapes.Shape) {
	s.byID = make(map[string]shapes.Shape, len(list))
	s.order = make([]string, 0, len(list))
	for _, sh := range list {
		s.byID[sh.ID] = sh.Clone()
		s.issued[sh.ID] = struct{}{}
		s.order = append(s.order, sh.ID)
	}
}

func (s *Store) record() {
	if s.history == nil {
		return
	}
	if s.group > 0 {
		if s.groupRecorded {
			return
		}
		s.groupRecorded = true
	}
	s.history.Record(s.snapshotLocked())
}

func (s *Store) commit(kind ChangeKind, ids ...string) {
	s.revision++
	s.publish(kind, ids...)
}

func (s *Store) publish(kind ChangeKind, ids ...string) {
	if !s.bus.HasSubscribers(s.docID) {
		return
	}
	s.bus.Publish(Change{
		DocumentID: s.docID,
		Kind:       kind,
		IDs:        append([]string(nil), ids...),
		Snapshot:   s.snapshotLocked(),
	})
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func without(list []string, id string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !contains(b, v) {
			return false
		}
	}
	return true
}
