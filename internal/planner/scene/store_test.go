package scene

import (
	"fmt"
	"testing"
	"time"

	"space-planner/internal/common/errors"
	"space-planner/internal/common/logging"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/shapes"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	n := 0
	gen := func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
	base := []Option{WithIDGenerator(gen), WithLogger(logging.Discard()), WithDocumentID("doc")}
	return New(append(base, opts...)...)
}

func addRect(t *testing.T, s *Store, left, top, w, h float64) string {
	t.Helper()
	id, err := s.AddShape(shapes.KindRectangle, geometry.RectCoords{Left: left, Top: top, Width: w, Height: h}, shapes.Attrs{})
	if err != nil {
		t.Fatalf("AddShape: %v", err)
	}
	return id
}

func TestAddShapeAssignsFreshIDs(t *testing.T) {
	s := newTestStore(t)
	a := addRect(t, s, 0, 0, 10, 10)
	b := addRect(t, s, 5, 5, 10, 10)
	if a == b {
		t.Fatalf("ids must be unique, both %q", a)
	}
	if got := s.IDs(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("unexpected order %v", got)
	}
	if s.Revision() != 2 {
		t.Fatalf("revision = %d, want 2", s.Revision())
	}
}

func TestAddShapeRejectsMismatchedCoordinates(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddShape(shapes.KindRectangle, geometry.CircleCoords{Radius: 4}, shapes.Attrs{})
	if !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if s.Len() != 0 || s.Revision() != 0 {
		t.Fatalf("store changed on rejected add")
	}
}

func TestAddShapesIsAtomic(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddShapes([]NewShape{
		{Kind: shapes.KindCircle, Coordinates: geometry.CircleCoords{CX: 1, CY: 1, Radius: 2}},
		{Kind: shapes.KindText, Coordinates: geometry.RectCoords{Width: 1, Height: 1}},
	})
	if !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("partial batch was committed")
	}
}

func TestUpdateShapeReplacesPayloadAndKeepsAttrs(t *testing.T) {
	s := newTestStore(t)
	id, err := s.AddShape(shapes.KindDoor, geometry.RectCoords{Width: 80, Height: 10}, shapes.Attrs{Color: shapes.String("#aa0000")})
	if err != nil {
		t.Fatalf("AddShape: %v", err)
	}

	if err := s.UpdateShape(id, geometry.RectCoords{Left: 5, Top: 6, Width: 90, Height: 12}); err != nil {
		t.Fatalf("UpdateShape: %v", err)
	}
	got, _ := s.Get(id)
	if got.Coordinates != (geometry.RectCoords{Left: 5, Top: 6, Width: 90, Height: 12}) {
		t.Fatalf("coordinates = %+v", got.Coordinates)
	}
	if got.Color == nil || *got.Color != "#aa0000" {
		t.Fatalf("color lost: %+v", got)
	}

	err = s.UpdateShape(id, geometry.AnchorCoords{X: 1, Y: 1})
	if !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
	if err := s.UpdateShape("missing", geometry.RectCoords{}); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRemoveShapeDropsFromSelection(t *testing.T) {
	s := newTestStore(t)
	a := addRect(t, s, 0, 0, 10, 10)
	b := addRect(t, s, 0, 0, 10, 10)
	s.Select([]string{a, b}, ModeReplace)

	if err := s.RemoveShape(a); err != nil {
		t.Fatalf("RemoveShape: %v", err)
	}
	if s.IsSelected(a) {
		t.Fatalf("removed shape still selected")
	}
	if sel := s.Selection(); len(sel) != 1 || sel[0] != b {
		t.Fatalf("selection = %v", sel)
	}
	if err := s.RemoveShape(a); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("second remove: expected NOT_FOUND, got %v", err)
	}
}

func TestRemovedIDsAreNeverReissued(t *testing.T) {
	ids := []string{"a", "a", "b"}
	gen := func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	s := New(WithIDGenerator(gen), WithLogger(logging.Discard()))

	a := addRect(t, s, 0, 0, 10, 10)
	if err := s.RemoveShape(a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddShape(shapes.KindRectangle, geometry.RectCoords{Width: 1, Height: 1}, shapes.Attrs{}); !errors.Is(err, errors.CodeInternal) {
		t.Fatalf("reusing removed id %q: got %v", a, err)
	}
	if id := addRect(t, s, 0, 0, 10, 10); id != "b" {
		t.Fatalf("next id = %q, want b", id)
	}
}

func TestSelectModes(t *testing.T) {
	s := newTestStore(t)
	a := addRect(t, s, 0, 0, 10, 10)
	b := addRect(t, s, 0, 0, 10, 10)
	c := addRect(t, s, 0, 0, 10, 10)

	s.Select([]string{a, "ghost"}, ModeReplace)
	if sel := s.Selection(); len(sel) != 1 || sel[0] != a {
		t.Fatalf("replace: %v", sel)
	}

	s.Select([]string{b}, ModeAdd)
	if !s.IsSelected(a) || !s.IsSelected(b) {
		t.Fatalf("add: %v", s.Selection())
	}

	before := s.Selection()
	s.Select([]string{b, c}, ModeToggle)
	s.Select([]string{b, c}, ModeToggle)
	if !sameSet(before, s.Selection()) {
		t.Fatalf("toggle twice changed selection: %v -> %v", before, s.Selection())
	}

	s.SelectAll()
	if len(s.Selection()) != 3 {
		t.Fatalf("select all: %v", s.Selection())
	}
	s.ClearSelection()
	if len(s.Selection()) != 0 {
		t.Fatalf("clear: %v", s.Selection())
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newTestStore(t)
	id, err := s.AddShape(shapes.KindFreehand, geometry.PathCoords{Points: []geometry.Point{{X: 0, Y: 0}, {X: 4, Y: 4}}}, shapes.Attrs{})
	if err != nil {
		t.Fatalf("AddShape: %v", err)
	}

	snap := s.Snapshot()
	snap.Shapes[0].Coordinates.(geometry.PathCoords).Points[0].X = 99

	got, _ := s.Get(id)
	if got.Coordinates.(geometry.PathCoords).Points[0].X != 0 {
		t.Fatalf("snapshot aliases store memory")
	}
}

func TestRestore(t *testing.T) {
	s := newTestStore(t)
	addRect(t, s, 0, 0, 10, 10)

	good := Snapshot{Shapes: []shapes.Shape{
		{ID: "x", Type: shapes.KindCircle, Coordinates: geometry.CircleCoords{CX: 1, CY: 1, Radius: 1}},
		{ID: "w", Type: "wall"},
	}}
	if err := s.Restore(good); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if ids := s.IDs(); len(ids) != 2 || ids[0] != "x" || ids[1] != "w" {
		t.Fatalf("ids after restore: %v", ids)
	}

	dup := Snapshot{Shapes: []shapes.Shape{
		{ID: "x", Type: shapes.KindCircle, Coordinates: geometry.CircleCoords{Radius: 1}},
		{ID: "x", Type: shapes.KindCircle, Coordinates: geometry.CircleCoords{Radius: 2}},
	}}
	if err := s.Restore(dup); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION for duplicate ids, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("failed restore changed the scene")
	}
}

func TestRestoreKeepsMalformedShapesInert(t *testing.T) {
	s := newTestStore(t)
	snap := Snapshot{Shapes: []shapes.Shape{
		{ID: "ok", Type: shapes.KindRectangle, Coordinates: geometry.RectCoords{Width: 10, Height: 10}},
		{ID: "thin", Type: shapes.KindPolygon, Coordinates: geometry.PathCoords{Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}},
		{ID: "tagged", Type: shapes.KindRectangle, Coordinates: geometry.RectCoords{Width: 5, Height: 5},
			Metadata: &shapes.Metadata{LengthMM: shapes.Float(12)}},
	}}
	if err := s.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	for id, inert := range map[string]bool{"ok": false, "thin": true, "tagged": true} {
		sh, _ := s.Get(id)
		if sh.Inert() != inert {
			t.Errorf("%s inert = %v, want %v", id, sh.Inert(), inert)
		}
	}

	// A full valid payload repairs an inert shape whose attributes are fine.
	fixed := geometry.PathCoords{Points: []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}
	if err := s.UpdateShape("thin", fixed); err != nil {
		t.Fatalf("UpdateShape repair: %v", err)
	}
	if sh, _ := s.Get("thin"); sh.Inert() || sh.Opaque != nil {
		t.Fatalf("repaired shape still inert: %+v", sh)
	}
	// Attributes invalid for the kind keep it inert.
	if err := s.UpdateShape("tagged", geometry.RectCoords{Width: 5, Height: 5}); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION repairing a rectangle with lengthMM, got %v", err)
	}

	if err := s.Restore(Snapshot{Shapes: []shapes.Shape{{Type: shapes.KindCircle}}}); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION for a missing id, got %v", err)
	}
}

func TestZOrder(t *testing.T) {
	s := newTestStore(t)
	a := addRect(t, s, 0, 0, 10, 10)
	b := addRect(t, s, 0, 0, 10, 10)
	c := addRect(t, s, 0, 0, 10, 10)

	if err := s.BringToFront(a); err != nil {
		t.Fatalf("BringToFront: %v", err)
	}
	if ids := s.IDs(); ids[2] != a {
		t.Fatalf("after front: %v", ids)
	}
	if err := s.SendToBack(c); err != nil {
		t.Fatalf("SendToBack: %v", err)
	}
	if ids := s.IDs(); ids[0] != c || ids[1] != b {
		t.Fatalf("after back: %v", ids)
	}
}

func TestUndoRedo(t *testing.T) {
	s := newTestStore(t)
	id := addRect(t, s, 0, 0, 10, 10)
	if err := s.UpdateShape(id, geometry.RectCoords{Left: 50, Width: 10, Height: 10}); err != nil {
		t.Fatalf("UpdateShape: %v", err)
	}

	if !s.Undo() {
		t.Fatalf("undo reported nothing to undo")
	}
	got, _ := s.Get(id)
	if got.Coordinates.(geometry.RectCoords).Left != 0 {
		t.Fatalf("undo did not revert: %+v", got.Coordinates)
	}

	if !s.Redo() {
		t.Fatalf("redo reported nothing to redo")
	}
	got, _ = s.Get(id)
	if got.Coordinates.(geometry.RectCoords).Left != 50 {
		t.Fatalf("redo did not re-apply: %+v", got.Coordinates)
	}

	s.Undo()
	s.Undo()
	if s.Len() != 0 {
		t.Fatalf("undoing the add should empty the scene")
	}
	if s.Undo() {
		t.Fatalf("history should be exhausted")
	}
}

func TestGroupRecordsOneUndoStep(t *testing.T) {
	s := newTestStore(t)
	a := addRect(t, s, 0, 0, 10, 10)
	b := addRect(t, s, 20, 0, 10, 10)

	err := s.Group(func() error {
		if err := s.UpdateShape(a, geometry.RectCoords{Left: 5, Top: 5, Width: 10, Height: 10}); err != nil {
			return err
		}
		return s.UpdateShape(b, geometry.RectCoords{Left: 25, Top: 5, Width: 10, Height: 10})
	})
	if err != nil {
		t.Fatalf("Group: %v", err)
	}

	s.Undo()
	ga, _ := s.Get(a)
	gb, _ := s.Get(b)
	if ga.Coordinates.(geometry.RectCoords).Left != 0 || gb.Coordinates.(geometry.RectCoords).Left != 20 {
		t.Fatalf("one undo should revert the whole group: %+v %+v", ga.Coordinates, gb.Coordinates)
	}
}

func TestHistoryLimit(t *testing.T) {
	s := newTestStore(t, WithHistory(NewHistory(2)))
	for i := 0; i < 5; i++ {
		addRect(t, s, 0, 0, 10, 10)
	}
	undone := 0
	for s.Undo() {
		undone++
	}
	if undone != 2 || s.Len() != 3 {
		t.Fatalf("undone %d steps, %d shapes left", undone, s.Len())
	}
}

func TestStorePublishesCommittedChanges(t *testing.T) {
	bus := NewBus(logging.Discard())
	s := newTestStore(t, WithBus(bus))
	ch, cancel := s.Subscribe()
	defer cancel()

	id := addRect(t, s, 0, 0, 10, 10)

	select {
	case c := <-ch:
		if c.Kind != ChangeAdd || c.DocumentID != "doc" || len(c.IDs) != 1 || c.IDs[0] != id {
			t.Fatalf("unexpected change %+v", c)
		}
		if c.Snapshot.Revision != 1 || len(c.Snapshot.Shapes) != 1 {
			t.Fatalf("unexpected snapshot %+v", c.Snapshot)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for change")
	}

	s.Select([]string{id}, ModeReplace)
	c := <-ch
	if c.ContentChanged() {
		t.Fatalf("selection change reported as content change")
	}
}
