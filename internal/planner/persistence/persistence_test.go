package persistence

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"space-planner/internal/common/errors"
	"space-planner/internal/common/logging"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/scene"
	"space-planner/internal/planner/shapes"
)

func sampleShapes(t *testing.T) []shapes.Shape {
	t.Helper()
	var opaque shapes.Shape
	if err := json.Unmarshal([]byte(`{"id":"w1","type":"wall","coordinates":{"x1":0,"y1":0,"x2":10,"y2":0}}`), &opaque); err != nil {
		t.Fatalf("unmarshal opaque: %v", err)
	}
	return []shapes.Shape{
		{ID: "r1", Type: shapes.KindRectangle, Coordinates: geometry.RectCoords{Left: 1, Top: 2, Width: 30, Height: 40}, Color: shapes.String("#ff0000")},
		{ID: "t1", Type: shapes.KindText, Coordinates: geometry.AnchorCoords{X: 5, Y: 5}, Text: shapes.String("Hall"),
			Metadata: &shapes.Metadata{LengthMM: shapes.Float(24)}},
		opaque,
		{ID: "p1", Type: shapes.KindPolygon, Coordinates: geometry.PathCoords{Points: []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}}},
	}
}

func assertSameShapes(t *testing.T, got, want []shapes.Shape) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d shapes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Type != want[i].Type {
			t.Fatalf("shape %d = %s/%s, want %s/%s", i, got[i].ID, got[i].Type, want[i].ID, want[i].Type)
		}
		if !shapes.Known(want[i].Type) {
			if string(got[i].Opaque) == "" {
				t.Fatalf("opaque payload of %s lost", want[i].ID)
			}
			continue
		}
		if !shapes.Equivalent(got[i], want[i]) {
			t.Fatalf("shape %s changed in round trip: %+v", want[i].ID, got[i])
		}
	}
}

func bridges(t *testing.T) map[string]Bridge {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	sq, err := OpenSQLite(ctx, filepath.Join(dir, "db", "planner.db"), logging.Discard())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	fb, err := NewFileBridge(filepath.Join(dir, "docs"), logging.Discard())
	if err != nil {
		t.Fatalf("NewFileBridge: %v", err)
	}
	return map[string]Bridge{"sqlite": sq, "file": fb}
}

func TestBridgeRoundTrip(t *testing.T) {
	for name, b := range bridges(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := b.Load(ctx, "plan-1"); !errors.Is(err, errors.CodeNotFound) {
				t.Fatalf("Load missing: %v", err)
			}

			want := sampleShapes(t)
			if err := b.Save(ctx, "plan-1", want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := b.Load(ctx, "plan-1")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSameShapes(t, got, want)

			// A second save replaces the document.
			if err := b.Save(ctx, "plan-1", want[:1]); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, _ = b.Load(ctx, "plan-1")
			assertSameShapes(t, got, want[:1])

			if err := b.Save(ctx, "plan-2", nil); err != nil {
				t.Fatalf("Save empty: %v", err)
			}
			got, err = b.Load(ctx, "plan-2")
			if err != nil || got == nil || len(got) != 0 {
				t.Fatalf("empty document = %v, %v", got, err)
			}

			infos, err := b.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(infos) != 2 {
				t.Fatalf("List = %+v", infos)
			}

			if err := b.Delete(ctx, "plan-2"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := b.Delete(ctx, "plan-2"); !errors.Is(err, errors.CodeNotFound) {
				t.Fatalf("second Delete: %v", err)
			}
			if _, err := b.Load(ctx, "plan-2"); !errors.Is(err, errors.CodeNotFound) {
				t.Fatalf("Load deleted: %v", err)
			}

			if err := b.Save(ctx, "", want); !errors.Is(err, errors.CodeValidation) {
				t.Fatalf("Save without id: %v", err)
			}
		})
	}
}

func TestSQLiteDuplicateIDsConflict(t *testing.T) {
	b := bridges(t)["sqlite"]
	ctx := context.Background()
	list := sampleShapes(t)
	list = append(list, list[0])

	if err := b.Save(ctx, "dup", list); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if _, err := b.Load(ctx, "dup"); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("failed save must not leave a document behind: %v", err)
	}
}

func TestFileBridgeSanitizesIDs(t *testing.T) {
	fb, err := NewFileBridge(t.TempDir(), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(fb.Path("../../etc/passwd")); got != "______etc_passwd.json" {
		t.Fatalf("Path = %s", got)
	}
}

// ============================================================
// Retry
// ============================================================

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return stderrors.New("disk busy")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}

	calls = 0
	err = Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return errors.Validation("bad shape")
	})
	if !errors.Is(err, errors.CodeValidation) || calls != 1 {
		t.Fatalf("validation errors must not be retried: %v after %d calls", err, calls)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err = Retry(cctx, 3, time.Hour, func() error { return stderrors.New("down") })
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Retry with cancelled context = %v", err)
	}
}

// ============================================================
// Autosave
// ============================================================

type recordingBridge struct {
	Bridge

	mu    sync.Mutex
	saves [][]shapes.Shape
	fail  int
}

func (b *recordingBridge) Save(_ context.Context, _ string, list []shapes.Shape) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail > 0 {
		b.fail--
		return stderrors.New("transient")
	}
	b.saves = append(b.saves, list)
	return nil
}

func (b *recordingBridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saves)
}

func (b *recordingBridge) last() []shapes.Shape {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves[len(b.saves)-1]
}

func newAutosaveStore() (*scene.Store, *scene.Bus) {
	bus := scene.NewBus(logging.Discard())
	st := scene.New(scene.WithDocumentID("doc"), scene.WithBus(bus), scene.WithLogger(logging.Discard()))
	return st, bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAutosaveCoalesces(t *testing.T) {
	st, bus := newAutosaveStore()
	rb := &recordingBridge{}
	a := NewAutosaver("doc", st, rb, bus, WithDelay(50*time.Millisecond), WithAutosaveLogger(logging.Discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := a.Start(ctx)

	for i := 0; i < 5; i++ {
		if _, err := st.AddShape(shapes.KindCircle, geometry.CircleCoords{CX: float64(i), Radius: 3}, shapes.Attrs{}); err != nil {
			t.Fatal(err)
		}
	}
	st.SelectAll()

	waitFor(t, func() bool { return rb.count() >= 1 })
	time.Sleep(100 * time.Millisecond)

	if rb.count() != 1 {
		t.Fatalf("burst of changes saved %d times, want 1", rb.count())
	}
	if got := len(rb.last()); got != 5 {
		t.Fatalf("saved %d shapes, want 5", got)
	}
	if s := a.Stats(); s.Saved != st.Revision() || s.Saves != 1 {
		t.Fatalf("stats = %+v, store revision %d", s, st.Revision())
	}

	// Selection changes alone never trigger a save.
	st.ClearSelection()
	time.Sleep(100 * time.Millisecond)
	if rb.count() != 1 {
		t.Fatalf("selection change was saved")
	}

	cancel()
	<-done
	if rb.count() != 1 {
		t.Fatalf("final flush rewrote an already saved revision")
	}
}

func TestAutosaveFlushAndRetry(t *testing.T) {
	st, bus := newAutosaveStore()
	rb := &recordingBridge{fail: 2}
	a := NewAutosaver("doc", st, rb, bus, WithDelay(time.Hour), WithRetry(3, time.Millisecond), WithAutosaveLogger(logging.Discard()))

	ctx := context.Background()

	// Never persisted, so even an empty document is written.
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if rb.count() != 1 {
		t.Fatalf("saves = %d", rb.count())
	}
	if err := a.Flush(ctx); err != nil || rb.count() != 1 {
		t.Fatalf("second flush of the same revision wrote again")
	}

	if _, err := st.AddShape(shapes.KindText, geometry.AnchorCoords{}, shapes.Attrs{Text: shapes.String("A")}); err != nil {
		t.Fatal(err)
	}
	rb.mu.Lock()
	rb.fail = 5
	rb.mu.Unlock()
	if err := a.Flush(ctx); err == nil {
		t.Fatalf("expected the flush to surface the write failure")
	}
	if s := a.Stats(); s.Failures != 1 || s.LastError == "" {
		t.Fatalf("stats = %+v", s)
	}

	rb.mu.Lock()
	rb.fail = 0
	rb.mu.Unlock()
	if err := a.Flush(ctx); err != nil || rb.count() != 2 {
		t.Fatalf("Flush after recovery = %v, saves %d", err, rb.count())
	}
}

func TestAutosaveMarkSaved(t *testing.T) {
	st, bus := newAutosaveStore()
	rb := &recordingBridge{}
	a := NewAutosaver("doc", st, rb, bus, WithAutosaveLogger(logging.Discard()))

	if err := st.Restore(scene.Snapshot{Shapes: sampleShapes(t)}); err != nil {
		t.Fatal(err)
	}
	a.MarkSaved(st.Revision())
	if err := a.Flush(context.Background()); err != nil || rb.count() != 0 {
		t.Fatalf("loaded revision should not be written back")
	}
}
