package workspace

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"space-planner/internal/common/errors"
	"space-planner/internal/common/logging"
	"space-planner/internal/planner/geometry"
	"space-planner/internal/planner/interaction"
	"space-planner/internal/planner/persistence"
	"space-planner/internal/planner/shapes"
)

func newWorkspace(t *testing.T, dir string) *Workspace {
	t.Helper()
	fb, err := persistence.NewFileBridge(dir, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.AutosaveDelay = time.Hour
	return New(fb, WithConfig(cfg), WithLogger(logging.Discard()))
}

func TestOpenEditCloseReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	w := newWorkspace(t, dir)
	d, err := w.Open(ctx, "flat-7")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Store.Len() != 0 {
		t.Fatalf("new document should be empty")
	}
	again, _ := w.Open(ctx, "flat-7")
	if again != d {
		t.Fatalf("Open should return the already open document")
	}

	err = d.Do(func(d *Document) error {
		_, err := d.Store.AddShape(shapes.KindRectangle, geometry.RectCoords{Width: 100, Height: 50}, shapes.Attrs{})
		return err
	})
	if err != nil {
		t.Fatalf("AddShape: %v", err)
	}
	if len(d.Canvas.Primitives()) != 1 {
		t.Fatalf("Do should sync the canvas")
	}

	w.Close()
	if _, err := w.Open(ctx, "other"); err == nil {
		t.Fatalf("Open after Close should fail")
	}

	w2 := newWorkspace(t, dir)
	defer w2.Close()
	d2, err := w2.Open(ctx, "flat-7")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if d2.Store.Len() != 1 {
		t.Fatalf("reopened document has %d shapes", d2.Store.Len())
	}
	if d2.Store.CanUndo() {
		t.Fatalf("loading must not be undoable")
	}
	if len(d2.Canvas.Primitives()) != 1 {
		t.Fatalf("loaded document not rendered")
	}
}

func TestDispatchThroughDocument(t *testing.T) {
	w := newWorkspace(t, t.TempDir())
	defer w.Close()

	d, err := w.Open(context.Background(), "plan")
	if err != nil {
		t.Fatal(err)
	}

	var id string
	_ = d.Do(func(d *Document) error {
		id, err = d.Store.AddShape(shapes.KindRectangle, geometry.RectCoords{Width: 100, Height: 50}, shapes.Attrs{})
		return err
	})

	// Concurrent callers are serialized by the document lock.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Do(func(d *Document) error {
				return d.Controller.Dispatch(interaction.Key("Escape"))
			})
		}()
	}
	wg.Wait()

	err = d.Do(func(d *Document) error {
		for _, ev := range []interaction.Event{
			interaction.PointerDown(10, 10),
			interaction.PointerMove(40, 0),
			interaction.PointerUp(40, 0),
		} {
			if err := d.Controller.Dispatch(ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	sh, _ := d.Store.Get(id)
	if got := sh.Coordinates.(geometry.RectCoords); got.Left != 30 || got.Top != -10 {
		t.Fatalf("dragged to %+v", got)
	}
}

func TestDelete(t *testing.T) {
	w := newWorkspace(t, t.TempDir())
	defer w.Close()
	ctx := context.Background()

	d, err := w.Open(ctx, "gone")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Autosaver.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := w.Get("gone"); ok {
		t.Fatalf("deleted document still open")
	}
	if _, err := w.Bridge().Load(ctx, "gone"); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("deleted document still stored: %v", err)
	}
	if err := w.Delete(ctx, "never"); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("Delete unknown = %v", err)
	}
}

func TestOpenRequiresID(t *testing.T) {
	w := newWorkspace(t, t.TempDir())
	defer w.Close()
	if _, err := w.Open(context.Background(), ""); !errors.Is(err, errors.CodeValidation) {
		t.Fatalf("expected VALIDATION, got %v", err)
	}
}

func TestOpenKeepsMalformedShapesInert(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fb, err := persistence.NewFileBridge(dir, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	doc := `{"id":"flat","updatedAt":"2026-01-02T03:04:05Z","shapes":[
		{"id":"a","type":"rectangle","coordinates":{"left":0,"top":0,"width":100,"height":50}},
		{"id":"b","type":"polygon","coordinates":{"points":[{"x":0,"y":0},{"x":5,"y":5}]}},
		{"id":"c","type":"rectangle","coordinates":{"left":0,"top":0,"width":-4,"height":5}}
	]}`
	if err := os.WriteFile(fb.Path("flat"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newWorkspace(t, dir)
	d, err := w.Open(ctx, "flat")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Store.Len() != 3 {
		t.Fatalf("Len = %d, want all 3 shapes kept", d.Store.Len())
	}
	prims := d.Canvas.Primitives()
	if len(prims) != 1 || prims[0].ShapeID != "a" {
		t.Fatalf("only the valid rectangle should render, got %+v", prims)
	}

	// The valid shape stays editable; the malformed ones are saved back as stored.
	err = d.Do(func(d *Document) error {
		return d.Store.UpdateAttrs("a", shapes.Attrs{Color: shapes.String("#00ff00")})
	})
	if err != nil {
		t.Fatalf("UpdateAttrs: %v", err)
	}
	if err := d.Autosaver.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	w.Close()

	data, err := os.ReadFile(fb.Path("flat"))
	if err != nil {
		t.Fatal(err)
	}
	var saved struct {
		Shapes []json.RawMessage `json:"shapes"`
	}
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatal(err)
	}
	if len(saved.Shapes) != 3 || !strings.Contains(string(saved.Shapes[2]), `"width":-4`) {
		t.Fatalf("malformed shapes not preserved: %s", data)
	}
}

// gatedBridge holds Load of one document until release is closed.
type gatedBridge struct {
	persistence.Bridge
	gated   string
	entered chan struct{}
	release chan struct{}
	loads   atomic.Int32
}

func (b *gatedBridge) Load(ctx context.Context, id string) ([]shapes.Shape, error) {
	if id == b.gated {
		b.loads.Add(1)
		b.entered <- struct{}{}
		<-b.release
	}
	return b.Bridge.Load(ctx, id)
}

func TestOpenLoadsOutsideLock(t *testing.T) {
	fb, err := persistence.NewFileBridge(t.TempDir(), logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	gb := &gatedBridge{
		Bridge:  fb,
		gated:   "slow",
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	cfg := DefaultConfig()
	cfg.AutosaveDelay = time.Hour
	w := New(gb, WithConfig(cfg), WithLogger(logging.Discard()))
	defer w.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*Document, 2)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := w.Open(ctx, "slow")
			if err != nil {
				t.Errorf("Open slow: %v", err)
			}
			got[i] = d
		}(i)
	}
	<-gb.entered

	// Another document opens while "slow" is still loading.
	fast := make(chan error, 1)
	go func() {
		_, err := w.Open(ctx, "fast")
		fast <- err
	}()
	select {
	case err := <-fast:
		if err != nil {
			t.Fatalf("Open fast: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Open of another document blocked behind a slow load")
	}
	if ids := w.IDs(); len(ids) != 1 || ids[0] != "fast" {
		t.Fatalf("IDs = %v, want [fast]", ids)
	}

	close(gb.release)
	wg.Wait()
	if got[0] == nil || got[0] != got[1] {
		t.Fatalf("concurrent opens returned different documents: %p %p", got[0], got[1])
	}
	if n := gb.loads.Load(); n != 1 {
		t.Fatalf("slow loaded %d times, want 1", n)
	}
}
