// Package workspace keeps the open documents of a planner process. Each
// document owns its store, canvas, controller and autosaver, and every
// operation on it runs under the document lock.
package workspace

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"space-planner/internal/common/errors"
	"space-planner/internal/common/logging"
	"space-planner/internal/planner/interaction"
	"space-planner/internal/planner/library"
	"space-planner/internal/planner/persistence"
	"space-planner/internal/planner/render"
	"space-planner/internal/planner/scene"
)

// ============================================================
// Document
// ============================================================

// Document is one open floor plan.
type Document struct {
	ID         string
	Store      *scene.Store
	Canvas     *render.Canvas
	Controller *interaction.Controller
	Autosaver  *persistence.Autosaver

	mu   sync.Mutex
	stop context.CancelFunc
	done <-chan struct{}
}

// Do runs fn under the document lock and re-syncs the canvas afterwards, so
// changes made directly on the store are visible to the next render.
func (d *Document) Do(fn func(d *Document) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := fn(d)
	d.Controller.Refresh()
	return err
}

// ============================================================
// Workspace
// ============================================================

type Config struct {
	HistoryLimit  int
	AutosaveDelay time.Duration
	Interaction   interaction.Config
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:  scene.DefaultHistoryLimit,
		AutosaveDelay: 500 * time.Millisecond,
		Interaction:   interaction.DefaultConfig(),
	}
}

type Workspace struct {
	bridge  persistence.Bridge
	catalog *library.Catalog
	bus     *scene.Bus
	cfg     Config
	log     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	docs    map[string]*Document
	loading map[string]chan struct{}
}

type Option func(*Workspace)

func WithConfig(cfg Config) Option {
	return func(w *Workspace) { w.cfg = cfg }
}

func WithCatalog(c *library.Catalog) Option {
	return func(w *Workspace) { w.catalog = c }
}

func WithLogger(l *log.Logger) Option {
	return func(w *Workspace) { w.log = l }
}

func New(bridge persistence.Bridge, opts ...Option) *Workspace {
	w := &Workspace{
		bridge:  bridge,
		cfg:     DefaultConfig(),
		docs:    make(map[string]*Document),
		loading: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = log.Default()
	}
	if w.catalog == nil {
		w.catalog = library.Default()
	}
	w.bus = scene.NewBus(logging.Component(w.log, "bus"))
	w.ctx, w.cancel = context.WithCancel(context.Background())
	return w
}

func (w *Workspace) Bus() *scene.Bus           { return w.bus }
func (w *Workspace) Catalog() *library.Catalog { return w.catalog }
func (w *Workspace) Bridge() persistence.Bridge {
	return w.bridge
}

// Open returns the open document for id, loading it through the bridge on
// first use. A document the bridge does not know starts empty. The load runs
// outside the workspace lock; concurrent opens of the same id wait for it.
func (w *Workspace) Open(ctx context.Context, id string) (*Document, error) {
	if id == "" {
		return nil, errors.Validation("document id is required")
	}

	for {
		w.mu.Lock()
		if w.ctx.Err() != nil {
			w.mu.Unlock()
			return nil, errClosed()
		}
		if d, ok := w.docs[id]; ok {
			w.mu.Unlock()
			return d, nil
		}
		wait, busy := w.loading[id]
		if !busy {
			done := make(chan struct{})
			w.loading[id] = done
			w.mu.Unlock()
			return w.open(ctx, id, done)
		}
		w.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func errClosed() error {
	return errors.New(errors.CodeInternal, "workspace is closed")
}

func (w *Workspace) open(ctx context.Context, id string, done chan struct{}) (*Document, error) {
	d, loaded, err := w.load(ctx, id)

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.loading, id)
	close(done)

	if err != nil {
		return nil, err
	}
	if w.ctx.Err() != nil {
		return nil, errClosed()
	}

	var saveCtx context.Context
	saveCtx, d.stop = context.WithCancel(w.ctx)
	d.done = d.Autosaver.Start(saveCtx)

	w.docs[id] = d
	w.log.Info("document opened", "document", id, "shapes", d.Store.Len(), "loaded", loaded)
	return d, nil
}

// load builds a document and fills it from the bridge. Nothing is started.
func (w *Workspace) load(ctx context.Context, id string) (*Document, bool, error) {
	list, err := w.bridge.Load(ctx, id)
	loaded := err == nil
	if err != nil && !errors.Is(err, errors.CodeNotFound) {
		return nil, false, errors.Wrap(errors.GetCode(err), err, "load document %s", id)
	}

	d := w.build(id)
	if loaded {
		if err := d.Store.Restore(scene.Snapshot{Shapes: list}); err != nil {
			w.log.Error("document rejected on load", "document", id, "err", err)
			return nil, false, err
		}
		// Loading is not an undoable edit.
		d.Store.ClearHistory()
		d.Autosaver.MarkSaved(d.Store.Revision())
	}
	d.Controller.Refresh()
	return d, loaded, nil
}

func (w *Workspace) build(id string) *Document {
	var history *scene.History
	if w.cfg.HistoryLimit > 0 {
		history = scene.NewHistory(w.cfg.HistoryLimit)
	}
	docLog := w.log.With("document", id)

	store := scene.New(
		scene.WithDocumentID(id),
		scene.WithHistory(history),
		scene.WithBus(w.bus),
		scene.WithLogger(logging.Component(docLog, "scene")),
	)
	canvas := render.NewCanvas(store,
		render.WithSymbols(w.catalog),
		render.WithLogger(logging.Component(docLog, "render")),
	)
	ctrl := interaction.New(store, canvas,
		interaction.WithConfig(w.cfg.Interaction),
		interaction.WithSymbols(w.catalog),
		interaction.WithLogger(logging.Component(docLog, "interaction")),
	)
	saver := persistence.NewAutosaver(id, store, w.bridge, w.bus,
		persistence.WithDelay(w.cfg.AutosaveDelay),
		persistence.WithAutosaveLogger(logging.Component(docLog, "autosave")),
	)
	return &Document{ID: id, Store: store, Canvas: canvas, Controller: ctrl, Autosaver: saver}
}

// Get returns an already open document.
func (w *Workspace) Get(id string) (*Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.docs[id]
	return d, ok
}

// IDs lists the open documents.
func (w *Workspace) IDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.docs))
	for id := range w.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete closes the document if it is open and removes it from storage.
func (w *Workspace) Delete(ctx context.Context, id string) error {
	w.mu.Lock()
	d, open := w.docs[id]
	delete(w.docs, id)
	w.mu.Unlock()

	if open {
		// Nothing may be written back after the delete.
		d.Autosaver.MarkSaved(^uint64(0))
		d.stop()
		<-d.done
	}
	err := w.bridge.Delete(ctx, id)
	if open && errors.Is(err, errors.CodeNotFound) {
		// Opened but never saved.
		return nil
	}
	return err
}

// Close stops every autosaver after a final flush and waits for them.
func (w *Workspace) Close() {
	w.mu.Lock()
	w.cancel()
	docs := make([]*Document, 0, len(w.docs))
	for _, d := range w.docs {
		docs = append(docs, d)
	}
	w.mu.Unlock()

	for _, d := range docs {
		if d.done != nil {
			<-d.done
		}
	}
	w.log.Info("workspace closed", "documents", len(docs))
}
