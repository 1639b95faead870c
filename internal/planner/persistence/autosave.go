package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"space-planner/internal/planner/scene"
)

// Source hands out the current snapshot of a document. *scene.Store
// satisfies it.
type Source interface {
	Snapshot() scene.Snapshot
}

// AutosaveStats describes what an Autosaver has done so far.
type AutosaveStats struct {
	Saved     uint64 `json:"savedRevision"`
	Saves     int    `json:"saves"`
	Failures  int    `json:"failures"`
	LastError string `json:"lastError,omitempty"`
}

// Autosaver saves one document a short delay after its last content change.
// Bursts of changes coalesce into a single save of the newest revision, and
// a revision at or below the last saved one is never written.
type Autosaver struct {
	doc    string
	source Source
	bridge Bridge
	bus    *scene.Bus
	log    *log.Logger

	delay    time.Duration
	attempts int
	backoff  time.Duration

	saveMu sync.Mutex // serializes saves

	mu        sync.Mutex
	stats     AutosaveStats
	persisted bool
	timer     *time.Timer
}

type AutosaveOption func(*Autosaver)

// WithDelay sets the debounce delay. Zero saves on every content change.
func WithDelay(d time.Duration) AutosaveOption {
	return func(a *Autosaver) { a.delay = d }
}

// WithRetry sets how often a failed save is attempted and the first backoff.
func WithRetry(attempts int, backoff time.Duration) AutosaveOption {
	return func(a *Autosaver) { a.attempts, a.backoff = attempts, backoff }
}

func WithAutosaveLogger(l *log.Logger) AutosaveOption {
	return func(a *Autosaver) { a.log = l }
}

func NewAutosaver(documentID string, source Source, bridge Bridge, bus *scene.Bus, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		doc:      documentID,
		source:   source,
		bridge:   bridge,
		bus:      bus,
		delay:    500 * time.Millisecond,
		attempts: 3,
		backoff:  time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = log.Default()
	}
	return a
}

// MarkSaved records rev as already persisted, e.g. right after a load.
func (a *Autosaver) MarkSaved(rev uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rev > a.stats.Saved {
		a.stats.Saved = rev
	}
	a.persisted = true
}

func (a *Autosaver) Stats() AutosaveStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Start subscribes to the document's changes and saves in the background
// until ctx is done. The returned channel closes after the final flush.
func (a *Autosaver) Start(ctx context.Context) <-chan struct{} {
	changes, cancel := a.bus.Subscribe(a.doc)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		a.loop(ctx, changes)
	}()
	return done
}

func (a *Autosaver) loop(ctx context.Context, changes <-chan scene.Change) {
	for {
		select {
		case <-ctx.Done():
			a.stopTimer()
			flushCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.Flush(flushCtx); err != nil {
				a.log.Error("final save failed", "document", a.doc, "err", err)
			}
			done()
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if !c.ContentChanged() {
				continue
			}
			a.schedule(ctx)
		}
	}
}

func (a *Autosaver) schedule(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		if err := a.save(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("autosave failed", "document", a.doc, "err", err)
		}
	})
}

func (a *Autosaver) stopTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Flush saves the current revision now if it has not been saved yet. A
// document that was never persisted is written even when empty.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.stopTimer()
	return a.save(ctx)
}

func (a *Autosaver) save(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	snap := a.source.Snapshot()

	a.mu.Lock()
	skip := a.persisted && snap.Revision <= a.stats.Saved
	a.mu.Unlock()
	if skip {
		return nil
	}

	err := Retry(ctx, a.attempts, a.backoff, func() error {
		return a.bridge.Save(ctx, a.doc, snap.Shapes)
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.stats.Failures++
		a.stats.LastError = err.Error()
		return err
	}
	a.stats.Saves++
	a.stats.Saved = snap.Revision
	a.persisted = true
	a.stats.LastError = ""
	a.log.Debug("autosaved", "document", a.doc, "revision", snap.Revision, "shapes", len(snap.Shapes))
	return nil
}
