package scene

import (
	"sync"

	"github.com/charmbracelet/log"
)

// ChangeKind identifies what a committed change did.
type ChangeKind string

const (
	ChangeAdd     ChangeKind = "add"
	ChangeUpdate  ChangeKind = "update"
	ChangeRemove  ChangeKind = "remove"
	ChangeOrder   ChangeKind = "order"
	ChangeRestore ChangeKind = "restore"
	ChangeSelect  ChangeKind = "select"
)

// Change is published after every committed store mutation. Snapshot is a
// deep copy taken under the store lock and is safe to keep.
type Change struct {
	DocumentID string
	Kind       ChangeKind
	IDs        []string
	Snapshot   Snapshot
}

// ContentChanged reports whether the change touched shapes rather than only
// the selection.
func (c Change) ContentChanged() bool {
	return c.Kind != ChangeSelect
}

// Bus fans committed changes out to per-document subscribers. Publishing
// never blocks: a subscriber whose buffer is full misses the change.
type Bus struct {
	mu    sync.Mutex
	subs  map[string]map[chan Change]struct{}
	log   *log.Logger
	depth int
}

// NewBus constructs a Bus.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		subs:  make(map[string]map[chan Change]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for a document and returns its channel
// and a cancel func that closes it.
func (b *Bus) Subscribe(documentID string) (<-chan Change, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Change, b.depth)

	b.mu.Lock()
	docSubs := b.subs[documentID]
	if docSubs == nil {
		docSubs = make(map[chan Change]struct{})
		b.subs[documentID] = docSubs
	}
	docSubs[ch] = struct{}{}
	count := len(docSubs)
	b.mu.Unlock()

	b.log.Debug("bus subscribe", "document", documentID, "subs", count)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[documentID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, documentID)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.Debug("bus unsubscribe", "document", documentID)
		})
	}
}

// HasSubscribers reports whether anyone listens on documentID.
func (b *Bus) HasSubscribers(documentID string) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[documentID]) > 0
}

// Publish delivers c to every subscriber of its document.
func (b *Bus) Publish(c Change) {
	if b == nil {
		return
	}
	dropped := 0

	// Sends are non-blocking, so holding the lock keeps them from racing
	// with a cancel closing the channel.
	b.mu.Lock()
	for sub := range b.subs[c.DocumentID] {
		select {
		case sub <- c:
		default:
			dropped++
		}
	}
	b.mu.Unlock()

	if dropped > 0 {
		b.log.Warn("bus dropped change", "document", c.DocumentID, "kind", c.Kind, "count", dropped)
	}
}
