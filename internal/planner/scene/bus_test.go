package scene

import (
	"testing"
	"time"
)

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe("doc")
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	if bus.HasSubscribers("doc") {
		t.Fatalf("subscriber not removed")
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := NewBus(nil)
	bus.depth = 1
	ch, cancel := bus.Subscribe("doc")
	defer cancel()

	done := make(chan struct{})
	go func() {
		bus.Publish(Change{DocumentID: "doc", Kind: ChangeAdd})
		bus.Publish(Change{DocumentID: "doc", Kind: ChangeUpdate})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if got := <-ch; got.Kind != ChangeAdd {
		t.Fatalf("expected the first change to be kept, got %v", got.Kind)
	}
}

func TestPublishIsScopedToDocument(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe("a")
	defer cancel()

	bus.Publish(Change{DocumentID: "b", Kind: ChangeAdd})
	select {
	case c := <-ch:
		t.Fatalf("received change for another document: %+v", c)
	default:
	}
}
