package notify

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherPublishesToSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := dispatcher.Subscribe(ctx, "person-1")
	defer cleanup()

	dispatcher.Success("person-1", "input.data.saved.success", "DC-001")

	select {
	case received := <-stream:
		if received.Key != "input.data.saved.success" || received.Level != LevelSuccess {
			t.Fatalf("unexpected notification %+v", received)
		}
		if len(received.Args) != 1 || received.Timestamp.IsZero() {
			t.Fatalf("expected args and timestamp, got %+v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification within deadline")
	}
}

func TestDispatcherIsolatedByPerson(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	personStream, cleanup := dispatcher.Subscribe(ctx, "person-2")
	defer cleanup()
	otherStream, otherCleanup := dispatcher.Subscribe(ctx, "person-3")
	defer otherCleanup()

	dispatcher.Failure("person-3", "input.data.saved.failed", "DC-002", "duplicate")

	select {
	case <-personStream:
		t.Fatal("did not expect notification for unrelated person")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case received := <-otherStream:
		if received.PersonID != "person-3" || received.Level != LevelError {
			t.Fatalf("unexpected notification %+v", received)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification for subscribed person")
	}
}

func TestDispatcherKeepsLatestFlash(t *testing.T) {
	dispatcher := NewDispatcher()
	dispatcher.Success("person-4", "first")
	dispatcher.Success("person-4", "second")

	flash, ok := dispatcher.TakeFlash("person-4")
	if !ok || flash.Key != "second" {
		t.Fatalf("expected latest flash, got %+v (%v)", flash, ok)
	}
	if _, ok := dispatcher.TakeFlash("person-4"); ok {
		t.Fatal("flash must be consumed once")
	}
}

func TestDispatcherIgnoresIncompleteNotifications(t *testing.T) {
	dispatcher := NewDispatcher()
	dispatcher.Publish(Notification{Key: "orphan"})
	dispatcher.Publish(Notification{PersonID: "person-5"})
	if _, ok := dispatcher.TakeFlash("person-5"); ok {
		t.Fatal("notification without key must be dropped")
	}
}

func TestSubscribeWithoutPersonReturnsClosedStream(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cleanup := dispatcher.Subscribe(context.Background(), "")
	defer cleanup()
	if _, open := <-stream; open {
		t.Fatal("expected closed stream")
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	_, _ = dispatcher.Subscribe(ctx, "person-6")
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		dispatcher.mu.RLock()
		_, active := dispatcher.subscribers["person-6"]
		dispatcher.mu.RUnlock()
		if !active {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected subscription to be released after cancel")
}
