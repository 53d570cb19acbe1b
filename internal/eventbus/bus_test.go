package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishSubscribeTyped(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	sub := SubscribeTo(bus, Notify)
	defer sub.Close()

	eventbusPublishNotify(t, bus, "Update Available", "Version 1.2.0 is ready")

	select {
	case env := <-sub.C():
		if env.Payload.Title != "Update Available" {
			t.Errorf("Title = %q, want %q", env.Payload.Title, "Update Available")
		}
		if env.Topic != TopicNotify {
			t.Errorf("Topic = %q, want %q", env.Topic, TopicNotify)
		}
		if env.Timestamp.IsZero() {
			t.Error("Timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notify event")
	}
}

func eventbusPublishNotify(t *testing.T, bus *Bus, title, message string) {
	t.Helper()
	Publish(context.Background(), bus, Notify, SourceScheduler, NotifyEvent{Title: title, Message: message})
}

func TestNilBusIsNoOp(t *testing.T) {
	var bus *Bus

	// Publish must not panic.
	Publish(context.Background(), bus, CheckStarted, SourceScheduler, CheckStartedEvent{Kind: CheckApp})

	sub := SubscribeTo(bus, CheckStarted)
	if _, ok := <-sub.C(); ok {
		t.Error("nil-bus subscription channel should be closed")
	}
	sub.Close() // must not panic
}

func TestMismatchedPayloadSkipped(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	sub := SubscribeTo(bus, CheckCompleted)
	defer sub.Close()

	// Raw publish with the wrong payload type on the same topic.
	bus.publish(context.Background(), Envelope{Topic: TopicCheckCompleted, Payload: "not-a-struct"})
	Publish(context.Background(), bus, CheckCompleted, SourceScheduler, CheckCompletedEvent{Kind: CheckModels, HasUpdate: true})

	select {
	case env := <-sub.C():
		if !env.Payload.HasUpdate {
			t.Error("HasUpdate = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("typed event never delivered")
	}
}

func TestDropOldestKeepsLatestProgress(t *testing.T) {
	bus := New(WithTopicBuffer(TopicSyncProgress, 1))
	defer bus.Shutdown()

	raw := bus.Subscribe(TopicSyncProgress)
	defer raw.Close()

	ctx := context.Background()
	Publish(ctx, bus, SyncProgress, SourceTransfer, SyncProgressEvent{ComponentID: "m1", Percent: 10})
	Publish(ctx, bus, SyncProgress, SourceTransfer, SyncProgressEvent{ComponentID: "m1", Percent: 90})

	env := <-raw.C()
	got := env.Payload.(SyncProgressEvent)
	if got.Percent != 90 {
		t.Errorf("Percent = %d, want 90 (oldest sample should have been dropped)", got.Percent)
	}
}

func TestSubscriptionContextClose(t *testing.T) {
	bus := New()
	defer bus.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	sub := bus.Subscribe(TopicNotify, WithContext(ctx))

	cancel()

	select {
	case <-sub.done:
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancellation")
	}
}

func TestConsumeStopsOnShutdown(t *testing.T) {
	bus := New()

	sub := SubscribeTo(bus, ComponentUpdated)
	var wg sync.WaitGroup
	var got []string
	var mu sync.Mutex

	wg.Add(1)
	go Consume(context.Background(), sub, &wg, func(ev ComponentUpdatedEvent) {
		mu.Lock()
		got = append(got, ev.ComponentID)
		mu.Unlock()
	})

	Publish(context.Background(), bus, ComponentUpdated, SourceModelSync, ComponentUpdatedEvent{ComponentID: "m1", Version: "1.1.0"})

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event never consumed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	bus.Shutdown()
	sub.Close()
	wg.Wait()

	if got[0] != "m1" {
		t.Errorf("ComponentID = %q, want m1", got[0])
	}
}

func TestServiceLifecycle(t *testing.T) {
	var lc ServiceLifecycle
	lc.Start(context.Background())

	ran := make(chan struct{})
	lc.Go(func(ctx context.Context) {
		close(ran)
		<-ctx.Done()
	})

	<-ran

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lc.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
