package bus

import (
	"context"
	"testing"
	"time"
)

func TestSubscribe_ReceivesPublishedEvent(t *testing.T) {
	b := New()
	sub := b.Subscribe(4)
	defer sub.Unsubscribe()

	b.Publish(KindCapturePersisted, "cap-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if env.Event.Kind != KindCapturePersisted || env.Event.Payload != "cap-1" {
		t.Errorf("got %+v", env)
	}
	if env.Lagged != 0 {
		t.Errorf("Lagged: got %d, want 0", env.Lagged)
	}
}

func TestPublish_FansOutToMultipleSubscribers(t *testing.T) {
	b := New()
	s1 := b.Subscribe(4)
	s2 := b.Subscribe(4)
	defer s1.Unsubscribe()
	defer s2.Unsubscribe()

	b.Publish(KindCaptureDeleted, "cap-2")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, s := range []*Subscription{s1, s2} {
		if _, err := s.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
}

func TestPublish_OverflowDropsOldestAndSignalsLagged(t *testing.T) {
	b := New()
	sub := b.Subscribe(2)
	defer sub.Unsubscribe()

	b.Publish(KindCaptureDropped, 1)
	b.Publish(KindCaptureDropped, 2)
	b.Publish(KindCaptureDropped, 3) // buffer is 2; this evicts payload 1

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	env, err := sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if env.Event.Payload != 2 {
		t.Errorf("expected payload 2 (oldest survivor), got %v", env.Event.Payload)
	}
	if env.Lagged != 1 {
		t.Errorf("Lagged: got %d, want 1", env.Lagged)
	}

	env, err = sub.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if env.Event.Payload != 3 || env.Lagged != 0 {
		t.Errorf("second envelope: got %+v", env)
	}
}

func TestNext_RespectsContextCancellation(t *testing.T) {
	b := New()
	sub := b.Subscribe(4)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := sub.Next(ctx); err == nil {
		t.Fatal("expected timeout error with no events published")
	}
}

func TestUnsubscribe_StopsFurtherDelivery(t *testing.T) {
	b := New()
	sub := b.Subscribe(4)
	sub.Unsubscribe()

	if got := b.subscriberCount(); got != 0 {
		t.Fatalf("subscriberCount after Unsubscribe: got %d, want 0", got)
	}

	b.Publish(KindCaptureDeleted, "after-unsubscribe")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); err == nil {
		t.Fatal("expected error reading from a closed subscription")
	}
}

func TestUnsubscribe_IsIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe(4)
	sub.Unsubscribe()
	sub.Unsubscribe()
}
