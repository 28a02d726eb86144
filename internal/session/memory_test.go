package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}

	sess := New("s1", "key-1", time.Now())
	sess.Slots.Description = "Buraco"
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Slots.Description != "Buraco" || got.TicketKey != "key-1" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := New("s1", "key-1", time.Now())
	sess.Slots.Photos = []AttachmentRef{{ID: "a1"}}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, _ := store.Get(ctx, "s1")
	got.Slots.Photos[0].ID = "tampered"
	got.Slots.Description = "tampered"

	fresh, _ := store.Get(ctx, "s1")
	if fresh.Slots.Photos[0].ID != "a1" || fresh.Slots.Description != "" {
		t.Errorf("store leaked internal state: %+v", fresh.Slots)
	}
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := store.Put(ctx, New(id, "key-"+id, time.Now())); err != nil {
			t.Fatalf("Put(%s): %v", id, err)
		}
	}
	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("List len = %d, want 3", len(sessions))
	}
}
