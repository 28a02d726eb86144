package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu      sync.Mutex
	warned  []string
	expired []string
}

func (h *recordingHandler) WarnIdle(senderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warned = append(h.warned, senderID)
}

func (h *recordingHandler) Expire(senderID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expired = append(h.expired, senderID)
}

func TestSweepWarnsAndExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	fresh := New("fresh", "k1", base.Add(-1*time.Minute))
	idle := New("idle", "k2", base.Add(-15*time.Minute))
	dead := New("dead", "k3", base.Add(-45*time.Minute))
	alreadyWarned := New("warned", "k4", base.Add(-20*time.Minute))
	alreadyWarned.WarnedIdle = true
	for _, sess := range []Session{fresh, idle, dead, alreadyWarned} {
		if err := store.Put(ctx, sess); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	handler := &recordingHandler{}
	sweeper := NewSweeper(nil, store, handler, 10*time.Minute, 30*time.Minute, "@every 1m")
	sweeper.Sweep(ctx, base)

	if len(handler.warned) != 1 || handler.warned[0] != "idle" {
		t.Errorf("warned = %v, want [idle]", handler.warned)
	}
	if len(handler.expired) != 1 || handler.expired[0] != "dead" {
		t.Errorf("expired = %v, want [dead]", handler.expired)
	}
}

func TestSweepTTLBeatsWarning(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	// Past both thresholds: the session expires, no warning goes out.
	sess := New("gone", "k", base.Add(-2*time.Hour))
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	handler := &recordingHandler{}
	sweeper := NewSweeper(nil, store, handler, 10*time.Minute, 30*time.Minute, "")
	sweeper.Sweep(ctx, base)

	if len(handler.warned) != 0 {
		t.Errorf("warned = %v, want none", handler.warned)
	}
	if len(handler.expired) != 1 {
		t.Errorf("expired = %v, want [gone]", handler.expired)
	}
}

func TestSweeperStartRejectsBadSpec(t *testing.T) {
	sweeper := NewSweeper(nil, NewMemoryStore(), &recordingHandler{}, time.Minute, time.Hour, "not a cron spec")
	if err := sweeper.Start(); err == nil {
		sweeper.Stop()
		t.Fatal("expected error for invalid cron spec")
	}
}
