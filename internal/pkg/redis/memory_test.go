package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.GetBytes(ctx, "missing"); !errors.Is(err, Nil) {
		t.Errorf("Expected Nil for missing key, got %v", err)
	}

	if err := m.SetString(ctx, "k", "v", 0); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	got, err := m.GetString(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Expected v, got %q (%v)", got, err)
	}

	n, _ := m.Del(ctx, "k", "other")
	if n != 1 {
		t.Errorf("Expected 1 deleted, got %d", n)
	}
	if ok, _ := m.Exists(ctx, "k"); ok {
		t.Error("Expected key to be gone")
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }

	m.SetBytes(ctx, "k", []byte("v"), time.Second)
	if ok, _ := m.Exists(ctx, "k"); !ok {
		t.Fatal("Expected key before expiry")
	}

	now = now.Add(2 * time.Second)
	if ok, _ := m.Exists(ctx, "k"); ok {
		t.Error("Expected key to expire")
	}
	if ok, _ := m.Expire(ctx, "k", 10); ok {
		t.Error("Expected Expire on missing key to report false")
	}
}
