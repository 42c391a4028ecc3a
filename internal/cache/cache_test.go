package cache

import (
	"testing"
	"time"
)

func TestSetGetWithinTTL(t *testing.T) {
	c := New[[]float32](time.Minute)
	vec := []float32{0.1, 0.2, 0.3}
	c.Set("hello", vec, 0)

	got, ok := c.Get("hello")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 3 || got[0] != 0.1 || got[2] != 0.3 {
		t.Errorf("got %v, want %v", got, vec)
	}
}

func TestGetMiss(t *testing.T) {
	c := New[string](time.Minute)
	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestExpiryEvictsOnRead(t *testing.T) {
	c := New[string](50 * time.Millisecond)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", "v", 0)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(100 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after TTL elapsed")
	}
	if c.Size() != 0 {
		t.Errorf("expired entry not evicted, size = %d", c.Size())
	}
}

func TestExplicitTTLOverridesDefault(t *testing.T) {
	c := New[int](time.Millisecond)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("long", 1, time.Hour)
	now = now.Add(time.Minute)
	if _, ok := c.Get("long"); !ok {
		t.Error("entry with explicit long TTL should survive default TTL")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New[int](time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)

	if !c.Delete("a") {
		t.Error("Delete should report true for present key")
	}
	if c.Delete("a") {
		t.Error("Delete should report false for absent key")
	}
	if c.Size() != 1 {
		t.Errorf("size = %d, want 1", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("size after Clear = %d, want 0", c.Size())
	}
}

func TestFrameKeyStable(t *testing.T) {
	frame := make([]byte, 512)
	for i := range frame {
		frame[i] = byte(i)
	}
	if FrameKey(frame) != FrameKey(frame) {
		t.Error("FrameKey should be deterministic")
	}

	other := make([]byte, 512)
	copy(other, frame)
	other[0] = 0xFF
	if FrameKey(frame) == FrameKey(other) {
		t.Error("FrameKey should differ when prefix bytes differ")
	}
}
