package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New()
	c.Set("k", "v", time.Minute)
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("expected hit with v, got %v %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })
	c.Set("k", 42, time.Minute)

	now = now.Add(59 * time.Second)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("expected hit before expiry, got %v %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after expiry")
	}
	// expired read evicts
	if c.Size() != 0 {
		t.Fatalf("expected eviction on expired read, size=%d", c.Size())
	}
}

func TestOverwriteExtendsExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewWithClock(func() time.Time { return now })
	c.Set("k", "old", time.Minute)
	now = now.Add(50 * time.Second)
	c.Set("k", "new", time.Minute)
	now = now.Add(50 * time.Second)
	v, ok := c.Get("k")
	if !ok || v != "new" {
		t.Fatalf("expected refreshed entry, got %v %v", v, ok)
	}
}

func TestDeleteClearSize(t *testing.T) {
	c := New()
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	if c.Size() != 2 {
		t.Fatalf("size=%d, want 2", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss after delete")
	}
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("size=%d after clear, want 0", c.Size())
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%4)
			for j := 0; j < 200; j++ {
				c.Set(key, j, time.Minute)
				c.Get(key)
				if j%50 == 0 {
					c.Delete(key)
				}
				if j%97 == 0 {
					c.Clear()
				}
			}
		}(i)
	}
	wg.Wait()
}
