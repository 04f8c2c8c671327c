package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // a is now most recent
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("expected a=1, got %d, %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("expected c=3, got %d, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestLRUUpdateExisting(t *testing.T) {
	c := NewLRU[string](2)
	c.Put("a", "x")
	c.Put("a", "y")
	if v, _ := c.Get("a"); v != "y" {
		t.Errorf("expected y, got %s", v)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestLRUDefaultSize(t *testing.T) {
	c := NewLRU[int](0)
	for i := 0; i < 100; i++ {
		c.Put(fmt.Sprint(i), i)
	}
	if c.Len() != 64 {
		t.Errorf("expected default capacity 64, got %d", c.Len())
	}
}

func TestLRUConcurrent(t *testing.T) {
	c := NewLRU[int](10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprint(i % 5)
			c.Put(key, i)
			c.Get(key)
		}(i)
	}
	wg.Wait()
	if c.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", c.Len())
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(4)
	v := []byte("abc")
	if err := m.Set(ctx, "k", v); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v[0] = 'z'

	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: %v, %v", ok, err)
	}
	if string(got) != "abc" {
		t.Errorf("expected abc, got %s", got)
	}

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("expected miss")
	}
}

func TestNewBackends(t *testing.T) {
	c, err := New(context.Background(), Options{Backend: "memory", Size: 2})
	if err != nil {
		t.Fatalf("New(memory): %v", err)
	}
	if _, ok := c.(*Memory); !ok {
		t.Errorf("expected *Memory, got %T", c)
	}

	if _, err := New(context.Background(), Options{Backend: "memcached"}); err == nil {
		t.Error("expected unknown backend to fail")
	}
	if _, err := New(context.Background(), Options{Backend: "redis", RedisURL: "not a url"}); err == nil {
		t.Error("expected bad redis url to fail")
	}
}

func TestRedisKeyPrefix(t *testing.T) {
	r := &Redis{prefix: "riskframe:"}
	if got := r.key("version:1"); got != "riskframe:version:1" {
		t.Errorf("expected prefixed key, got %s", got)
	}
}
