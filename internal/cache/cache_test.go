package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLRUCacheSetGet(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Errorf("expected value1, got %s", val)
	}
}

func TestLRUCacheMissReturnsNil(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	val, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil on miss, got %s", val)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	val, err := c.Get(ctx, "short")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != nil {
		t.Error("expected expired entry to miss")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(2)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	// Touch "a" so "b" is the eviction candidate.
	c.Get(ctx, "a")

	c.Set(ctx, "c", []byte("3"), time.Minute)

	if val, _ := c.Get(ctx, "b"); val != nil {
		t.Error("expected b to be evicted")
	}
	if val, _ := c.Get(ctx, "a"); string(val) != "1" {
		t.Errorf("expected a to survive, got %s", val)
	}

	size, capacity := c.Stats()
	if size != 2 || capacity != 2 {
		t.Errorf("expected size 2 of 2, got %d of %d", size, capacity)
	}
}

func TestLRUCacheDelete(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "key1", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if val, _ := c.Get(ctx, "key1"); val != nil {
		t.Error("expected deleted key to miss")
	}
}

func TestLRUCacheSummaryRoundTrip(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	summary := &domain.Summary{
		TotalTransactions: 500,
		TotalFindings:     12,
		FlaggedTxns:       9,
		TotalLeakageGBP:   18250.75,
		BySeverity:        map[domain.Severity]int{domain.SeverityCritical: 2},
		ByRule: map[domain.Rule]domain.RuleSummary{
			domain.RulePriceVariance: {Count: 5, LeakageGBP: 4200},
		},
	}

	if err := c.SetSummary(ctx, domain.SummaryKey("run-1"), summary, time.Minute); err != nil {
		t.Fatalf("SetSummary failed: %v", err)
	}

	got, err := c.GetSummary(ctx, domain.SummaryKey("run-1"))
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached summary")
	}
	if got.TotalLeakageGBP != 18250.75 {
		t.Errorf("expected leakage 18250.75, got %.2f", got.TotalLeakageGBP)
	}
	if got.BySeverity[domain.SeverityCritical] != 2 {
		t.Errorf("severity map not round-tripped: %+v", got.BySeverity)
	}
}

func TestLRUCacheSummaryMiss(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	got, err := c.GetSummary(context.Background(), domain.SummaryKeyLatest)
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}
}

func TestNewMemoryCache(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewUnsupportedCache(t *testing.T) {
	_, err := New(domain.CacheConfig{Type: "memcached"})
	if err == nil {
		t.Fatal("expected error for unsupported cache type")
	}
}
