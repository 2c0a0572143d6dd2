package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFromClient(rdb), mr
}

func TestActiveVersionDefaults(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	v, err := c.ActiveVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != Versions[0] {
		t.Errorf("default active version = %q, want %q", v, Versions[0])
	}
	inactive, err := c.InactiveVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if inactive != Versions[1] {
		t.Errorf("inactive version = %q, want %q", inactive, Versions[1])
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "orgs_acts_k", "v1", time.Hour); err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(ctx, "orgs_acts_k")
	if err != nil {
		t.Fatal(err)
	}
	if got != "v1" {
		t.Errorf("got %q, want %q", got, "v1")
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Get(context.Background(), "absent")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	in := []string{"https://example.org/a", "https://example.org/b"}
	if err := c.SetJSON(ctx, "uris", in, 0); err != nil {
		t.Fatal(err)
	}
	var out []string
	if err := c.GetJSON(ctx, "uris", &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
		t.Errorf("round trip mismatch: %v", out)
	}
}

func TestEmptyListDistinctFromMiss(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "empty_cell", []string{}, 0); err != nil {
		t.Fatal(err)
	}
	var out []string
	if err := c.GetJSON(ctx, "empty_cell", &out); err != nil {
		t.Fatalf("computed-empty cell must hit, got %v", err)
	}
	if len(out) != 0 {
		t.Errorf("want empty list, got %v", out)
	}
}

func TestFlipSwapsSnapshotsAndSweeps(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "old", 0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetInInactive(ctx, "k", "new", 0); err != nil {
		t.Fatal(err)
	}

	if err := c.Flip(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got != "new" {
		t.Errorf("after flip got %q, want %q", got, "new")
	}

	// old half swept
	for _, key := range mr.Keys() {
		if key != activeVersionKey && key[:len(Versions[0])+1] == Versions[0]+"_" {
			t.Errorf("old-version key %q survived the sweep", key)
		}
	}

	v, _ := c.ActiveVersion(ctx)
	if v != Versions[1] {
		t.Errorf("active version after flip = %q, want %q", v, Versions[1])
	}
}

func TestDeleteByPrefix(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"pre_a", "pre_b", "other"} {
		if err := c.Set(ctx, k, "x", 0); err != nil {
			t.Fatal(err)
		}
	}
	version, _ := c.ActiveVersion(ctx)
	n, err := c.DeleteByPrefix(ctx, version+"_pre_")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("deleted %d keys, want 2", n)
	}
	if _, err := c.Get(ctx, "other"); err != nil {
		t.Errorf("unrelated key was deleted: %v", err)
	}
}
