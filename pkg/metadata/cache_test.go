package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisCache(mr.Addr(), "", time.Hour)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "9780441172719"); err != nil || ok {
		t.Fatalf("get before put: ok=%v err=%v, want miss", ok, err)
	}

	want := Resolved{
		Result: Result{Title: "Dune", Author: "Frank Herbert", Source: "googlebooks"},
		Cover:  []byte("jpeg-bytes"),
	}
	if err := c.Put(ctx, "9780441172719", want); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := c.Get(ctx, "9780441172719")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got.Title != want.Title || got.Author != want.Author || got.Source != want.Source {
		t.Fatalf("got = %+v, want %+v", got.Result, want.Result)
	}
	if string(got.Cover) != string(want.Cover) {
		t.Fatalf("cover = %q, want %q", got.Cover, want.Cover)
	}
}

func TestRedisCacheCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(mr.Addr(), "", time.Hour)
	if err := mr.Set(cacheKey("9780441172719"), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	if _, _, err := c.Get(context.Background(), "9780441172719"); err == nil {
		t.Fatalf("expected decode error for corrupt entry")
	}
}
