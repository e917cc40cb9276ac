package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "test:"), s
}

func TestRedisRoundTripAndExpiry(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	if err := c.SetJSON(ctx, "k", payload{Name: "a", Score: 0.8}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !s.Exists("test:k") {
		t.Fatal("expected prefixed key in redis")
	}

	var got payload
	found, err := c.GetJSON(ctx, "k", &got)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got != (payload{Name: "a", Score: 0.8}) {
		t.Fatalf("unexpected payload %+v", got)
	}

	s.FastForward(2 * time.Minute)
	found, err = c.GetJSON(ctx, "k", &got)
	if err != nil || found {
		t.Fatalf("expected miss after expiry: found=%v err=%v", found, err)
	}
}

func TestRedisDelete(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	_ = c.SetJSON(ctx, "a", 1, time.Minute)
	_ = c.SetJSON(ctx, "b", 2, time.Minute)
	if err := c.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Exists("test:a") || s.Exists("test:b") {
		t.Fatal("expected keys removed")
	}
}

func TestNop(t *testing.T) {
	var c Cache = Nop{}
	if err := c.SetJSON(context.Background(), "k", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	var v int
	if found, err := c.GetJSON(context.Background(), "k", &v); found || err != nil {
		t.Fatalf("nop should always miss: %v %v", found, err)
	}
}
