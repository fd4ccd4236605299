package cron

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/grigobio237-eng/Youniqle-sub002/pkg/redis"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{values: map[string]string{}} }

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newFakeRedis()
	ctx := context.Background()
	first, err := NewRedisLock(store, "yq:lock:cron", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "yq:lock:cron", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if !strings.Contains(store.values["yq:lock:cron"], "/") {
		t.Fatalf("owner token should carry the instance name, got %q", store.values["yq:lock:cron"])
	}

	// releasing a lock we do not own leaves it in place
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if _, ok := store.values["yq:lock:cron"]; !ok {
		t.Fatal("foreign release removed the lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := newFakeRedis()
	ctx := context.Background()
	lock, _ := NewRedisLock(store, "yq:lock:cron", 0)
	if lock.ttl != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", lock.ttl)
	}
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}
	// ttl elapsed and another instance took over
	store.values["yq:lock:cron"] = "other/holder"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["yq:lock:cron"] != "other/holder" {
		t.Fatal("release must not delete another holder's lock")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Second); err == nil {
		t.Fatal("expected client required")
	}
	if _, err := NewRedisLock(newFakeRedis(), "", time.Second); err == nil {
		t.Fatal("expected key required")
	}
}

func TestRedisLockAgainstServer(t *testing.T) {
	t.Setenv("YOUNIQLE_INSTANCE_ID", "cron-a")
	mr := miniredis.RunT(t)
	client := redis.FromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	key := client.LockKey("cron-worker")

	first, err := NewRedisLock(client, key, time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(client, key, time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	owner, err := mr.Get(key)
	if err != nil || !strings.HasPrefix(owner, "cron-a/") {
		t.Fatalf("unexpected owner %q err=%v", owner, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("held lock must not be acquired twice")
	}

	// a crashed holder frees the fleet after one ttl
	mr.FastForward(time.Minute + time.Second)
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if !mr.Exists(key) {
		t.Fatal("stale holder must not delete the new owner's lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("owner release must delete the lock")
	}
}
