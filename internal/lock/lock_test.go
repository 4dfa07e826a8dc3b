package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

func TestLocalSerialisesSameKey(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Obtain(ctx, "Plain|White|24")
			if err != nil {
				t.Errorf("obtain: %v", err)
				return
			}
			defer release()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
	if len(l.slots) != 0 {
		t.Fatalf("expected slots to be cleaned up, got %d", len(l.slots))
	}
}

func TestLocalDifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	releaseA, err := l.Obtain(ctx, "a")
	if err != nil {
		t.Fatalf("obtain a: %v", err)
	}
	defer releaseA()

	ctxB, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	releaseB, err := l.Obtain(ctxB, "b")
	if err != nil {
		t.Fatalf("obtain b: %v", err)
	}
	releaseB()
}

func TestLocalHonoursContext(t *testing.T) {
	l := NewLocal()
	release, err := l.Obtain(context.Background(), "k")
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Obtain(ctx, "k"); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("expected ErrNotObtained, got %v", err)
	}
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("INVENTORY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set INVENTORY_TEST_REDIS_ADDR to run redis lock test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedis(client, 5*time.Second)
	key := "test-" + time.Now().Format(time.RFC3339Nano)
	release, err := l.Obtain(context.Background(), key)
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := l.Obtain(ctx, key); err == nil {
		t.Fatalf("expected second obtain to fail while held")
	}

	release()
	again, err := l.Obtain(context.Background(), key)
	if err != nil {
		t.Fatalf("obtain after release: %v", err)
	}
	again()
}
