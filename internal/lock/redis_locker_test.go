package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestRefreshInterval(t *testing.T) {
	cases := map[time.Duration]time.Duration{
		time.Minute:            20 * time.Second,
		300 * time.Millisecond: 100 * time.Millisecond,
		time.Millisecond:       10 * time.Millisecond,
	}
	for ttl, want := range cases {
		if got := refreshInterval(ttl); got != want {
			t.Fatalf("refreshInterval(%s) = %s, want %s", ttl, got, want)
		}
	}
}

// Needs a reachable Redis; set REDIS_TEST_ADDR to run.
func TestRedisLockerOutlivesTTLWhileHeld(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	key := "ttl-" + time.Now().Format("150405.000000")
	ttl := 300 * time.Millisecond
	locker := NewRedisLocker(client, ttl, zap.NewNop())
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	time.Sleep(3 * ttl)
	if n, err := client.Exists(ctx, keyPrefix+key).Result(); err != nil || n != 1 {
		t.Fatalf("lock expired while held: exists=%d err=%v", n, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(waitCtx, key); err == nil {
		t.Fatalf("second holder acquired a held lock")
	}

	unlock()
	if n, _ := client.Exists(ctx, keyPrefix+key).Result(); n != 0 {
		t.Fatalf("lock still present after unlock")
	}
}
