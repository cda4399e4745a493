package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRedisLedger_RecordAndCount(t *testing.T) {
	client, _ := newTestRedis(t)
	ledger := NewRedisLedger(client, LedgerConfig{Window: 24 * time.Hour, Cooldown: 12 * time.Hour})
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	for i, recipient := range []string{"alice", "bob", "carol"} {
		at := now.Add(-time.Duration(i*10) * time.Hour)
		if err := ledger.RecordGive(ctx, "giver", recipient, at); err != nil {
			t.Fatalf("RecordGive returned error: %v", err)
		}
	}

	count, err := ledger.CountGivesSince(ctx, "giver", now.Add(-15*time.Hour))
	if err != nil {
		t.Fatalf("CountGivesSince returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 gives in window, got %d", count)
	}

	count, err = ledger.CountGivesSince(ctx, "someone-else", now.Add(-15*time.Hour))
	if err != nil {
		t.Fatalf("CountGivesSince returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no gives for another giver, got %d", count)
	}
}

func TestRedisLedger_LastGiveTo(t *testing.T) {
	client, server := newTestRedis(t)
	ledger := NewRedisLedger(client, LedgerConfig{KeyPrefix: "test", Cooldown: time.Hour})
	ctx := context.Background()
	at := time.Unix(0, 1_700_000_000_123_456_789)

	if _, ok, err := ledger.LastGiveTo(ctx, "giver", "alice"); err != nil || ok {
		t.Fatalf("expected miss before any give, ok=%v err=%v", ok, err)
	}
	if err := ledger.RecordGive(ctx, "giver", "alice", at); err != nil {
		t.Fatalf("RecordGive returned error: %v", err)
	}

	got, ok, err := ledger.LastGiveTo(ctx, "giver", "alice")
	if err != nil {
		t.Fatalf("LastGiveTo returned error: %v", err)
	}
	if !ok || !got.Equal(at) {
		t.Fatalf("expected %v, got %v (ok=%v)", at, got, ok)
	}

	remaining := server.TTL("test:giver:to:alice")
	if remaining <= 0 || remaining > time.Hour {
		t.Fatalf("expected ttl within (0, 1h], got %v", remaining)
	}

	server.FastForward(2 * time.Hour)
	if _, ok, err := ledger.LastGiveTo(ctx, "giver", "alice"); err != nil || ok {
		t.Fatalf("expected cooldown key to expire, ok=%v err=%v", ok, err)
	}
}

func TestRedisLedger_ScoresAreExactMilliseconds(t *testing.T) {
	client, _ := newTestRedis(t)
	ledger := NewRedisLedger(client, LedgerConfig{KeyPrefix: "test", Window: 24 * time.Hour, Cooldown: time.Hour})
	ctx := context.Background()
	at := time.Unix(0, 1_700_000_000_123_456_789)

	if err := ledger.RecordGive(ctx, "giver", "alice", at); err != nil {
		t.Fatalf("RecordGive returned error: %v", err)
	}
	members, err := client.ZRangeWithScores(ctx, "test:giver", 0, -1).Result()
	if err != nil {
		t.Fatalf("ZRangeWithScores returned error: %v", err)
	}
	if len(members) != 1 || members[0].Score != float64(at.UnixMilli()) {
		t.Fatalf("expected score %d, got %+v", at.UnixMilli(), members)
	}

	since := at.Truncate(time.Millisecond)
	if count, err := ledger.CountGivesSince(ctx, "giver", since); err != nil || count != 1 {
		t.Fatalf("expected give at window start to count, got %d err=%v", count, err)
	}
	if count, err := ledger.CountGivesSince(ctx, "giver", since.Add(time.Millisecond)); err != nil || count != 0 {
		t.Fatalf("expected give before window to be dropped, got %d err=%v", count, err)
	}
}
