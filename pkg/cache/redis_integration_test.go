//go:build integration

package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		client.Close()
		container.Terminate(context.Background())
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil)
}

func TestRedisStore_SetAndGet(t *testing.T) {
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()

	key := Key{MatchID: "m1"}
	payload := json.RawMessage(`{"pick":"Home"}`)

	if err := store.Set(ctx, key, payload, 20*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Value) != string(payload) {
		t.Errorf("Value mismatch: got %s, want %s", entry.Value, payload)
	}
	if entry.TTL != 20*time.Second {
		t.Errorf("TTL mismatch: got %v, want %v", entry.TTL, 20*time.Second)
	}
}

func TestRedisStore_PayloadBytesPreserved(t *testing.T) {
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()
	key := Key{MatchID: "m1"}

	payload := json.RawMessage("{ \"pick\" : \"Home\",\n  \"note\": \"<b>A&B</b>\" }")
	if err := store.Set(ctx, key, payload, 20*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(entry.Value, payload) {
		t.Errorf("Value not preserved: got %q, want %q", entry.Value, payload)
	}
}

func TestRedisStore_Get_CacheMiss(t *testing.T) {
	store := NewRedisStore(setupRedis(t))

	_, err := store.Get(context.Background(), Key{MatchID: "nonexistent"})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestRedisStore_Expiry(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	key := Key{MatchID: "m1"}

	if err := store.Set(ctx, key, json.RawMessage(`{}`), 1*time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after ttl, got %v", err)
	}
}

func TestRedisStore_Get_StaleEntryPurged(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client)
	ctx := context.Background()
	key := Key{MatchID: "m1"}

	// Written without a Redis expiry, as if by an older instance.
	stale := Entry{
		Key:       key.String(),
		Value:     json.RawMessage(`{}`),
		CreatedAt: time.Now().Add(-time.Hour),
		TTL:       20 * time.Second,
	}
	data, _ := encodeEntry(stale)
	if err := client.Set(ctx, key.String(), data, 0).Err(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss for stale entry, got %v", err)
	}

	if n, _ := client.Exists(ctx, key.String()).Result(); n != 0 {
		t.Error("stale entry was not deleted on lookup")
	}
}

func TestRedisStore_KeySeparation(t *testing.T) {
	store := NewRedisStore(setupRedis(t))
	ctx := context.Background()

	if err := store.Set(ctx, Key{MatchID: "A"}, json.RawMessage(`{}`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for _, other := range []Key{{MatchID: "A", Detail: true}, {MatchID: "B"}} {
		if _, err := store.Get(ctx, other); !errors.Is(err, ErrCacheMiss) {
			t.Errorf("Get(%+v) = %v, want ErrCacheMiss", other, err)
		}
	}
}

func TestRedisStore_Ping(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client)

	if err := Ping(context.Background(), store); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	client.Close()
	if err := Ping(context.Background(), store); err == nil {
		t.Error("Ping should fail once the client is closed")
	}
}
