package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
)

func TestRedisStore_Get_Hit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	mock.ExpectGet("test:mykey").SetVal("myvalue")

	val, ok, err := store.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Error("Expected hit")
	}
	if string(val) != "myvalue" {
		t.Errorf("Expected 'myvalue', got %q", val)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Get_Miss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	mock.ExpectGet("test:mykey").RedisNil()

	val, ok, err := store.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("absence should not be an error, got: %v", err)
	}
	if ok {
		t.Error("Expected miss")
	}
	if val != nil {
		t.Errorf("Expected nil value, got %q", val)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Set(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	mock.ExpectSet("test:mykey", []byte("myvalue"), time.Hour).SetVal("OK")

	if err := store.Set(context.Background(), "mykey", []byte("myvalue"), time.Hour); err != nil {
		t.Errorf("Set failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Set_NegativeTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	// Negative TTL clamps to 0 (no expiry)
	mock.ExpectSet("test:mykey", []byte("myvalue"), 0).SetVal("OK")

	if err := store.Set(context.Background(), "mykey", []byte("myvalue"), -time.Second); err != nil {
		t.Errorf("Set failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	mock.ExpectDel("test:a", "test:b").SetVal(2)

	if err := store.Delete(context.Background(), "a", "b"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}

	// No keys, no command
	if err := store.Delete(context.Background()); err != nil {
		t.Errorf("empty Delete should be a no-op, got: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Keys(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	mock.ExpectScan(0, "test:unit:*", 0).SetVal([]string{"test:unit:a", "test:unit:b"}, 0)

	keys, err := store.Keys(context.Background(), "unit:*")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}
	// The prefix is stripped on the way out
	if keys[0] != "unit:a" || keys[1] != "unit:b" {
		t.Errorf("keys = %v, want prefix-stripped names", keys)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Sets(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")
	ctx := context.Background()

	mock.ExpectSAdd("test:tag:lang:es_ES", "k1", "k2").SetVal(2)
	if err := store.SAdd(ctx, "tag:lang:es_ES", "k1", "k2"); err != nil {
		t.Errorf("SAdd failed: %v", err)
	}

	// No members, no command
	if err := store.SAdd(ctx, "tag:lang:es_ES"); err != nil {
		t.Errorf("empty SAdd should be a no-op, got: %v", err)
	}

	mock.ExpectSMembers("test:tag:lang:es_ES").SetVal([]string{"k1", "k2"})
	members, err := store.SMembers(ctx, "tag:lang:es_ES")
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("got %d members, want 2", len(members))
	}

	mock.ExpectExpire("test:tag:lang:es_ES", time.Hour).SetVal(true)
	if err := store.Expire(ctx, "tag:lang:es_ES", time.Hour); err != nil {
		t.Errorf("Expire failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Size(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	mock.ExpectDBSize().SetVal(42)

	size, err := store.Size(context.Background())
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 42 {
		t.Errorf("size = %d, want 42", size)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Info(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	raw := "used_memory_human:1.25M\r\n" +
		"keyspace_hits:90\r\n" +
		"keyspace_misses:10\r\n" +
		"uptime_in_seconds:120\r\n"
	mock.ExpectInfo().SetVal(raw)
	mock.ExpectDBSize().SetVal(7)

	info, err := store.Info(context.Background())
	if err != nil {
		t.Fatalf("Info failed: %v", err)
	}
	if !info.Connected {
		t.Error("Connected should be true")
	}
	if info.UsedMemory != "1.25M" {
		t.Errorf("UsedMemory = %q, want 1.25M", info.UsedMemory)
	}
	if info.HitRate != 0.9 {
		t.Errorf("HitRate = %f, want 0.9", info.HitRate)
	}
	if info.Uptime != 2*time.Minute {
		t.Errorf("Uptime = %v, want 2m", info.Uptime)
	}
	if info.TotalKeys != 7 {
		t.Errorf("TotalKeys = %d, want 7", info.TotalKeys)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_DefaultKeyPrefix(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "")

	mock.ExpectGet("gotmem:hash123").SetVal("translated")

	val, ok, err := store.Get(context.Background(), "hash123")
	if err != nil || !ok || string(val) != "translated" {
		t.Errorf("Expected 'translated', got %q (ok=%v err=%v)", val, ok, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestRedisStore_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := NewRedisStoreFromClient(db, "test:")

	mock.ExpectPing().SetVal("PONG")

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
