package cache_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-atlas/cache"
	"github.com/RyanBlaney/sonido-atlas/descriptors"
)

func openStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache", "descriptors.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func sampleRecord(t *testing.T) *descriptors.Record {
	t.Helper()
	var rec descriptors.Record
	if err := json.Unmarshal([]byte(`{"duration_ms": 1000, "tempo": 120.5, "loudness_lufs": null}`), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return &rec
}

func writeAudio(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.wav")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	key, err := cache.KeyForFile(writeAudio(t, "RIFF"), "opts")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}

	if _, ok, err := store.Get(ctx, key); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, key, sampleRecord(t)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Len() != 3 {
		t.Fatalf("got %d descriptors, want 3", got.Len())
	}
	if v, _ := got.Float(descriptors.Tempo); v != 120.5 {
		t.Fatalf("tempo = %v, want 120.5", v)
	}
	if v, ok := got.Get(descriptors.LoudnessLUFS); !ok || v.Valid {
		t.Fatalf("loudness = %+v, want present and unavailable", v)
	}
}

func TestStaleEntryIsMiss(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	path := writeAudio(t, "RIFF")
	key, err := cache.KeyForFile(path, "opts")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	if err := store.Put(ctx, key, sampleRecord(t)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	changed := key
	changed.ModTime = key.ModTime.Add(time.Second)
	if _, ok, _ := store.Get(ctx, changed); ok {
		t.Fatal("modified file served from cache")
	}

	resized := key
	resized.Size++
	if _, ok, _ := store.Get(ctx, resized); ok {
		t.Fatal("resized file served from cache")
	}

	other := key
	other.OptionsHash = "different"
	if _, ok, _ := store.Get(ctx, other); ok {
		t.Fatal("entry served for different settings")
	}
}

func TestPutReplacesAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	key, err := cache.KeyForFile(writeAudio(t, "RIFF"), "old")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}
	for range 2 {
		if err := store.Put(ctx, key, sampleRecord(t)); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	current := key
	current.OptionsHash = "new"
	if err := store.Put(ctx, current, sampleRecord(t)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if n, err := store.Count(ctx); err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2", n, err)
	}
	removed, err := store.Prune(ctx, "new")
	if err != nil || removed != 1 {
		t.Fatalf("Prune = %d, %v; want 1", removed, err)
	}
	if _, ok, _ := store.Get(ctx, current); !ok {
		t.Fatal("current entry pruned")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "descriptors.db")
	ctx := context.Background()

	key, err := cache.KeyForFile(writeAudio(t, "RIFF"), "opts")
	if err != nil {
		t.Fatalf("KeyForFile: %v", err)
	}

	store, err := cache.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Put(ctx, key, sampleRecord(t)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := cache.Open(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, err := reopened.Get(ctx, key); err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
}

func TestKeyForMissingFile(t *testing.T) {
	if _, err := cache.KeyForFile(filepath.Join(t.TempDir(), "nope.wav"), "x"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOptionsHash(t *testing.T) {
	a, err := cache.OptionsHash(descriptors.DefaultOptions())
	if err != nil {
		t.Fatalf("OptionsHash: %v", err)
	}
	b, _ := cache.OptionsHash(descriptors.DefaultOptions())
	if a != b || len(a) != 16 {
		t.Fatalf("hashes %q %q", a, b)
	}

	opts := descriptors.DefaultOptions()
	opts.EnergyHigh = 0.3
	c, _ := cache.OptionsHash(opts)
	if c == a {
		t.Fatal("different settings share a hash")
	}
}
