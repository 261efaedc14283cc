package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"alphaminer/internal/miner"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	session := miner.NewSession()
	session.MarkAccepted("fundamental6", "rank(close)")
	session.CurrentDataset = "pv1"
	session.CurrentAttempt = 3

	if err := store.Save(context.Background(), session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a session, got nil")
	}
	if loaded.ID != session.ID {
		t.Errorf("expected ID %s, got %s", session.ID, loaded.ID)
	}
	if loaded.Accepted != 1 {
		t.Errorf("expected accepted 1, got %d", loaded.Accepted)
	}
	if !loaded.AlreadyAccepted("fundamental6", "rank(close)") {
		t.Error("accepted keys lost in round trip")
	}
	if loaded.CurrentDataset != "pv1" || loaded.CurrentAttempt != 3 {
		t.Errorf("progress lost in round trip: %+v", loaded)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	session, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load of a missing file should not error: %v", err)
	}
	if session != nil {
		t.Errorf("expected nil session, got %+v", session)
	}
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if _, err := store.Load(context.Background()); err == nil {
		t.Error("expected an error for a corrupt checkpoint")
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	first := miner.NewSession()
	if err := store.Save(context.Background(), first); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second := first.Clone()
	second.MarkAccepted("d1", "e1")
	if err := store.Save(context.Background(), second); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Accepted != 1 {
		t.Errorf("expected latest checkpoint, got accepted=%d", loaded.Accepted)
	}

	// No leftover temp file after a successful save
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "checkpoint.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Save(context.Background(), miner.NewSession()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
}
