package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestBackupCreatesSnapshot(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "pacman.conf")
	writeFile(t, orig, "[options]\n")

	store := NewStore("")
	id, err := store.Backup(orig)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}

	data, err := os.ReadFile(id)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(data) != "[options]\n" {
		t.Errorf("snapshot content mismatch: %q", data)
	}

	// Original must be untouched.
	data, _ = os.ReadFile(orig)
	if string(data) != "[options]\n" {
		t.Errorf("original modified: %q", data)
	}
}

func TestBackupMissingFile(t *testing.T) {
	store := NewStore("")
	if _, err := store.Backup(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRestoreLatestNoBackups(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "pacman.conf")
	writeFile(t, orig, "current\n")

	store := NewStore("")
	restored, err := store.RestoreLatest(orig)
	if err != nil {
		t.Fatalf("RestoreLatest failed: %v", err)
	}
	if restored {
		t.Error("expected restored=false without backups")
	}
}

func TestRestoreLatestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "pacman.conf")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore("")
	store.now = func() time.Time { return base }

	writeFile(t, orig, "first\n")
	if _, err := store.Backup(orig); err != nil {
		t.Fatalf("first backup: %v", err)
	}

	store.now = func() time.Time { return base.Add(time.Second) }
	writeFile(t, orig, "second\n")
	if _, err := store.Backup(orig); err != nil {
		t.Fatalf("second backup: %v", err)
	}

	writeFile(t, orig, "corrupted\n")
	restored, err := store.RestoreLatest(orig)
	if err != nil {
		t.Fatalf("RestoreLatest failed: %v", err)
	}
	if !restored {
		t.Fatal("expected restored=true")
	}
	data, _ := os.ReadFile(orig)
	if string(data) != "second\n" {
		t.Errorf("expected newest snapshot restored, got %q", data)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "pacman.conf")
	writeFile(t, orig, "x\n")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore("")
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Millisecond
		store.now = func() time.Time { return base.Add(offset) }
		if _, err := store.Backup(orig); err != nil {
			t.Fatalf("backup %d: %v", i, err)
		}
	}

	backups, err := store.List(orig)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("expected 3 backups, got %d", len(backups))
	}
	for i := 1; i < len(backups); i++ {
		if backups[i].CreatedAt.After(backups[i-1].CreatedAt) {
			t.Errorf("backups not ordered newest first at index %d", i)
		}
	}
}

func TestStoreWithDedicatedDir(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	orig := filepath.Join(dir, "pacman.conf")
	writeFile(t, orig, "content\n")

	store := NewStore(backupDir)
	id, err := store.Backup(orig)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if filepath.Dir(id) != backupDir {
		t.Errorf("snapshot written to %s, expected %s", filepath.Dir(id), backupDir)
	}
}
