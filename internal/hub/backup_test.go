package hub

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBackupOnceCopiesStateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubs.json")
	if err := os.WriteFile(path, []byte(`{"hubs":{},"server_links":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(nil, path)
	b, err := NewBackup(nil, store, "@daily", 7)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := b.Once(now); err != nil {
		t.Fatal(err)
	}

	want := path + ".bak-20260301T123000"
	raw, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("backup file: %v", err)
	}
	if string(raw) != `{"hubs":{},"server_links":{}}` {
		t.Errorf("backup content = %s", raw)
	}
}

func TestBackupOnceMissingStateIsNoOp(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(nil, filepath.Join(dir, "hubs.json"))
	b, err := NewBackup(nil, store, "@daily", 7)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Once(time.Now()); err != nil {
		t.Errorf("missing state file: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*"))
	if len(matches) != 0 {
		t.Errorf("files created: %v", matches)
	}
}

func TestBackupPrunesOldCopies(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubs.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(nil, path)
	b, err := NewBackup(nil, store, "@daily", 2)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := b.Once(base.Add(time.Duration(i) * time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := filepath.Glob(path + ".bak-*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("kept %d backups, want 2: %v", len(matches), matches)
	}
	// Timestamps sort lexically, so the newest two survive.
	for _, m := range matches {
		if m != path+".bak-20260301T030000" && m != path+".bak-20260301T040000" {
			t.Errorf("unexpected survivor %s", m)
		}
	}
}

func TestBackupRejectsBadPattern(t *testing.T) {
	store := NewStore(nil, filepath.Join(t.TempDir(), "hubs.json"))
	if _, err := NewBackup(nil, store, "not a cron line", 7); err == nil {
		t.Error("bad cron pattern accepted")
	}
}
