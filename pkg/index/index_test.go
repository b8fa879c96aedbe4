package index

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEventIndexPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", IndexFile)

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := idx.Save(); err != nil {
		t.Fatalf("Save of clean index failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Clean index should not be written")
	}

	idx.Set("work", "task-1", "event-1")
	idx.Set("work", "task-2", "event-2")
	idx.Set("home", "task-1", "event-9")
	idx.Remove("work", "task-2")
	idx.Remove("nowhere", "task-1")
	if err := idx.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if got := reopened.Get("work", "task-1"); got != "event-1" {
		t.Errorf("Expected event-1, got %q", got)
	}
	if got := reopened.Get("home", "task-1"); got != "event-9" {
		t.Errorf("Expected event-9 on the second calendar, got %q", got)
	}
	if got := reopened.Get("work", "task-2"); got != "" {
		t.Errorf("Expected task-2 removed, got %q", got)
	}
	if reopened.Path() != path {
		t.Errorf("Expected path %q, got %q", path, reopened.Path())
	}
	if n := reopened.Len("work"); n != 1 {
		t.Errorf("Expected 1 task on work, got %d", n)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFile)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Expected error for corrupt index")
	}
}
