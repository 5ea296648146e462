package model

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func startWatcher(t *testing.T, dir string) (*recordingListener, *Repository) {
	t.Helper()
	repo := NewRepository(dir, nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	w := NewWatcher(repo, dir, nil)
	w.debounce = 10 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return l, repo
}

// waitEvents polls until the listener saw exactly want, failing after
// two seconds.
func waitEvents(t *testing.T, l *recordingListener, want ...string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := l.snapshot()
		if reflect.DeepEqual(got, want) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("events = %v, want %v", got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func writeModel(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestWatcher_InitialScanLoadsModels(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Lamp\n")
	writeModel(t, dir, "sub/more.yaml", "version: 2\nwidgets:\n  b:\n    label: Fan\n")
	writeModel(t, dir, ".hidden.yaml", "version: 2\nwidgets:\n  x:\n    label: Nope\n")
	writeModel(t, dir, "#edit.yaml", "version: 2\nwidgets:\n  y:\n    label: Nope\n")
	writeModel(t, dir, "notes.txt", "not a model")

	l, repo := startWatcher(t, dir)

	// The initial scan runs before Start returns.
	l.assert(t, "added home.yaml a=Lamp", "added sub/more.yaml b=Fan")
	if names := repo.ModelNames(); !reflect.DeepEqual(names, []string{"home.yaml", "sub/more.yaml"}) {
		t.Fatalf("ModelNames() = %v", names)
	}
}

func TestWatcher_PicksUpCreatedFile(t *testing.T) {
	dir := t.TempDir()
	l, _ := startWatcher(t, dir)

	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Lamp\n")
	waitEvents(t, l, "added home.yaml a=Lamp")
}

func TestWatcher_ProcessesModifiedFile(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Lamp\n")
	l, _ := startWatcher(t, dir)

	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Strip\n")
	waitEvents(t, l, "added home.yaml a=Lamp", "updated home.yaml a=Strip")
}

func TestWatcher_CoalescesRapidWrites(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Lamp\n")

	repo := NewRepository(dir, nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)
	w := NewWatcher(repo, dir, nil)
	w.debounce = 100 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(w.Stop)
	l.reset()

	// Two writes in quick succession: only the settled content lands.
	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Draft\n")
	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Final\n")
	waitEvents(t, l, "updated home.yaml a=Final")
}

func TestWatcher_RemovesDeletedFile(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Lamp\n")
	l, repo := startWatcher(t, dir)

	if err := os.Remove(filepath.Join(dir, "home.yaml")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	waitEvents(t, l, "added home.yaml a=Lamp", "removed home.yaml a=Lamp")
	if names := repo.ModelNames(); len(names) != 0 {
		t.Fatalf("ModelNames() = %v, want empty", names)
	}
}

func TestWatcher_RemovesDeletedDirectory(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, dir, "sub/more.yaml", "version: 2\nwidgets:\n  b:\n    label: Fan\n")
	l, repo := startWatcher(t, dir)

	if err := os.RemoveAll(filepath.Join(dir, "sub")); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	waitEvents(t, l, "added sub/more.yaml b=Fan", "removed sub/more.yaml b=Fan")
	if names := repo.ModelNames(); len(names) != 0 {
		t.Fatalf("ModelNames() = %v, want empty", names)
	}
}

func TestWatcher_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	l, _ := startWatcher(t, dir)

	writeModel(t, dir, ".hidden.yaml", "version: 2\nwidgets:\n  x:\n    label: Nope\n")
	writeModel(t, dir, "#backup.yaml", "version: 2\nwidgets:\n  y:\n    label: Nope\n")
	writeModel(t, dir, "notes.txt", "not a model")
	writeModel(t, dir, ".home.yaml.tmp", "version: 2\n")

	time.Sleep(100 * time.Millisecond)
	l.assert(t)
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	l, _ := startWatcher(t, dir)

	if err := os.MkdirAll(filepath.Join(dir, "rooms"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	writeModel(t, dir, "rooms/attic.yaml", "version: 2\nwidgets:\n  a:\n    label: Lamp\n")
	waitEvents(t, l, "added rooms/attic.yaml a=Lamp")
}

func TestWatcher_WriteBackDoesNotEcho(t *testing.T) {
	dir := t.TempDir()
	l, repo := startWatcher(t, dir)

	if err := repo.AddElement("custom.yaml", "widgets", testElement{Key: "a", Label: "Lamp"}); err != nil {
		t.Fatalf("AddElement() error = %v", err)
	}
	l.assert(t, "added custom.yaml a=Lamp")

	// The watcher sees its own write, reprocesses, and finds no change.
	time.Sleep(150 * time.Millisecond)
	l.assert(t, "added custom.yaml a=Lamp")
}

func TestWatcher_StopCancelsPendingWork(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir, nil)
	l := newRecordingListener("widgets")
	repo.AddListener(l)

	w := NewWatcher(repo, dir, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The default debounce holds the write well past Stop.
	writeModel(t, dir, "home.yaml", "version: 2\nwidgets:\n  a:\n    label: Lamp\n")
	w.Stop()

	time.Sleep(50 * time.Millisecond)
	l.assert(t)

	// Stop twice is a no-op.
	w.Stop()
}
