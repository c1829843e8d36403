package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeDatasetFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	p := writeDatasetFile(t, dir, "dataset.json", `{"en":{"k1":"Hello"}}`)

	w, err := New(20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	events := make(chan Event, 4)
	w.Subscribe("*.json", func(ev Event) { events <- ev })

	if err := w.Watch(p); err != nil {
		t.Fatal(err)
	}

	writeDatasetFile(t, dir, "dataset.json", `{"en":{"k1":"Hello","k2":"Bye"}}`)

	select {
	case ev := <-events:
		if ev.Err != nil {
			t.Fatalf("unexpected reload error: %v", ev.Err)
		}
		if ev.Dataset == nil || len(ev.Dataset.Rows) != 2 {
			t.Fatalf("expected 2 rows after reload, got %+v", ev.Dataset)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload event")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	p := writeDatasetFile(t, dir, "dataset.json", `{"en":{"k1":"a"}}`)

	w, err := New(150*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	events := make(chan Event, 16)
	w.Subscribe("", func(ev Event) { events <- ev })

	if err := w.Watch(p); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		writeDatasetFile(t, dir, "dataset.json", `{"en":{"k1":"a"}}`)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-events:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for debounced event")
	}

	select {
	case <-events:
		t.Fatal("burst produced more than one reload")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherReportsInvalidDataset(t *testing.T) {
	dir := t.TempDir()
	p := writeDatasetFile(t, dir, "dataset.json", `{"en":{"k1":"a"}}`)

	w, err := New(20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	events := make(chan Event, 4)
	w.Subscribe("*", func(ev Event) { events <- ev })

	if err := w.Watch(p); err != nil {
		t.Fatal(err)
	}

	writeDatasetFile(t, dir, "dataset.json", `not json`)

	select {
	case ev := <-events:
		if ev.Err == nil {
			t.Fatal("expected normalization error")
		}
		if ev.Dataset != nil {
			t.Fatal("expected nil dataset on error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for error event")
	}
}

func TestWatcherIgnoresUnwatchedFiles(t *testing.T) {
	dir := t.TempDir()
	p := writeDatasetFile(t, dir, "dataset.json", `{"en":{"k1":"a"}}`)

	w, err := New(20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	events := make(chan Event, 4)
	w.Subscribe("", func(ev Event) { events <- ev })

	if err := w.Watch(p); err != nil {
		t.Fatal(err)
	}

	writeDatasetFile(t, dir, "other.json", `{"en":{"x":"y"}}`)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(200 * time.Millisecond):
	}
}
