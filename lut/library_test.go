package lut_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/e7canasta/chroma-cam/eventbus"
	"github.com/e7canasta/chroma-cam/lut"
)

// TestLibraryIdentityPreRegistered validates the identity filter always
// exists and cannot be removed.
func TestLibraryIdentityPreRegistered(t *testing.T) {
	lib := lut.NewLibrary()

	if _, ok := lib.Get("identity"); !ok {
		t.Fatal("identity filter not registered")
	}
	lib.Remove("identity")
	if _, ok := lib.Get("identity"); !ok {
		t.Error("identity filter removed, want it protected")
	}
}

// TestLibrarySetActive validates activation, clearing, and the unknown-name
// error.
func TestLibrarySetActive(t *testing.T) {
	lib := lut.NewLibrary()

	if lib.Active() != nil {
		t.Fatal("Active() non-nil on a fresh library")
	}

	if err := lib.SetActive("identity"); err != nil {
		t.Fatalf("SetActive(identity) failed: %v", err)
	}
	if got := lib.Active(); got == nil || got.Name() != "identity" {
		t.Errorf("Active()=%v, want identity", got)
	}

	if err := lib.SetActive("missing"); err == nil {
		t.Error("SetActive(missing) succeeded, want error")
	}

	for _, clear := range []string{"", "none"} {
		if err := lib.SetActive("identity"); err != nil {
			t.Fatalf("SetActive(identity) failed: %v", err)
		}
		if err := lib.SetActive(clear); err != nil {
			t.Fatalf("SetActive(%q) failed: %v", clear, err)
		}
		if lib.Active() != nil {
			t.Errorf("Active() non-nil after SetActive(%q)", clear)
		}
	}
}

// TestLibraryNotifiesBus validates FilterChanged events are published on
// activation, replacement of the active filter, and removal.
func TestLibraryNotifiesBus(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()

	events := make(chan eventbus.Event, 16)
	if err := bus.Subscribe("test", events); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	lib := lut.NewLibrary(lut.WithBus(bus))
	if err := lib.SetActive("identity"); err != nil {
		t.Fatalf("SetActive() failed: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Kind != eventbus.FilterChanged {
			t.Errorf("event kind=%v, want FilterChanged", ev.Kind)
		}
		f, ok := ev.Payload.(*lut.Filter)
		if !ok || f.Name() != "identity" {
			t.Errorf("payload=%v, want identity filter", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no FilterChanged event after SetActive")
	}

	if err := lib.SetActive(""); err != nil {
		t.Fatalf("SetActive(\"\") failed: %v", err)
	}
	select {
	case ev := <-events:
		if f, ok := ev.Payload.(*lut.Filter); ok && f != nil {
			t.Errorf("payload=%v, want nil after clearing", f.Name())
		}
	case <-time.After(time.Second):
		t.Fatal("no FilterChanged event after clearing")
	}
}

// TestLibraryRemoveActiveClears validates removing the active filter clears
// the active reference.
func TestLibraryRemoveActiveClears(t *testing.T) {
	lib := lut.NewLibrary()
	f := identityCube(t)
	lib.Add(f)

	if err := lib.SetActive(f.Name()); err != nil {
		t.Fatalf("SetActive() failed: %v", err)
	}
	lib.Remove(f.Name())
	if lib.Active() != nil {
		t.Error("Active() non-nil after removing the active filter")
	}
	if _, ok := lib.Get(f.Name()); ok {
		t.Error("removed filter still registered")
	}
}

// TestLibraryLoadDir validates directory loading skips unparseable files
// instead of failing.
func TestLibraryLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "warm.cube"), validCube)
	writeFile(t, filepath.Join(dir, "broken.cube"), "LUT_3D_SIZE banana\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a LUT")

	lib := lut.NewLibrary()
	n, err := lib.LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("LoadDir()=%d filters, want 1", n)
	}
	if _, ok := lib.Get("Warm Look"); !ok {
		t.Error("parsed filter not registered")
	}
}

// TestLibraryWatch validates hot-loading of files created after the watch
// starts.
func TestLibraryWatch(t *testing.T) {
	dir := t.TempDir()
	lib := lut.NewLibrary()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := lib.Watch(ctx, dir); err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}

	writeFile(t, filepath.Join(dir, "hot.cube"), validCube)

	deadline := time.After(3 * time.Second)
	for {
		if _, ok := lib.Get("Warm Look"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("hot-loaded filter never appeared")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	lib.WaitWatch()
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
