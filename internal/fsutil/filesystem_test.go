package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_RoundTrip(t *testing.T) {
	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "cal.json")

	if osfs.Exists(path) {
		t.Fatal("file should not exist before write")
	}

	data := []byte(`{"tare_reference":0.5}`)
	if err := osfs.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("ReadFile = %q, want %q", got, data)
	}

	if !osfs.Exists(path) {
		t.Error("Exists = false after write")
	}

	renamed := filepath.Join(filepath.Dir(path), "cal.renamed.json")
	if err := osfs.Rename(path, renamed); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if osfs.Exists(path) {
		t.Error("old path still exists after rename")
	}
	if !osfs.Exists(renamed) {
		t.Error("new path missing after rename")
	}

	if err := osfs.Remove(renamed); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestMemoryFileSystem_ReadWrite(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.ReadFile("missing.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile on missing file: err = %v, want fs.ErrNotExist", err)
	}

	if err := mfs.WriteFile("cal.json", []byte("abc"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := mfs.ReadFile("cal.json")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("ReadFile = %q, want %q", got, "abc")
	}

	// Returned slice must be a copy, not a view into the stored data.
	got[0] = 'x'
	again, _ := mfs.ReadFile("cal.json")
	if string(again) != "abc" {
		t.Errorf("stored data mutated through returned slice: %q", again)
	}
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := mfs.Rename("a", "b"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename missing file: err = %v, want fs.ErrNotExist", err)
	}

	mfs.WriteFile("a", []byte("one"), 0o644)
	mfs.WriteFile("b", []byte("two"), 0o644)

	if err := mfs.Rename("a", "b"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if mfs.Exists("a") {
		t.Error("source still exists after rename")
	}
	got, _ := mfs.ReadFile("b")
	if string(got) != "one" {
		t.Errorf("destination = %q after rename, want %q", got, "one")
	}
}

func TestMemoryFileSystem_InjectedErrors(t *testing.T) {
	mfs := NewMemoryFileSystem()

	wantErr := errors.New("disk full")
	mfs.WriteErr = wantErr
	if err := mfs.WriteFile("a", nil, 0o644); !errors.Is(err, wantErr) {
		t.Errorf("WriteFile err = %v, want injected error", err)
	}
	// Error is one-shot.
	if err := mfs.WriteFile("a", nil, 0o644); err != nil {
		t.Errorf("second WriteFile err = %v, want nil", err)
	}

	mfs.RenameErr = wantErr
	if err := mfs.Rename("a", "b"); !errors.Is(err, wantErr) {
		t.Errorf("Rename err = %v, want injected error", err)
	}
}

func TestMemoryFileSystem_StatAndRemove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("dir/cal.json", []byte("12345"), 0o600)

	info, err := mfs.Stat("dir/cal.json")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Name() != "cal.json" {
		t.Errorf("Name = %q, want cal.json", info.Name())
	}
	if info.Size() != 5 {
		t.Errorf("Size = %d, want 5", info.Size())
	}
	if info.IsDir() {
		t.Error("IsDir = true for a file")
	}

	if err := mfs.Remove("dir/cal.json"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := mfs.Stat("dir/cal.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Stat after Remove: err = %v, want fs.ErrNotExist", err)
	}
	if err := mfs.Remove("dir/cal.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Remove twice: err = %v, want fs.ErrNotExist", err)
	}
}
