package driver

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLockfileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)
	lock := &Lockfile{Packages: []LockedPackage{
		{Name: "zeta", Version: "v1.0.0", Source: "git+https://example.com/zeta.git@abc", Checksum: "aa"},
		{Name: "alpha", Version: "local", Source: "path+/src/alpha", Checksum: "bb"},
	}}
	if err := lock.Write(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadLockfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Packages) != 2 {
		t.Fatalf("packages: got %d", len(loaded.Packages))
	}
	// Written sorted by name.
	if loaded.Packages[0].Name != "alpha" || loaded.Packages[1].Name != "zeta" {
		t.Fatalf("order: %v", loaded.Packages)
	}
	if loaded.Packages[1].Source != "git+https://example.com/zeta.git@abc" {
		t.Fatalf("source: %q", loaded.Packages[1].Source)
	}
}

func TestLoadLockfileMissingIsEmpty(t *testing.T) {
	lock, err := LoadLockfile(filepath.Join(t.TempDir(), LockFileName))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(lock.Packages) != 0 {
		t.Fatalf("packages: got %d", len(lock.Packages))
	}
}

func TestLoadLockfileEmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	lock, err := LoadLockfile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(lock.Packages) != 0 {
		t.Fatalf("packages: got %d", len(lock.Packages))
	}
}

func TestLoadLockfileRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockFileName)
	if err := os.WriteFile(path, []byte("packages: []\nextra: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLockfile(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLockfileFind(t *testing.T) {
	lock := &Lockfile{Packages: []LockedPackage{{Name: "alpha", Version: "v1"}}}
	pkg, ok := lock.Find("alpha")
	if !ok || pkg.Version != "v1" {
		t.Fatalf("got %#v, %v", pkg, ok)
	}
	if _, ok := lock.Find("ghost"); ok {
		t.Fatalf("expected miss")
	}
}
