package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LockFileName sits next to module.yml after an install.
const LockFileName = "module.lock.yml"

// LockedPackage pins one installed dependency.
type LockedPackage struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Source   string `yaml:"source"`
	Checksum string `yaml:"checksum"`
}

// Lockfile records the exact packages an install produced.
type Lockfile struct {
	Packages []LockedPackage `yaml:"packages"`
}

// LoadLockfile reads a lockfile. A missing file yields an empty lockfile.
func LoadLockfile(path string) (*Lockfile, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Lockfile{}, nil
		}
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var lock Lockfile
	if err := decoder.Decode(&lock); err != nil {
		if errors.Is(err, io.EOF) {
			return &Lockfile{}, nil
		}
		return nil, fmt.Errorf("lockfile: parse %s: %w", path, err)
	}
	return &lock, nil
}

// Write stores the lockfile sorted by package name so repeated installs
// produce identical files.
func (l *Lockfile) Write(path string) error {
	packages := append([]LockedPackage(nil), l.Packages...)
	sort.Slice(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })

	data, err := yaml.Marshal(&Lockfile{Packages: packages})
	if err != nil {
		return fmt.Errorf("lockfile: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("lockfile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", path, err)
	}
	return nil
}

// Find returns the locked entry for a package name.
func (l *Lockfile) Find(name string) (*LockedPackage, bool) {
	for i := range l.Packages {
		if l.Packages[i].Name == name {
			return &l.Packages[i], true
		}
	}
	return nil, false
}
