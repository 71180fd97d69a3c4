package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// InstalledPackage pairs a lock entry with the directory whose .mq files
// become include search paths.
type InstalledPackage struct {
	LockedPackage
	Dir string
}

// Installer materialises manifest dependencies under a cache directory.
// Git sources are cloned and pinned to a revision; path sources resolve
// in place relative to the manifest.
type Installer struct {
	cacheDir string
}

func NewInstaller(cacheDir string) (*Installer, error) {
	if strings.TrimSpace(cacheDir) == "" {
		return nil, fmt.Errorf("installer: cache directory required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("installer: %w", err)
	}
	return &Installer{cacheDir: cacheDir}, nil
}

// Install fetches every dependency of the manifest in name order and
// returns the installed packages with their pinned lock entries.
func (i *Installer) Install(m *Manifest) ([]InstalledPackage, error) {
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	installed := make([]InstalledPackage, 0, len(names))
	for _, name := range names {
		spec := m.Dependencies[name]
		if spec == nil {
			continue
		}
		var (
			pkg InstalledPackage
			err error
		)
		switch {
		case spec.Path != "":
			pkg, err = i.installPath(m, name, spec)
		case spec.Git != "":
			pkg, err = i.installGit(name, spec)
		default:
			err = fmt.Errorf("dependency %q: no git or path source", name)
		}
		if err != nil {
			return nil, fmt.Errorf("installer: %w", err)
		}
		installed = append(installed, pkg)
	}
	return installed, nil
}

// Lockfile builds the lock entries for a set of installed packages.
func (i *Installer) Lockfile(pkgs []InstalledPackage) *Lockfile {
	lock := &Lockfile{Packages: make([]LockedPackage, 0, len(pkgs))}
	for _, pkg := range pkgs {
		lock.Packages = append(lock.Packages, pkg.LockedPackage)
	}
	return lock
}

// PackageDir maps a lock entry back to its installed directory.
func (i *Installer) PackageDir(pkg LockedPackage) string {
	if strings.HasPrefix(pkg.Source, "path+") {
		return strings.TrimPrefix(pkg.Source, "path+")
	}
	return filepath.Join(i.cacheDir, "src", pkg.Name, sanitizeSegment(pkg.Version))
}

// SearchPathsOf lists the directories of installed packages in order.
func SearchPathsOf(pkgs []InstalledPackage) []string {
	dirs := make([]string, 0, len(pkgs))
	for _, pkg := range pkgs {
		dirs = append(dirs, pkg.Dir)
	}
	return dirs
}

func (i *Installer) installPath(m *Manifest, name string, spec *DependencySpec) (InstalledPackage, error) {
	dir := spec.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(m.Dir(), dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return InstalledPackage{}, fmt.Errorf("dependency %q: %w", name, err)
	}
	if !info.IsDir() {
		return InstalledPackage{}, fmt.Errorf("dependency %q: %s is not a directory", name, dir)
	}
	checksum, err := dirChecksum(dir)
	if err != nil {
		return InstalledPackage{}, fmt.Errorf("dependency %q: checksum: %w", name, err)
	}
	version := spec.Version
	if version == "" {
		version = "local"
	}
	return InstalledPackage{
		LockedPackage: LockedPackage{
			Name:     sanitizeSegment(name),
			Version:  version,
			Source:   "path+" + dir,
			Checksum: checksum,
		},
		Dir: dir,
	}, nil
}

func (i *Installer) installGit(name string, spec *DependencySpec) (InstalledPackage, error) {
	baseDir := filepath.Join(i.cacheDir, "src", sanitizeSegment(name))
	version, commit, err := ensureGitCheckout(baseDir, spec)
	if err != nil {
		return InstalledPackage{}, fmt.Errorf("dependency %q: %w", name, err)
	}

	checkoutDir := filepath.Join(baseDir, sanitizeSegment(version))
	checksum, err := dirChecksum(checkoutDir)
	if err != nil {
		return InstalledPackage{}, fmt.Errorf("dependency %q: checksum: %w", name, err)
	}
	return InstalledPackage{
		LockedPackage: LockedPackage{
			Name:     sanitizeSegment(name),
			Version:  version,
			Source:   fmt.Sprintf("git+%s@%s", spec.Git, commit),
			Checksum: checksum,
		},
		Dir: checkoutDir,
	}, nil
}

// ensureGitCheckout clones the repository into a scratch directory,
// resolves the requested revision, checks it out, and moves it into its
// pinned slot. An already-pinned explicit rev short-circuits the clone.
func ensureGitCheckout(baseDir string, spec *DependencySpec) (string, string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", err
	}

	revision, descriptor, err := gitRevisionFromSpec(spec)
	if err != nil {
		return "", "", err
	}

	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		existing := filepath.Join(baseDir, sanitizeSegment(rev))
		if _, err := os.Stat(existing); err == nil {
			return rev, rev, nil
		}
	}

	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return "", "", err
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", "", err
	}

	repo, err := git.PlainClone(tmpDir, false, &git.CloneOptions{
		URL:               spec.Git,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git clone %s: %w", spec.Git, err)
	}

	hash, err := repo.ResolveRevision(revision)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}

	version := pinnedVersion(descriptor, hash.String())
	targetDir := filepath.Join(baseDir, sanitizeSegment(version))
	if _, err := os.Stat(targetDir); err == nil {
		_ = os.RemoveAll(tmpDir)
		return version, hash.String(), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git checkout %s: %w", revision, err)
	}

	if err := os.Rename(tmpDir, targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	return version, hash.String(), nil
}

func gitRevisionFromSpec(spec *DependencySpec) (plumbing.Revision, string, error) {
	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		return plumbing.Revision(rev), rev, nil
	}
	if tag := strings.TrimSpace(spec.Tag); tag != "" {
		return plumbing.Revision("refs/tags/" + tag), tag, nil
	}
	if branch := strings.TrimSpace(spec.Branch); branch != "" {
		return plumbing.Revision("refs/heads/" + branch), branch, nil
	}
	return "", "", fmt.Errorf("git dependencies require rev, tag, or branch")
}

func pinnedVersion(descriptor, commit string) string {
	commit = strings.TrimSpace(commit)
	descriptor = strings.TrimSpace(descriptor)
	if commit == "" {
		return descriptor
	}
	if descriptor == "" || descriptor == commit {
		return commit
	}
	return fmt.Sprintf("%s@%s", descriptor, commit)
}

func dirChecksum(path string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.Base(p)))
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
