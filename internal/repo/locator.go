// Package repo implements the git-root anchoring rule from spec.md §4.A:
// find the repository root from any starting path, reject ambiguous
// nested roots, and resolve where the on-disk index database lives.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"

	"github.com/codesearch-dev/codesearch/internal/cserr"
)

const (
	localDBDirName  = ".codesearch.db"
	globalDBBaseDir = ".codesearch.dbs"
	maxParentWalk   = 10
)

// Location describes where a repository's index database lives.
type Location struct {
	// RepoRoot is the resolved repository root (or the caller's
	// starting path, for the non-VCS fallback).
	RepoRoot string
	// DBPath is the resolved `.codesearch.db` directory.
	DBPath string
	// Global is true when DBPath falls under ~/.codesearch.dbs/ rather
	// than inside the repository itself.
	Global bool
}

// FindRoot walks upward from startPath looking for a directory
// containing a `.git` directory or work-tree pointer file (DetectDotGit,
// delegated to go-git's own upward-walking PlainOpenWithOptions, which
// implements exactly this search). If no root is found, startPath
// itself is returned (the non-VCS fallback in spec.md §4.A).
//
// Before returning a found root, its immediate children are scanned
// for additional `.git` entries; more than one nested root is
// rejected with cserr.ErrAmbiguousRepo.
func FindRoot(startPath string) (string, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return "", cserr.IoError(startPath, err)
	}

	root, err := detectGitRoot(abs)
	if err != nil {
		// No repository found anywhere above startPath: non-VCS fallback.
		return abs, nil
	}

	if err := checkAmbiguousChildren(root); err != nil {
		return "", err
	}

	return root, nil
}

// detectGitRoot delegates the upward `.git` walk to go-git, which
// already implements the directory-or-worktree-pointer-file rule this
// function needs (PlainOpenWithOptions with DetectDotGit walks parent
// directories exactly like `git rev-parse --show-toplevel`).
func detectGitRoot(path string) (string, error) {
	gitRepo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", err
	}
	wt, err := gitRepo.Worktree()
	if err != nil {
		// Bare repository: there's no worktree root to anchor on.
		return "", err
	}
	return wt.Filesystem.Root(), nil
}

// checkAmbiguousChildren rejects a root whose immediate children
// include more than one directory that is itself a repo root.
func checkAmbiguousChildren(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return cserr.IoError(root, err)
	}

	var nestedRoots []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		childPath := filepath.Join(root, e.Name())
		if hasGitEntry(childPath) {
			nestedRoots = append(nestedRoots, childPath)
		}
	}

	if len(nestedRoots) > 1 {
		return fmt.Errorf("%w: %s", cserr.ErrAmbiguousRepo, strings.Join(nestedRoots, ", "))
	}
	return nil
}

// hasGitEntry reports whether dir directly contains a `.git` directory
// or work-tree pointer file, without walking further up or down.
func hasGitEntry(dir string) bool {
	info, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

// Resolve computes the Location for startPath per spec.md §4.A:
// try the local `<root>/.codesearch.db` first, then walk up to ten
// parent directories (for non-git trees) looking for an existing
// local database, then fall back to the global
// `~/.codesearch.dbs/<project-slug>/` location.
func Resolve(startPath string) (Location, error) {
	root, err := FindRoot(startPath)
	if err != nil {
		return Location{}, err
	}

	local := filepath.Join(root, localDBDirName)
	if dirExists(local) {
		return Location{RepoRoot: root, DBPath: local}, nil
	}

	dir := root
	for i := 0; i < maxParentWalk; i++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		candidate := filepath.Join(dir, localDBDirName)
		if dirExists(candidate) {
			return Location{RepoRoot: root, DBPath: candidate}, nil
		}
	}

	global, err := GlobalDBPath(root)
	if err != nil {
		return Location{}, err
	}
	if dirExists(global) {
		return Location{RepoRoot: root, DBPath: global, Global: true}, nil
	}

	// Nothing exists yet: default to the local path, to be created on
	// first index.
	return Location{RepoRoot: root, DBPath: local}, nil
}

// GlobalDBPath returns the ~/.codesearch.dbs/<project-slug>/ path for root.
func GlobalDBPath(root string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cserr.IoError(root, err)
	}
	return filepath.Join(home, globalDBBaseDir, slugify(root)), nil
}

// slugify turns an absolute path into a filesystem-safe project slug.
func slugify(path string) string {
	clean := strings.Trim(filepath.ToSlash(path), "/")
	clean = strings.ReplaceAll(clean, "/", "-")
	clean = strings.ReplaceAll(clean, " ", "_")
	if clean == "" {
		clean = "root"
	}
	return clean
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// FindDatabases enumerates every existing index database that could
// serve startPath: the local candidate, every parent-directory
// candidate walked by Resolve, and the global fallback, in the same
// precedence order Resolve uses. Used by the `find_databases` MCP tool
// (spec.md §6) so an agent can see every database a query might
// actually hit, not just the one Resolve would pick.
func FindDatabases(startPath string) ([]Location, error) {
	root, err := FindRoot(startPath)
	if err != nil {
		return nil, err
	}

	var found []Location

	local := filepath.Join(root, localDBDirName)
	if dirExists(local) {
		found = append(found, Location{RepoRoot: root, DBPath: local})
	}

	dir := root
	for i := 0; i < maxParentWalk; i++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		candidate := filepath.Join(dir, localDBDirName)
		if dirExists(candidate) {
			found = append(found, Location{RepoRoot: root, DBPath: candidate})
		}
	}

	global, err := GlobalDBPath(root)
	if err == nil && dirExists(global) {
		found = append(found, Location{RepoRoot: root, DBPath: global, Global: true})
	}

	return found, nil
}

// IsAmbiguousRepo reports whether err is (or wraps) cserr.ErrAmbiguousRepo.
func IsAmbiguousRepo(err error) bool {
	return errors.Is(err, cserr.ErrAmbiguousRepo)
}
