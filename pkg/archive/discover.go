// Package archive locates the built application bundle inside an
// xcarchive-style tree and repackages it into the distributable container.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Conventional archive layout.
const (
	productsDir     = "Products"
	applicationsDir = "Applications"
	bundleExt       = ".app"
)

// ErrNotFound means no application bundle is reachable anywhere in the
// archive tree, even after structural repair. The archive is fundamentally
// incomplete; retrying without a new build cannot succeed.
var ErrNotFound = errors.New("archive: no application bundle found")

// FindPrimaryBundle locates the primary .app bundle in an archive tree.
//
// Discovery runs in priority order, stopping at the first success:
// the conventional Products/Applications directory, then anywhere under
// Products, then anywhere in the tree, and finally a structural repair that
// rebuilds the conventional layout and retries once. When a search step
// yields several candidates the lexicographically first path is taken, so
// discovery is deterministic.
func FindPrimaryBundle(root string) (string, error) {
	if p, ok := discover(root); ok {
		return p, nil
	}
	if err := repairLayout(root); err != nil {
		return "", fmt.Errorf("archive: structural repair failed: %w", err)
	}
	if p, ok := discover(root); ok {
		return p, nil
	}
	return "", ErrNotFound
}

func discover(root string) (string, bool) {
	conventional := filepath.Join(root, productsDir, applicationsDir)
	if apps := bundlesInDir(conventional); len(apps) == 1 {
		return apps[0], true
	}
	if apps := bundlesUnder(filepath.Join(root, productsDir)); len(apps) > 0 {
		return apps[0], true
	}
	if apps := bundlesUnder(root); len(apps) > 0 {
		return apps[0], true
	}
	return "", false
}

// bundlesInDir returns the .app directories that are direct children of dir.
func bundlesInDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var apps []string
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), bundleExt) {
			apps = append(apps, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(apps)
	return apps
}

// bundlesUnder returns every .app directory in the tree rooted at dir,
// sorted. The walk does not descend into a found bundle, so nested
// frameworks never masquerade as the primary app.
func bundlesUnder(dir string) []string {
	var apps []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree: skip, discovery is best-effort
		}
		if d.IsDir() && strings.HasSuffix(d.Name(), bundleExt) {
			apps = append(apps, path)
			return filepath.SkipDir
		}
		return nil
	})
	sort.Strings(apps)
	return apps
}

// repairLayout rebuilds the conventional Products/Applications directory
// and relocates any stray .app bundles into it, so a follow-up discovery
// (and the external exporter, which expects the conventional shape) can
// succeed.
func repairLayout(root string) error {
	conventional := filepath.Join(root, productsDir, applicationsDir)
	if err := os.MkdirAll(conventional, 0755); err != nil {
		return err
	}
	for _, app := range bundlesUnder(root) {
		if filepath.Dir(app) == conventional {
			continue
		}
		dest := filepath.Join(conventional, filepath.Base(app))
		if _, err := os.Stat(dest); err == nil {
			continue // never clobber an existing bundle
		}
		if err := os.Rename(app, dest); err != nil {
			return err
		}
	}
	return nil
}
