package bundleid

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shipline/pkg/bundle"
)

// DiscoverNested walks an app bundle and returns its nested bundles in
// lexical path order, which keeps later derivation deterministic across
// runs. Frameworks live under Frameworks/, extensions under PlugIns/ and
// Extensions/, resource bundles anywhere with a .bundle extension.
func DiscoverNested(appPath string) ([]NestedBundle, error) {
	var nested []NestedBundle

	err := filepath.WalkDir(appPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() || path == appPath {
			return nil
		}
		name := d.Name()
		ext := filepath.Ext(name)
		var scope Scope
		switch ext {
		case ".framework":
			scope = ScopeFramework
		case ".appex":
			scope = ScopeExtension
		case ".bundle":
			scope = ScopeResourceBundle
		default:
			return nil
		}
		nested = append(nested, NestedBundle{
			Scope: scope,
			Name:  strings.TrimSuffix(name, ext),
			Path:  path,
		})
		// Bundles nested inside this one keep their own identity; a
		// framework's embedded bundles are repaired relative to the same
		// primary, so keep walking.
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk app bundle: %w", err)
	}

	// WalkDir is lexical per directory; normalize the full relative paths
	// too so the encounter order is a single lexicographic sequence.
	sort.Slice(nested, func(i, j int) bool { return nested[i].Path < nested[j].Path })
	return nested, nil
}

// Resolve assigns a collision-free identifier to every nested bundle.
//
// A nested identifier distinct from the primary identifier and from every
// identifier accepted so far is kept. A colliding one is re-derived as
// primary + "." + scope tag + "." + sanitized display name, with a numeric
// suffix (".2", ".3", …) when two bundles sanitize to the same name. The
// derived identifier is written back to the bundle's Info.plist, so a
// second pass finds no collisions and writes nothing.
//
// A bundle whose descriptor cannot be read or written is recorded in
// Result.Failed and resolution continues; nested bundles are independent of
// one another.
func Resolve(primaryID string, nested []NestedBundle) Result {
	res := Result{}
	taken := map[string]bool{primaryID: true}

	for _, nb := range nested {
		current, err := readIdentifier(nb.Path)
		if err != nil {
			res.Failed = append(res.Failed, BundleError{Path: nb.Path, Err: err})
			continue
		}

		if current != "" && !taken[current] {
			taken[current] = true
			res.Identities = append(res.Identities, Identity{
				Scope:      nb.Scope,
				Name:       nb.Name,
				Path:       nb.Path,
				Identifier: current,
			})
			continue
		}

		derived := derive(primaryID, nb.Scope, nb.Name, taken)
		if err := bundle.WriteIdentifier(nb.Path, derived); err != nil {
			res.Failed = append(res.Failed, BundleError{
				Path:           nb.Path,
				Err:            err,
				heldIdentifier: current,
			})
			continue
		}
		taken[derived] = true
		res.Identities = append(res.Identities, Identity{
			Scope:      nb.Scope,
			Name:       nb.Name,
			Path:       nb.Path,
			Identifier: derived,
			Repaired:   true,
		})
	}

	return res
}

// readIdentifier returns the identifier a bundle declares, or "" when its
// descriptor carries none. A descriptor without an identifier is a repair
// candidate, not a failure; only an unreadable descriptor is an error.
func readIdentifier(bundlePath string) (string, error) {
	info, err := bundle.ReadInfo(bundlePath)
	if err != nil {
		return "", err
	}
	id, _ := info["CFBundleIdentifier"].(string)
	return id, nil
}

// derive builds the deterministic replacement identifier, appending a
// numeric suffix in encounter order when the sanitized name is already
// taken.
func derive(primaryID string, scope Scope, name string, taken map[string]bool) string {
	clean := sanitize(name)
	if clean == "" {
		clean = "nested"
	}
	base := primaryID + "." + scope.Tag() + "." + clean
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s.%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// sanitize lower-cases the display name and strips everything outside
// [a-z0-9].
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
