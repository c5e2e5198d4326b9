// Package bundleid assigns collision-free bundle identifiers to an app and
// the frameworks, extensions and resource bundles nested inside it.
//
// The primary app's identifier is externally supplied and immutable; every
// nested identifier is accepted as-is when unique and deterministically
// re-derived from the primary when it collides. Re-running resolution on an
// already-repaired app performs no writes.
package bundleid

import "fmt"

// Scope classifies a bundle within a package.
type Scope int

const (
	ScopePrimary Scope = iota
	ScopeFramework
	ScopeExtension
	ScopeResourceBundle
)

// Tag is the scope fragment used in derived identifiers.
func (s Scope) Tag() string {
	switch s {
	case ScopeFramework:
		return "framework"
	case ScopeExtension:
		return "extension"
	case ScopeResourceBundle:
		return "bundle"
	default:
		return "app"
	}
}

func (s Scope) String() string {
	switch s {
	case ScopePrimary:
		return "primary-app"
	case ScopeFramework:
		return "framework"
	case ScopeExtension:
		return "extension"
	case ScopeResourceBundle:
		return "resource-bundle"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// NestedBundle is one discovered bundle inside the app, before resolution.
type NestedBundle struct {
	Scope Scope
	Name  string // display name without extension
	Path  string
}

// Identity is the resolved identity of one bundle.
type Identity struct {
	Scope      Scope
	Name       string
	Path       string
	Identifier string
	Repaired   bool // identifier was rewritten this run
}

// BundleError reports one bundle whose descriptor could not be read or
// written. Resolution continues past it.
type BundleError struct {
	Path string
	Err  error

	// heldIdentifier is the identifier the bundle still declares, when it
	// could be read; used to detect an unresolved primary conflict.
	heldIdentifier string
}

func (e *BundleError) Error() string {
	return fmt.Sprintf("bundle %s: %v", e.Path, e.Err)
}

func (e *BundleError) Unwrap() error { return e.Err }

// Result is the outcome of a resolution pass: the identities that were
// accepted or repaired, and the bundles that failed individually.
type Result struct {
	Identities []Identity
	Failed     []BundleError
}

// Repaired counts the identities rewritten during this pass. Zero on the
// second of two consecutive runs is the idempotence invariant.
func (r *Result) Repaired() int {
	n := 0
	for _, id := range r.Identities {
		if id.Repaired {
			n++
		}
	}
	return n
}

// PrimaryConflict reports whether a failed bundle still carries the primary
// identifier, which leaves the primary non-unique. This is the only
// condition the caller must treat as fatal.
func (r *Result) PrimaryConflict(primaryID string) bool {
	for _, f := range r.Failed {
		if f.heldIdentifier == primaryID {
			return true
		}
	}
	return false
}
