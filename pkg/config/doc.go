// Package config resolves the build configuration for a pipeline run.
//
// Configuration values come from an ordered list of providers (CI-injected
// environment, a defaults file, static fallbacks). The first provider that
// offers a non-empty value for a key wins. The result is an immutable
// Snapshot that records, per key, both the resolved value and the provider
// it came from. Every pipeline stage reads the same Snapshot; nothing reads
// the ambient process environment after resolution.
package config
