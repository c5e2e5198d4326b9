package config

import (
	"os"
	"strings"
)

// Provider is a read-only source of configuration values.
type Provider interface {
	// Name identifies the provider in provenance and error messages.
	Name() string
	// Lookup returns the raw value for a key and whether the provider
	// defines it at all. An empty string is treated as absent by the
	// resolver, so providers may return ("", true) without effect.
	Lookup(key string) (string, bool)
}

// Static is a fixed map of values, typically the built-in defaults.
type Static struct {
	Label  string
	Values map[string]string
}

func (s *Static) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "static"
}

func (s *Static) Lookup(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Env reads keys from the process environment under a prefix, so the
// configuration key BUNDLE_IDENTIFIER is looked up as
// <prefix>BUNDLE_IDENTIFIER. The environment is captured once at
// construction; later changes to the process environment are not seen.
type Env struct {
	label  string
	values map[string]string
}

// NewEnv snapshots all environment variables carrying the given prefix.
func NewEnv(prefix string) *Env {
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		values[strings.TrimPrefix(name, prefix)] = value
	}
	return &Env{label: "env:" + prefix, values: values}
}

func (e *Env) Name() string { return e.label }

func (e *Env) Lookup(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}
