package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value is a resolved configuration entry: the typed value plus the name of
// the provider that supplied it.
type Value struct {
	Kind   Kind
	Str    string
	Bool   bool
	Int    int
	Source string
}

// Snapshot is the immutable result of resolution. All pipeline stages read
// from the same Snapshot; it never changes after Resolve returns.
type Snapshot struct {
	values map[string]Value
}

// Has reports whether the key resolved to a value in any provider.
func (s *Snapshot) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// GetString returns the resolved string value, or "" if the key is absent.
func (s *Snapshot) GetString(key string) string {
	return s.values[key].Str
}

// GetBool returns the resolved boolean value, or false if the key is absent
// or not declared as a bool.
func (s *Snapshot) GetBool(key string) bool {
	v, ok := s.values[key]
	return ok && v.Kind == KindBool && v.Bool
}

// GetInt returns the resolved integer value, or 0 if the key is absent or
// not declared as an int.
func (s *Snapshot) GetInt(key string) int {
	v, ok := s.values[key]
	if !ok || v.Kind != KindInt {
		return 0
	}
	return v.Int
}

// Source returns the name of the provider that supplied the key, or "" if
// the key is absent.
func (s *Snapshot) Source(key string) string {
	return s.values[key].Source
}

// Keys returns all resolved key names in sorted order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolutionError reports every required key that is missing or empty after
// merging, so the operator can fix all of them in one pass.
type ResolutionError struct {
	Missing []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("configuration incomplete: missing required keys: %s",
		strings.Join(e.Missing, ", "))
}

// Resolve merges the providers in precedence order into a Snapshot.
//
// For each key the providers are consulted in the given order and the first
// non-empty value wins; an empty string counts as absent and falls through.
// A value that fails to parse under the schema's declared kind also falls
// through to the next provider rather than aborting resolution. After
// merging, every key in required must be present or Resolve fails with a
// ResolutionError naming all missing keys.
func Resolve(schema Schema, required []string, providers ...Provider) (*Snapshot, error) {
	keys := make(map[string]bool)
	for _, p := range providers {
		for _, k := range providerKeys(p) {
			keys[k] = true
		}
	}
	for k := range schema {
		keys[k] = true
	}
	for _, k := range required {
		keys[k] = true
	}

	values := make(map[string]Value, len(keys))
	for key := range keys {
		kind := schema[key]
		for _, p := range providers {
			raw, ok := p.Lookup(key)
			if !ok || raw == "" {
				continue
			}
			v, err := parseValue(kind, raw, p.Name())
			if err != nil {
				// Malformed typed value: fall through to the next provider.
				continue
			}
			values[key] = v
			break
		}
	}

	var missing []string
	for _, key := range required {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ResolutionError{Missing: missing}
	}

	return &Snapshot{values: values}, nil
}

func parseValue(kind Kind, raw, source string) (Value, error) {
	v := Value{Kind: kind, Str: raw, Source: source}
	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		v.Bool = b
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, fmt.Errorf("invalid int %q: %w", raw, err)
		}
		v.Int = n
	}
	return v, nil
}

// providerKeys enumerates the keys a provider defines, for providers that
// can be enumerated. Lookup-only providers contribute values only for keys
// named by the schema or the required set.
func providerKeys(p Provider) []string {
	switch t := p.(type) {
	case *Static:
		keys := make([]string, 0, len(t.Values))
		for k := range t.Values {
			keys = append(keys, k)
		}
		return keys
	case *Env:
		keys := make([]string, 0, len(t.values))
		for k := range t.values {
			keys = append(keys, k)
		}
		return keys
	case *File:
		keys := make([]string, 0, len(t.values))
		for k := range t.values {
			keys = append(keys, k)
		}
		return keys
	}
	return nil
}
