// Package bundle reads and writes the descriptor files (Info.plist) of
// .app, .framework, .appex and resource bundles.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"
)

// InfoPlistName is the descriptor file every bundle carries at its root.
const InfoPlistName = "Info.plist"

// ReadInfo parses a bundle's Info.plist into a generic map. Both XML and
// binary plists are accepted.
func ReadInfo(bundlePath string) (map[string]interface{}, error) {
	data, err := os.ReadFile(filepath.Join(bundlePath, InfoPlistName))
	if err != nil {
		return nil, fmt.Errorf("failed to read Info.plist: %w", err)
	}
	var info map[string]interface{}
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse Info.plist: %w", err)
	}
	return info, nil
}

// Identifier returns the bundle's CFBundleIdentifier.
func Identifier(bundlePath string) (string, error) {
	info, err := ReadInfo(bundlePath)
	if err != nil {
		return "", err
	}
	id, ok := info["CFBundleIdentifier"].(string)
	if !ok {
		return "", fmt.Errorf("CFBundleIdentifier not found in %s", filepath.Join(bundlePath, InfoPlistName))
	}
	return id, nil
}

// ExecutableName returns the bundle's CFBundleExecutable.
func ExecutableName(bundlePath string) (string, error) {
	info, err := ReadInfo(bundlePath)
	if err != nil {
		return "", err
	}
	name, ok := info["CFBundleExecutable"].(string)
	if !ok {
		return "", fmt.Errorf("CFBundleExecutable not found in %s", filepath.Join(bundlePath, InfoPlistName))
	}
	return name, nil
}

// WriteIdentifier rewrites the bundle's CFBundleIdentifier, preserving every
// other key. The descriptor is rewritten as XML regardless of its original
// encoding.
func WriteIdentifier(bundlePath, identifier string) error {
	info, err := ReadInfo(bundlePath)
	if err != nil {
		return err
	}
	info["CFBundleIdentifier"] = identifier

	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal Info.plist: %w", err)
	}
	if err := os.WriteFile(filepath.Join(bundlePath, InfoPlistName), data, 0644); err != nil {
		return fmt.Errorf("failed to write Info.plist: %w", err)
	}
	return nil
}

// WriteInfo creates or replaces a bundle's Info.plist from the given map.
func WriteInfo(bundlePath string, info map[string]interface{}) error {
	data, err := plist.MarshalIndent(info, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal Info.plist: %w", err)
	}
	if err := os.MkdirAll(bundlePath, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(bundlePath, InfoPlistName), data, 0644)
}
