package signing

import (
	"fmt"
	"os"

	"howett.net/plist"
)

// ExportOptions is the signing/export descriptor consumed by the external
// archiver: distribution method, signing team and the profile assignment
// for the primary bundle identifier.
type ExportOptions struct {
	Method       string
	TeamID       string
	BundleID     string
	ProfileName  string
	SigningStyle string // "manual" when a profile is assigned, else "automatic"
}

// WriteExportOptions serializes the descriptor as an XML plist at path.
func WriteExportOptions(path string, opts ExportOptions) error {
	if opts.Method == "" {
		opts.Method = "app-store"
	}
	style := opts.SigningStyle
	if style == "" {
		if opts.ProfileName != "" {
			style = "manual"
		} else {
			style = "automatic"
		}
	}

	doc := map[string]interface{}{
		"method":        opts.Method,
		"teamID":        opts.TeamID,
		"signingStyle":  style,
		"uploadSymbols": true,
	}
	if opts.ProfileName != "" && opts.BundleID != "" {
		doc["provisioningProfiles"] = map[string]string{
			opts.BundleID: opts.ProfileName,
		}
	}

	data, err := plist.MarshalIndent(doc, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("failed to marshal export options: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export options: %w", err)
	}
	return nil
}

// ReadExportOptions parses a descriptor written by WriteExportOptions,
// used by tests and by the config command's diagnostics.
func ReadExportOptions(path string) (*ExportOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Method               string            `plist:"method"`
		TeamID               string            `plist:"teamID"`
		SigningStyle         string            `plist:"signingStyle"`
		ProvisioningProfiles map[string]string `plist:"provisioningProfiles"`
	}
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse export options: %w", err)
	}
	opts := &ExportOptions{
		Method:       doc.Method,
		TeamID:       doc.TeamID,
		SigningStyle: doc.SigningStyle,
	}
	for bundleID, profile := range doc.ProvisioningProfiles {
		opts.BundleID = bundleID
		opts.ProfileName = profile
	}
	return opts, nil
}
