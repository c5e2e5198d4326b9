package signing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteExportOptionsManualSigning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ExportOptions.plist")

	err := WriteExportOptions(path, ExportOptions{
		Method:      "app-store",
		TeamID:      "ABCDE12345",
		BundleID:    "com.acme.app",
		ProfileName: "Acme Distribution",
	})
	require.NoError(t, err)

	opts, err := ReadExportOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "app-store", opts.Method)
	assert.Equal(t, "ABCDE12345", opts.TeamID)
	assert.Equal(t, "manual", opts.SigningStyle)
	assert.Equal(t, "com.acme.app", opts.BundleID)
	assert.Equal(t, "Acme Distribution", opts.ProfileName)
}

func TestWriteExportOptionsAutomaticDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ExportOptions.plist")

	err := WriteExportOptions(path, ExportOptions{TeamID: "ABCDE12345"})
	require.NoError(t, err)

	opts, err := ReadExportOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "app-store", opts.Method, "method defaults to app-store")
	assert.Equal(t, "automatic", opts.SigningStyle)
	assert.Empty(t, opts.ProfileName)
}

func TestWriteExportOptionsIsXMLPlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ExportOptions.plist")
	require.NoError(t, WriteExportOptions(path, ExportOptions{TeamID: "ABCDE12345"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<?xml")
	assert.Contains(t, string(data), "teamID")
}
