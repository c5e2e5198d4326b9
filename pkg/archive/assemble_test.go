package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipline/pkg/bundle"
)

// makeValidApp builds an app bundle whose descriptor and executable satisfy
// ValidateBundle: a declared executable carrying a 64-bit Mach-O magic.
func makeValidApp(t *testing.T, dir string, execSize int) string {
	t.Helper()
	appPath := filepath.Join(dir, "Runner.app")
	require.NoError(t, bundle.WriteInfo(appPath, map[string]interface{}{
		"CFBundleIdentifier": "com.acme.app",
		"CFBundleExecutable": "Runner",
	}))

	body := make([]byte, execSize)
	copy(body, []byte{0xcf, 0xfa, 0xed, 0xfe})
	require.NoError(t, os.WriteFile(filepath.Join(appPath, "Runner"), body, 0755))
	return appPath
}

func TestValidateBundle(t *testing.T) {
	appPath := makeValidApp(t, t.TempDir(), 4096)
	assert.NoError(t, ValidateBundle(appPath))
}

func TestValidateBundleMissingExecutable(t *testing.T) {
	appPath := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, bundle.WriteInfo(appPath, map[string]interface{}{
		"CFBundleIdentifier": "com.acme.app",
		"CFBundleExecutable": "Runner",
	}))

	err := ValidateBundle(appPath)
	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.Contains(t, asmErr.Msg, "missing")
}

func TestValidateBundleRejectsNonMachO(t *testing.T) {
	appPath := makeValidApp(t, t.TempDir(), 4096)
	require.NoError(t, os.WriteFile(filepath.Join(appPath, "Runner"), []byte("#!/bin/sh\n"), 0755))

	err := ValidateBundle(appPath)
	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.Contains(t, asmErr.Msg, "Mach-O")
}

func TestValidateBundleUnreadableDescriptor(t *testing.T) {
	appPath := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, os.MkdirAll(appPath, 0755))

	err := ValidateBundle(appPath)
	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
}

func TestAssembleProducesPayloadLayout(t *testing.T) {
	appPath := makeValidApp(t, t.TempDir(), 64*1024)
	outDir := t.TempDir()
	outputPath := filepath.Join(outDir, "Runner.ipa")

	assembler := &Assembler{MinSize: 1024}
	pkg, err := assembler.Assemble(appPath, outputPath)
	require.NoError(t, err)

	assert.Equal(t, outputPath, pkg.Path)
	assert.GreaterOrEqual(t, pkg.UncompressedSize, int64(64*1024))
	assert.Equal(t, 2, pkg.FileCount)

	r, err := zip.OpenReader(outputPath)
	require.NoError(t, err)
	defer r.Close()

	names := map[string]bool{}
	for _, f := range r.File {
		names[f.Name] = true
	}
	assert.True(t, names["Payload/Runner.app/Info.plist"])
	assert.True(t, names["Payload/Runner.app/Runner"])

	// Staging directories are cleaned up.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Runner.ipa", entries[0].Name())
}

func TestAssembleRejectsUndersizedPackage(t *testing.T) {
	appPath := makeValidApp(t, t.TempDir(), 4096)
	outputPath := filepath.Join(t.TempDir(), "Runner.ipa")

	// Default 1 MiB floor: a 4 KiB app cannot satisfy it even though
	// compression succeeds.
	assembler := &Assembler{}
	_, err := assembler.Assemble(appPath, outputPath)

	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
	assert.Contains(t, asmErr.Msg, "too small")

	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr), "an undersized package must not be left behind")
}

func TestAssembleCustomMinSize(t *testing.T) {
	appPath := makeValidApp(t, t.TempDir(), 2048)
	outputPath := filepath.Join(t.TempDir(), "Runner.ipa")

	assembler := &Assembler{MinSize: 512}
	pkg, err := assembler.Assemble(appPath, outputPath)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pkg.UncompressedSize, int64(2048))
}

func TestAssembleValidationFailureProducesNoOutput(t *testing.T) {
	appPath := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, bundle.WriteInfo(appPath, map[string]interface{}{
		"CFBundleExecutable": "Runner",
	}))
	outputPath := filepath.Join(t.TempDir(), "Runner.ipa")

	assembler := &Assembler{MinSize: 1}
	_, err := assembler.Assemble(appPath, outputPath)
	require.Error(t, err)

	_, statErr := os.Stat(outputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestIsMachOMagics(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, magic []byte) string {
		path := filepath.Join(dir, name)
		data := append(bytes.Clone(magic), make([]byte, 16)...)
		require.NoError(t, os.WriteFile(path, data, 0755))
		return path
	}

	assert.True(t, isMachO(write("thin64", []byte{0xcf, 0xfa, 0xed, 0xfe})))
	assert.True(t, isMachO(write("thin32", []byte{0xce, 0xfa, 0xed, 0xfe})))
	assert.True(t, isMachO(write("fat", []byte{0xca, 0xfe, 0xba, 0xbe})))
	assert.True(t, isMachO(write("fat64", []byte{0xca, 0xfe, 0xba, 0xbf})))
	assert.False(t, isMachO(write("script", []byte{'#', '!', '/', 'b'})))
	assert.False(t, isMachO(filepath.Join(dir, "absent")))
}
