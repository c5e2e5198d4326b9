package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIdentifierPreservesOtherKeys(t *testing.T) {
	appPath := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, WriteInfo(appPath, map[string]interface{}{
		"CFBundleIdentifier":  "com.acme.app",
		"CFBundleExecutable":  "Runner",
		"CFBundleDisplayName": "Acme",
		"CFBundleVersion":     "12",
	}))

	require.NoError(t, WriteIdentifier(appPath, "com.acme.other"))

	id, err := Identifier(appPath)
	require.NoError(t, err)
	assert.Equal(t, "com.acme.other", id)

	info, err := ReadInfo(appPath)
	require.NoError(t, err)
	assert.Equal(t, "Acme", info["CFBundleDisplayName"])
	assert.Equal(t, "12", info["CFBundleVersion"])

	name, err := ExecutableName(appPath)
	require.NoError(t, err)
	assert.Equal(t, "Runner", name)
}

func TestIdentifierMissingKey(t *testing.T) {
	appPath := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, WriteInfo(appPath, map[string]interface{}{
		"CFBundleExecutable": "Runner",
	}))

	_, err := Identifier(appPath)
	assert.Error(t, err)
}

func TestReadInfoMissingDescriptor(t *testing.T) {
	appPath := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, os.MkdirAll(appPath, 0755))

	_, err := ReadInfo(appPath)
	assert.Error(t, err)
}

func TestCopyTreePreservesStructure(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, WriteInfo(src, map[string]interface{}{
		"CFBundleIdentifier": "com.acme.app",
	}))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "Frameworks"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Runner"), []byte("binary"), 0755))
	require.NoError(t, os.Symlink("Runner", filepath.Join(src, "RunnerAlias")))

	dst := filepath.Join(t.TempDir(), "Copy.app")
	require.NoError(t, CopyTree(src, dst))

	info, err := os.Stat(filepath.Join(dst, "Runner"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(dst, "RunnerAlias"))
	require.NoError(t, err)
	assert.Equal(t, "Runner", target)

	id, err := Identifier(dst)
	require.NoError(t, err)
	assert.Equal(t, "com.acme.app", id)

	_, err = os.Stat(filepath.Join(dst, "Frameworks"))
	assert.NoError(t, err)
}

func TestCopyTreeReplacesExistingDestination(t *testing.T) {
	src := filepath.Join(t.TempDir(), "Runner.app")
	require.NoError(t, WriteInfo(src, map[string]interface{}{
		"CFBundleIdentifier": "com.acme.app",
	}))

	dst := filepath.Join(t.TempDir(), "Copy.app")
	require.NoError(t, os.MkdirAll(dst, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "stale"), []byte("old"), 0644))

	require.NoError(t, CopyTree(src, dst))

	_, err := os.Stat(filepath.Join(dst, "stale"))
	assert.True(t, os.IsNotExist(err), "destination is replaced, not merged")
}
