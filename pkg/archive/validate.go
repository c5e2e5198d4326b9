package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blacktop/go-macho"

	"shipline/pkg/bundle"
)

// AssemblyError means a bundle exists but is broken, or packaging produced
// an unusable container. It is deliberately distinct from ErrNotFound: the
// archive was located, its content is wrong.
type AssemblyError struct {
	Path string
	Msg  string
	Err  error
}

func (e *AssemblyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive: %s: %s: %v", e.Path, e.Msg, e.Err)
	}
	return fmt.Sprintf("archive: %s: %s", e.Path, e.Msg)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// ValidateBundle checks the structural invariants of a discovered bundle:
// its descriptor must declare an executable, and that executable must exist
// in the bundle and carry a Mach-O magic. A stripped or partially copied
// build fails here rather than producing an empty package.
func ValidateBundle(appPath string) error {
	execName, err := bundle.ExecutableName(appPath)
	if err != nil {
		return &AssemblyError{Path: appPath, Msg: "unreadable bundle descriptor", Err: err}
	}

	execPath := filepath.Join(appPath, execName)
	if _, err := os.Stat(execPath); err != nil {
		return &AssemblyError{Path: appPath, Msg: fmt.Sprintf("declared executable %q missing", execName), Err: err}
	}
	if !isMachO(execPath) {
		return &AssemblyError{Path: appPath, Msg: fmt.Sprintf("executable %q is not a Mach-O binary", execName)}
	}
	return nil
}

// isMachO sniffs the file's magic number: thin 32/64-bit or fat, either
// byte order.
func isMachO(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return false
	}
	known := [][]byte{
		{0xcf, 0xfa, 0xed, 0xfe}, // MH_MAGIC_64
		{0xce, 0xfa, 0xed, 0xfe}, // MH_MAGIC
		{0xca, 0xfe, 0xba, 0xbe}, // FAT_MAGIC
		{0xca, 0xfe, 0xba, 0xbf}, // FAT_MAGIC_64
	}
	for _, m := range known {
		if bytes.Equal(magic, m) {
			return true
		}
	}
	return false
}

// ExecutableInfo describes the architectures of a bundle's main binary, for
// run diagnostics.
type ExecutableInfo struct {
	Path   string
	Arches []string
}

// InspectExecutable parses the bundle's main binary and reports its
// architecture slices. Inspection is diagnostic only; callers treat errors
// as advisory.
func InspectExecutable(appPath string) (*ExecutableInfo, error) {
	execName, err := bundle.ExecutableName(appPath)
	if err != nil {
		return nil, err
	}
	execPath := filepath.Join(appPath, execName)

	if fat, err := macho.OpenFat(execPath); err == nil {
		defer fat.Close()
		info := &ExecutableInfo{Path: execPath}
		for _, arch := range fat.Arches {
			info.Arches = append(info.Arches, arch.CPU.String())
		}
		return info, nil
	}

	m, err := macho.Open(execPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse executable: %w", err)
	}
	defer m.Close()
	return &ExecutableInfo{Path: execPath, Arches: []string{m.CPU.String()}}, nil
}
