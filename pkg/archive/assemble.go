package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"shipline/pkg/bundle"
)

// PayloadDir is the single top-level directory of the distributable
// container; the app bundle sits inside it verbatim.
const PayloadDir = "Payload"

// DefaultMinSize is the sanity floor for the container's total uncompressed
// size. Anything smaller indicates a corrupt or partial build.
const DefaultMinSize int64 = 1 << 20

// Package describes an assembled, size-checked output container.
type Package struct {
	Path             string
	UncompressedSize int64
	FileCount        int
}

// Assembler packages a validated app bundle into the output container.
type Assembler struct {
	// MinSize overrides DefaultMinSize; values <= 0 fall back to the
	// default.
	MinSize int64
}

func (a *Assembler) minSize() int64 {
	if a.MinSize > 0 {
		return a.MinSize
	}
	return DefaultMinSize
}

// Assemble validates the bundle, stages it under a fresh Payload directory,
// compresses the container to outputPath and re-opens the result to verify
// the size invariant. An undersized archive is removed and reported as an
// AssemblyError even though compression itself succeeded; a silently
// truncated zip is a known failure mode of the compressor.
func (a *Assembler) Assemble(bundlePath, outputPath string) (*Package, error) {
	if err := ValidateBundle(bundlePath); err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp(filepath.Dir(outputPath), ".staging-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	dest := filepath.Join(staging, PayloadDir, filepath.Base(bundlePath))
	if err := bundle.CopyTree(bundlePath, dest); err != nil {
		return nil, &AssemblyError{Path: bundlePath, Msg: "failed to stage bundle", Err: err}
	}

	if err := zipTree(staging, outputPath); err != nil {
		return nil, &AssemblyError{Path: outputPath, Msg: "failed to compress container", Err: err}
	}

	pkg, err := verifyPackage(outputPath, a.minSize())
	if err != nil {
		os.Remove(outputPath)
		return nil, err
	}
	return pkg, nil
}

// zipTree compresses the directory tree rooted at dir into a zip archive at
// outputPath. Paths inside the archive are slash-separated and relative to
// dir.
func zipTree(dir, outputPath string) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	w := zip.NewWriter(outFile)

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		zipPath := strings.ReplaceAll(relPath, string(os.PathSeparator), "/")

		if info.IsDir() {
			_, err := w.Create(zipPath + "/")
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = zipPath
		header.Method = zip.Deflate

		writer, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// verifyPackage re-opens the written archive and enforces the minimum
// uncompressed-size invariant.
func verifyPackage(path string, minSize int64) (*Package, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, &AssemblyError{Path: path, Msg: "written package is unreadable", Err: err}
	}
	defer r.Close()

	var total int64
	files := 0
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		files++
		total += int64(f.UncompressedSize64)
	}

	if total < minSize {
		return nil, &AssemblyError{
			Path: path,
			Msg:  fmt.Sprintf("package too small: %d bytes uncompressed, minimum %d", total, minSize),
		}
	}
	return &Package{Path: path, UncompressedSize: total, FileCount: files}, nil
}
