package engine

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// packSingleFile builds a tar stream containing one regular-file entry
// named by the basename of dest, holding content. The destination
// directory is supplied separately as the archive PUT path query
// parameter (spec §4.2 write_file).
func packSingleFile(dest string, content []byte, mode int64) ([]byte, error) {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)

	hdr := &tar.Header{
		Name:     path.Base(dest),
		Mode:     mode,
		Size:     int64(len(content)),
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}
	if hdr.Mode == 0 {
		hdr.Mode = 0644
	}
	if err := w.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("write tar header: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		return nil, fmt.Errorf("write tar body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	return buf.Bytes(), nil
}

// unpackSingleFile reads a tar stream and returns the content of the
// first regular-file entry it finds. Used by read_file, which asks the
// engine for a single-file archive and expects exactly one useful
// entry back.
func unpackSingleFile(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("archive contained no regular file entry")
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag == tar.TypeSymlink || hdr.Typeflag == tar.TypeLink {
			// Symlinks are preserved on pull (see listArchiveEntries) but a
			// plain read_file call never expects to land on one directly.
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read tar body: %w", err)
		}
		return data, nil
	}
}

// ArchiveEntry describes one file or symlink surfaced by list_files.
type ArchiveEntry struct {
	Name       string
	Size       int64
	Mode       int64
	IsDir      bool
	LinkTarget string // non-empty for symlinks
	ModTime    time.Time
}

// listArchiveEntries walks a tar stream (as returned by ArchiveGet on
// requestedDir) and returns metadata for every entry beneath that
// directory. The engine prefixes every entry with requestedDir's own
// basename (the same way `docker cp container:/tmp/pd-test .` lands
// the tree at `./pd-test/...` locally), so that prefix — and the bare
// directory-root entry itself — is stripped here to give callers
// paths relative to requestedDir. Symlinks are reported with their
// target rather than followed, per spec §4.2's "symlinks are
// preserved on pull" rule.
func listArchiveEntries(r io.Reader, requestedDir string) ([]ArchiveEntry, error) {
	prefix := path.Base(path.Clean(requestedDir)) + "/"

	var out []ArchiveEntry
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		name := hdr.Name
		switch {
		case name == prefix || name == path.Clean(prefix):
			// The directory root itself; not a child entry.
			continue
		case strings.HasPrefix(name, prefix):
			name = strings.TrimPrefix(name, prefix)
		}
		out = append(out, ArchiveEntry{
			Name:       name,
			Size:       hdr.Size,
			Mode:       hdr.Mode,
			IsDir:      hdr.Typeflag == tar.TypeDir,
			LinkTarget: hdr.Linkname,
			ModTime:    hdr.ModTime,
		})
	}
}

// packTree packs a relative-path -> content map into a tar stream for
// push. Every entry is written as a regular file; the map form has no
// way to express a symlink.
func packTree(entries map[string][]byte, modes map[string]int64) ([]byte, error) {
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for name, content := range entries {
		mode := modes[name]
		if mode == 0 {
			mode = 0644
		}
		hdr := &tar.Header{
			Name:     name,
			Mode:     mode,
			Size:     int64(len(content)),
			ModTime:  time.Now(),
			Typeflag: tar.TypeReg,
		}
		if err := w.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("write tar header for %s: %w", name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("write tar body for %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close tar writer: %w", err)
	}
	return buf.Bytes(), nil
}
