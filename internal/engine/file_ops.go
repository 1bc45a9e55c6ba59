package engine

import (
	"context"
	"fmt"
	"path"
)

// WriteFile packs content into a single-entry tar archive and PUTs it
// into the directory containing destPath (spec §4.2 write_file).
func (e *Engine) WriteFile(ctx context.Context, containerID, destPath string, content []byte, mode int64) error {
	archive, err := packSingleFile(destPath, content, mode)
	if err != nil {
		return err
	}
	dir := path.Dir(destPath)
	return e.ArchivePut(ctx, containerID, dir, bytesReader(archive))
}

// ReadFile GETs a single-file archive for path and returns its content.
func (e *Engine) ReadFile(ctx context.Context, containerID, filePath string) ([]byte, error) {
	archive, err := e.ArchiveGet(ctx, containerID, filePath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return unpackSingleFile(archive)
}

// ListFiles GETs an archive of dirPath and returns metadata for its
// entries, preserving symlinks rather than following them.
func (e *Engine) ListFiles(ctx context.Context, containerID, dirPath string) ([]ArchiveEntry, error) {
	archive, err := e.ArchiveGet(ctx, containerID, dirPath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return listArchiveEntries(archive, dirPath)
}

// PushTree packs entries (relative path -> content) into a tar stream
// and PUTs it into destDir. Absolute entry paths are rejected; every
// entry is pushed as a regular file.
func (e *Engine) PushTree(ctx context.Context, containerID, destDir string, entries map[string][]byte, modes map[string]int64) error {
	for name := range entries {
		if path.IsAbs(name) {
			return fmt.Errorf("push entry %q must be a relative path", name)
		}
	}
	archive, err := packTree(entries, modes)
	if err != nil {
		return err
	}
	return e.ArchivePut(ctx, containerID, destDir, bytesReader(archive))
}
