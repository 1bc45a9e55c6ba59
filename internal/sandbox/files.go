package sandbox

import (
	"context"
	"fmt"
	"path"
)

// FileEntry describes one file or directory returned by ListFiles.
type FileEntry struct {
	Name       string
	Size       int64
	Mode       int64
	IsDir      bool
	LinkTarget string
}

// WriteFile writes content to destPath inside the container.
func (h *Handle) WriteFile(ctx context.Context, destPath string, content []byte, mode int64) error {
	return h.eng.WriteFile(ctx, h.ID, destPath, content, mode)
}

// ReadFile returns the content of filePath from the container.
func (h *Handle) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	return h.eng.ReadFile(ctx, h.ID, filePath)
}

// ListFiles returns metadata for each entry under dirPath.
func (h *Handle) ListFiles(ctx context.Context, dirPath string) ([]FileEntry, error) {
	entries, err := h.eng.ListFiles(ctx, h.ID, dirPath)
	if err != nil {
		return nil, err
	}
	out := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FileEntry{
			Name:       e.Name,
			Size:       e.Size,
			Mode:       e.Mode,
			IsDir:      e.IsDir,
			LinkTarget: e.LinkTarget,
		})
	}
	return out, nil
}

// Push uploads a local tree of relative-path -> content pairs into
// destDir inside the container. Any absolute entry path is rejected;
// every entry is pushed as a regular file, so no symlink is created.
func (h *Handle) Push(ctx context.Context, destDir string, files map[string][]byte) error {
	return h.eng.PushTree(ctx, h.ID, destDir, files, nil)
}

// Pull downloads every regular file under dirPath into a
// relative-path -> content map. Directories and symlinks are skipped:
// symlinks are not followed and do not appear in the returned map.
func (h *Handle) Pull(ctx context.Context, dirPath string) (map[string][]byte, error) {
	entries, err := h.ListFiles(ctx, dirPath)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir || e.LinkTarget != "" {
			continue
		}
		content, err := h.ReadFile(ctx, path.Join(dirPath, e.Name))
		if err != nil {
			return nil, fmt.Errorf("pull %s: %w", e.Name, err)
		}
		out[e.Name] = content
	}
	return out, nil
}
