package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the project marker directory, analogous to .git.
const DirName = ".pocketdock"

// ErrNotFound is returned by Find when no .pocketdock directory exists
// at or above the starting path.
var ErrNotFound = fmt.Errorf("no %s project found", DirName)

// Project ties a resolved project root to its loaded configuration.
type Project struct {
	Root   string
	Config Config
}

// Find walks upward from startDir looking for a .pocketdock directory,
// the same way git resolves a repository root from any subdirectory.
func Find(startDir string) (*Project, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			cfg, err := LoadConfig(candidate)
			if err != nil {
				return nil, err
			}
			return &Project{Root: dir, Config: cfg}, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotFound
		}
		dir = parent
	}
}

// Init scaffolds a new .pocketdock directory under dir with a default
// config.yaml, failing if one already exists.
func Init(dir string) (*Project, error) {
	marker := filepath.Join(dir, DirName)
	if _, err := os.Stat(marker); err == nil {
		return nil, fmt.Errorf("project already initialized at %s", marker)
	}

	if err := os.MkdirAll(marker, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", marker, err)
	}

	cfg := DefaultConfig()
	cfg.ProjectName = filepath.Base(dir)
	data := []byte(fmt.Sprintf(
		"project_name: %s\ndefault_profile: %s\ndefault_persist: %v\nauto_log: %v\nmax_log_size: %s\nmax_logs_per_instance: %d\nretention_days: %d\nlog_level: %s\n",
		cfg.ProjectName, cfg.DefaultProfile, cfg.DefaultPersist, cfg.AutoLog,
		cfg.MaxLogSize, cfg.MaxLogsPerInstance, cfg.RetentionDays, cfg.LogLevel,
	))
	if err := os.WriteFile(filepath.Join(marker, ConfigFileName), data, 0644); err != nil {
		return nil, fmt.Errorf("write default config: %w", err)
	}

	return &Project{Root: dir, Config: cfg}, nil
}

// DataPath returns the project-local data directory for one instance.
// `pocketdock create` records it on the container's
// pocketdock.data-path label; nothing bind-mounts it.
func (p *Project) DataPath(instanceID string) string {
	return filepath.Join(p.Root, DirName, "data", instanceID)
}
