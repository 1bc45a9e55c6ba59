package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// InstanceMetadata is the per-sandbox record persisted under
// .pocketdock/instances/<id>.toml. `pocketdock create` writes one per
// sandbox; `pocketdock list` and `pocketdock resume` do not read these
// files and take everything they show from the engine's container labels.
type InstanceMetadata struct {
	ID          string    `toml:"id"`
	ContainerID string    `toml:"container_id"`
	Name        string    `toml:"name"`
	Profile     string    `toml:"profile"`
	Image       string    `toml:"image"`
	Project     string    `toml:"project"`
	Persist     bool      `toml:"persist"`
	DataPath    string    `toml:"data_path"`
	CreatedAt   time.Time `toml:"created_at"`
	MemLimit    int64     `toml:"mem_limit"`
	CPUPercent  float64   `toml:"cpu_percent"`
}

func instancesDir(root string) string {
	return filepath.Join(root, ".pocketdock", "instances")
}

// SaveInstance writes meta to .pocketdock/instances/<id>.toml,
// creating the directory if necessary.
func SaveInstance(root string, meta InstanceMetadata) error {
	dir := instancesDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create instances dir: %w", err)
	}

	data, err := toml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal instance metadata: %w", err)
	}

	path := filepath.Join(dir, meta.ID+".toml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write instance metadata: %w", err)
	}
	return nil
}

// LoadInstance reads .pocketdock/instances/<id>.toml.
func LoadInstance(root, id string) (InstanceMetadata, error) {
	var meta InstanceMetadata
	path := filepath.Join(instancesDir(root), id+".toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, fmt.Errorf("read instance metadata: %w", err)
	}
	if err := toml.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("parse instance metadata: %w", err)
	}
	return meta, nil
}

// ListInstances returns every instance recorded for the project.
func ListInstances(root string) ([]InstanceMetadata, error) {
	dir := instancesDir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read instances dir: %w", err)
	}

	var out []InstanceMetadata
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".toml")]
		meta, err := LoadInstance(root, id)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// RemoveInstance deletes an instance's metadata file. Missing files are
// not an error — removal is idempotent.
func RemoveInstance(root, id string) error {
	err := os.Remove(filepath.Join(instancesDir(root), id+".toml"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove instance metadata: %w", err)
	}
	return nil
}
