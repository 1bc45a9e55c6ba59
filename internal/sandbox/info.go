package sandbox

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deftio/pocketdock/internal/engine"
)

// ProcessList mirrors the engine's `top` response: a column header row
// plus one row of field values per process.
type ProcessList struct {
	Titles    []string
	Processes [][]string
}

// HandleInfo is the runtime snapshot returned by Handle.Info (spec
// §4.3 / §5.5).
type HandleInfo struct {
	ID          string
	Name        string
	Image       string
	Running     bool
	ExitCode    int
	CreatedAt   time.Time
	MemoryBytes int64
	MemoryLimit int64
	CPUPercent  float64
	IPAddress   string
	Processes   ProcessList
}

// Info inspects the container and then, while it's running, issues
// stats and top in parallel with each other. From the single stats
// snapshot it computes the CPU percentage the way `docker stats
// --no-stream` does; memory is reported as raw usage and limit bytes.
func (h *Handle) Info(ctx context.Context) (*HandleInfo, error) {
	inspect, err := h.eng.ContainerInspect(ctx, h.ID)
	if err != nil {
		return nil, err
	}

	info := &HandleInfo{
		ID:        inspect.ID,
		Name:      inspect.Name,
		Image:     inspect.Config.Image,
		Running:   inspect.State.Running,
		ExitCode:  inspect.State.ExitCode,
		IPAddress: inspect.NetworkSettings.IPAddress,
	}
	if t, err := time.Parse(time.RFC3339Nano, inspect.Created); err == nil {
		info.CreatedAt = t
	}

	if inspect.State.Running {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			stats, err := h.eng.ContainerStats(gctx, h.ID)
			if err != nil {
				return nil
			}
			info.MemoryBytes = stats.MemoryStats.Usage
			info.MemoryLimit = stats.MemoryStats.Limit
			info.CPUPercent = cpuPercent(stats)
			return nil
		})
		g.Go(func() error {
			top, err := h.eng.ContainerTop(gctx, h.ID)
			if err != nil {
				return nil
			}
			info.Processes = ProcessList{Titles: top.Titles, Processes: top.Processes}
			return nil
		})
		_ = g.Wait()
	}

	return info, nil
}

// cpuPercent replicates the delta-based formula the Docker CLI uses:
// (containerDelta / systemDelta) * onlineCPUs * 100.
func cpuPercent(s *engine.StatsResult) float64 {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage - s.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(s.CPUStats.SystemCPUUsage - s.PreCPUStats.SystemCPUUsage)
	if systemDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	online := s.CPUStats.OnlineCPUs
	if online == 0 {
		online = 1
	}
	return (cpuDelta / systemDelta) * float64(online) * 100
}

// Reboot stops (if running) and restarts the container, leaving its
// filesystem state intact. Use it to recover a Handle whose container
// exited or was explicitly stopped (ErrContainerNotRunning).
func (h *Handle) Reboot(ctx context.Context, timeoutSeconds int) error {
	if err := h.eng.ContainerRestart(ctx, h.ID, timeoutSeconds); err != nil {
		return fmt.Errorf("reboot %s: %w", h.ID, err)
	}
	return nil
}

// SnapshotResult is the outcome of committing a container to an image.
type SnapshotResult struct {
	ImageID string
	Repo    string
	Tag     string
}

// Snapshot commits the container's current filesystem state to a new
// image, for later reuse via CreateOptions.Image (spec §5.6).
func (h *Handle) Snapshot(ctx context.Context, repo, tag string) (*SnapshotResult, error) {
	imageID, err := h.eng.Commit(ctx, h.ID, repo, tag)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", h.ID, err)
	}
	return &SnapshotResult{ImageID: imageID, Repo: repo, Tag: tag}, nil
}
