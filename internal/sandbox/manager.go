package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/deftio/pocketdock/internal/engine"
)

// Manager is the entry point for container lifecycle operations:
// create, discover, resume, and prune (spec §5.5, §5.7).
type Manager struct {
	eng            *engine.Engine
	socketPath     string
	defaultTimeout time.Duration

	mu      deadlock.Mutex
	handles map[string]*Handle
}

func NewManager(eng *engine.Engine, socketPath string, defaultTimeout time.Duration) *Manager {
	return &Manager{
		eng:            eng,
		socketPath:     socketPath,
		defaultTimeout: defaultTimeout,
		handles:        make(map[string]*Handle),
	}
}

// CreateSpec is the caller-facing request to provision a new sandbox.
type CreateSpec struct {
	Image            string
	Cmd              []string
	Env              map[string]string
	WorkingDir       string
	MemoryBytes      int64
	NanoCPUs         int64
	Binds            []string
	EnableNetworking bool
	Name             string
	Profile          string
	Project          string
	DataPath         string
	Persist          bool
	ExtraLabels      map[string]string
}

// Create provisions and starts a new container tagged with the
// pocketdock.* labels Manager uses for discovery, then returns a Handle
// wrapping it.
func (m *Manager) Create(ctx context.Context, spec CreateSpec) (*Handle, error) {
	instanceID := uuid.NewString()

	labels := map[string]string{
		LabelManaged:  "true",
		LabelInstance: instanceID,
		LabelCreated:  strconv.FormatInt(time.Now().Unix(), 10),
		LabelPersist:  strconv.FormatBool(spec.Persist),
	}
	if spec.Profile != "" {
		labels[LabelProfile] = spec.Profile
	}
	if spec.Project != "" {
		labels[LabelProject] = spec.Project
	}
	if spec.DataPath != "" {
		labels[LabelDataPath] = spec.DataPath
	}
	for k, v := range spec.ExtraLabels {
		labels[k] = v
	}

	id, err := m.eng.ContainerCreate(ctx, engine.CreateOptions{
		Image:            spec.Image,
		Cmd:              spec.Cmd,
		Env:              spec.Env,
		WorkingDir:       spec.WorkingDir,
		Labels:           labels,
		MemoryBytes:      spec.MemoryBytes,
		NanoCPUs:         spec.NanoCPUs,
		Binds:            spec.Binds,
		EnableNetworking: spec.EnableNetworking,
		Name:             spec.Name,
	})
	if err != nil {
		if _, ok := err.(*engine.ImageNotFoundError); ok {
			if pullErr := m.eng.ImagePull(ctx, spec.Image); pullErr != nil {
				return nil, fmt.Errorf("create sandbox: image %s not found and pull failed: %w", spec.Image, pullErr)
			}
			id, err = m.eng.ContainerCreate(ctx, engine.CreateOptions{
				Image: spec.Image, Cmd: spec.Cmd, Env: spec.Env, WorkingDir: spec.WorkingDir,
				Labels: labels, MemoryBytes: spec.MemoryBytes, NanoCPUs: spec.NanoCPUs,
				Binds: spec.Binds, EnableNetworking: spec.EnableNetworking, Name: spec.Name,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("create sandbox: %w", err)
		}
	}

	if err := m.eng.ContainerStart(ctx, id); err != nil {
		return nil, fmt.Errorf("start sandbox %s: %w", id, err)
	}

	h := NewHandle(m.eng, id, spec.Name, m.socketPath, spec.Persist, spec.Project, spec.DataPath, m.defaultTimeout)
	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()
	return h, nil
}

// Summary is one entry of Manager.List.
type Summary struct {
	ID        string
	Name      string
	Image     string
	State     string
	Status    string
	Project   string
	Profile   string
	Persist   bool
	CreatedAt time.Time
}

// List returns every pocketdock-managed container, optionally filtered
// to one project.
func (m *Manager) List(ctx context.Context, project string) ([]Summary, error) {
	labels := map[string]string{LabelManaged: "true"}
	if project != "" {
		labels[LabelProject] = project
	}
	items, err := m.eng.ContainerList(ctx, true, labels)
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(items))
	for _, item := range items {
		name := item.ID
		if len(item.Names) > 0 {
			name = item.Names[0]
		}
		persist, _ := strconv.ParseBool(item.Labels[LabelPersist])
		createdAt := time.Unix(item.Created, 0)
		out = append(out, Summary{
			ID:        item.ID,
			Name:      name,
			Image:     item.Image,
			State:     item.State,
			Status:    item.Status,
			Project:   item.Labels[LabelProject],
			Profile:   item.Labels[LabelProfile],
			Persist:   persist,
			CreatedAt: createdAt,
		})
	}
	return out, nil
}

// Resume reattaches a Handle to a previously created container, looking
// up its pocketdock labels to restore Persist/Project/DataPath, and
// starting it if it isn't running.
func (m *Manager) Resume(ctx context.Context, id string) (*Handle, error) {
	m.mu.Lock()
	if h, ok := m.handles[id]; ok {
		m.mu.Unlock()
		return h, nil
	}
	m.mu.Unlock()

	inspect, err := m.eng.ContainerInspect(ctx, id)
	if err != nil {
		return nil, err
	}
	if inspect.Config.Labels[LabelManaged] != "true" {
		return nil, fmt.Errorf("resume %s: not a pocketdock-managed container", id)
	}

	if !inspect.State.Running {
		if err := m.eng.ContainerStart(ctx, id); err != nil {
			return nil, fmt.Errorf("resume %s: %w", id, err)
		}
	}

	persist, _ := strconv.ParseBool(inspect.Config.Labels[LabelPersist])
	h := NewHandle(m.eng, id, inspect.Name, m.socketPath, persist,
		inspect.Config.Labels[LabelProject], inspect.Config.Labels[LabelDataPath], m.defaultTimeout)

	m.mu.Lock()
	m.handles[id] = h
	m.mu.Unlock()
	return h, nil
}

// Destroy stops and removes a container, regardless of its Persist
// label — callers are expected to check Persist themselves when the
// removal is part of an automatic sweep (see Prune).
func (m *Manager) Destroy(ctx context.Context, id string, force bool) error {
	m.mu.Lock()
	if h, ok := m.handles[id]; ok {
		h.Shutdown()
		delete(m.handles, id)
	}
	m.mu.Unlock()

	if !force {
		_ = m.eng.ContainerStop(ctx, id, 5)
	}
	return m.eng.ContainerRemove(ctx, id, force)
}

// Prune removes every stopped, non-persistent pocketdock container in
// project (or across all projects if empty), per spec §4.5. Running
// containers are left alone regardless of age or Persist.
func (m *Manager) Prune(ctx context.Context, project string) ([]string, error) {
	summaries, err := m.List(ctx, project)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, s := range summaries {
		if s.Persist {
			continue
		}
		if s.State == "running" {
			continue
		}
		if err := m.Destroy(ctx, s.ID, true); err != nil {
			continue
		}
		removed = append(removed, s.ID)
	}
	return removed, nil
}
