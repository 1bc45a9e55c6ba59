package engine

import "time"

// createRequest is the JSON body for POST /containers/create.
type createRequest struct {
	Image        string            `json:"Image"`
	Cmd          []string          `json:"Cmd,omitempty"`
	Env          []string          `json:"Env,omitempty"`
	WorkingDir   string            `json:"WorkingDir,omitempty"`
	Labels       map[string]string `json:"Labels,omitempty"`
	HostConfig   hostConfig        `json:"HostConfig"`
}

type hostConfig struct {
	Memory      int64             `json:"Memory,omitempty"`
	NanoCPUs    int64             `json:"NanoCpus,omitempty"`
	Binds       []string          `json:"Binds,omitempty"`
	Devices     []deviceMapping   `json:"Devices,omitempty"`
	NetworkMode string            `json:"NetworkMode,omitempty"`
	PortBindings map[string][]portBinding `json:"PortBindings,omitempty"`
}

type deviceMapping struct {
	PathOnHost        string `json:"PathOnHost"`
	PathInContainer   string `json:"PathInContainer"`
	CgroupPermissions string `json:"CgroupPermissions"`
}

type portBinding struct {
	HostIP   string `json:"HostIp,omitempty"`
	HostPort string `json:"HostPort,omitempty"`
}

// CreateOptions is the caller-facing, engine-agnostic container spec.
type CreateOptions struct {
	Image            string
	Cmd              []string
	Env              map[string]string
	WorkingDir       string
	Labels           map[string]string
	MemoryBytes      int64
	NanoCPUs         int64
	Binds            []string
	EnableNetworking bool
	Name             string
}

// createResponse is the JSON body returned by POST /containers/create.
type createResponse struct {
	ID       string   `json:"Id"`
	Warnings []string `json:"Warnings"`
}

// InspectResult mirrors the subset of GET /containers/{id}/json this repo
// consumes.
type InspectResult struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Created string `json:"Created"`
	State   struct {
		Running    bool `json:"Running"`
		Dead       bool `json:"Dead"`
		OOMKilled  bool `json:"OOMKilled"`
		ExitCode   int  `json:"ExitCode"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
	} `json:"State"`
	Config struct {
		Image      string            `json:"Image"`
		WorkingDir string            `json:"WorkingDir"`
		Labels     map[string]string `json:"Labels"`
	} `json:"Config"`
	NetworkSettings struct {
		IPAddress string `json:"IPAddress"`
	} `json:"NetworkSettings"`
	HostConfig struct {
		Memory   int64 `json:"Memory"`
		NanoCPUs int64 `json:"NanoCpus"`
	} `json:"HostConfig"`
}

// ContainerListItem mirrors one entry of GET /containers/json.
type ContainerListItem struct {
	ID      string            `json:"Id"`
	Names   []string          `json:"Names"`
	Image   string            `json:"Image"`
	State   string            `json:"State"`
	Status  string            `json:"Status"`
	Labels  map[string]string `json:"Labels"`
	Created int64             `json:"Created"`
}

// StatsResult mirrors the subset of GET /containers/{id}/stats?stream=false
// this repo consumes for the memory/cpu percent math in spec §4.3 "Info".
type StatsResult struct {
	MemoryStats struct {
		Usage int64 `json:"usage"`
		Limit int64 `json:"limit"`
	} `json:"memory_stats"`
	CPUStats struct {
		CPUUsage struct {
			TotalUsage int64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage int64 `json:"system_cpu_usage"`
		OnlineCPUs     int   `json:"online_cpus"`
	} `json:"cpu_stats"`
	PreCPUStats struct {
		CPUUsage struct {
			TotalUsage int64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage int64 `json:"system_cpu_usage"`
	} `json:"precpu_stats"`
	Read time.Time `json:"read"`
}

// TopResult mirrors GET /containers/{id}/top.
type TopResult struct {
	Titles    []string   `json:"Titles"`
	Processes [][]string `json:"Processes"`
}

// execCreateRequest is the JSON body for POST /containers/{id}/exec.
type execCreateRequest struct {
	Cmd          []string `json:"Cmd"`
	Env          []string `json:"Env,omitempty"`
	AttachStdin  bool     `json:"AttachStdin"`
	AttachStdout bool     `json:"AttachStdout"`
	AttachStderr bool     `json:"AttachStderr"`
	Tty          bool     `json:"Tty"`
	WorkingDir   string   `json:"WorkingDir,omitempty"`
}

type execCreateResponse struct {
	ID string `json:"Id"`
}

// execStartRequest is the JSON body for POST /exec/{id}/start.
type execStartRequest struct {
	Detach bool `json:"Detach"`
	Tty    bool `json:"Tty"`
}

// ExecInspectResult mirrors GET /exec/{id}/json.
type ExecInspectResult struct {
	ID       string `json:"ID"`
	Running  bool   `json:"Running"`
	ExitCode *int   `json:"ExitCode"`
	Pid      int    `json:"Pid"`
}

// ExecOptions describes how to create and start an exec.
type ExecOptions struct {
	Cmd         []string
	Env         map[string]string
	WorkingDir  string
	AttachStdin bool
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
