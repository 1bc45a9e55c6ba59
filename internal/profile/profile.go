// Package profile holds the static catalog of named base images the
// CLI's create/build commands select from (spec §6 "Profile").
package profile

import "fmt"

// Profile maps a short name to a base image reference, a default
// command, and the Dockerfile template `pocketdock build` uses to
// produce that image locally when it isn't already pulled.
type Profile struct {
	Name       string
	Image      string
	Cmd        []string
	Dockerfile string
}

// catalog is the fixed set of profiles spec §6 names: minimal, dev,
// agent, embedded.
var catalog = map[string]Profile{
	"minimal": {
		Name:       "minimal",
		Image:      "pocketdock/minimal:latest",
		Cmd:        []string{"sleep", "infinity"},
		Dockerfile: minimalDockerfile,
	},
	"dev": {
		Name:       "dev",
		Image:      "pocketdock/dev:latest",
		Cmd:        []string{"sleep", "infinity"},
		Dockerfile: devDockerfile,
	},
	"agent": {
		Name:       "agent",
		Image:      "pocketdock/agent:latest",
		Cmd:        []string{"sleep", "infinity"},
		Dockerfile: agentDockerfile,
	},
	"embedded": {
		Name:       "embedded",
		Image:      "pocketdock/embedded:latest",
		Cmd:        []string{"sleep", "infinity"},
		Dockerfile: embeddedDockerfile,
	},
}

// Get looks up a profile by name.
func Get(name string) (Profile, error) {
	p, ok := catalog[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %v)", name, Names())
	}
	return p, nil
}

// Names returns every catalog profile name, in a fixed display order.
func Names() []string {
	return []string{"minimal", "dev", "agent", "embedded"}
}

// All returns every profile in catalog order.
func All() []Profile {
	out := make([]Profile, 0, len(catalog))
	for _, name := range Names() {
		out = append(out, catalog[name])
	}
	return out
}

const minimalDockerfile = `FROM alpine:3.20
RUN apk add --no-cache bash coreutils tar
WORKDIR /workspace
CMD ["sleep", "infinity"]
`

const devDockerfile = `FROM debian:bookworm-slim
RUN apt-get update && apt-get install -y --no-install-recommends \
      bash curl git python3 python3-pip build-essential ca-certificates \
    && rm -rf /var/lib/apt/lists/*
WORKDIR /workspace
CMD ["sleep", "infinity"]
`

const agentDockerfile = `FROM python:3.12-slim
RUN apt-get update && apt-get install -y --no-install-recommends \
      bash git curl jq ca-certificates \
    && rm -rf /var/lib/apt/lists/* \
    && pip install --no-cache-dir requests
WORKDIR /workspace
CMD ["sleep", "infinity"]
`

const embeddedDockerfile = `FROM alpine:3.20
RUN apk add --no-cache bash
WORKDIR /workspace
CMD ["sleep", "infinity"]
`
