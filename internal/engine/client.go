// Package engine provides typed, minimal wrappers over the
// Docker-compatible REST endpoints pocketdock uses, on top of the
// hand-rolled transport package. One exported method per logical
// operation, one transport.Client.Do per call (spec §4.2).
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/deftio/pocketdock/internal/engine/transport"
	"github.com/rs/zerolog/log"
)

// Engine is a thin, stateless wrapper around a transport.Client bound to
// one engine socket.
type Engine struct {
	SocketPath string
	client     *transport.Client
}

func New(socketPath string) *Engine {
	return &Engine{
		SocketPath: socketPath,
		client:     &transport.Client{SocketPath: socketPath},
	}
}

var jsonHeaders = http.Header{"Content-Type": []string{"application/json"}}

func (e *Engine) doJSON(ctx context.Context, method, path string, body any) (*transport.Exchange, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request for %s: %w", path, err)
		}
		reader = bytesReader(data)
	}
	return e.client.Do(ctx, method, path, jsonHeaders, reader)
}

func decodeJSON(ex *transport.Exchange, out any) error {
	defer ex.Close()
	data, err := io.ReadAll(ex)
	if err != nil {
		return &SocketCommunicationError{Op: "read response body", Status: ex.StatusCode, Body: err.Error()}
	}
	if out == nil {
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &SocketCommunicationError{Op: "decode response body", Status: ex.StatusCode, Body: string(data)}
	}
	return nil
}

func drain(ex *transport.Exchange) []byte {
	defer ex.Close()
	data, _ := io.ReadAll(ex)
	return data
}

// Ping checks GET /_ping.
func (e *Engine) Ping(ctx context.Context) error {
	ex, err := e.client.Do(ctx, "GET", "/_ping", nil, nil)
	if err != nil {
		return err
	}
	defer ex.Close()
	if ex.StatusCode != 200 {
		return &SocketCommunicationError{Op: "GET /_ping", Status: ex.StatusCode}
	}
	return nil
}

// ContainerCreate provisions a container and returns its id.
func (e *Engine) ContainerCreate(ctx context.Context, opts CreateOptions) (string, error) {
	req := createRequest{
		Image:      opts.Image,
		Cmd:        opts.Cmd,
		Env:        envSlice(opts.Env),
		WorkingDir: opts.WorkingDir,
		Labels:     opts.Labels,
		HostConfig: hostConfig{
			Memory:   opts.MemoryBytes,
			NanoCPUs: opts.NanoCPUs,
			Binds:    opts.Binds,
		},
	}
	if !opts.EnableNetworking {
		req.HostConfig.NetworkMode = "none"
	}

	path := "/containers/create"
	if opts.Name != "" {
		path += "?name=" + url.QueryEscape(opts.Name)
	}

	ex, err := e.doJSON(ctx, "POST", path, req)
	if err != nil {
		return "", err
	}
	if ex.StatusCode == 404 {
		drain(ex)
		return "", &ImageNotFoundError{Image: opts.Image}
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return "", mapStatusError("container create", ex.StatusCode, body, false)
	}

	var resp createResponse
	if err := decodeJSON(ex, &resp); err != nil {
		return "", err
	}
	for _, w := range resp.Warnings {
		log.Warn().Str("container", resp.ID).Str("warning", w).Msg("engine create warning")
	}
	return resp.ID, nil
}

func (e *Engine) simplePost(ctx context.Context, op, path string) error {
	ex, err := e.client.Do(ctx, "POST", path, nil, nil)
	if err != nil {
		return err
	}
	body := drain(ex)
	if ex.StatusCode >= 400 {
		return mapStatusError(op, ex.StatusCode, body, false)
	}
	return nil
}

func (e *Engine) ContainerStart(ctx context.Context, id string) error {
	return e.simplePost(ctx, "container start", "/containers/"+id+"/start")
}

func (e *Engine) ContainerStop(ctx context.Context, id string, timeoutSeconds int) error {
	path := "/containers/" + id + "/stop"
	if timeoutSeconds > 0 {
		path += "?t=" + strconv.Itoa(timeoutSeconds)
	}
	return e.simplePost(ctx, "container stop", path)
}

func (e *Engine) ContainerRestart(ctx context.Context, id string, timeoutSeconds int) error {
	path := "/containers/" + id + "/restart"
	if timeoutSeconds > 0 {
		path += "?t=" + strconv.Itoa(timeoutSeconds)
	}
	return e.simplePost(ctx, "container restart", path)
}

func (e *Engine) ContainerRemove(ctx context.Context, id string, force bool) error {
	path := "/containers/" + id
	if force {
		path += "?force=1"
	}
	ex, err := e.client.Do(ctx, "DELETE", path, nil, nil)
	if err != nil {
		return err
	}
	body := drain(ex)
	if ex.StatusCode >= 400 {
		return mapStatusError("container remove", ex.StatusCode, body, false)
	}
	return nil
}

func (e *Engine) ContainerInspect(ctx context.Context, id string) (*InspectResult, error) {
	ex, err := e.client.Do(ctx, "GET", "/containers/"+id+"/json", nil, nil)
	if err != nil {
		return nil, err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return nil, mapStatusError("container inspect", ex.StatusCode, body, false)
	}
	var result InspectResult
	if err := decodeJSON(ex, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) ContainerStats(ctx context.Context, id string) (*StatsResult, error) {
	ex, err := e.client.Do(ctx, "GET", "/containers/"+id+"/stats?stream=false", nil, nil)
	if err != nil {
		return nil, err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return nil, mapStatusError("container stats", ex.StatusCode, body, false)
	}
	var result StatsResult
	if err := decodeJSON(ex, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) ContainerTop(ctx context.Context, id string) (*TopResult, error) {
	ex, err := e.client.Do(ctx, "GET", "/containers/"+id+"/top", nil, nil)
	if err != nil {
		return nil, err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return nil, mapStatusError("container top", ex.StatusCode, body, false)
	}
	var result TopResult
	if err := decodeJSON(ex, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) ContainerList(ctx context.Context, all bool, labels map[string]string) ([]ContainerListItem, error) {
	path := "/containers/json?all=" + boolQuery(all)
	if len(labels) > 0 {
		filters := map[string][]string{}
		for k, v := range labels {
			filters["label"] = append(filters["label"], k+"="+v)
		}
		data, _ := json.Marshal(filters)
		path += "&filters=" + url.QueryEscape(string(data))
	}
	ex, err := e.client.Do(ctx, "GET", path, nil, nil)
	if err != nil {
		return nil, err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return nil, mapStatusError("container list", ex.StatusCode, body, false)
	}
	var result []ContainerListItem
	if err := decodeJSON(ex, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecCreate creates an exec instance and returns its id.
func (e *Engine) ExecCreate(ctx context.Context, containerID string, opts ExecOptions) (string, error) {
	req := execCreateRequest{
		Cmd:          opts.Cmd,
		Env:          envSlice(opts.Env),
		AttachStdin:  opts.AttachStdin,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          false,
		WorkingDir:   opts.WorkingDir,
	}
	ex, err := e.doJSON(ctx, "POST", "/containers/"+containerID+"/exec", req)
	if err != nil {
		return "", err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return "", mapStatusError("exec create", ex.StatusCode, body, false)
	}
	var resp execCreateResponse
	if err := decodeJSON(ex, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ExecStart upgrades a fresh connection into the exec's bidirectional
// stream. The caller is responsible for closing the returned Exchange,
// which also terminates the stream.
func (e *Engine) ExecStart(ctx context.Context, execID string) (*transport.Exchange, error) {
	data, err := json.Marshal(execStartRequest{Detach: false, Tty: false})
	if err != nil {
		return nil, err
	}
	ex, err := e.client.Do(ctx, "POST", "/exec/"+execID+"/start", jsonHeaders, bytesReader(data))
	if err != nil {
		return nil, err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return nil, mapStatusError("exec start", ex.StatusCode, body, false)
	}
	return ex, nil
}

func (e *Engine) ExecInspect(ctx context.Context, execID string) (*ExecInspectResult, error) {
	ex, err := e.client.Do(ctx, "GET", "/exec/"+execID+"/json", nil, nil)
	if err != nil {
		return nil, err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return nil, mapStatusError("exec inspect", ex.StatusCode, body, false)
	}
	var result ExecInspectResult
	if err := decodeJSON(ex, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (e *Engine) ExecResize(ctx context.Context, execID string, height, width int) error {
	path := fmt.Sprintf("/exec/%s/resize?h=%d&w=%d", execID, height, width)
	return e.simplePost(ctx, "exec resize", path)
}

// ExecKill sends a signal to the root process of an exec by running a
// side-channel `kill -s SIGNAL <pid>` exec against the same container.
// The Docker/Podman API has no direct "kill this exec" verb.
func (e *Engine) ExecKill(ctx context.Context, containerID string, pid int, signal string) error {
	killExecID, err := e.ExecCreate(ctx, containerID, ExecOptions{Cmd: []string{"kill", "-s", signal, strconv.Itoa(pid)}})
	if err != nil {
		return err
	}
	stream, err := e.ExecStart(ctx, killExecID)
	if err != nil {
		return err
	}
	defer stream.Close()
	io.Copy(io.Discard, stream)
	return nil
}

// ArchiveGet streams a tar archive of path out of the container.
func (e *Engine) ArchiveGet(ctx context.Context, containerID, path string) (io.ReadCloser, error) {
	ex, err := e.client.Do(ctx, "GET", "/containers/"+containerID+"/archive?path="+url.QueryEscape(path), nil, nil)
	if err != nil {
		return nil, err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return nil, mapStatusError("archive get", ex.StatusCode, body, false)
	}
	return ex, nil
}

// ArchivePut streams a tar archive into the directory given by path.
func (e *Engine) ArchivePut(ctx context.Context, containerID, path string, tarStream io.Reader) error {
	headers := http.Header{"Content-Type": []string{"application/x-tar"}}
	ex, err := e.client.Do(ctx, "PUT", "/containers/"+containerID+"/archive?path="+url.QueryEscape(path), headers, tarStream)
	if err != nil {
		return err
	}
	body := drain(ex)
	if ex.StatusCode >= 400 {
		return mapStatusError("archive put", ex.StatusCode, body, false)
	}
	return nil
}

// Commit snapshots a container into a new image and returns its id.
func (e *Engine) Commit(ctx context.Context, containerID, repo, tag string) (string, error) {
	path := fmt.Sprintf("/commit?container=%s&repo=%s", url.QueryEscape(containerID), url.QueryEscape(repo))
	if tag != "" {
		path += "&tag=" + url.QueryEscape(tag)
	}
	ex, err := e.client.Do(ctx, "POST", path, nil, nil)
	if err != nil {
		return "", err
	}
	if ex.StatusCode >= 400 {
		body := drain(ex)
		return "", mapStatusError("commit", ex.StatusCode, body, false)
	}
	var resp struct {
		ID string `json:"Id"`
	}
	if err := decodeJSON(ex, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ImageInspect checks whether ref is present locally.
func (e *Engine) ImageInspect(ctx context.Context, ref string) error {
	ex, err := e.client.Do(ctx, "GET", "/images/"+url.PathEscape(ref)+"/json", nil, nil)
	if err != nil {
		return err
	}
	body := drain(ex)
	if ex.StatusCode == 404 {
		return &ImageNotFoundError{Image: ref}
	}
	if ex.StatusCode >= 400 {
		return mapStatusError("image inspect", ex.StatusCode, body, true)
	}
	return nil
}

// ImagePull pulls ref, draining the progress stream.
func (e *Engine) ImagePull(ctx context.Context, ref string) error {
	ex, err := e.client.Do(ctx, "POST", "/images/create?fromImage="+url.QueryEscape(ref), nil, nil)
	if err != nil {
		return err
	}
	body := drain(ex)
	if ex.StatusCode == 404 {
		return &ImageNotFoundError{Image: ref}
	}
	if ex.StatusCode >= 400 {
		return mapStatusError("image pull", ex.StatusCode, body, true)
	}
	return nil
}

// ImageBuild builds buildContext (a tar stream whose root holds a
// Dockerfile) into an image tagged tag, draining the JSON-stream build
// log the same way ImagePull drains its progress stream.
func (e *Engine) ImageBuild(ctx context.Context, buildContext io.Reader, tag string) error {
	headers := http.Header{"Content-Type": []string{"application/x-tar"}}
	path := "/build?t=" + url.QueryEscape(tag)
	ex, err := e.client.Do(ctx, "POST", path, headers, buildContext)
	if err != nil {
		return err
	}
	body := drain(ex)
	if ex.StatusCode >= 400 {
		return mapStatusError("image build", ex.StatusCode, body, true)
	}
	return nil
}

func boolQuery(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func bytesReader(b []byte) io.Reader {
	return &byteReader{data: b}
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
