package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// llamaSubprocessAdapter loads a model by spawning a llama.cpp server with
// the weights and the vision projector, one process per loaded handle.
type llamaSubprocessAdapter struct {
	bin          string
	host         string
	extraArgs    []string
	readyTimeout time.Duration
	stopGrace    time.Duration
	httpClient   *http.Client
	publisher    EventPublisher
	log          zerolog.Logger
}

// NewLlamaSubprocessAdapter constructs the llama-server process adapter.
func NewLlamaSubprocessAdapter(cfg ManagerConfig) InferenceAdapter {
	host := strings.TrimSpace(cfg.LlamaHost)
	if host == "" {
		host = defaultLlamaHost
	}
	bin := cfg.LlamaBin
	if bin == "" {
		bin = defaultLlamaBin
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	ready, grace := cfg.ReadyTimeout, cfg.StopGrace
	if ready <= 0 {
		ready = defaultReadyTimeout
	}
	if grace <= 0 {
		grace = defaultStopGrace
	}
	// Timeout=0: every call carries its own context deadline.
	return &llamaSubprocessAdapter{
		bin:          bin,
		host:         host,
		extraArgs:    append([]string(nil), cfg.LlamaExtraArgs...),
		readyTimeout: ready,
		stopGrace:    grace,
		httpClient:   &http.Client{Timeout: 0},
		publisher:    pub,
		log:          logger.With().Str("component", "llama_subprocess").Logger(),
	}
}

// llamaArgs builds the llama-server command line for a spec.
func llamaArgs(spec ModelSpec, host string, port int, extra []string) []string {
	args := []string{
		"-m", spec.ModelPath,
		"--mmproj", spec.ProjectorPath,
		"--host", host,
		"--port", strconv.Itoa(port),
		"-ngl", strconv.Itoa(spec.GPULayers),
	}
	if spec.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(spec.CtxSize))
	}
	if spec.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(spec.Threads))
	}
	return append(args, extra...)
}

// Load spawns llama-server and waits until GET /health answers 200. The
// process deliberately outlives ctx: it is owned by the returned handle.
func (a *llamaSubprocessAdapter) Load(ctx context.Context, spec ModelSpec) (Handle, error) {
	bin, err := exec.LookPath(a.bin)
	if err != nil {
		return nil, &ModelLoadError{Path: spec.ModelPath, Err: fmt.Errorf("llama-server binary %q not found: %w", a.bin, err)}
	}
	port, err := pickFreePort(a.host)
	if err != nil {
		return nil, fmt.Errorf("pick port: %w", err)
	}
	baseURL := fmt.Sprintf("http://%s", net.JoinHostPort(a.host, strconv.Itoa(port)))

	cmd := exec.Command(bin, llamaArgs(spec, a.host, port, a.extraArgs)...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &llamaProcess{
		a:       a,
		cmd:     cmd,
		baseURL: baseURL,
		pid:     cmd.Process.Pid,
		model:   spec.ModelPath,
		exited:  make(chan struct{}),
		stderr:  stderr,
	}
	// Single Wait owner; exited closes once the process is gone.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()
	a.log.Info().Str("event", EventSpawnStart).Str("model", spec.ModelPath).Int("pid", p.pid).Int("port", port).Msg("llama-server started")
	a.publisher.Publish(Event{Name: EventSpawnStart, ModelID: spec.ModelPath, Fields: map[string]any{"pid": p.pid, "port": port}})

	if err := p.waitReady(ctx, a.readyTimeout); err != nil {
		_ = p.Close()
		return nil, err
	}
	a.log.Info().Str("event", EventSpawnReady).Int("pid", p.pid).Str("url", baseURL).Msg("llama-server ready")
	a.publisher.Publish(Event{Name: EventSpawnReady, ModelID: spec.ModelPath, Fields: map[string]any{"pid": p.pid, "url": baseURL}})
	return p, nil
}

// llamaProcess is the Handle for one running llama-server.
type llamaProcess struct {
	a       *llamaSubprocessAdapter
	cmd     *exec.Cmd
	baseURL string
	pid     int
	model   string
	stderr  *tailBuffer

	exited  chan struct{}
	waitErr error

	closeOnce sync.Once
}

// waitReady polls /health until it answers 200, the process exits, ctx is
// done, or the timeout expires.
func (p *llamaProcess) waitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-p.exited:
			p.a.publisher.Publish(Event{Name: EventSpawnExit, ModelID: p.model, Fields: map[string]any{"pid": p.pid, "before_ready": true}})
			if p.waitErr != nil {
				return fmt.Errorf("llama-server exited early: %v; stderr tail: %s", p.waitErr, p.stderr.String())
			}
			return fmt.Errorf("llama-server exited before ready; stderr tail: %s", p.stderr.String())
		case <-deadline.C:
			return fmt.Errorf("llama-server not ready after %s: %s", timeout, p.baseURL)
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if p.healthy(ctx) {
				return nil
			}
		}
	}
}

func (p *llamaProcess) healthy(ctx context.Context) bool {
	hctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(hctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (p *llamaProcess) Generate(ctx context.Context, req GenerateRequest, onToken func(string) error) (FinalResult, error) {
	select {
	case <-p.exited:
		return FinalResult{}, fmt.Errorf("llama-server (pid %d) is not running; stderr tail: %s", p.pid, p.stderr.String())
	default:
	}
	body, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return FinalResult{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return FinalResult{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "text/event-stream")
	resp, err := p.a.httpClient.Do(hreq)
	if err != nil {
		return FinalResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return FinalResult{}, fmt.Errorf("llama server http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return readChatStream(resp.Body, onToken)
}

// Alive is false once the process has exited, whatever the cause.
func (p *llamaProcess) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Close stops the process: SIGTERM first, then kill after the grace period.
func (p *llamaProcess) Close() error {
	p.closeOnce.Do(func() {
		select {
		case <-p.exited:
			return
		default:
		}
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-p.exited:
		case <-time.After(p.a.stopGrace):
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
		p.a.log.Info().Str("event", EventSpawnStop).Int("pid", p.pid).Msg("llama-server stopped")
		p.a.publisher.Publish(Event{Name: EventSpawnStop, ModelID: p.model, Fields: map[string]any{"pid": p.pid}})
	})
	return nil
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.New("unexpected listener address: " + l.Addr().String())
	}
	return addr.Port, nil
}

// tailBuffer keeps the last max bytes written to it. Safe for concurrent use.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, b...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(b), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
