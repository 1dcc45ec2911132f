package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/secondary"
)

const defaultPreviewReadyTimeout = 60 * time.Second

// PreviewManager starts the configured preview server for a run and polls
// it for readiness. Whether a non-ready preview fails the run is decided
// by the engine at report time; the manager only observes.
type PreviewManager struct {
	host    secondary.PreviewHost
	emitter *Emitter
	client  *http.Client

	ready atomic.Bool
}

// NewPreviewManager creates a preview manager over the host.
func NewPreviewManager(host secondary.PreviewHost, emitter *Emitter) *PreviewManager {
	return &PreviewManager{
		host:    host,
		emitter: emitter,
		client:  &http.Client{Timeout: 2 * time.Second},
	}
}

// Start launches the preview and polls its URL until it answers or the
// ready timeout lapses. A preview that never answers is not an error
// here; Ready just stays false.
func (p *PreviewManager) Start(ctx context.Context, runID string, cfg models.PreviewConfig) error {
	if err := p.host.Start(ctx, runID, cfg); err != nil {
		return fmt.Errorf("failed to start preview: %w", err)
	}
	p.emitter.Emit(ctx, runID, models.EventPreviewStarted, map[string]any{
		"command": cfg.Command,
		"url":     cfg.URL,
	})

	timeout := defaultPreviewReadyTimeout
	if cfg.ReadyTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.ReadyTimeoutSeconds) * time.Second
	}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return nil
		}
		if p.probe(ctx, cfg.URL) {
			p.ready.Store(true)
			p.emitter.Emit(ctx, runID, models.EventPreviewReady, map[string]any{"url": cfg.URL})
			return nil
		}
		time.Sleep(time.Second)
	}
	return nil
}

// Ready reports whether the preview was observed answering its URL.
func (p *PreviewManager) Ready() bool {
	return p.ready.Load()
}

// Stop tears the preview down. Best-effort.
func (p *PreviewManager) Stop(ctx context.Context, runID string) {
	if err := p.host.Stop(ctx, runID); err != nil {
		p.emitter.Emit(ctx, runID, models.EventRunWarning, map[string]any{
			"message": "failed to stop preview: " + err.Error(),
		})
		return
	}
	p.emitter.Emit(ctx, runID, models.EventPreviewStopped, nil)
}

func (p *PreviewManager) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
