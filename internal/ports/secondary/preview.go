package secondary

import (
	"context"

	"github.com/example/ocswarm/internal/models"
)

// PreviewHost runs the configured preview-server command for the run's
// lifetime. Readiness polling is the caller's concern; the host only
// manages the process.
type PreviewHost interface {
	// Start launches the preview command in a dedicated session.
	Start(ctx context.Context, runID string, cfg models.PreviewConfig) error

	// Stop tears the session down. Best-effort.
	Stop(ctx context.Context, runID string) error
}
