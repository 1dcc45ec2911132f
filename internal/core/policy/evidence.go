package policy

import (
	"fmt"

	"github.com/example/ocswarm/internal/models"
)

// GateResult is the advisory outcome of an evidence gate. It never
// discards evidence; it only reports what is still missing.
type GateResult struct {
	Passed       bool
	MissingTypes []string
	Issues       []string
}

// GateEvidence checks produced evidence against required evidence kinds.
// An item only counts toward a required kind when its integrity invariant
// holds (non-empty URI, hash of at least 8 characters); broken items are
// reported as issues and do not satisfy their kind.
func GateEvidence(required []string, items []models.EvidenceItem) GateResult {
	covered := make(map[string]bool, len(items))
	var issues []string

	for _, item := range items {
		if !item.Intact() {
			issues = append(issues, fmt.Sprintf("evidence %s (%s): uri or hash fails integrity check", item.ID, item.Type))
			continue
		}
		covered[item.Type] = true
	}

	var missing []string
	for _, kind := range required {
		if !covered[kind] {
			missing = append(missing, kind)
		}
	}

	return GateResult{
		Passed:       len(missing) == 0,
		MissingTypes: missing,
		Issues:       issues,
	}
}
