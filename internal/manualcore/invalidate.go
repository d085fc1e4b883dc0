package manualcore

import (
	"context"
	"errors"
	"os"

	"github.com/yo-mi2027/manualdex/internal/apperrors"
)

// Invalidate is the admin operation: it drops a manual's index entry,
// evicts every cache entry keyed under that manual's current fingerprint,
// and clears its trace-store entries.
func (p *Pipeline) Invalidate(ctx context.Context, manualID string) *apperrors.Error {
	if manualID == "" || manualID == ReservedManualID {
		return apperrors.New(apperrors.InvalidParameter, "manual_id must be a non-reserved, non-empty id")
	}

	idx, err := p.idxMgr.Get(ctx, manualID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NotFoundManual(manualID)
		}
		return apperrors.Newf(apperrors.InvalidScope, "failed to read manual", map[string]any{"manual_id": manualID, "error": err.Error()})
	}

	p.idxMgr.Invalidate(manualID)
	p.cache.EvictFingerprint(idx.Fingerprint)
	p.traces.EvictManual(manualID)
	return nil
}
