// Package audit records a per-request outcome row for every action the
// Request Processor handles, so an operator can reconstruct "who changed
// what, and did it succeed" after the fact (SPEC_FULL.md §3a, audit trail).
//
// A nil *Recorder is a valid, no-op recorder: audit persistence is an
// operational nicety, not a correctness requirement for the broker's core
// get/set/subscribe semantics, so callers never need a presence check.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kuksa/vssbroker/internal/core/db"
	"github.com/kuksa/vssbroker/internal/types"
)

// Record is one outcome row: one request in, one row out, regardless of how
// many leaves a wildcard get/set touched.
type Record struct {
	ID           types.AuditID
	ConnectionID string
	Action       string
	Path         string
	RequestID    string
	Outcome      string
	ErrorReason  string
	CreatedAt    time.Time
}

// Recorder writes Records to the audit_log table via the shared dotsql
// query set. Grounded on the teacher's per-item dual-write: there the
// write went to both the database and a JSONL debug file; a signal broker
// has no JSONL consumer, so the database is the sole sink.
type Recorder struct {
	queries *db.Queries
	logger  *zap.Logger
}

// NewRecorder builds a Recorder. Pass a nil *db.Queries to get a Recorder
// whose Record calls are silent no-ops (e.g. when no audit DB is configured).
func NewRecorder(queries *db.Queries, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{queries: queries, logger: logger}
}

// Record persists one outcome row. Failures are logged, not returned: a
// broken audit sink must never fail the request it is merely recording.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if r == nil || r.queries == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = types.NewAuditID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.queries.Exec("insert-audit-record",
		string(rec.ID),
		rec.ConnectionID,
		rec.Action,
		rec.Path,
		rec.RequestID,
		rec.Outcome,
		rec.ErrorReason,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Warn("audit record write failed",
			zap.String("action", rec.Action),
			zap.String("request_id", rec.RequestID),
			zap.Error(err),
		)
	}
}
