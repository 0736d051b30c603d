package audit

import (
	"fmt"
	"time"

	"github.com/kuksa/vssbroker/internal/core/db"
	"github.com/kuksa/vssbroker/internal/types"
)

// row mirrors the audit_log table layout for sqlx's struct scan.
type row struct {
	ID           string    `db:"id"`
	ConnectionID string    `db:"connection_id"`
	Action       string    `db:"action"`
	Path         string    `db:"path"`
	RequestID    string    `db:"request_id"`
	Outcome      string    `db:"outcome"`
	ErrorReason  string    `db:"error_reason"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r row) toRecord() Record {
	return Record{
		ID:           types.AuditID(r.ID),
		ConnectionID: r.ConnectionID,
		Action:       r.Action,
		Path:         r.Path,
		RequestID:    r.RequestID,
		Outcome:      r.Outcome,
		ErrorReason:  r.ErrorReason,
		CreatedAt:    r.CreatedAt,
	}
}

// Querier reads audit_log for operator inspection. Grounded on the teacher's
// scan-to-struct query helper (internal/core/api/sync_rules.go), generalized
// from a single ETag-keyed lookup to a most-recent-first page.
type Querier struct {
	queries *db.Queries
}

// NewQuerier builds a Querier. A nil *db.Queries yields a Querier whose
// methods return an empty result set rather than panicking.
func NewQuerier(queries *db.Queries) *Querier {
	return &Querier{queries: queries}
}

// Recent returns the most recent limit audit records across all connections,
// newest first.
func (q *Querier) Recent(limit int) ([]Record, error) {
	if q == nil || q.queries == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []row
	if err := q.queries.Select("recent-audit-records", &rows, limit); err != nil {
		return nil, fmt.Errorf("query recent audit records: %w", err)
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = r.toRecord()
	}
	return records, nil
}

// RecentForConnection returns the most recent limit audit records for a
// single connection, newest first.
func (q *Querier) RecentForConnection(connectionID string, limit int) ([]Record, error) {
	if q == nil || q.queries == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	var rows []row
	if err := q.queries.Select("recent-audit-records-for-connection", &rows, connectionID, limit); err != nil {
		return nil, fmt.Errorf("query recent audit records for connection %s: %w", connectionID, err)
	}
	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = r.toRecord()
	}
	return records, nil
}
