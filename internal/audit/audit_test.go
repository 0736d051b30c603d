package audit

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/kuksa/vssbroker/internal/core/db"
)

// openTestQueries builds a throwaway sqlite-backed *db.Queries, migrated
// with the audit_log schema, for Recorder/Querier round-trip tests.
func openTestQueries(t *testing.T) *db.Queries {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	database, err := db.Open("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.MigrateUp(database); err != nil {
		t.Fatalf("db.MigrateUp: %v", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		t.Fatalf("db.LoadQueries: %v", err)
	}
	return queries
}

func TestRecorderRecordThenQuerierRecent(t *testing.T) {
	queries := openTestQueries(t)
	recorder := NewRecorder(queries, zaptest.NewLogger(t))
	querier := NewQuerier(queries)

	recorder.Record(context.Background(), Record{
		ConnectionID: "conn-1",
		Action:       "get",
		Path:         "Vehicle.Speed",
		RequestID:    "1",
		Outcome:      "ok",
	})
	recorder.Record(context.Background(), Record{
		ConnectionID: "conn-1",
		Action:       "set",
		Path:         "Vehicle.Speed",
		RequestID:    "2",
		Outcome:      "error",
		ErrorReason:  "no_access",
	})

	recent, err := querier.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].RequestID != "2" {
		t.Fatalf("expected most recent record first, got requestId %q", recent[0].RequestID)
	}
	if recent[0].Outcome != "error" || recent[0].ErrorReason != "no_access" {
		t.Fatalf("unexpected outcome/reason for newest record: %+v", recent[0])
	}
	if recent[0].ID == "" || recent[0].CreatedAt.IsZero() {
		t.Fatal("expected Recorder to auto-fill ID and CreatedAt")
	}
}

func TestQuerierRecentForConnectionFiltersByConnection(t *testing.T) {
	queries := openTestQueries(t)
	recorder := NewRecorder(queries, zaptest.NewLogger(t))
	querier := NewQuerier(queries)

	recorder.Record(context.Background(), Record{ConnectionID: "conn-a", Action: "get", RequestID: "1", Outcome: "ok"})
	recorder.Record(context.Background(), Record{ConnectionID: "conn-b", Action: "get", RequestID: "2", Outcome: "ok"})

	records, err := querier.RecentForConnection("conn-a", 10)
	if err != nil {
		t.Fatalf("RecentForConnection: %v", err)
	}
	if len(records) != 1 || records[0].ConnectionID != "conn-a" {
		t.Fatalf("expected exactly one record for conn-a, got %+v", records)
	}
}

func TestNilRecorderAndQuerierAreNoops(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), Record{Action: "get", RequestID: "1"}) // must not panic

	var querier *Querier
	records, err := querier.Recent(10)
	if err != nil || records != nil {
		t.Fatalf("expected nil Querier to return (nil, nil), got (%v, %v)", records, err)
	}
}
