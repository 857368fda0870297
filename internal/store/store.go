// Package store implements durable persistence for reports, clusters,
// and alert-sent markers (spec.md §4.7), plus a Redis-backed dedup
// accelerator in front of either backend.
package store

import (
	"context"

	"github.com/mplswatch/sentinel/internal/models"
)

// Store is the durable state surface the Filter (dedup), Correlator
// (cluster upsert/restore), and Notifier (alert marking) stages depend
// on. Each write is idempotent: PutReport and UpsertCluster key off the
// caller-supplied id, so re-processing the same report or cluster twice
// is safe.
type Store interface {
	// PutReport idempotently records a report keyed by its dedup key.
	PutReport(ctx context.Context, r *models.Report) error
	// Seen reports whether dedupKey has already been recorded. It takes
	// no context and returns no error because the Filter stage that
	// calls it is specified as a pure function; implementations that
	// talk to a remote backend fail open (treat a lookup error as "not
	// seen") rather than block or crash the pipeline.
	Seen(dedupKey string) bool
	// UpsertCluster idempotently persists a cluster's full state,
	// including its ordered member list and alerts_emitted history.
	UpsertCluster(ctx context.Context, c *models.Cluster) error
	// MarkAlert appends an AlertRecord to a cluster's alerts_emitted
	// history. Used by the Notifier after a successful dispatch.
	MarkAlert(ctx context.Context, clusterID string, record models.AlertRecord) error
	// RestoreActiveClusters returns every ACTIVE cluster, for the
	// Correlator to warm-start from on process startup.
	RestoreActiveClusters(ctx context.Context) ([]*models.Cluster, error)
	Health(ctx context.Context) error
}

// Database is the narrow SQL-execution surface PostgresStore depends
// on, kept from the teacher's internal/database package so the store
// layer never imports pgx directly.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (interface{}, error)
	QueryRow(ctx context.Context, sql string, args ...any) interface{}
	Health(ctx context.Context) error
	IsConfigured() bool
}

// New returns a PostgresStore backed by db if configured, otherwise an
// in-process MemoryStore.
func New(db Database) Store {
	if db.IsConfigured() {
		return NewPostgresStore(db)
	}
	return NewMemoryStore()
}
