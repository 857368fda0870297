package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mplswatch/sentinel/internal/models"
)

// PostgresStore implements Store against the logical schema spec.md §6
// names: reports, clusters, cluster_members.
type PostgresStore struct {
	db Database
}

// NewPostgresStore returns a PostgresStore executing through db.
func NewPostgresStore(db Database) *PostgresStore {
	return &PostgresStore{db: db}
}

// PutReport idempotently upserts r by dedup key.
func (s *PostgresStore) PutReport(ctx context.Context, r *models.Report) error {
	coordsJSON, err := marshalCoords(r.Coords)
	if err != nil {
		return fmt.Errorf("marshal coords: %w", err)
	}

	query := `
		INSERT INTO reports (
			dedup_key, source, source_kind, trust, obs_ts, ingest_ts,
			content, url, author, coords_json, verdict, cluster_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, '')::jsonb, $11, NULLIF($12, ''))
		ON CONFLICT (dedup_key) DO UPDATE SET
			verdict = EXCLUDED.verdict,
			cluster_id = EXCLUDED.cluster_id
	`
	err = s.db.Exec(ctx, query,
		r.DedupKey, r.Source, r.SourceKind, r.Trust, r.ObservationTS, r.IngestTS,
		r.Content, r.URL, r.Author, coordsJSON, r.Verdict, r.ClusterID,
	)
	if err != nil {
		return fmt.Errorf("put report %s: %w", r.DedupKey, err)
	}
	return nil
}

// Seen checks reports for dedupKey. It has no ctx/error in its
// signature (see Store.Seen's doc); a lookup failure is treated as
// "not seen" here without being logged, the fail-open policy
// Store.Seen describes.
func (s *PostgresStore) Seen(dedupKey string) bool {
	ctx := context.Background()
	rowInterface := s.db.QueryRow(ctx, `SELECT 1 FROM reports WHERE dedup_key = $1`, dedupKey)
	row, ok := rowInterface.(pgx.Row)
	if !ok {
		return false
	}
	var one int
	if err := row.Scan(&one); err != nil {
		return false
	}
	return true
}

// UpsertCluster persists c's row and replaces its cluster_members rows.
// The Database interface has no transaction primitive (matching the
// teacher's own internal/database abstraction), so this is two
// statements rather than one atomic commit; a crash between them can at
// worst leave stale member rows for a cluster whose row was already
// updated, which RestoreActiveClusters tolerates by re-deriving
// everything from the cluster row plus whatever member rows exist.
func (s *PostgresStore) UpsertCluster(ctx context.Context, c *models.Cluster) error {
	alertsJSON, err := json.Marshal(c.AlertsEmitted)
	if err != nil {
		return fmt.Errorf("marshal alerts_emitted: %w", err)
	}

	upsertCluster := `
		INSERT INTO clusters (
			id, state, first_seen, last_updated, centroid_lat, centroid_lon,
			label, confidence, alerts_emitted_json
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			last_updated = EXCLUDED.last_updated,
			centroid_lat = EXCLUDED.centroid_lat,
			centroid_lon = EXCLUDED.centroid_lon,
			label = EXCLUDED.label,
			confidence = EXCLUDED.confidence,
			alerts_emitted_json = EXCLUDED.alerts_emitted_json
	`
	if err := s.db.Exec(ctx, upsertCluster,
		c.ID, c.State, c.FirstSeen, c.LastUpdated, c.CentroidLat, c.CentroidLon,
		c.Label, c.Confidence, string(alertsJSON),
	); err != nil {
		return fmt.Errorf("upsert cluster %s: %w", c.ID, err)
	}

	if err := s.db.Exec(ctx, `DELETE FROM cluster_members WHERE cluster_id = $1`, c.ID); err != nil {
		return fmt.Errorf("clear cluster_members for %s: %w", c.ID, err)
	}
	for i, m := range c.Members {
		if err := s.db.Exec(ctx,
			`INSERT INTO cluster_members (cluster_id, dedup_key, position) VALUES ($1, $2, $3)`,
			c.ID, m.DedupKey, i,
		); err != nil {
			return fmt.Errorf("insert cluster_member %s/%s: %w", c.ID, m.DedupKey, err)
		}
	}
	return nil
}

// MarkAlert appends record to clusterID's alerts_emitted array in
// place, using jsonb concatenation rather than a read-modify-write
// round trip.
func (s *PostgresStore) MarkAlert(ctx context.Context, clusterID string, record models.AlertRecord) error {
	recordJSON, err := json.Marshal([]models.AlertRecord{record})
	if err != nil {
		return fmt.Errorf("marshal alert record: %w", err)
	}
	query := `
		UPDATE clusters
		SET alerts_emitted_json = COALESCE(alerts_emitted_json, '[]'::jsonb) || $2::jsonb
		WHERE id = $1
	`
	if err := s.db.Exec(ctx, query, clusterID, string(recordJSON)); err != nil {
		return fmt.Errorf("mark alert for cluster %s: %w", clusterID, err)
	}
	return nil
}

// RestoreActiveClusters reconstructs every ACTIVE cluster with its
// members, for the Correlator's warm restart.
func (s *PostgresStore) RestoreActiveClusters(ctx context.Context) ([]*models.Cluster, error) {
	rowsInterface, err := s.db.Query(ctx, `
		SELECT id, state, first_seen, last_updated, centroid_lat, centroid_lon,
		       label, confidence, alerts_emitted_json
		FROM clusters WHERE state = $1
	`, models.ClusterActive)
	if err != nil {
		return nil, fmt.Errorf("query active clusters: %w", err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var clusters []*models.Cluster
	for rows.Next() {
		var c models.Cluster
		var alertsJSON []byte
		if err := rows.Scan(&c.ID, &c.State, &c.FirstSeen, &c.LastUpdated,
			&c.CentroidLat, &c.CentroidLon, &c.Label, &c.Confidence, &alertsJSON); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		if len(alertsJSON) > 0 {
			if err := json.Unmarshal(alertsJSON, &c.AlertsEmitted); err != nil {
				return nil, fmt.Errorf("unmarshal alerts_emitted for %s: %w", c.ID, err)
			}
		}
		members, err := s.loadMembers(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Members = members
		clusters = append(clusters, &c)
	}
	return clusters, nil
}

func (s *PostgresStore) loadMembers(ctx context.Context, clusterID string) ([]models.Report, error) {
	rowsInterface, err := s.db.Query(ctx, `
		SELECT r.dedup_key, r.source, r.source_kind, r.trust, r.obs_ts, r.ingest_ts,
		       r.content, r.url, r.author, r.coords_json, r.verdict, r.cluster_id
		FROM cluster_members cm
		JOIN reports r ON r.dedup_key = cm.dedup_key
		WHERE cm.cluster_id = $1
		ORDER BY cm.position ASC
	`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster_members for %s: %w", clusterID, err)
	}
	rows, ok := rowsInterface.(pgx.Rows)
	if !ok {
		return nil, fmt.Errorf("invalid rows type")
	}
	defer rows.Close()

	var members []models.Report
	for rows.Next() {
		var r models.Report
		var coordsJSON []byte
		var clusterIDCol *string
		if err := rows.Scan(&r.DedupKey, &r.Source, &r.SourceKind, &r.Trust, &r.ObservationTS,
			&r.IngestTS, &r.Content, &r.URL, &r.Author, &coordsJSON, &r.Verdict, &clusterIDCol); err != nil {
			return nil, fmt.Errorf("scan cluster_member: %w", err)
		}
		if clusterIDCol != nil {
			r.ClusterID = *clusterIDCol
		}
		if len(coordsJSON) > 0 {
			var loc models.Location
			if err := json.Unmarshal(coordsJSON, &loc); err != nil {
				return nil, fmt.Errorf("unmarshal coords for %s: %w", r.DedupKey, err)
			}
			r.Coords = &loc
		}
		members = append(members, r)
	}
	return members, nil
}

// Health checks the backing database connection.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func marshalCoords(loc *models.Location) (string, error) {
	if loc == nil {
		return "", nil
	}
	b, err := json.Marshal(loc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
