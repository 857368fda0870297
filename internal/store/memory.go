package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/mplswatch/sentinel/internal/models"
)

// MemoryStore implements Store using in-memory maps; used when no
// database is configured, and directly by tests elsewhere in the
// module.
type MemoryStore struct {
	mu       sync.RWMutex
	reports  map[string]models.Report
	clusters map[string]models.Cluster
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:  make(map[string]models.Report),
		clusters: make(map[string]models.Cluster),
	}
}

// PutReport idempotently records r keyed by its dedup key.
func (s *MemoryStore) PutReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.DedupKey] = *r
	return nil
}

// Seen reports whether dedupKey has already been recorded.
func (s *MemoryStore) Seen(dedupKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reports[dedupKey]
	return ok
}

// UpsertCluster idempotently persists c, replacing any prior state.
func (s *MemoryStore) UpsertCluster(_ context.Context, c *models.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	cp.Members = append([]models.Report(nil), c.Members...)
	cp.AlertsEmitted = append([]models.AlertRecord(nil), c.AlertsEmitted...)
	s.clusters[c.ID] = cp
	return nil
}

// MarkAlert appends record to clusterID's alerts_emitted history.
func (s *MemoryStore) MarkAlert(_ context.Context, clusterID string, record models.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, ok := s.clusters[clusterID]
	if !ok {
		return fmt.Errorf("mark alert: cluster %s not found", clusterID)
	}
	cl.AlertsEmitted = append(cl.AlertsEmitted, record)
	s.clusters[clusterID] = cl
	return nil
}

// RestoreActiveClusters returns every ACTIVE cluster.
func (s *MemoryStore) RestoreActiveClusters(_ context.Context) ([]*models.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Cluster
	for _, cl := range s.clusters {
		if cl.State != models.ClusterActive {
			continue
		}
		cp := cl
		out = append(out, &cp)
	}
	return out, nil
}

// Health always returns nil for the in-memory store.
func (s *MemoryStore) Health(_ context.Context) error {
	return nil
}
