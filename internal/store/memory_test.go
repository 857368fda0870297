package store

import (
	"context"
	"testing"
	"time"

	"github.com/mplswatch/sentinel/internal/models"
)

func TestMemoryStorePutReportAndSeen(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if s.Seen("community-platform:1") {
		t.Fatal("expected unseen before PutReport")
	}

	r := &models.Report{DedupKey: "community-platform:1", Source: "community-platform", Content: "ICE raid"}
	if err := s.PutReport(ctx, r); err != nil {
		t.Fatalf("PutReport() error = %v", err)
	}
	if !s.Seen("community-platform:1") {
		t.Fatal("expected seen after PutReport")
	}

	// idempotent re-put
	if err := s.PutReport(ctx, r); err != nil {
		t.Fatalf("second PutReport() error = %v", err)
	}
	if len(s.reports) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(s.reports))
	}
}

func TestMemoryStoreUpsertClusterAndRestoreActive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	active := &models.Cluster{ID: "c1", State: models.ClusterActive, FirstSeen: time.Now()}
	expired := &models.Cluster{ID: "c2", State: models.ClusterExpired, FirstSeen: time.Now()}

	if err := s.UpsertCluster(ctx, active); err != nil {
		t.Fatalf("UpsertCluster(active) error = %v", err)
	}
	if err := s.UpsertCluster(ctx, expired); err != nil {
		t.Fatalf("UpsertCluster(expired) error = %v", err)
	}

	restored, err := s.RestoreActiveClusters(ctx)
	if err != nil {
		t.Fatalf("RestoreActiveClusters() error = %v", err)
	}
	if len(restored) != 1 || restored[0].ID != "c1" {
		t.Fatalf("expected only c1 restored, got %+v", restored)
	}
}

func TestMemoryStoreUpsertClusterIsIndependentCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c := &models.Cluster{ID: "c1", State: models.ClusterActive, Members: []models.Report{{DedupKey: "a"}}}
	if err := s.UpsertCluster(ctx, c); err != nil {
		t.Fatalf("UpsertCluster() error = %v", err)
	}
	c.Members[0].DedupKey = "mutated"

	restored, _ := s.RestoreActiveClusters(ctx)
	if restored[0].Members[0].DedupKey != "a" {
		t.Fatalf("expected stored cluster to be unaffected by caller mutation, got %q", restored[0].Members[0].DedupKey)
	}
}

func TestMemoryStoreMarkAlert(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c := &models.Cluster{ID: "c1", State: models.ClusterActive}
	if err := s.UpsertCluster(ctx, c); err != nil {
		t.Fatalf("UpsertCluster() error = %v", err)
	}

	record := models.AlertRecord{Kind: models.AlertNew, MemberCountAt: 1, SequenceNumber: 1}
	if err := s.MarkAlert(ctx, "c1", record); err != nil {
		t.Fatalf("MarkAlert() error = %v", err)
	}

	restored, _ := s.RestoreActiveClusters(ctx)
	if len(restored[0].AlertsEmitted) != 1 {
		t.Fatalf("expected 1 alert record, got %d", len(restored[0].AlertsEmitted))
	}
}

func TestMemoryStoreMarkAlertUnknownCluster(t *testing.T) {
	s := NewMemoryStore()
	err := s.MarkAlert(context.Background(), "missing", models.AlertRecord{})
	if err == nil {
		t.Fatal("expected error for unknown cluster")
	}
}

func TestMemoryStoreHealth(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Health(context.Background()); err != nil {
		t.Fatalf("Health() error = %v", err)
	}
}
