// Package notifier dispatches NEW/UPDATE alerts for corroborated
// clusters to a chat webhook, enforcing invariant I3 (exactly one NEW
// per cluster, preceding any UPDATE) at the dispatch boundary through
// its upgrade/downgrade rule. Each alert record carries the cluster's
// member count at emission (I4's member_count_at_emit); Dispatch does
// not check that this count exceeds the previous alert's.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	sentinelerrors "github.com/mplswatch/sentinel/internal/errors"
	"github.com/mplswatch/sentinel/internal/logger"
	"github.com/mplswatch/sentinel/internal/metrics"
	"github.com/mplswatch/sentinel/internal/models"
)

// Config controls retry and timeout behavior for webhook dispatch.
type Config struct {
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	MaxAttempts     int
	DispatchTimeout time.Duration
}

// DefaultConfig returns the retry parameters the spec names verbatim:
// base 2s, cap 60s, max 5 attempts, 10s per-attempt timeout.
func DefaultConfig() Config {
	return Config{
		BaseDelay:       2 * time.Second,
		MaxDelay:        60 * time.Second,
		MaxAttempts:     5,
		DispatchTimeout: 10 * time.Second,
	}
}

// Message is the wire-agnostic shape of a single alert dispatch.
type Message struct {
	IdempotencyToken string
	ClusterID        string
	Kind             models.AlertKind
	Label            string
	CentroidLat      float64
	CentroidLon      float64
	SourceDiversity  int
	MemberCount      int
	Confidence       float64
	FirstSeen        time.Time
	LastUpdated      time.Time
}

// Sink delivers a Message. Implementations classify failures by
// returning an errors.NotifierTransientError or
// errors.NotifierPermanentError value; any other error is treated as
// transient.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Persister records a cluster's alert history durably. It is the slice
// of the Store's `mark_alert` operation the Notifier needs; it does not
// own clusters, only their alerts_emitted trail.
type Persister interface {
	MarkAlert(ctx context.Context, clusterID string, record models.AlertRecord) error
}

// Notifier consumes (cluster, kind) emission candidates from the
// Correlator and dispatches them idempotently.
type Notifier struct {
	sink   Sink
	store  Persister
	cfg    Config
	dryRun bool
	now    func() time.Time
}

// New returns a Notifier dispatching through sink and recording
// successful dispatches through store. When dryRun is true, sink is
// expected to be a LogSink and store writes are skipped entirely —
// emissions are recorded in-memory only, for testing.
func New(sink Sink, store Persister, cfg Config, dryRun bool) *Notifier {
	return &Notifier{sink: sink, store: store, cfg: cfg, dryRun: dryRun, now: time.Now}
}

// Dispatch sends the alert for cluster at the requested kind, applying
// the upgrade/downgrade rule before dispatch and, on success, appending
// the resulting AlertRecord to the cluster in memory and (unless
// dry-run) persisting it via the Store. It returns the effective kind
// actually dispatched.
func (n *Notifier) Dispatch(ctx context.Context, cl *models.Cluster, kind models.AlertKind) (models.AlertKind, error) {
	effective := n.resolveKind(cl, kind)

	seq := cl.NextSequenceNumber()
	msg := Message{
		IdempotencyToken: fmt.Sprintf("%s/%d", cl.ID, seq),
		ClusterID:        cl.ID,
		Kind:             effective,
		Label:            cl.Label,
		CentroidLat:      cl.CentroidLat,
		CentroidLon:      cl.CentroidLon,
		SourceDiversity:  cl.SourceDiversity(),
		MemberCount:      len(cl.Members),
		Confidence:       cl.Confidence,
		FirstSeen:        cl.FirstSeen,
		LastUpdated:      cl.LastUpdated,
	}

	err := n.dispatchWithRetry(ctx, msg)
	if err != nil {
		var permanent sentinelerrors.NotifierPermanentError
		if errors.As(err, &permanent) {
			logger.Error("notifier dispatch permanently failed, alerts_emitted left unchanged",
				"cluster_id", cl.ID, "kind", effective, "error", err)
			metrics.RecordAlertProcessed("notifier", "permanent_failure")
			return effective, nil
		}
		logger.Error("notifier dispatch exhausted retries",
			"cluster_id", cl.ID, "kind", effective, "error", err)
		metrics.RecordAlertProcessed("notifier", "transient_failure")
		return effective, err
	}

	record := models.AlertRecord{
		Kind:           effective,
		Timestamp:      n.now().UTC(),
		MemberCountAt:  len(cl.Members),
		SequenceNumber: seq,
	}
	cl.AlertsEmitted = append(cl.AlertsEmitted, record)

	if !n.dryRun {
		if err := n.store.MarkAlert(ctx, cl.ID, record); err != nil {
			return effective, sentinelerrors.StoreError{Operation: "mark alert", Err: err}
		}
	}

	metrics.RecordAlertProcessed("notifier", "dispatched")
	return effective, nil
}

// resolveKind applies the spec's upgrade/downgrade rule: a NEW request
// downgrades to UPDATE if a NEW was already recorded; an UPDATE request
// upgrades to NEW if none has been recorded yet.
func (n *Notifier) resolveKind(cl *models.Cluster, kind models.AlertKind) models.AlertKind {
	hasNew := cl.LastNew() != nil
	switch {
	case kind == models.AlertNew && hasNew:
		return models.AlertUpdate
	case kind == models.AlertUpdate && !hasNew:
		return models.AlertNew
	default:
		return kind
	}
}
