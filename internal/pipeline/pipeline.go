// Package pipeline implements the single pipeline task that drains the
// Scheduler's fan-in queue and threads each report through filter,
// extraction, correlation, and notification. Grounded on the teacher's
// Pipeline (internal/pipeline/pipeline.go): same constructor-injection
// shape and the same Run(ctx) error-returning loop, but generalized
// from a fetch/classify/geocode/store chain driven by the Pipeline
// itself to a filter/extract/correlate/notify chain driven off reports
// the Scheduler already fetched, matching the correlator package's own
// stated assumption that a single pipeline task drains reports
// sequentially.
package pipeline

import (
	"context"

	"github.com/mplswatch/sentinel/internal/correlator"
	"github.com/mplswatch/sentinel/internal/extractor"
	"github.com/mplswatch/sentinel/internal/filter"
	"github.com/mplswatch/sentinel/internal/logger"
	"github.com/mplswatch/sentinel/internal/metrics"
	"github.com/mplswatch/sentinel/internal/models"
	"github.com/mplswatch/sentinel/internal/notifier"
)

// Store is the subset of store.Store the pipeline task writes through
// directly; it is narrower than store.Store because cluster upserts
// and alert marking are owned by the Correlator and Notifier
// respectively.
type Store interface {
	PutReport(ctx context.Context, r *models.Report) error
	Seen(dedupKey string) bool
}

// Pipeline drains a single reports channel and runs every report
// through the filter, extractor, correlator, and notifier stages in
// order. It holds no concurrency of its own: spec.md §5 requires
// reports to be processed sequentially so the Correlator's in-memory
// active-cluster set never needs locking.
type Pipeline struct {
	reports    <-chan models.Report
	store      Store
	filter     *filter.Filter
	extractor  *extractor.Extractor
	correlator *correlator.Correlator
	notifier   *notifier.Notifier
}

// New builds a Pipeline draining reports through the given stages.
func New(reports <-chan models.Report, store Store, f *filter.Filter, e *extractor.Extractor, c *correlator.Correlator, n *notifier.Notifier) *Pipeline {
	return &Pipeline{
		reports:    reports,
		store:      store,
		filter:     f,
		extractor:  e,
		correlator: c,
		notifier:   n,
	}
}

// Run drains reports until the channel closes or ctx is cancelled,
// processing each report to completion before pulling the next.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case r, ok := <-p.reports:
			if !ok {
				logger.Info("pipeline task stopping, reports channel closed")
				return nil
			}
			p.process(ctx, &r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// process runs a single report through the filter, extract, correlate,
// and notify stages, logging and recording metrics at each terminal
// outcome rather than returning an error: one bad report must never
// stop the pipeline task from draining the rest of the queue.
func (p *Pipeline) process(ctx context.Context, r *models.Report) {
	verdict, duplicate := p.filter.Evaluate(r, p.store)
	if duplicate {
		metrics.RecordAlertProcessed(r.Source, "duplicate")
		return
	}
	r.Verdict = verdict

	if verdict != models.VerdictRelevant {
		if err := p.store.PutReport(ctx, r); err != nil {
			logger.Error("failed to persist rejected report", "dedup_key", r.DedupKey, "error", err)
		}
		metrics.RecordAlertProcessed(r.Source, string(verdict))
		return
	}

	p.extractor.Extract(r)

	if err := p.store.PutReport(ctx, r); err != nil {
		logger.Error("failed to persist relevant report", "dedup_key", r.DedupKey, "error", err)
		metrics.RecordAlertProcessed(r.Source, "store_error")
		return
	}

	outcome, err := p.correlator.ProcessReport(ctx, r)
	if err != nil {
		logger.Error("correlator failed to process report", "dedup_key", r.DedupKey, "error", err)
		metrics.RecordAlertProcessed(r.Source, "correlator_error")
		return
	}

	metrics.RecordAlertProcessed(r.Source, "relevant")

	if outcome.AlertKind == "" {
		return
	}
	if _, err := p.notifier.Dispatch(ctx, outcome.Cluster, outcome.AlertKind); err != nil {
		logger.Error("notifier dispatch failed", "cluster_id", outcome.Cluster.ID, "error", err)
	}
}
