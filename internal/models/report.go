// Package models holds the canonical in-memory types shared across the
// ingest, filter, extract, correlate, and notify stages.
package models

import "time"

// TrustTier is the coarse source-level priority governing single-source
// alerting: HIGH trust sources may mint a NEW alert off a single report,
// NORMAL trust sources require corroboration from a second source.
type TrustTier string

const (
	TrustHigh   TrustTier = "HIGH"
	TrustNormal TrustTier = "NORMAL"
)

// Verdict is the outcome of the filter stage for a single report.
type Verdict string

const (
	VerdictPending             Verdict = ""
	VerdictRelevant            Verdict = "RELEVANT"
	VerdictRejectedStale       Verdict = "REJECTED_STALE"
	VerdictRejectedIrrelevant  Verdict = "REJECTED_IRRELEVANT"
	VerdictRejectedNews        Verdict = "REJECTED_NEWS"
	VerdictRejectedOutOfRegion Verdict = "REJECTED_OUT_OF_REGION"
)

// Location is a single resolved place candidate for a report, with a
// confidence reflecting how it was derived (pre-resolved coordinates,
// gazetteer match, or coarse city-level fallback).
type Location struct {
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Confidence float64 `json:"confidence"`
}

// Report is a single observation from one source at one timestamp.
// Reports are mutated only by the filter/extract pipeline; once a verdict
// and locations are set and the report is handed to the Correlator, it is
// treated as immutable.
type Report struct {
	DedupKey       string     `json:"dedup_key" db:"dedup_key"`
	Source         string     `json:"source" db:"source"`
	SourceKind     string     `json:"source_kind" db:"source_kind"`
	Trust          TrustTier  `json:"trust" db:"trust"`
	ObservationTS  time.Time  `json:"obs_ts" db:"obs_ts"`
	IngestTS       time.Time  `json:"ingest_ts" db:"ingest_ts"`
	Content        string     `json:"content" db:"content"`
	Author         string     `json:"author,omitempty" db:"author"`
	URL            string     `json:"url,omitempty" db:"url"`
	Coords         *Location  `json:"coords,omitempty" db:"coords_json"`
	Locations      []Location `json:"locations,omitempty"`
	Verdict        Verdict    `json:"verdict" db:"verdict"`
	ClusterID      string     `json:"cluster_id,omitempty" db:"cluster_id"`
}

// DedupKeyFor builds the stable deduplication key spec.md §3 requires:
// source name + source-local id.
func DedupKeyFor(source, localID string) string {
	return source + ":" + localID
}

// BestLocation returns the highest-confidence location, or nil if the
// report has none (spec.md §4.4 step 5 — the Correlator then treats it as
// geographically non-matching by proximity).
func (r *Report) BestLocation() *Location {
	if len(r.Locations) == 0 {
		return nil
	}
	best := r.Locations[0]
	for _, l := range r.Locations[1:] {
		if l.Confidence > best.Confidence {
			best = l
		}
	}
	return &best
}
