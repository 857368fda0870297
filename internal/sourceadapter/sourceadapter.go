// Package sourceadapter defines the Source Adapter contract of spec.md
// §4.1 and its concrete implementations. Grounded on the teacher's
// pipeline.Source interface and RSSSource (internal/pipeline in the
// original SupplyChain tree), generalized from a single RSS-only source
// to the kind/trust/interval/dedup-key contract the spec requires.
package sourceadapter

import (
	"context"
	"time"

	"github.com/mplswatch/sentinel/internal/models"
)

// Kind identifies the category of upstream a source adapter polls.
// The Scheduler treats all kinds uniformly; Kind only governs the
// minimum poll cadence advertised by MinCadence.
type Kind string

const (
	KindCommunityPlatform Kind = "community-platform"
	KindMicroblogFirehose Kind = "microblog-firehose"
	KindPhotoPlatform     Kind = "photo-platform"
	KindSMSWebMap         Kind = "sms-web-map"
	KindNewsRSS           Kind = "news-rss"
)

// MinCadence is the minimum poll interval spec.md §4.1 names per kind.
var MinCadence = map[Kind]time.Duration{
	KindCommunityPlatform: 90 * time.Second,
	KindMicroblogFirehose: 120 * time.Second,
	KindPhotoPlatform:     300 * time.Second,
	KindSMSWebMap:         1800 * time.Second,
	KindNewsRSS:           300 * time.Second,
}

// PollDeadline is the per-adapter poll deadline spec.md §4.1 and §5
// name (default 30s).
const PollDeadline = 30 * time.Second

// SilentAccountThreshold is the age beyond which an account with no new
// observations is considered silent and its reports may be skipped
// (spec.md §4.1's SHOULD, not an invariant).
const SilentAccountThreshold = 90 * 24 * time.Hour

// Adapter is a pluggable upstream integration. Implementations MUST
// populate each Report's DedupKey deterministically and set its trust
// tier; they MUST NOT block past PollDeadline.
type Adapter interface {
	Name() string
	Kind() Kind
	Trust() models.TrustTier
	Interval() time.Duration
	Poll(ctx context.Context) ([]models.Report, error)
}

// SilentAccountChecker reports whether an author has had no observed
// activity within SilentAccountThreshold, letting adapters apply the
// noise-reduction policy of spec.md §4.1 without owning persistence
// themselves.
type SilentAccountChecker interface {
	IsSilent(author string, asOf time.Time) bool
}

// NoSilentAccountFilter never marks an account silent; used when an
// adapter has no way to consult account history (e.g. news-rss, which
// carries no author identity).
type NoSilentAccountFilter struct{}

// IsSilent implements SilentAccountChecker.
func (NoSilentAccountFilter) IsSilent(string, time.Time) bool { return false }
