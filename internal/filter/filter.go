// Package filter implements the Filter Stage of spec.md §4.3: a
// fixed-order sequence of pure checks that either reject a report with a
// verdict or pass it on to location extraction. Keyword matching is
// grounded on the teacher's internal/classifier keyword-scan idiom,
// generalized to whole-word regex matching and the stage ordering the
// spec names.
package filter

import (
	"regexp"
	"strings"
	"time"

	"github.com/mplswatch/sentinel/internal/gazetteer"
	"github.com/mplswatch/sentinel/internal/geo"
	"github.com/mplswatch/sentinel/internal/models"
	"github.com/mplswatch/sentinel/pkg/utils"
)

// Config carries the tunable thresholds the Filter stage consults.
// Defaults mirror spec.md §6.
type Config struct {
	FreshMax      time.Duration
	MaxDistanceKM float64
}

// DefaultConfig returns the spec.md §6 defaults.
func DefaultConfig() Config {
	return Config{
		FreshMax:      3 * time.Hour,
		MaxDistanceKM: 50.0,
	}
}

// Filter evaluates incoming reports against the five ordered checks of
// spec.md §4.3. It holds no mutable state; DedupChecker lookups are the
// only side-effecting dependency, since the dedup key lives in the
// Store.
type Filter struct {
	cfg       Config
	gazetteer *gazetteer.Gazetteer
}

// New builds a Filter against the given gazetteer and configuration.
func New(gaz *gazetteer.Gazetteer, cfg Config) *Filter {
	return &Filter{cfg: cfg, gazetteer: gaz}
}

// DedupChecker reports whether a dedup key has already been seen. The
// Store is the only implementation used in production; tests supply an
// in-memory stand-in.
type DedupChecker interface {
	Seen(dedupKey string) bool
}

// Evaluate runs the ordered checks of spec.md §4.3 against report and
// returns its verdict. When duplicate is true, the report's dedup key
// was already present and the report must be silently dropped rather
// than persisted with a rejection verdict.
func (f *Filter) Evaluate(report *models.Report, dedup DedupChecker) (verdict models.Verdict, duplicate bool) {
	if report.IngestTS.Sub(report.ObservationTS) > f.cfg.FreshMax {
		return models.VerdictRejectedStale, false
	}

	if dedup != nil && dedup.Seen(report.DedupKey) {
		return models.VerdictPending, true
	}

	lower := strings.ToLower(report.Content)

	if !f.isRelevant(lower) {
		return models.VerdictRejectedIrrelevant, false
	}

	if !f.inGeographicScope(report, lower) {
		return models.VerdictRejectedOutOfRegion, false
	}

	if report.SourceKind == "news-rss" && !f.passesNewsCheck(lower) {
		return models.VerdictRejectedNews, false
	}

	return models.VerdictRelevant, false
}

// wholeWordRe matches word where no letter, digit or underscore touches
// it on either side; unlike \b this also holds for keywords ending in
// punctuation such as "i.c.e.". Content is lowercased before matching.
func wholeWordRe(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^a-z0-9_])` + regexp.QuoteMeta(word) + `(?:$|[^a-z0-9_])`)
}

var keywordPatterns = buildKeywordPatterns()

func buildKeywordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(enforcementKeywords))
	for _, kw := range enforcementKeywords {
		if strings.Contains(kw, " ") {
			continue // multi-word phrases are matched as plain substrings
		}
		patterns[kw] = wholeWordRe(kw)
	}
	return patterns
}

// isRelevant implements spec.md §4.3 step 3, including the "ice"
// disambiguation rule: a bare match on an ambiguous token only counts
// when a contextual cue also appears.
func (f *Filter) isRelevant(lower string) bool {
	matched := false
	for _, kw := range enforcementKeywords {
		var hit bool
		if strings.Contains(kw, " ") {
			hit = strings.Contains(lower, kw)
		} else if re, ok := keywordPatterns[kw]; ok {
			hit = re.MatchString(lower)
		}
		if !hit {
			continue
		}
		if _, ambiguous := ambiguousKeywords[kw]; ambiguous {
			if !utils.ContainsAny(lower, iceDisambiguationContext) {
				continue
			}
		}
		matched = true
		break
	}
	return matched
}

// inGeographicScope implements spec.md §4.3 step 4.
func (f *Filter) inGeographicScope(report *models.Report, lower string) bool {
	if report.Coords != nil {
		downtown := f.gazetteer.DowntownReference()
		if geo.DistanceKM(report.Coords.Lat, report.Coords.Lon, downtown.Lat, downtown.Lon) <= f.cfg.MaxDistanceKM {
			return true
		}
	}
	if f.gazetteer.ContainsAreaToken(lower) {
		return true
	}
	return utils.ContainsAny(lower, minneapolisAreaTokens)
}

// passesNewsCheck implements spec.md §4.3 step 5.
func (f *Filter) passesNewsCheck(lower string) bool {
	if utils.ContainsAny(lower, retrospectiveMarkers) {
		return false
	}
	return utils.ContainsAny(lower, realTimeSignalTokens)
}
