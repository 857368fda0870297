// Package extractor implements the Location Extractor of spec.md §4.4:
// it resolves free-text report content into a list of candidate
// locations by combining named-entity recognition with the Minneapolis
// gazetteer, falling back to a coarser city-level match, and prepending
// any pre-resolved coordinates the source already carried.
package extractor

import (
	"strings"

	"github.com/mplswatch/sentinel/internal/gazetteer"
	"github.com/mplswatch/sentinel/internal/logger"
	"github.com/mplswatch/sentinel/internal/models"
	"github.com/mplswatch/sentinel/internal/ner"
)

const (
	confidencePreResolved = 1.0
	confidenceGazetteer   = 0.9
	confidenceCityLevel   = 0.5
	degradedConfidenceCap = 0.9
)

// Extractor resolves a report's free-text content plus any pre-resolved
// coordinates into the Locations slice the Correlator matches on.
type Extractor struct {
	recognizer ner.Recognizer
	gazetteer  *gazetteer.Gazetteer
	degraded   bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRecognizer overrides the default heuristic NER fallback with a
// higher-fidelity recognizer (a real NER model, per spec.md §4.4 step 1).
func WithRecognizer(r ner.Recognizer) Option {
	return func(e *Extractor) { e.recognizer = r }
}

// New builds an Extractor. When no recognizer is supplied via
// WithRecognizer, the heuristic fallback is used and the Extractor
// operates in the gazetteer-only degraded mode of spec.md §9, logging
// that fact once.
func New(gaz *gazetteer.Gazetteer, opts ...Option) *Extractor {
	e := &Extractor{gazetteer: gaz}
	for _, opt := range opts {
		opt(e)
	}
	if e.recognizer == nil {
		e.recognizer = ner.New()
		e.degraded = true
		logger.Warn("location extractor running in gazetteer-only degraded mode; no NER capability configured")
	}
	return e
}

// Degraded reports whether the Extractor is running without a real NER
// capability (gazetteer and city-level confidences are capped at 0.9 in
// that mode; pre-resolved coordinates keep confidence 1.0).
func (e *Extractor) Degraded() bool {
	return e.degraded
}

// blend nudges a gazetteer-match confidence up when the recognizer
// itself was confident the matched text names a place (e.g. it ends in
// a street/place suffix), without letting a low-confidence recognizer
// candidate drag a real gazetteer hit down.
func blend(base, recognizerConfidence float64) float64 {
	return base + (recognizerConfidence-0.5)*0.2
}

func (e *Extractor) cap(confidence float64) float64 {
	if e.degraded && confidence > degradedConfidenceCap {
		return degradedConfidenceCap
	}
	return confidence
}

// Extract populates report.Locations in place, implementing spec.md
// §4.4 steps 1-5.
func (e *Extractor) Extract(report *models.Report) {
	var locations []models.Location

	if report.Coords != nil {
		pre := *report.Coords
		pre.Confidence = confidencePreResolved
		locations = append(locations, pre)
	}

	var cands []ner.Candidate
	for _, cand := range e.recognizer.Recognize(report.Content) {
		// A run of capitalized words that names no known place as a whole
		// ("Uptown Minneapolis") is looked up word by word instead.
		_, hood := e.gazetteer.Lookup(cand.Text)
		_, city := e.gazetteer.CityLookup(cand.Text)
		if hood || city {
			cands = append(cands, cand)
			continue
		}
		for _, w := range strings.Fields(cand.Text) {
			cands = append(cands, ner.Candidate{Text: w, Confidence: cand.Confidence})
		}
	}

	for _, cand := range cands {
		if entry, ok := e.gazetteer.Lookup(cand.Text); ok {
			locations = append(locations, models.Location{
				Name:       entry.CanonicalName,
				Lat:        entry.Lat,
				Lon:        entry.Lon,
				Confidence: e.cap(blend(confidenceGazetteer, cand.Confidence)),
			})
			continue
		}
		if entry, ok := e.gazetteer.CityLookup(cand.Text); ok {
			locations = append(locations, models.Location{
				Name:       entry.CanonicalName,
				Lat:        entry.Lat,
				Lon:        entry.Lon,
				Confidence: e.cap(blend(confidenceCityLevel, cand.Confidence)),
			})
		}
	}

	report.Locations = dedupeLocations(locations)
}

// dedupeLocations collapses repeated matches of the same canonical place,
// keeping the highest-confidence entry for each.
func dedupeLocations(locations []models.Location) []models.Location {
	if len(locations) == 0 {
		return nil
	}
	best := make(map[string]models.Location, len(locations))
	order := make([]string, 0, len(locations))
	for _, l := range locations {
		if existing, ok := best[l.Name]; !ok {
			best[l.Name] = l
			order = append(order, l.Name)
		} else if l.Confidence > existing.Confidence {
			best[l.Name] = l
		}
	}
	out := make([]models.Location, 0, len(order))
	for _, name := range order {
		out = append(out, best[name])
	}
	return out
}
