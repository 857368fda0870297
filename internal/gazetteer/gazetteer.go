// Package gazetteer provides the static Minneapolis-area place-name
// lookup the Location Extractor consults: a neighborhood/landmark table
// (confidence 0.9 matches) and a coarser city-level fallback table
// (confidence 0.5 matches), seeded from the repo's geodata files.
package gazetteer

import (
	"embed"
	"encoding/json"
	"regexp"
	"strings"
)

//go:embed data/neighborhoods.json data/cities.json
var dataFS embed.FS

// Entry is a single resolved place in the gazetteer.
type Entry struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	CanonicalName string  `json:"canonical_name"`
}

// Gazetteer is a read-only lookup; New parses the embedded data files
// on each call.
type Gazetteer struct {
	neighborhoods map[string]Entry
	cities        map[string]Entry
}

var normalizeRe = regexp.MustCompile(`\s+`)

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return normalizeRe.ReplaceAllString(s, " ")
}

func load(fsys embed.FS, path string) map[string]Entry {
	raw, err := fsys.ReadFile(path)
	if err != nil {
		panic("gazetteer: embedded file missing: " + path)
	}
	var m map[string]Entry
	if err := json.Unmarshal(raw, &m); err != nil {
		panic("gazetteer: malformed data file " + path + ": " + err.Error())
	}
	return m
}

// New loads the embedded neighborhood and city tables.
func New() *Gazetteer {
	return &Gazetteer{
		neighborhoods: load(dataFS, "data/neighborhoods.json"),
		cities:        load(dataFS, "data/cities.json"),
	}
}

// Lookup resolves a candidate place name against the neighborhood table,
// the confidence-0.9 tier of spec.md §4.4 step 2.
func (g *Gazetteer) Lookup(name string) (Entry, bool) {
	e, ok := g.neighborhoods[normalize(name)]
	return e, ok
}

// CityLookup resolves a candidate place name against the coarser
// city-level table, the confidence-0.5 fallback tier of spec.md §4.4
// step 3.
func (g *Gazetteer) CityLookup(name string) (Entry, bool) {
	e, ok := g.cities[normalize(name)]
	return e, ok
}

// DowntownReference is the downtown Minneapolis reference point used by
// the filter stage's geographic-scope check (spec.md §4.3 step 4).
func (g *Gazetteer) DowntownReference() Entry {
	e, ok := g.neighborhoods["downtown"]
	if !ok {
		panic("gazetteer: downtown reference point missing from data")
	}
	return e
}

// ContainsAreaToken reports whether text mentions any known Minneapolis
// metro neighborhood or city token, the geographic-scope test the filter
// stage uses when no pre-resolved coordinates are present.
func (g *Gazetteer) ContainsAreaToken(text string) bool {
	lower := normalize(text)
	for name := range g.neighborhoods {
		if strings.Contains(lower, name) {
			return true
		}
	}
	for name := range g.cities {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}
