package correlator

// englishStopwords is the fixed stopword list removed before building
// TF-IDF vectors (spec.md §4.5(b)'s content-similarity predicate).
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {},
	"with": {}, "about": {}, "against": {}, "between": {}, "into": {},
	"through": {}, "during": {}, "before": {}, "after": {}, "above": {},
	"below": {}, "from": {}, "up": {}, "down": {}, "out": {}, "off": {},
	"over": {}, "under": {}, "again": {}, "further": {}, "then": {},
	"once": {}, "here": {}, "there": {}, "when": {}, "where": {}, "why": {},
	"how": {}, "all": {}, "any": {}, "both": {}, "each": {}, "few": {},
	"more": {}, "most": {}, "other": {}, "some": {}, "such": {}, "no": {},
	"nor": {}, "not": {}, "only": {}, "own": {}, "same": {}, "so": {},
	"than": {}, "too": {}, "very": {}, "s": {}, "t": {}, "can": {},
	"will": {}, "just": {}, "don": {}, "should": {}, "now": {}, "it": {},
	"its": {}, "this": {}, "that": {}, "these": {}, "those": {}, "i": {},
	"you": {}, "he": {}, "she": {}, "we": {}, "they": {}, "them": {},
	"their": {}, "what": {}, "which": {}, "who": {}, "whom": {}, "as": {},
	"if": {}, "because": {}, "while": {}, "had": {}, "has": {}, "have": {},
	"do": {}, "does": {}, "did": {}, "am": {},
}
