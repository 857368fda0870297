package filter

// enforcementKeywords are the case-insensitive, whole-word tokens that
// make a report's content relevant to immigration-enforcement activity
// (spec.md §6). Multi-word phrases are matched as substrings since they
// carry no ambiguity on their own.
var enforcementKeywords = []string{
	"ice",
	"i.c.e.",
	"ero",
	"cbp",
	"border patrol",
	"raid",
	"raids",
	"detention",
	"detained",
	"agent",
	"agents",
	"enforcement",
	"deportation",
	"la migra",
	"immigration",
}

// ambiguousKeywords match common non-enforcement nouns (hockey's ICE,
// weather) and require a co-occurring contextual cue to count.
var ambiguousKeywords = map[string]struct{}{
	"ice": {},
}

// iceDisambiguationContext are the cues that, alongside a bare "ice"
// mention, confirm an enforcement-activity reading rather than hockey or
// weather.
var iceDisambiguationContext = []string{
	"agent",
	"agents",
	"raid",
	"van",
	"vehicle",
	"vehicles",
	"checkpoint",
	"detain",
	"detained",
	"arrest",
	"deport",
	"enforcement",
	"custody",
}

// realTimeSignalTokens indicate a report describes something happening
// now rather than a retrospective news article (spec.md §6).
var realTimeSignalTokens = []string{
	"right now",
	"currently",
	"happening",
	"on scene",
	"minutes ago",
	"this morning",
	"just saw",
	"just spotted",
	"seeing",
	"spotted now",
}

// retrospectiveMarkers signal a report is reporting on past or
// policy-level events rather than an in-progress incident.
var retrospectiveMarkers = []string{
	"yesterday",
	"last week",
	"last month",
	"court ruling",
	"policy",
	"announced",
	"earlier this year",
	"according to officials",
	"in a statement",
}

// minneapolisAreaTokens are city and landmark names checked directly
// against content when no gazetteer neighborhood match is present; the
// gazetteer itself supplies the neighborhood-level tokens via
// Gazetteer.ContainsAreaToken.
var minneapolisAreaTokens = []string{
	"minneapolis",
	"st. paul",
	"saint paul",
	"twin cities",
	"hennepin county",
	"ramsey county",
	"minnesota",
}
