package classifier

// actionVerbs mark active participation when the tracked person is their
// subject or agent.
var actionVerbs = []string{
	"host", "co-host", "present", "appear", "attend",
	"join", "participate", "introduce", "interview",
}

// reportingVerbs mark a person sharing views rather than taking part.
var reportingVerbs = []string{
	"say", "state", "believe", "think", "express", "comment",
	"discuss", "reveal", "share", "opine", "tell",
}

var eventNouns = []string{
	"event", "talk", "screentalk", "panel", "discussion", "lecture", "summit",
	"party", "gala", "ceremony", "premiere", "festival", "show", "performance",
}

// phraseTemplates are formatted with the lower-case full name.
var phraseTemplates = []string{
	"hosted by %s",
	"co-hosted by %s",
	"%s hosts",
	"%s presents",
	"in conversation with %s",
	"q&a with %s",
	"featuring %s",
}
