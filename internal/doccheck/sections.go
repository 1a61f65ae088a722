package doccheck

import "strings"

// Tag is a recognized documentation section.
type Tag int

// Tags in their expected order within a doc comment.
const (
	Safety Tag = iota + 1
	Usage
	Methods
	Arguments
	Panics
	Errors
	Returns
	Enumerations
	Flags
	Functions
	Interfaces
	Capabilities
	Structures
	Values
	Wrappers
	Features
	Examples
	Output
	SeeAlso
	Remarks
)

// SafetyHeader is the only accepted spelling of the Safety section header.
const SafetyHeader = "\u26a0\ufe0f Safety \u26a0\ufe0f"

// vocabulary is the closed set of recognized `###` header phrases. Lookups
// are exact: case, accents and emoji must match.
var vocabulary = map[string]Tag{
	SafetyHeader:   Safety,
	"Usage":        Usage,
	"Methods":      Methods,
	"Arguments":    Arguments,
	"Panics":       Panics,
	"Errors":       Errors,
	"Returns":      Returns,
	"Enumerations": Enumerations,
	"Flags":        Flags,
	"Functions":    Functions,
	"Interfaces":   Interfaces,
	"Capabilities": Capabilities,
	"Structures":   Structures,
	"Values":       Values,
	"Wrappers":     Wrappers,
	"Features":     Features,
	"Examples":     Examples,
	"Output":       Output,
	"See Also":     SeeAlso,
	"Remarks":      Remarks,
}

// aliases are accepted spellings that are not part of the vocabulary.
var aliases = map[string]Tag{
	"Example": Examples,
}

// Lookup outcome for a header phrase.
type Outcome int

const (
	// Unknown phrases reset the current section without a diagnostic.
	Unknown Outcome = iota
	// Known phrases start a section.
	Known
	// Misspelled phrases are errors: `### Safety` must carry its emoji.
	Misspelled
)

// Lookup classifies a `###` header phrase.
func Lookup(phrase string) (Tag, Outcome) {
	if tag, ok := vocabulary[phrase]; ok {
		return tag, Known
	}
	if tag, ok := aliases[phrase]; ok {
		return tag, Known
	}
	if phrase == "Safety" {
		return Safety, Misspelled
	}
	return 0, Unknown
}

// String returns the header phrase for t.
func (t Tag) String() string {
	for phrase, tag := range vocabulary {
		if tag == t {
			return phrase
		}
	}
	return "?"
}

// phrases returns every recognized header phrase in section order.
func phrases() []string {
	out := make([]string, len(vocabulary))
	for phrase, tag := range vocabulary {
		out[tag-1] = phrase
	}
	return out
}

// header returns the phrase of a `### phrase` line, if text is one.
func header(text string) (string, bool) {
	rest, ok := strings.CutPrefix(text, "### ")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// Section is a recognized header and the line it appeared on.
type Section struct {
	Tag  Tag
	Line int
}
