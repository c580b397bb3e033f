package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/slices"
)

// identifierPattern is a shape check only: 36 hex digits or hyphens.
var identifierPattern = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

var keywordNormalizer = strings.NewReplacer("_", "", "-", "")

var entityKeywords = map[string]EntityType{
	"facility":  Facility,
	"patient":   Patient,
	"encounter": Encounter,
}

// menuLabels maps well-known route names to their display label
var menuLabels = map[string]string{
	"facility":     "Facilities",
	"patients":     "Patients",
	"assets":       "Assets",
	"shifting":     "Shiftings",
	"resource":     "Resources",
	"users":        "Users",
	"notice_board": "Notice Board",
}

// Split turns a path into its raw segments. Query strings, fragments and
// empty elements (leading, trailing or doubled slashes) are dropped.
func Split(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	var segments []string
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		segments = append(segments, part)
	}
	return segments
}

// Classify decides for each raw segment whether it is a label or an
// identifier. Segment i only depends on raw[0..i].
func Classify(raw []string) []Segment {
	segments := make([]Segment, 0, len(raw))
	for i, field := range raw {
		if IsIdentifier(field) && i > 0 {
			if entity := EntityFromKeyword(raw[i-1]); entity != Unknown {
				segments = append(segments, Segment{
					Raw:    field,
					Kind:   Identifier,
					Entity: entity,
					ID:     field,
				})
				continue
			}
		}

		segments = append(segments, Segment{
			Raw:   field,
			Kind:  Label,
			Label: LabelFor(field),
		})
	}
	return segments
}

// Parse is Split followed by Classify
func Parse(path string) []Segment {
	return Classify(Split(path))
}

// IsIdentifier reports whether s has the shape of an entity identifier
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// EntityFromKeyword maps the segment preceding an identifier to its entity type
func EntityFromKeyword(keyword string) EntityType {
	normalized := keywordNormalizer.Replace(strings.ToLower(keyword))
	if entity, ok := entityKeywords[normalized]; ok {
		return entity
	}
	return Unknown
}

// LabelFor returns the static label for a route name, or its capitalized form
func LabelFor(field string) string {
	if label, ok := menuLabels[field]; ok {
		return label
	}
	return Capitalize(field)
}

// KnownLabels returns the route names that have a static label, sorted
func KnownLabels() []string {
	keys := make([]string, 0, len(menuLabels))
	for key := range menuLabels {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Capitalize replaces '_' and '-' by spaces and upper-cases the first letter of every word
func Capitalize(s string) string {
	words := strings.Split(strings.NewReplacer("_", " ", "-", " ").Replace(s), " ")
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}
