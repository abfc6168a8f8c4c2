package reconcile

import "strings"

var predefinedTypes = map[string]MarkerType{
	"TODO":     TypeTodo,
	"FIXME":    TypeFixme,
	"HACK":     TypeHack,
	"BUG":      TypeBug,
	"NOTE":     TypeNote,
	"XXX":      TypeXXX,
	"OPTIMIZE": TypeOptimize,
}

// Normalize canonicalizes marker text for hashing: leading/trailing whitespace
// trimmed, internal whitespace runs collapsed to a single space, lowercased.
// The result is used only as hash input, never stored or displayed.
func Normalize(content string) string {
	return strings.ToLower(strings.Join(strings.Fields(content), " "))
}

// Classify resolves a raw marker's free-text type against the predefined set.
// Unrecognized types become TypeOther with the original tag preserved in
// CustomTag; a marker never carries both.
func Classify(raw RawMarker) Marker {
	m := Marker{
		Content:    raw.Content,
		FilePath:   raw.FilePath,
		LineNumber: raw.LineNumber,
	}
	tag := strings.ToUpper(strings.TrimSpace(raw.Type))
	if t, ok := predefinedTypes[tag]; ok {
		m.Type = t
		return m
	}
	m.Type = TypeOther
	m.CustomTag = strings.TrimSpace(raw.Type)
	return m
}
