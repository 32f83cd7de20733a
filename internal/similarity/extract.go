package similarity

import (
	"strings"
)

// descriptionLabels are the section labels a compound finding string may
// carry, in both the form language and English. Matching is
// case-insensitive on the line prefix.
var descriptionLabels = []string{
	"deskripsi temuan",
	"deskripsi",
	"description",
}

// sectionLabels marks every known section label so extraction knows where
// the description segment ends.
var sectionLabels = []string{
	"deskripsi temuan", "deskripsi", "description",
	"lokasi", "location",
	"tindakan", "action",
	"rekomendasi", "recommendation",
	"penyebab", "cause",
}

// ExtractDescription pulls the labeled description segment out of a
// compound finding string. Bulk-imported reports store several labeled
// sections interleaved in one field ("Deskripsi: ... Lokasi: ..."); only
// the description part is meaningful for text comparison. When no label is
// found the whole string is returned as-is.
func ExtractDescription(finding string) string {
	lower := strings.ToLower(finding)

	start := -1
	for _, label := range descriptionLabels {
		idx := indexOfLabel(lower, label)
		if idx >= 0 && (start < 0 || idx < start) {
			start = idx + len(label) + 1 // past "label:"
		}
	}
	if start < 0 {
		return finding
	}

	segment := finding[start:]
	segLower := lower[start:]

	// Cut at the next labeled section, if any.
	end := len(segment)
	for _, label := range sectionLabels {
		if idx := indexOfLabel(segLower, label); idx >= 0 && idx < end {
			end = idx
		}
	}

	return strings.TrimSpace(segment[:end])
}

// indexOfLabel finds "label:" at the start of the string or of a line,
// or preceded by whitespace. Returns the byte offset of the label, or -1.
func indexOfLabel(s, label string) int {
	search := label + ":"
	from := 0
	for {
		idx := strings.Index(s[from:], search)
		if idx < 0 {
			return -1
		}
		abs := from + idx
		if abs == 0 || s[abs-1] == '\n' || s[abs-1] == ' ' || s[abs-1] == '\t' {
			return abs
		}
		from = abs + len(search)
	}
}
