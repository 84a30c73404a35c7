package searchquery

import (
	"regexp"
	"time"
)

var hashTagPattern = regexp.MustCompile(`#([\p{L}\p{N}_-]+)`)
var temporalTagPattern = regexp.MustCompile(`@([\p{L}\p{N}.-]+)`)

// CardMetadata is the per-card derived search index computed once per card
// per query, per spec's "compute per-card metadata once" requirement.
type CardMetadata struct {
	HashTags     []string
	TemporalTags []string
	DueDate      *time.Time
	Overdue      bool
}

// ExtractHashTags returns every #tag occurring in content, lowercased.
func ExtractHashTags(content string) []string {
	matches := hashTagPattern.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, FoldText(m[1]))
	}
	return out
}

// ExtractTemporalTags returns every @tag occurring in content.
func ExtractTemporalTags(content string) []string {
	matches := temporalTagPattern.FindAllStringSubmatch(content, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// DeriveMetadata computes a card's search metadata relative to now. Due
// date is the minimum parseable temporal tag, matching the spec's "due
// date for a card is the minimum parseable temporal tag" rule.
func DeriveMetadata(content string, now time.Time) CardMetadata {
	meta := CardMetadata{
		HashTags:     ExtractHashTags(content),
		TemporalTags: ExtractTemporalTags(content),
	}
	for _, t := range meta.TemporalTags {
		if d, ok := ParseTemporalLiteral(t, now); ok {
			if meta.DueDate == nil || d.Before(*meta.DueDate) {
				dd := d
				meta.DueDate = &dd
			}
		}
	}
	if meta.DueDate != nil {
		meta.Overdue = meta.DueDate.Before(dateOnly(now))
	}
	return meta
}
