package domain

import (
	"strings"
	"unicode"
)

// SearchQuery is what the aggregator asks every source for
type SearchQuery struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author,omitempty"`
}

// SearchCandidate is one result produced by one source for one query.
// It only lives for the duration of a search operation.
type SearchCandidate struct {
	SourceID      string `json:"source_id"`
	SourceName    string `json:"source_name,omitempty"`
	Title         string `json:"title"`
	Author        string `json:"author,omitempty"`
	ResultURL     string `json:"result_url"`
	WordCount     string `json:"word_count,omitempty"`
	LatestChapter string `json:"latest_chapter,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// HasHint reports whether the candidate carries any chapter-count or
// recency hint.
func (c SearchCandidate) HasHint() bool {
	return c.WordCount != "" || c.LatestChapter != "" || c.UpdatedAt != ""
}

// RankInput pairs a candidate with the snapshot of the source that produced it
type RankInput struct {
	Source    ContentSource   `json:"source"`
	Candidate SearchCandidate `json:"candidate"`
	Match     MatchQuality    `json:"match"`
}

// MatchQuality grades how well a candidate matches the query
type MatchQuality int

const (
	MatchNone MatchQuality = iota
	MatchFuzzy
	MatchExact
)

func (m MatchQuality) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// MarshalText renders the quality as its name
func (m MatchQuality) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a quality name. Unknown names read as MatchNone.
func (m *MatchQuality) UnmarshalText(text []byte) error {
	switch string(text) {
	case "exact":
		*m = MatchExact
	case "fuzzy":
		*m = MatchFuzzy
	default:
		*m = MatchNone
	}
	return nil
}

// Match compares a candidate against the query.
// Exact: normalized title equal and (no author on either side or authors equal).
// Fuzzy: one normalized title contains the other.
func Match(q SearchQuery, c SearchCandidate) MatchQuality {
	qt, ct := NormalizeText(q.Title), NormalizeText(c.Title)
	if qt == "" || ct == "" {
		return MatchNone
	}
	if qt == ct {
		qa, ca := NormalizeText(q.Author), NormalizeText(c.Author)
		if qa == "" || ca == "" || qa == ca {
			return MatchExact
		}
		return MatchFuzzy
	}
	if strings.Contains(ct, qt) || strings.Contains(qt, ct) {
		return MatchFuzzy
	}
	return MatchNone
}

// NormalizeText folds a title/author for comparison: lower case, no
// punctuation, single spaces.
func NormalizeText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
