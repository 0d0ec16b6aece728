package domain

import (
	"slices"
	"time"
)

// SourceProtocol identifies the family of client able to talk to a source
type SourceProtocol string

const (
	SourceProtocolHTML SourceProtocol = "html" // HTML pages scraped with CSS selectors
	SourceProtocolJSON SourceProtocol = "json" // JSON API read with gjson paths
)

// IsValid returns true if the protocol is known
func (p SourceProtocol) IsValid() bool {
	switch p {
	case SourceProtocolHTML, SourceProtocolJSON:
		return true
	}
	return false
}

// ContentSource represents a catalog/site hosting books and chapter text.
// Weight is a reputation score adjusted only through the WeightModel
// (or an explicit administrative override).
type ContentSource struct {
	ID        string         `json:"id" validate:"required"` // Stable URL/key
	Name      string         `json:"name" validate:"required"`
	Groups    []string       `json:"groups,omitempty"`
	Enabled   bool           `json:"enabled"`
	Weight    int64          `json:"weight"`
	Protocol  SourceProtocol `json:"protocol" validate:"required,oneof=html json"`
	BaseURL   string         `json:"base_url" validate:"omitempty,url"`
	Rules     SourceRules    `json:"rules"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SourceRules describes how to query a source and read its answers.
// For html sources the selectors are CSS selectors; for json sources they
// are gjson paths.
type SourceRules struct {
	// SearchURL is a template; {{key}} and {{author}} are replaced with the
	// query-escaped title and author.
	SearchURL string `json:"search_url" validate:"required"`

	SearchList          string `json:"search_list" validate:"required"`
	SearchTitle         string `json:"search_title" validate:"required"`
	SearchAuthor        string `json:"search_author,omitempty"`
	SearchURLField      string `json:"search_url_field" validate:"required"`
	SearchLatestChapter string `json:"search_latest_chapter,omitempty"`
	SearchWordCount     string `json:"search_word_count,omitempty"`
	SearchUpdatedAt     string `json:"search_updated_at,omitempty"`

	ChapterList     string `json:"chapter_list" validate:"required"`
	ChapterTitle    string `json:"chapter_title" validate:"required"`
	ChapterURLField string `json:"chapter_url_field" validate:"required"`
}

// HasGroup reports whether the source carries the group tag
func (s *ContentSource) HasGroup(group string) bool {
	return slices.Contains(s.Groups, group)
}

// AddGroup appends a group tag once. Returns false if it was already present.
func (s *ContentSource) AddGroup(group string) bool {
	if group == "" || s.HasGroup(group) {
		return false
	}
	s.Groups = append(s.Groups, group)
	return true
}

// Clone returns a copy that shares nothing mutable with s
func (s *ContentSource) Clone() *ContentSource {
	if s == nil {
		return nil
	}
	c := *s
	c.Groups = slices.Clone(s.Groups)
	return &c
}
