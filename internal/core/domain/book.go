package domain

import "time"

// Book is the entity being read. It is owned by the reading session; the
// switch engine only replaces its source-identifying fields.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author,omitempty"`
	SourceID        string    `json:"source_id"` // Current source identity ("tag")
	NoteURL         string    `json:"note_url"`
	DurChapter      int       `json:"dur_chapter"`
	DurChapterTitle string    `json:"dur_chapter_title,omitempty"`
	LastReadAt      time.Time `json:"last_read_at"`
}

// Query builds the search query used to find the book elsewhere
func (b *Book) Query() SearchQuery {
	return SearchQuery{Title: b.Title, Author: b.Author}
}

// WithSource returns a copy of the book pointing at another source.
// Reading position fields are left untouched.
func (b *Book) WithSource(sourceID, noteURL string) *Book {
	c := *b
	c.SourceID = sourceID
	c.NoteURL = noteURL
	return &c
}

// Chapter is one entry of a chapter list
type Chapter struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	EndOffset *int64 `json:"end_offset,omitempty"`
}

// ChapterList is the ordered chapter sequence of a book on one source.
// It is replaced wholesale on a switch, never merged.
type ChapterList struct {
	BookID   string    `json:"book_id"`
	SourceID string    `json:"source_id"`
	Chapters []Chapter `json:"chapters"`
}

// Len returns the number of chapters
func (l *ChapterList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Chapters)
}

// SuggestChapter maps a reading position onto this list: the first chapter
// whose normalized title equals durTitle, else durIndex clamped to the list.
func (l *ChapterList) SuggestChapter(durIndex int, durTitle string) int {
	n := l.Len()
	if n == 0 {
		return 0
	}
	if want := NormalizeText(durTitle); want != "" {
		for i, ch := range l.Chapters {
			if NormalizeText(ch.Title) == want {
				return i
			}
		}
	}
	if durIndex < 0 {
		return 0
	}
	if durIndex >= n {
		return n - 1
	}
	return durIndex
}
