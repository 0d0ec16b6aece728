package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BookStore = (*BookStore)(nil)

const upsertBook = `INSERT INTO books (id, title, author, source_id, note_url, dur_chapter, dur_chapter_title, last_read_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET
        title = excluded.title,
        author = excluded.author,
        source_id = excluded.source_id,
        note_url = excluded.note_url,
        dur_chapter = excluded.dur_chapter,
        dur_chapter_title = excluded.dur_chapter_title,
        last_read_at = excluded.last_read_at,
        updated_at = excluded.updated_at`

// switchSource moves an existing book to a new source and leaves its
// reading position alone. The insert branch only runs for an unsaved book.
const switchSource = `INSERT INTO books (id, title, author, source_id, note_url, dur_chapter, dur_chapter_title, last_read_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (id) DO UPDATE SET
        source_id = excluded.source_id,
        note_url = excluded.note_url,
        updated_at = excluded.updated_at`

// BookStore implements driven.BookStore on SQLite
type BookStore struct {
	db *DB
}

// NewBookStore creates a new BookStore
func NewBookStore(db *DB) *BookStore {
	return &BookStore{db: db}
}

// Get retrieves a book by its shelf ID
func (s *BookStore) Get(ctx context.Context, id string) (*domain.Book, error) {
	var (
		book       domain.Book
		lastReadAt sql.NullString
	)
	err := s.db.db.QueryRowContext(ctx,
		"SELECT id, title, author, source_id, note_url, dur_chapter, dur_chapter_title, last_read_at FROM books WHERE id = ?",
		id,
	).Scan(&book.ID, &book.Title, &book.Author, &book.SourceID, &book.NoteURL, &book.DurChapter, &book.DurChapterTitle, &lastReadAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	book.LastReadAt = parseTime(lastReadAt.String)
	return &book, nil
}

// Save creates or updates a book without touching its chapters
func (s *BookStore) Save(ctx context.Context, book *domain.Book) error {
	if _, err := s.db.db.ExecContext(ctx, upsertBook, bookArgs(book)...); err != nil {
		return fmt.Errorf("save book %s: %w", book.ID, err)
	}
	return nil
}

// Chapters retrieves the stored chapter list of a book
func (s *BookStore) Chapters(ctx context.Context, bookID string) (*domain.ChapterList, error) {
	rows, err := s.db.db.QueryContext(ctx,
		"SELECT idx, source_id, title, url, end_offset FROM chapters WHERE book_id = ? ORDER BY idx",
		bookID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	list := &domain.ChapterList{BookID: bookID}
	for rows.Next() {
		var (
			ch        domain.Chapter
			endOffset sql.NullInt64
		)
		if err := rows.Scan(&ch.Index, &list.SourceID, &ch.Title, &ch.URL, &endOffset); err != nil {
			return nil, err
		}
		if endOffset.Valid {
			v := endOffset.Int64
			ch.EndOffset = &v
		}
		list.Chapters = append(list.Chapters, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list.Chapters) == 0 {
		return nil, domain.ErrNotFound
	}
	return list, nil
}

// ReplaceSource points the book at its new source and swaps its chapter
// list in one transaction. Reading-position columns of a stored book are
// not written.
func (s *BookStore) ReplaceSource(ctx context.Context, book *domain.Book, chapters *domain.ChapterList) error {
	return s.db.transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, switchSource, bookArgs(book)...); err != nil {
			return fmt.Errorf("switch book source: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM chapters WHERE book_id = ?", book.ID); err != nil {
			return fmt.Errorf("clear chapters: %w", err)
		}
		for i, ch := range chapters.Chapters {
			var endOffset any
			if ch.EndOffset != nil {
				endOffset = *ch.EndOffset
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO chapters (book_id, idx, source_id, title, url, end_offset) VALUES (?, ?, ?, ?, ?, ?)",
				book.ID, i, chapters.SourceID, ch.Title, ch.URL, endOffset,
			); err != nil {
				return fmt.Errorf("insert chapter %d: %w", i, err)
			}
		}
		return nil
	})
}

func bookArgs(book *domain.Book) []any {
	return []any{
		book.ID,
		book.Title,
		book.Author,
		book.SourceID,
		book.NoteURL,
		book.DurChapter,
		book.DurChapterTitle,
		nullableTime(book.LastReadAt),
		formatTime(time.Now()),
	}
}
