package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BookStore = (*BookStore)(nil)

// BookStore implements driven.BookStore using PostgreSQL
type BookStore struct {
	db *DB
}

// NewBookStore creates a new BookStore
func NewBookStore(db *DB) *BookStore {
	return &BookStore{db: db}
}

const upsertBookQuery = `
	INSERT INTO books (id, title, author, source_id, note_url, dur_chapter, dur_chapter_title, last_read_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		author = EXCLUDED.author,
		source_id = EXCLUDED.source_id,
		note_url = EXCLUDED.note_url,
		dur_chapter = EXCLUDED.dur_chapter,
		dur_chapter_title = EXCLUDED.dur_chapter_title,
		last_read_at = EXCLUDED.last_read_at,
		updated_at = NOW()
`

// switchSourceQuery only inserts position fields for a book that was never
// saved; an existing row keeps its reading position.
const switchSourceQuery = `
	INSERT INTO books (id, title, author, source_id, note_url, dur_chapter, dur_chapter_title, last_read_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	ON CONFLICT (id) DO UPDATE SET
		source_id = EXCLUDED.source_id,
		note_url = EXCLUDED.note_url,
		updated_at = NOW()
`

// Get retrieves a book by its shelf ID
func (s *BookStore) Get(ctx context.Context, id string) (*domain.Book, error) {
	query := `
		SELECT id, title, author, source_id, note_url, dur_chapter, dur_chapter_title, last_read_at
		FROM books
		WHERE id = $1
	`

	var book domain.Book
	var lastReadAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.SourceID,
		&book.NoteURL,
		&book.DurChapter,
		&book.DurChapterTitle,
		&lastReadAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastReadAt.Valid {
		book.LastReadAt = lastReadAt.Time
	}
	return &book, nil
}

// Save creates or updates a book without touching its chapters
func (s *BookStore) Save(ctx context.Context, book *domain.Book) error {
	_, err := s.db.ExecContext(ctx, upsertBookQuery, bookArgs(book)...)
	return err
}

// Chapters retrieves the stored chapter list of a book
func (s *BookStore) Chapters(ctx context.Context, bookID string) (*domain.ChapterList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, source_id, title, url, end_offset FROM chapters WHERE book_id = $1 ORDER BY idx`,
		bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := &domain.ChapterList{BookID: bookID}
	for rows.Next() {
		var ch domain.Chapter
		var endOffset sql.NullInt64
		if err := rows.Scan(&ch.Index, &list.SourceID, &ch.Title, &ch.URL, &endOffset); err != nil {
			return nil, err
		}
		ch.EndOffset = Int64Ptr(endOffset)
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

// ReplaceSource moves the book to its new source and swaps its whole
// chapter list in one transaction
func (s *BookStore) ReplaceSource(ctx context.Context, book *domain.Book, chapters *domain.ChapterList) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, switchSourceQuery, bookArgs(book)...); err != nil {
			return fmt.Errorf("switch book source: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE book_id = $1`, book.ID); err != nil {
			return fmt.Errorf("clear chapters: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO chapters (book_id, idx, source_id, title, url, end_offset) VALUES ($1, $2, $3, $4, $5, $6)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, ch := range chapters.Chapters {
			if _, err := stmt.ExecContext(ctx, book.ID, i, chapters.SourceID, ch.Title, ch.URL, NullInt64(ch.EndOffset)); err != nil {
				return fmt.Errorf("insert chapter %d: %w", i, err)
			}
		}
		return nil
	})
}

func bookArgs(book *domain.Book) []interface{} {
	return []interface{}{
		book.ID,
		book.Title,
		book.Author,
		book.SourceID,
		book.NoteURL,
		book.DurChapter,
		book.DurChapterTitle,
		NullTime(book.LastReadAt),
	}
}
