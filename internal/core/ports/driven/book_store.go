package driven

import (
	"context"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// BookStore persists shelf books and their chapter lists.
// It belongs to the surrounding reader; the switch engine only reads a book
// and write-replaces it together with its new chapter list.
type BookStore interface {
	// Get retrieves a book by its shelf ID
	Get(ctx context.Context, id string) (*domain.Book, error)

	// Save creates or updates a book record without touching chapters
	Save(ctx context.Context, book *domain.Book) error

	// Chapters retrieves the stored chapter list of a book
	Chapters(ctx context.Context, bookID string) (*domain.ChapterList, error)

	// ReplaceSource stores the book and replaces its whole chapter list in a
	// single transaction. Either both are written or neither is.
	ReplaceSource(ctx context.Context, book *domain.Book, chapters *domain.ChapterList) error
}
