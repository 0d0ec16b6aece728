package mocks

import (
	"context"
	"slices"
	"sync"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// MockBookStore is a mock implementation of BookStore for testing
type MockBookStore struct {
	mu       sync.RWMutex
	books    map[string]*domain.Book
	chapters map[string]*domain.ChapterList

	// ReplaceErr forces ReplaceSource to fail when set
	ReplaceErr error
}

// NewMockBookStore creates a new MockBookStore
func NewMockBookStore() *MockBookStore {
	return &MockBookStore{
		books:    make(map[string]*domain.Book),
		chapters: make(map[string]*domain.ChapterList),
	}
}

func (m *MockBookStore) Get(ctx context.Context, id string) (*domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	book, ok := m.books[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *book
	return &c, nil
}

func (m *MockBookStore) Save(ctx context.Context, book *domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *book
	m.books[book.ID] = &c
	return nil
}

func (m *MockBookStore) Chapters(ctx context.Context, bookID string) (*domain.ChapterList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.chapters[bookID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.ChapterList{
		BookID:   list.BookID,
		SourceID: list.SourceID,
		Chapters: slices.Clone(list.Chapters),
	}, nil
}

func (m *MockBookStore) ReplaceSource(ctx context.Context, book *domain.Book, chapters *domain.ChapterList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	c := *book
	if stored, ok := m.books[book.ID]; ok {
		// only the source identity changes on a stored book
		c = *stored.WithSource(book.SourceID, book.NoteURL)
	}
	m.books[book.ID] = &c
	m.chapters[book.ID] = &domain.ChapterList{
		BookID:   book.ID,
		SourceID: chapters.SourceID,
		Chapters: slices.Clone(chapters.Chapters),
	}
	return nil
}
