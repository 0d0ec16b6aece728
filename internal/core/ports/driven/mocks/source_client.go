package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// MockSourceClient is a mock implementation of SourceClient for testing
type MockSourceClient struct {
	SearchFn           func(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error)
	FetchChapterListFn func(ctx context.Context, source *domain.ContentSource, resultURL string) (*domain.ChapterList, error)

	mu           sync.Mutex
	searchCalls  []string
	chapterCalls []string
}

// NewMockSourceClient creates a new MockSourceClient
func NewMockSourceClient() *MockSourceClient {
	return &MockSourceClient{}
}

func (m *MockSourceClient) Search(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error) {
	m.mu.Lock()
	m.searchCalls = append(m.searchCalls, source.ID)
	m.mu.Unlock()
	if m.SearchFn != nil {
		return m.SearchFn(ctx, source, query, timeout)
	}
	return nil, nil
}

func (m *MockSourceClient) FetchChapterList(ctx context.Context, source *domain.ContentSource, resultURL string) (*domain.ChapterList, error) {
	m.mu.Lock()
	m.chapterCalls = append(m.chapterCalls, resultURL)
	m.mu.Unlock()
	if m.FetchChapterListFn != nil {
		return m.FetchChapterListFn(ctx, source, resultURL)
	}
	return &domain.ChapterList{
		SourceID: source.ID,
		Chapters: []domain.Chapter{{Index: 0, Title: "Chapter 1", URL: resultURL + "/1"}},
	}, nil
}

// SearchCalls returns the source IDs searched so far
func (m *MockSourceClient) SearchCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.searchCalls...)
}

// ChapterCalls returns the result URLs whose chapters were fetched
func (m *MockSourceClient) ChapterCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.chapterCalls...)
}

// MockSourceClientFactory returns the same client for every source
type MockSourceClientFactory struct {
	Client      driven.SourceClient
	ClientForFn func(source *domain.ContentSource) (driven.SourceClient, error)
}

// NewMockSourceClientFactory creates a factory serving client
func NewMockSourceClientFactory(client driven.SourceClient) *MockSourceClientFactory {
	return &MockSourceClientFactory{Client: client}
}

func (m *MockSourceClientFactory) ClientFor(source *domain.ContentSource) (driven.SourceClient, error) {
	if m.ClientForFn != nil {
		return m.ClientForFn(source)
	}
	return m.Client, nil
}
