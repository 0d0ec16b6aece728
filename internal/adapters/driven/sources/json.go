package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/tidwall/gjson"
)

// Verify interface compliance
var _ driven.SourceClient = (*JSONClient)(nil)

// JSONClient reads JSON API sources with gjson path rules
type JSONClient struct {
	fetcher *Fetcher
}

// NewJSONClient creates a JSONClient
func NewJSONClient(fetcher *Fetcher) *JSONClient {
	return &JSONClient{fetcher: fetcher}
}

// Search calls the source search endpoint for query
func (c *JSONClient) Search(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint, err := searchURL(source, query)
	if err != nil {
		return nil, &SourceError{SourceID: source.ID, Op: "search", URL: source.Rules.SearchURL, Err: err}
	}
	list, err := c.list(ctx, source, "search", endpoint, source.Rules.SearchList, false)
	if err != nil {
		return nil, err
	}

	rules := source.Rules
	var candidates []domain.SearchCandidate
	list.ForEach(func(_, item gjson.Result) bool {
		resultURL, err := resolveURL(endpoint, field(item, rules.SearchURLField))
		if err != nil || resultURL == "" {
			return true
		}
		candidates = append(candidates, domain.SearchCandidate{
			SourceID:      source.ID,
			SourceName:    source.Name,
			Title:         field(item, rules.SearchTitle),
			Author:        field(item, rules.SearchAuthor),
			ResultURL:     resultURL,
			LatestChapter: field(item, rules.SearchLatestChapter),
			WordCount:     field(item, rules.SearchWordCount),
			UpdatedAt:     field(item, rules.SearchUpdatedAt),
		})
		return true
	})
	return candidates, nil
}

// FetchChapterList reads the chapter list endpoint behind resultURL
func (c *JSONClient) FetchChapterList(ctx context.Context, source *domain.ContentSource, resultURL string) (*domain.ChapterList, error) {
	items, err := c.list(ctx, source, "chapters", resultURL, source.Rules.ChapterList, true)
	if err != nil {
		return nil, err
	}

	rules := source.Rules
	list := &domain.ChapterList{SourceID: source.ID}
	items.ForEach(func(_, item gjson.Result) bool {
		chapterURL, err := resolveURL(resultURL, field(item, rules.ChapterURLField))
		if err != nil || chapterURL == "" {
			return true
		}
		list.Chapters = append(list.Chapters, domain.Chapter{
			Index: len(list.Chapters),
			Title: field(item, rules.ChapterTitle),
			URL:   chapterURL,
		})
		return true
	})

	if list.Len() == 0 {
		return nil, &SourceError{SourceID: source.ID, Op: "chapters", URL: resultURL, Err: domain.ErrEmptyResult}
	}
	return list, nil
}

func (c *JSONClient) list(ctx context.Context, source *domain.ContentSource, op, endpoint, path string, retry bool) (gjson.Result, error) {
	var (
		body []byte
		err  error
	)
	if retry {
		body, err = c.fetcher.GetWithRetry(ctx, source.ID, op, endpoint)
	} else {
		body, err = c.fetcher.Get(ctx, source.ID, op, endpoint)
	}
	if err != nil {
		return gjson.Result{}, err
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &SourceError{SourceID: source.ID, Op: op, URL: endpoint, Err: fmt.Errorf("%w: invalid json", domain.ErrParse)}
	}
	list := gjson.GetBytes(body, path)
	if list.Exists() && !list.IsArray() {
		return gjson.Result{}, &SourceError{SourceID: source.ID, Op: op, URL: endpoint, Err: fmt.Errorf("%w: %s is not an array", domain.ErrParse, path)}
	}
	return list, nil
}

func field(item gjson.Result, path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSpace(item.Get(path).String())
}
