package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceClient = (*HTMLClient)(nil)

// HTMLClient scrapes HTML sources with CSS selector rules
type HTMLClient struct {
	fetcher *Fetcher
}

// NewHTMLClient creates an HTMLClient
func NewHTMLClient(fetcher *Fetcher) *HTMLClient {
	return &HTMLClient{fetcher: fetcher}
}

// Search runs the source search page for query
func (c *HTMLClient) Search(ctx context.Context, source *domain.ContentSource, query domain.SearchQuery, timeout time.Duration) ([]domain.SearchCandidate, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pageURL, err := searchURL(source, query)
	if err != nil {
		return nil, &SourceError{SourceID: source.ID, Op: "search", URL: source.Rules.SearchURL, Err: err}
	}
	doc, err := c.document(ctx, source, "search", pageURL, false)
	if err != nil {
		return nil, err
	}

	rules := source.Rules
	var candidates []domain.SearchCandidate
	doc.Find(rules.SearchList).Each(func(_ int, item *goquery.Selection) {
		href := selectField(item, rules.SearchURLField)
		resultURL, err := resolveURL(pageURL, href)
		if err != nil || resultURL == "" {
			return
		}
		candidates = append(candidates, domain.SearchCandidate{
			SourceID:      source.ID,
			SourceName:    source.Name,
			Title:         selectField(item, rules.SearchTitle),
			Author:        selectField(item, rules.SearchAuthor),
			ResultURL:     resultURL,
			LatestChapter: selectField(item, rules.SearchLatestChapter),
			WordCount:     selectField(item, rules.SearchWordCount),
			UpdatedAt:     selectField(item, rules.SearchUpdatedAt),
		})
	})
	return candidates, nil
}

// FetchChapterList reads the chapter index page behind resultURL
func (c *HTMLClient) FetchChapterList(ctx context.Context, source *domain.ContentSource, resultURL string) (*domain.ChapterList, error) {
	doc, err := c.document(ctx, source, "chapters", resultURL, true)
	if err != nil {
		return nil, err
	}

	rules := source.Rules
	list := &domain.ChapterList{SourceID: source.ID}
	doc.Find(rules.ChapterList).Each(func(_ int, item *goquery.Selection) {
		chapterURL, err := resolveURL(resultURL, selectField(item, rules.ChapterURLField))
		if err != nil || chapterURL == "" {
			return
		}
		list.Chapters = append(list.Chapters, domain.Chapter{
			Index: len(list.Chapters),
			Title: selectField(item, rules.ChapterTitle),
			URL:   chapterURL,
		})
	})

	if list.Len() == 0 {
		return nil, &SourceError{SourceID: source.ID, Op: "chapters", URL: resultURL, Err: domain.ErrEmptyResult}
	}
	return list, nil
}

func (c *HTMLClient) document(ctx context.Context, source *domain.ContentSource, op, pageURL string, retry bool) (*goquery.Document, error) {
	var (
		body []byte
		err  error
	)
	if retry {
		body, err = c.fetcher.GetWithRetry(ctx, source.ID, op, pageURL)
	} else {
		body, err = c.fetcher.Get(ctx, source.ID, op, pageURL)
	}
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &SourceError{SourceID: source.ID, Op: op, URL: pageURL, Err: fmt.Errorf("%w: %v", domain.ErrParse, err)}
	}
	return doc, nil
}

// selectField applies a "css@attr" rule relative to sel
func selectField(sel *goquery.Selection, rule string) string {
	if rule == "" {
		return ""
	}
	css, attr := splitSelector(rule)
	target := sel
	if css != "" {
		target = sel.Find(css).First()
	}
	if attr != "" {
		val, _ := target.Attr(attr)
		return strings.TrimSpace(val)
	}
	return strings.Join(strings.Fields(target.Text()), " ")
}
