package sources

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/castn/sourceswitch/internal/core/domain"
)

// searchURL expands the search template of a source for query
func searchURL(source *domain.ContentSource, query domain.SearchQuery) (string, error) {
	raw := strings.NewReplacer(
		"{{key}}", url.QueryEscape(query.Title),
		"{{author}}", url.QueryEscape(query.Author),
	).Replace(source.Rules.SearchURL)
	return resolveURL(source.BaseURL, raw)
}

// resolveURL resolves ref against base. Absolute refs are returned as is.
func resolveURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: bad url %q: %v", domain.ErrParse, ref, err)
	}
	if refURL.IsAbs() || base == "" {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: bad base url %q: %v", domain.ErrParse, base, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// splitSelector splits an html rule of the form "css@attr".
// "a@href" reads the href of the first <a>, "@href" reads the element
// itself, a rule without '@' reads the text.
func splitSelector(rule string) (css, attr string) {
	if i := strings.LastIndex(rule, "@"); i >= 0 {
		return strings.TrimSpace(rule[:i]), strings.TrimSpace(rule[i+1:])
	}
	return strings.TrimSpace(rule), ""
}
