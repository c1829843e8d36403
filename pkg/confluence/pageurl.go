package confluence

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/lolikgiovi/lockey/pkg/errors"
)

// PageRef identifies a page either by id or by space key and display title.
type PageRef struct {
	PageID   string
	SpaceKey string
	Title    string
}

var (
	numericSegmentPattern = regexp.MustCompile(`/(\d{3,})(?:/|$)`)
	displayPathPattern    = regexp.MustCompile(`^/display/([^/]+)/(.+)$`)
)

// ParsePageURL extracts a page reference from a Confluence page URL.
// Supported forms, in order: an explicit pageId query parameter, a numeric
// path segment of at least three digits, and /display/SPACE/Page+Title.
func ParsePageURL(raw string) (PageRef, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return PageRef{}, errors.New(errors.ErrCodeInvalidInput, "not a valid page URL").
			WithContext("url", raw)
	}

	for key, values := range parsed.Query() {
		if strings.EqualFold(key, "pageid") && len(values) > 0 && values[0] != "" {
			return PageRef{PageID: values[0]}, nil
		}
	}

	if m := numericSegmentPattern.FindStringSubmatch(parsed.Path); m != nil {
		return PageRef{PageID: m[1]}, nil
	}

	if m := displayPathPattern.FindStringSubmatch(parsed.Path); m != nil {
		// Path is already percent-decoded; legacy display URLs use + for spaces
		title := strings.ReplaceAll(m[2], "+", " ")
		return PageRef{SpaceKey: m[1], Title: title}, nil
	}

	return PageRef{}, errors.New(errors.ErrCodeInvalidInput, "URL carries neither a page id nor a display path").
		WithContext("url", raw)
}

// BaseOf returns the scheme://host base for a page URL, empty on failure.
func BaseOf(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
