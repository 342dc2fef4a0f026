package domain

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Normalizer applies the validation/sanitization pipeline to bookmark
// fields before they are allowed into a list, regardless of whether they
// come from a user action, a server merge or a share import.
//
// Text sanitization strips all markup (strict policy) and decodes the
// resulting entities, so only plain text is ever persisted or rendered.
type Normalizer struct {
	origin *url.URL
	policy *bluemonday.Policy
}

// NewNormalizer builds a Normalizer for the given origin
// (e.g. "https://example.com"). An empty origin produces a server-side
// normalizer that accepts only already-relative URLs and rejects every
// absolute one.
func NewNormalizer(origin string) (*Normalizer, error) {
	n := &Normalizer{policy: bluemonday.StrictPolicy()}
	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil {
			return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("origin %q must include scheme and host", origin)
		}
		n.origin = u
	}
	return n, nil
}

// RelativeURL reduces raw to origin-relative form: path+query+fragment
// with a leading slash. It returns "" for unparseable input and for URLs
// that resolve to a different origin.
func (n *Normalizer) RelativeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Host != "" {
		if u.Scheme != "http" && u.Scheme != "https" {
			return ""
		}
		if n.origin == nil || !strings.EqualFold(u.Host, n.origin.Host) {
			return ""
		}
	} else if u.Scheme != "" {
		// Schemes without a host (mailto:, javascript:, data:) never
		// describe a page on this origin.
		return ""
	}
	rel := &url.URL{Path: u.Path, RawQuery: u.RawQuery, Fragment: u.Fragment}
	if !strings.HasPrefix(rel.Path, "/") {
		rel.Path = "/" + rel.Path
	}
	return rel.String()
}

// SanitizeText strips all markup from s and returns the trimmed plain
// text. Markup-only input sanitizes to "".
func (n *Normalizer) SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(n.policy.Sanitize(s)))
}

// CleanBookmark runs the full pipeline over every field of b. The second
// return value is false when the entry is invalid (bad URL or a title
// that sanitizes to empty); invalid entries must be skipped, not fixed.
// A non-positive timestamp is replaced with now.
func (n *Normalizer) CleanBookmark(b Bookmark, now time.Time) (Bookmark, bool) {
	cleanURL := n.RelativeURL(b.URL)
	if cleanURL == "" {
		return Bookmark{}, false
	}
	title := n.SanitizeText(b.Title)
	if title == "" {
		return Bookmark{}, false
	}
	ts := b.TS
	if ts <= 0 {
		ts = now.UnixMilli()
	}
	return Bookmark{
		URL:         cleanURL,
		Title:       title,
		ImageLink:   n.RelativeURL(b.ImageLink),
		Description: n.SanitizeText(b.Description),
		TS:          ts,
	}, true
}

// CleanList validates every entry of list, silently dropping invalid ones.
func (n *Normalizer) CleanList(list []Bookmark, now time.Time) []Bookmark {
	out := make([]Bookmark, 0, len(list))
	for _, b := range list {
		if clean, ok := n.CleanBookmark(b, now); ok {
			out = append(out, clean)
		}
	}
	return out
}
