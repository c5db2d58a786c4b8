package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"booklend/pkg/domain"
)

// Placeholder values substituted when every provider leaves title or author
// empty, so catalog records always render.
const (
	PlaceholderTitle  = "Unknown title"
	PlaceholderAuthor = "Unknown author"
)

// CoverNormalizer turns raw downloaded image bytes into a bounded thumbnail.
type CoverNormalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// Resolved is the final outcome of a cascade: merged bibliographic fields plus
// an optional normalized cover.
type Resolved struct {
	Result
	Cover []byte `json:"cover,omitempty"`
}

// Cache is an optional read-through store keyed by normalized ISBN.
type Cache interface {
	Get(ctx context.Context, isbn string) (Resolved, bool, error)
	Put(ctx context.Context, isbn string, r Resolved) error
}

// Resolver tries providers in priority order and falls back on incomplete
// answers. Provider failures never escape the resolver; the only caller
// visible error is domain.ErrNoMetadata after the whole cascade came up empty.
type Resolver struct {
	providers  []Provider
	normalizer CoverNormalizer
	cache      Cache
	client     *http.Client
	log        *slog.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithCache adds a read-through cache in front of the cascade.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithCoverClient overrides the HTTP client used for cover downloads.
func WithCoverClient(client *http.Client) ResolverOption {
	return func(r *Resolver) { r.client = client }
}

// NewResolver builds a resolver over the given providers, first one wins.
func NewResolver(providers []Provider, normalizer CoverNormalizer, log *slog.Logger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{
		providers:  providers,
		normalizer: normalizer,
		client:     newHTTPClient(defaultTimeout),
		log:        log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the cascade for an ISBN.
//
// The first provider whose result has both title and author short-circuits the
// rest. An insufficient or failed answer moves on to the next provider, whose
// result replaces (never merges with) the earlier partial one when it returns
// anything at all. If every provider returns nothing the caller sees
// domain.ErrNoMetadata; otherwise missing title/author are filled with
// placeholders.
func (r *Resolver) Resolve(ctx context.Context, isbn string) (Resolved, error) {
	isbn = domain.NormalizeISBN(isbn)
	if isbn == "" {
		return Resolved{}, domain.ErrNoMetadata
	}

	if r.cache != nil {
		if cached, ok, err := r.cache.Get(ctx, isbn); err != nil {
			r.log.Warn("metadata cache read failed", "isbn", isbn, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	var best Result
	for _, p := range r.providers {
		res, err := p.Fetch(ctx, isbn)
		if err != nil {
			r.log.Warn("metadata provider failed", "provider", p.Name(), "isbn", isbn, "error", err)
			continue
		}
		if res.IsZero() {
			continue
		}
		// A later provider's answer replaces an earlier partial one outright;
		// partial results are never merged across providers.
		best = res
		if res.Sufficient() {
			break
		}
	}
	if best.IsZero() {
		return Resolved{}, domain.ErrNoMetadata
	}
	if best.Title == "" {
		best.Title = PlaceholderTitle
	}
	if best.Author == "" {
		best.Author = PlaceholderAuthor
	}

	resolved := Resolved{Result: best}
	if best.CoverURL != "" {
		if cover, err := r.fetchCover(ctx, best.CoverURL); err != nil {
			r.log.Warn("cover download failed", "isbn", isbn, "url", best.CoverURL, "error", err)
		} else {
			resolved.Cover = cover
		}
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, isbn, resolved); err != nil {
			r.log.Warn("metadata cache write failed", "isbn", isbn, "error", err)
		}
	}
	return resolved, nil
}

// fetchCover downloads and normalizes a cover image. Failures are non-fatal
// for the caller; bibliographic fields survive without the cover.
func (r *Resolver) fetchCover(ctx context.Context, coverURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, SecureURL(coverURL), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("not an image: %s", ct)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	if r.normalizer == nil {
		return data, nil
	}
	return r.normalizer.Normalize(data)
}

// SecureURL upgrades provider links to HTTPS. Google Books in particular still
// hands out http:// thumbnail URLs.
func SecureURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
