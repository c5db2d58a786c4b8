// Package metadata resolves bibliographic data for an ISBN by cascading over
// external providers and normalizing the cover image.
package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Result holds canonical bibliographic fields parsed out of one provider's
// response shape.
type Result struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	PublishYear int    `json:"publishYear,omitempty"`
	CoverURL    string `json:"coverUrl,omitempty"`
	Source      string `json:"source,omitempty"`
}

// Sufficient reports whether the result can stand on its own: both title and
// author must be present.
func (r Result) Sufficient() bool {
	return r.Title != "" && r.Author != ""
}

// IsZero reports whether the provider returned nothing at all.
func (r Result) IsZero() bool {
	return r.Title == "" && r.Author == "" && r.Description == "" &&
		r.Publisher == "" && r.PublishYear == 0 && r.CoverURL == ""
}

// Provider fetches metadata for an ISBN from one external source. A provider
// that finds nothing returns a zero Result and a nil error; transport and
// decoding problems come back as errors and are swallowed by the resolver.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, isbn string) (Result, error)
}

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 4 << 20
)

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON fetches the URL and returns the body, failing on any non-200 status.
func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
}

// publishYearOf extracts a four digit year from a free-text publish date.
// Unparseable dates are silently dropped.
func publishYearOf(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}
