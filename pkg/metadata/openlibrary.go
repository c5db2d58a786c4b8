package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"booklend/pkg/domain"
)

const openLibraryBaseURL = "https://openlibrary.org/api/books"

// OpenLibrary queries the Open Library books API by ISBN. It is the fallback
// source when Google Books comes up short.
type OpenLibrary struct {
	baseURL string
	client  *http.Client
}

// NewOpenLibrary builds the provider. baseURL overrides are for tests; pass ""
// for the real endpoint.
func NewOpenLibrary(baseURL string, timeout time.Duration) *OpenLibrary {
	if baseURL == "" {
		baseURL = openLibraryBaseURL
	}
	return &OpenLibrary{baseURL: baseURL, client: newHTTPClient(timeout)}
}

func (o *OpenLibrary) Name() string { return "openlibrary" }

type openLibraryRecord struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate string `json:"publish_date"`
	Cover       struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
		Small  string `json:"small"`
	} `json:"cover"`
	Notes string `json:"notes"`
}

// Fetch looks the ISBN up via the bibkeys endpoint.
func (o *OpenLibrary) Fetch(ctx context.Context, isbn string) (Result, error) {
	isbn = domain.NormalizeISBN(isbn)
	if isbn == "" {
		return Result{}, nil
	}
	key := "ISBN:" + isbn
	u := fmt.Sprintf("%s?bibkeys=%s&format=json&jscmd=data", o.baseURL, url.QueryEscape(key))
	body, err := getJSON(ctx, o.client, u)
	if err != nil {
		return Result{}, fmt.Errorf("open library: %w", err)
	}
	var records map[string]openLibraryRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return Result{}, fmt.Errorf("open library: decode: %w", err)
	}
	rec, ok := records[key]
	if !ok {
		return Result{}, nil
	}
	authors := make([]string, 0, len(rec.Authors))
	for _, a := range rec.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}
	publisher := ""
	if len(rec.Publishers) > 0 {
		publisher = strings.TrimSpace(rec.Publishers[0].Name)
	}
	cover := rec.Cover.Large
	if cover == "" {
		cover = rec.Cover.Medium
	}
	if cover == "" {
		cover = rec.Cover.Small
	}
	return Result{
		Title:       strings.TrimSpace(rec.Title),
		Author:      strings.Join(authors, ", "),
		Description: strings.TrimSpace(rec.Notes),
		Publisher:   publisher,
		PublishYear: publishYearOf(rec.PublishDate),
		CoverURL:    SecureURL(cover),
		Source:      o.Name(),
	}, nil
}
