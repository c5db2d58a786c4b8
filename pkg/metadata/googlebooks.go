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

const googleBooksBaseURL = "https://www.googleapis.com/books/v1/volumes"

// GoogleBooks queries the Google Books volumes API by ISBN.
type GoogleBooks struct {
	baseURL string
	client  *http.Client
}

// NewGoogleBooks builds the provider. baseURL overrides are for tests; pass ""
// for the real endpoint.
func NewGoogleBooks(baseURL string, timeout time.Duration) *GoogleBooks {
	if baseURL == "" {
		baseURL = googleBooksBaseURL
	}
	return &GoogleBooks{baseURL: baseURL, client: newHTTPClient(timeout)}
}

func (g *GoogleBooks) Name() string { return "googlebooks" }

type googleVolumeList struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Authors       []string `json:"authors"`
			Description   string   `json:"description"`
			Publisher     string   `json:"publisher"`
			PublishedDate string   `json:"publishedDate"`
			ImageLinks    struct {
				Thumbnail      string `json:"thumbnail"`
				SmallThumbnail string `json:"smallThumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Fetch looks the ISBN up and maps the first matching volume onto the
// canonical fields.
func (g *GoogleBooks) Fetch(ctx context.Context, isbn string) (Result, error) {
	isbn = domain.NormalizeISBN(isbn)
	if isbn == "" {
		return Result{}, nil
	}
	u := fmt.Sprintf("%s?q=%s", g.baseURL, url.QueryEscape("isbn:"+isbn))
	body, err := getJSON(ctx, g.client, u)
	if err != nil {
		return Result{}, fmt.Errorf("google books: %w", err)
	}
	var list googleVolumeList
	if err := json.Unmarshal(body, &list); err != nil {
		return Result{}, fmt.Errorf("google books: decode: %w", err)
	}
	if list.TotalItems == 0 || len(list.Items) == 0 {
		return Result{}, nil
	}
	info := list.Items[0].VolumeInfo
	cover := info.ImageLinks.Thumbnail
	if cover == "" {
		cover = info.ImageLinks.SmallThumbnail
	}
	return Result{
		Title:       strings.TrimSpace(info.Title),
		Author:      strings.TrimSpace(strings.Join(info.Authors, ", ")),
		Description: strings.TrimSpace(info.Description),
		Publisher:   strings.TrimSpace(info.Publisher),
		PublishYear: publishYearOf(info.PublishedDate),
		CoverURL:    SecureURL(cover),
		Source:      g.Name(),
	}, nil
}
