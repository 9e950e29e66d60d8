package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleBooksBase = "https://www.googleapis.com/books/v1/volumes"

// googleBooksVolumesResp is the response from GET /volumes?q=isbn:...
type googleBooksVolumesResp struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title       string `json:"title"`
			Subtitle    string `json:"subtitle"`
			Description string `json:"description"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// BookMetadata is the part of a catalogue record used to fill in a new book.
type BookMetadata struct {
	Title       string
	Description string
}

type MetadataFetcher interface {
	FetchByISBN(ctx context.Context, isbn string) (*BookMetadata, error)
}

// GoogleBooks looks books up on the public Google Books volumes API.
type GoogleBooks struct {
	BaseURL string
	Client  *http.Client
}

func NewGoogleBooks() *GoogleBooks {
	// short timeout so a slow lookup does not hold up adding a book
	return &GoogleBooks{BaseURL: googleBooksBase, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (g *GoogleBooks) FetchByISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
	if isbn == "" {
		return nil, fmt.Errorf("isbn is required")
	}
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books returned %d", resp.StatusCode)
	}
	var data googleBooksVolumesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, fmt.Errorf("no volume found for isbn %s", isbn)
	}
	vi := data.Items[0].VolumeInfo
	meta := &BookMetadata{
		Title:       vi.Title,
		Description: strings.TrimSpace(vi.Description),
	}
	if vi.Subtitle != "" {
		meta.Title = meta.Title + ": " + vi.Subtitle
	}
	return meta, nil
}
