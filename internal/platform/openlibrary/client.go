// Package openlibrary looks up bibliographic data for a single ISBN against
// the Open Library books API and maps it into a normalized edition record.
package openlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/time/rate"

	"bookkin/internal/isbn"
)

// ErrNotFound means Open Library has no record for the requested identifier.
// Transport and decoding failures are returned as distinct errors so callers
// can tell an outage from a genuine miss.
var ErrNotFound = errors.New("openlibrary: edition not found")

var olidPattern = regexp.MustCompile(`OL\d+M$`)

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
}

func NewClient(userAgent string, rps int) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent: userAgent,
		baseURL:   "https://openlibrary.org",
		limiter:   rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
	}
}

// WithBaseURL overrides the API host, used by tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Edition is the normalized result of one lookup.
type Edition struct {
	Title         string
	Subtitle      string
	Authors       []string
	Publishers    []string
	PublishDate   string
	PageCount     int
	ISBN10        string
	ISBN13        string
	CoverImageURL string
	FirstSentence string
	OpenLibraryID string
	GoogleBooksID string
}

// rawBook matches api/books?jscmd=data
type rawBook struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Authors  []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate   string `json:"publish_date"`
	NumberOfPages int    `json:"number_of_pages"`
	Identifiers   struct {
		ISBN10      []string `json:"isbn_10"`
		ISBN13      []string `json:"isbn_13"`
		OpenLibrary []string `json:"openlibrary"`
		Google      []string `json:"google"`
	} `json:"identifiers"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Excerpts []struct {
		Text          string `json:"text"`
		FirstSentence bool   `json:"first_sentence"`
	} `json:"excerpts"`
}

// FetchByISBN issues exactly one lookup for the given normalized ISBN.
// It returns ErrNotFound when Open Library has no matching record.
func (c *Client) FetchByISBN(ctx context.Context, id string) (*Edition, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	bibkey := "ISBN:" + id
	u := fmt.Sprintf("%s/api/books?bibkeys=%s&format=json&jscmd=data", c.baseURL, bibkey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openlibrary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openlibrary: unexpected status code: %d", resp.StatusCode)
	}

	var body map[string]rawBook
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("openlibrary decode: %w", err)
	}

	raw, ok := body[bibkey]
	if !ok {
		return nil, ErrNotFound
	}

	return mapEdition(raw), nil
}

func mapEdition(raw rawBook) *Edition {
	ed := &Edition{
		Title:         raw.Title,
		Subtitle:      raw.Subtitle,
		PublishDate:   raw.PublishDate,
		PageCount:     raw.NumberOfPages,
		CoverImageURL: coverURL(raw),
		OpenLibraryID: openLibraryID(raw),
		GoogleBooksID: firstIdentifier(raw.Identifiers.Google),
		ISBN10:        isbn.Normalize(firstIdentifier(raw.Identifiers.ISBN10)),
		ISBN13:        isbn.Normalize(firstIdentifier(raw.Identifiers.ISBN13)),
	}

	for _, a := range raw.Authors {
		if a.Name != "" {
			ed.Authors = append(ed.Authors, a.Name)
		}
	}
	for _, p := range raw.Publishers {
		if p.Name != "" {
			ed.Publishers = append(ed.Publishers, p.Name)
		}
	}
	for _, e := range raw.Excerpts {
		if e.FirstSentence {
			ed.FirstSentence = e.Text
			break
		}
	}

	return ed
}

// coverURL prefers the largest available resolution.
func coverURL(raw rawBook) string {
	switch {
	case raw.Cover.Large != "":
		return raw.Cover.Large
	case raw.Cover.Medium != "":
		return raw.Cover.Medium
	default:
		return raw.Cover.Small
	}
}

// openLibraryID extracts an edition id from the record key ("/books/OL123M")
// and falls back to the identifiers block.
func openLibraryID(raw rawBook) string {
	if m := olidPattern.FindString(raw.Key); m != "" {
		return m
	}
	return firstIdentifier(raw.Identifiers.OpenLibrary)
}

func firstIdentifier(ids []string) string {
	if len(ids) > 0 {
		return ids[0]
	}
	return ""
}
