// Package scholar queries a Semantic Scholar compatible bibliographic API
// for author lookups and publication lists.
package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors for bibliographic API failures.
var (
	ErrUnreachable = errors.New("scholar api unreachable")
	ErrQueryError  = errors.New("scholar api query error")
	ErrTimeout     = errors.New("scholar api timeout")
)

// Author is a bibliographic author record.
type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
}

// Paper is a single publication attributed to an author.
type Paper struct {
	PaperID string `json:"paperId"`
	Title   string `json:"title"`
	Year    int    `json:"year"`
	URL     string `json:"url,omitempty"`
}

// Client is the interface for querying the bibliographic API.
type Client interface {
	SearchAuthors(ctx context.Context, name string, limit int) ([]Author, error)
	AuthorPapers(ctx context.Context, authorID string, limit int) ([]Paper, error)
}

// HTTPClient implements Client against the Semantic Scholar graph API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new bibliographic HTTP client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (c *HTTPClient) SearchAuthors(ctx context.Context, name string, limit int) ([]Author, error) {
	params := url.Values{"query": {name}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	u := fmt.Sprintf("%s/author/search?%s", c.baseURL, params.Encode())

	var resp listResponse[Author]
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *HTTPClient) AuthorPapers(ctx context.Context, authorID string, limit int) ([]Paper, error) {
	params := url.Values{"fields": {"title,year,authors,url"}}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	u := fmt.Sprintf("%s/author/%s/papers?%s", c.baseURL, url.PathEscape(authorID), params.Encode())

	var resp listResponse[Paper]
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrQueryError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding scholar response: %w", err)
	}
	return nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
