package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError carries an HTTP status code so the classifier can map it
// without parsing message text.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Body)
}

// HTTPSource implements Source over JSON/HTTP. Reads are GETs against
// /{resource}; writes are POSTs against /mutations/{name}.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates an HTTP-backed source. The client carries no
// per-request timeout; the deadline guard owns that.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Fetch performs a read query.
func (s *HTTPSource) Fetch(ctx context.Context, q Query) (json.RawMessage, error) {
	u := s.baseURL + "/" + strings.TrimLeft(q.Resource, "/")
	if len(q.Params) > 0 {
		values := url.Values{}
		for k, v := range q.Params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return s.do(req)
}

// Mutate performs a write command.
func (s *HTTPSource) Mutate(ctx context.Context, c Command) (json.RawMessage, error) {
	body := c.Payload
	if body == nil {
		body = json.RawMessage("{}")
	}

	u := s.baseURL + "/mutations/" + c.Name
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return s.do(req)
}

// Ping measures a round trip against the backend health endpoint. The
// network monitor uses it as its probe.
func (s *HTTPSource) Ping(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return time.Since(start), nil
}

func (s *HTTPSource) do(req *http.Request) (json.RawMessage, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	return json.RawMessage(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
