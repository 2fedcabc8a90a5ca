package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "Mozilla/5.0 (compatible; stockdash/1.0)"

type Connection interface {
	Request(ctx context.Context, endpoint *url.URL) (*http.Response, error)
}

type ClientHost struct {
	client *http.Client
	scheme string
	host   string
}

type Client struct {
	Connection Connection
	ApiKey     string
}

// Request resolves the endpoint path and query against the client host and issues a GET
func (conn *ClientHost) Request(ctx context.Context, endpoint *url.URL) (*http.Response, error) {
	target := *endpoint
	target.Scheme = conn.scheme
	target.Host = conn.host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building request for %s: %w", conn.host, err)
	}
	req.Header.Set("User-Agent", userAgent)

	return conn.client.Do(req)
}

// ClientFactory builds a client for host, which is either a bare host (https is assumed) or a full base url.
// A nil transport uses http.DefaultTransport.
func ClientFactory(host string, apiKey string, timeout time.Duration, transport http.RoundTripper) *Client {
	scheme := "https"
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		scheme = u.Scheme
		host = u.Host
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	clientHost := &ClientHost{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		scheme: scheme,
		host:   strings.TrimSuffix(host, "/"),
	}

	return &Client{
		Connection: clientHost,
		ApiKey:     apiKey,
	}
}

// UpstreamError is a non 2xx reply from a provider
type UpstreamError struct {
	Host       string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Host, e.StatusCode, e.Body)
}

// ReadBody drains and closes the response, non 2xx statuses become an UpstreamError
func ReadBody(response *http.Response) ([]byte, error) {
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &UpstreamError{
			Host:       response.Request.URL.Host,
			StatusCode: response.StatusCode,
			Body:       snippet,
		}
	}

	return body, nil
}
