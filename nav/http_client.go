package nav

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for snapshot fetches.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of attempts.
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// maxResponseBytes caps the response body at 50 MB.
	maxResponseBytes = 50 << 20
)

// FetchOption configures FetchPeerSnapshot.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) FetchOption {
	return func(c *fetchConfig) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the base delay for exponential backoff between retries.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.baseBackoff = d
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) {
		c.client = client
	}
}

// FetchPeerSnapshot pulls a grid snapshot from a peer's /grid endpoint.
// Transport failures and non-200 responses are retried with exponential
// backoff; a body that does not decode is returned as an error immediately.
func FetchPeerSnapshot(ctx context.Context, url string, opts ...FetchOption) (*GridSnapshot, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch snapshot: URL is empty")
	}

	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	attempts := max(cfg.maxRetries, 1)

	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			backoff := cfg.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch snapshot: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := doFetch(ctx, client, url)
		if err != nil {
			lastErr = err
			continue
		}

		s, err := DecodeSnapshot(body)
		if err != nil {
			return nil, fmt.Errorf("fetch snapshot: %w", err)
		}
		return s, nil
	}

	return nil, fmt.Errorf("fetch snapshot: all %d attempts failed: %w", attempts, lastErr)
}

// SyncPeers fetches every peer that has an API URL and merges its snapshot
// into g. It returns how many peers were merged; failures are logged by the
// caller through the returned error slice.
func SyncPeers(ctx context.Context, cfg *Config, g *GridMap, opts ...FetchOption) (int, []error) {
	merged := 0
	var errs []error
	for _, peer := range cfg.Peers {
		if peer.ApiURL == nil || *peer.ApiURL == "" {
			continue
		}
		s, err := FetchPeerSnapshot(ctx, *peer.ApiURL, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", peer.ID, err))
			continue
		}
		if s.AgentID != "" && s.AgentID == cfg.AgentID {
			continue
		}
		if err := g.MergeSnapshot(s, peer.Confidence); err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", peer.ID, err))
			continue
		}
		merged++
	}
	return merged, errs
}

func doFetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}
