package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	appLog "meetprep/internal/log"
)

const maxPayloadBytes = 8 << 20

// ErrPayloadTooLarge is returned when a response body exceeds 8MB.
var ErrPayloadTooLarge = errors.New("calendar payload too large")

// HTTPSource fetches the payload from a URL, honoring ETag and
// Last-Modified. The last good body is kept in memory and served again on
// 304, on network errors, on non-OK statuses and on oversized bodies.
type HTTPSource struct {
	URL    string
	Client *http.Client

	mu           sync.Mutex
	etag         string
	lastModified string
	body         []byte
}

// NewHTTP returns an HTTPSource with a 15s client timeout.
func NewHTTP(url string) *HTTPSource {
	return &HTTPSource{
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (h *HTTPSource) Load(ctx context.Context) ([]byte, error) {
	if h.URL == "" {
		return nil, errors.New("fixture URL is empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if h.etag != "" {
		req.Header.Set("If-None-Match", h.etag)
	}
	if h.lastModified != "" {
		req.Header.Set("If-Modified-Since", h.lastModified)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if len(h.body) > 0 {
			appLog.Error("fixture fetch failed, using cached body", err, "url", redactURL(h.URL))
			return h.cached(), nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
		if err != nil {
			return nil, err
		}
		if len(body) > maxPayloadBytes {
			sizeErr := fmt.Errorf("fetch %s: %w (limit %d bytes)", redactURL(h.URL), ErrPayloadTooLarge, maxPayloadBytes)
			if len(h.body) > 0 {
				appLog.Error("fixture too large, using cached body", sizeErr)
				return h.cached(), nil
			}
			return nil, sizeErr
		}
		h.etag = resp.Header.Get("ETag")
		h.lastModified = resp.Header.Get("Last-Modified")
		h.body = body
		appLog.Debug("fixture fetched", "url", redactURL(h.URL), "bytes", len(body))
		return h.cached(), nil

	case http.StatusNotModified:
		if len(h.body) == 0 {
			return nil, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("fixture not modified; using cache", "url", redactURL(h.URL))
		return h.cached(), nil

	default:
		statusErr := fmt.Errorf("fetch %s: %s", redactURL(h.URL), resp.Status)
		if len(h.body) > 0 {
			appLog.Error("fixture fetch non-OK, using cached body", statusErr, "status", resp.StatusCode)
			return h.cached(), nil
		}
		return nil, statusErr
	}
}

// cached expects h.mu to be held.
func (h *HTTPSource) cached() []byte {
	out := make([]byte, len(h.body))
	copy(out, h.body)
	return out
}

// redactURL keeps scheme and host only, so tokens in paths or query strings
// stay out of the logs.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
