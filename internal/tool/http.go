package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const maxFetchBytes = 512 << 10

// httpFetcher performs GET requests for the http_fetch capability.
type httpFetcher struct {
	client *http.Client
}

func (h *httpFetcher) fetch(ctx context.Context, inv Invocation) (string, error) {
	raw, err := stringArg(inv.Args, "url")
	if err != nil {
		return "", err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", Terminal(fmt.Errorf("invalid url %s: %w", raw, err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", Terminal(fmt.Errorf("unsupported url scheme %q", u.Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "foreman/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", raw, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: status %d", raw, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return "", fmt.Errorf("read response from %s: %w", raw, err)
	}
	if len(body) > maxFetchBytes {
		return string(body[:maxFetchBytes]) + "\n[truncated]", nil
	}
	return string(body), nil
}
