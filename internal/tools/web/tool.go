// Package web implements the GET-only web tool: scheme-restricted,
// redirect-bounded, size-truncated, with an HTML-to-text extractor for
// text/html responses.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Timeout bounds the whole request, including redirects.
const Timeout = 30 * time.Second

// MaxRedirects is the ceiling on followed redirects.
const MaxRedirects = 5

// MaxBody is the truncation ceiling on a successful response body.
const MaxBody = 100 * 1024

// maxErrorBody truncates the body surfaced in an HTTP>=400 tool error.
const maxErrorBody = 500

// Tool implements the "web" capability: GET url only.
type Tool struct {
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a web tool. ratePerSecond bounds outbound GETs (0 disables
// limiting).
func New(ratePerSecond float64) *Tool {
	client := &http.Client{
		Timeout: Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", MaxRedirects)
			}
			return nil
		},
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &Tool{client: client, limiter: limiter}
}

func (t *Tool) Name() string { return "web" }

func (t *Tool) Description() string {
	return "Fetch the contents of a web page via HTTP GET. HTML is stripped to plain text."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
		},
		"required": []string{"url"},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (string, error) {
	raw, _ := args["url"].(string)
	if raw == "" {
		return "", fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q, only http/https allowed", u.Scheme)
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBody+1))
	if err != nil {
		return "", err
	}
	truncated := false
	if len(body) > MaxBody {
		body = body[:MaxBody]
		truncated = true
	}

	if resp.StatusCode >= 400 {
		errBody := body
		if len(errBody) > maxErrorBody {
			errBody = errBody[:maxErrorBody]
		}
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(errBody))
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text = StripHTML(text)
	}
	if truncated {
		text += "\n...[truncated]"
	}
	return text, nil
}
