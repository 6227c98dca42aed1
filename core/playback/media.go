package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

// LoadResult is the outcome of one attempt to open a URL.
type LoadResult struct {
	Accepted bool
	Duration float64 // seconds, 0 when unknown
	Reason   string
}

// MediaHandle is the playable element the Coordinator drives. Load must report exactly
// once through done, possibly from another goroutine; a cancelled ctx means the attempt
// was abandoned and its result will be ignored.
type MediaHandle interface {
	Load(ctx context.Context, url string, done func(LoadResult))
}

// HTTPProbe checks that a URL answers with audio bytes before the session commits to it.
// It issues a ranged GET for the first two bytes.
type HTTPProbe struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProbe creates a probe. timeout bounds a single attempt; zero disables the bound.
func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		},
		Timeout: timeout,
	}
}

func (p *HTTPProbe) Load(ctx context.Context, url string, done func(LoadResult)) {
	go func() {
		done(p.Probe(ctx, url))
	}()
}

// Probe runs the check synchronously.
func (p *HTTPProbe) Probe(ctx context.Context, url string) LoadResult {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return LoadResult{Reason: fmt.Sprintf("invalid url: %v", err)}
	}
	req.Header.Set("Range", "bytes=0-1")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return LoadResult{Reason: "probe timed out"}
		}
		return LoadResult{Reason: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return LoadResult{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isPlayableType(contentType) {
		return LoadResult{Reason: fmt.Sprintf("unsupported content type %q", contentType)}
	}
	return LoadResult{Accepted: true}
}

func isPlayableType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mediaType, "audio/"), strings.HasPrefix(mediaType, "video/"):
		return true
	case mediaType == "application/ogg", mediaType == "application/octet-stream",
		mediaType == "binary/octet-stream":
		return true
	}
	return false
}
