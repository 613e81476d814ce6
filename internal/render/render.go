// Package render defines the external headless-renderer collaborator (§6)
// the generic scraper delegates to for requires_js sources, plus two
// concrete backends (chromedp, go-rod+stealth) grounded on the pack's
// scraping-adjacent repos.
package render

import (
	"context"
	"time"
)

// Result mirrors the external renderer contract of §6.
type Result struct {
	FinalURL     string
	Status       int
	HTML         string
	DurationMs   int64
	RequestCount int
	Errors       []string
}

// Renderer is the narrow interface the scraper depends on; it never
// imports chromedp or go-rod directly (§6, §9 "coroutine/async workflow in
// the scraper -> synchronous code inside per-worker goroutines").
type Renderer interface {
	Render(ctx context.Context, url, waitFor string, timeout time.Duration) (*Result, error)
}

// NoopRenderer is used when no headless renderer is configured; it always
// fails closed so the scraper treats requires_js sources as unavailable
// rather than silently returning an empty page.
type NoopRenderer struct{}

func (NoopRenderer) Render(ctx context.Context, url, waitFor string, timeout time.Duration) (*Result, error) {
	return nil, errNoRenderer
}

var errNoRenderer = rendererError("no headless renderer configured")

type rendererError string

func (e rendererError) Error() string { return string(e) }
