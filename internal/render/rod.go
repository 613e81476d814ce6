package render

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// RodRenderer renders a page using go-rod with stealth.Page, an alternate
// backend grounded on hazyhaar-chrc's use of go-rod/stealth; its anti-
// detection navigation doubles as defense against §4.2.4 anti-bot pages.
type RodRenderer struct {
	browser *rod.Browser
}

// NewRodRenderer connects to a locally-launched (or remote, via
// ControlURL) browser instance.
func NewRodRenderer(controlURL string) (*RodRenderer, error) {
	browser := rod.New()
	if controlURL != "" {
		browser = browser.ControlURL(controlURL)
	}
	if err := browser.Connect(); err != nil {
		return nil, err
	}
	return &RodRenderer{browser: browser}, nil
}

func (r *RodRenderer) Render(ctx context.Context, url, waitFor string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	start := time.Now()

	page, err := stealth.Page(r.browser)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return &Result{Errors: []string{err.Error()}, DurationMs: time.Since(start).Milliseconds()}, err
	}
	if err := page.WaitLoad(); err != nil {
		return &Result{Errors: []string{err.Error()}, DurationMs: time.Since(start).Milliseconds()}, err
	}
	if waitFor != "" {
		if el, err := page.Element(waitFor); err == nil {
			_ = el.WaitVisible()
		}
	}

	html, err := page.HTML()
	if err != nil {
		return &Result{Errors: []string{err.Error()}, DurationMs: time.Since(start).Milliseconds()}, err
	}
	info, _ := page.Info()
	finalURL := url
	if info != nil {
		finalURL = info.URL
	}

	return &Result{
		FinalURL:   finalURL,
		HTML:       html,
		Status:     200,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close releases the underlying browser connection.
func (r *RodRenderer) Close() error {
	return r.browser.Close()
}
