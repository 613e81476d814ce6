package render

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromedpRenderer renders a page with a headless Chrome instance, the same
// navigate-wait-evaluate shape as codenamed22-hire.ai's scrapeWithChromedp.
type ChromedpRenderer struct{}

// NewChromedpRenderer constructs a ChromedpRenderer.
func NewChromedpRenderer() *ChromedpRenderer { return &ChromedpRenderer{} }

func (r *ChromedpRenderer) Render(ctx context.Context, url, waitFor string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}

	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var html, finalURL string

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if waitFor != "" {
		actions = append(actions, chromedp.WaitVisible(waitFor, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(300*time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	err := chromedp.Run(ctx, actions...)
	res := &Result{
		FinalURL:   finalURL,
		HTML:       html,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     200,
	}
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	return res, nil
}
