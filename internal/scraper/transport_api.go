package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jobmate/discovery-core/internal/model"
	"github.com/jobmate/discovery-core/internal/sourceconfig"
)

// scrapeAPI dispatches the "api" transport: auto-paginates when method=POST
// and post_body carries both offset and limit, otherwise issues a single
// request (§4.2).
func (s *Scraper) scrapeAPI(ctx context.Context) ([]map[string]any, error) {
	method := s.Config.Method
	if method == "" {
		method = http.MethodGet
	}

	if method == http.MethodPost && hasOffsetLimit(s.Config.PostBody) {
		return s.paginateAPI(ctx)
	}

	body, status, err := s.doAPIRequest(ctx, method, s.Config.PostBody)
	if err != nil {
		return nil, err
	}
	if err := checkBlockedStatus(status, http.StatusText(status)); err != nil {
		return nil, err
	}

	items, blocked, err := s.decodeResponsePath(body)
	if blocked {
		return nil, err
	}
	return items, err
}

func hasOffsetLimit(body map[string]any) bool {
	if body == nil {
		return false
	}
	_, hasOffset := body["offset"]
	_, hasLimit := body["limit"]
	return hasOffset && hasLimit
}

// paginateAPI implements §4.2.3's POST offset/limit auto-pagination.
func (s *Scraper) paginateAPI(ctx context.Context) ([]map[string]any, error) {
	offset := intFromBody(s.Config.PostBody, "offset", 0)
	limit := intFromBody(s.Config.PostBody, "limit", 20)

	var all []map[string]any
	for page := 0; page < maxPaginationPages; page++ {
		body := cloneBody(s.Config.PostBody)
		body["offset"] = offset
		body["limit"] = limit

		respBody, status, err := s.doAPIRequest(ctx, http.MethodPost, body)
		if err != nil {
			return all, err
		}
		if status < 200 || status >= 300 {
			return all, model.NewScrapeBlocked(fmt.Sprintf("HTTP %d: pagination request failed", status))
		}

		items, blocked, err := s.decodeResponsePath(respBody)
		if blocked {
			return all, err
		}
		if len(items) == 0 {
			break
		}
		all = append(all, items...)
		if len(items) < limit {
			break
		}
		offset += limit

		if page == maxPaginationPages-1 {
			s.log.Warn("auto-pagination hit the 50-page hard cap")
		}
	}
	return all, nil
}

func intFromBody(body map[string]any, key string, def int) int {
	if body == nil {
		return def
	}
	switch v := body[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func cloneBody(body map[string]any) map[string]any {
	out := make(map[string]any, len(body)+2)
	for k, v := range body {
		out[k] = v
	}
	return out
}

func (s *Scraper) doAPIRequest(ctx context.Context, method string, body map[string]any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal post body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	reqURL := s.EffectiveURL()
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.applyAuth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// decodeResponsePath JSON-decodes body and navigates response_path,
// returning the list of raw item maps. blocked is true when the caller
// should propagate err (an *model.ErrScrapeBlocked) rather than continue.
func (s *Scraper) decodeResponsePath(body []byte) (items []map[string]any, blocked bool, err error) {
	var decoded any
	if jsonErr := json.Unmarshal(body, &decoded); jsonErr != nil {
		if isBlocked, marker := looksBlocked(string(body)); isBlocked {
			return nil, true, model.NewScrapeBlocked(blockedReasonFor(marker), model.TagAntiBot)
		}
		return nil, false, fmt.Errorf("json unmarshal: %w", jsonErr)
	}

	navigated := decoded
	if s.Config.ResponsePath != "" {
		v, ok := sourceconfig.Navigate(decoded, s.Config.ResponsePath)
		if !ok {
			return nil, false, nil
		}
		navigated = v
	}

	arr, ok := navigated.([]any)
	if !ok {
		if obj, ok := navigated.(map[string]any); ok {
			return []map[string]any{obj}, false, nil
		}
		return nil, false, nil
	}

	out := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		if obj, ok := el.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out, false, nil
}
