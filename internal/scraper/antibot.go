package scraper

import (
	"fmt"
	"strings"

	"github.com/jobmate/discovery-core/internal/model"
)

// blockedBodyMarkers are substrings (checked case-insensitively) that mark
// a response body as an anti-bot / challenge page rather than real content
// (§4.2.4).
var blockedBodyMarkers = []string{
	"captcha",
	"recaptcha",
	"hcaptcha",
	"challenge-platform",
	"cf-browser-verification",
	"just a moment",
	"robot",
	"access denied",
	"rate limit",
	"too many requests",
	"403 forbidden",
	"please verify",
}

// checkBlockedStatus raises ErrScrapeBlocked for any 4xx response (§4.2.4.a).
func checkBlockedStatus(status int, reason string) error {
	if status >= 400 && status < 500 {
		return model.NewScrapeBlocked(fmt.Sprintf("HTTP %d: %s", status, reason))
	}
	return nil
}

// looksBlocked reports whether a zero-entry parse result's raw body looks
// like an anti-bot challenge page (§4.2.4.b).
func looksBlocked(body string) (bool, string) {
	lower := strings.ToLower(body)
	if !strings.Contains(lower, "<html") && !strings.Contains(lower, "<!doctype") {
		return false, ""
	}
	for _, marker := range blockedBodyMarkers {
		if strings.Contains(lower, marker) {
			return true, marker
		}
	}
	return false, ""
}

// blockedReasonFor turns a detected marker into a human-readable reason,
// special-casing the Cloudflare waiting page wording used in §8 S5.
func blockedReasonFor(marker string) string {
	switch marker {
	case "just a moment":
		return "Cloudflare waiting page detected"
	case "captcha", "recaptcha", "hcaptcha":
		return "CAPTCHA challenge detected"
	case "challenge-platform", "cf-browser-verification":
		return "Cloudflare challenge platform detected"
	case "403 forbidden", "access denied":
		return "access denied by upstream"
	case "rate limit", "too many requests":
		return "rate limited by upstream"
	default:
		return "anti-bot page detected (" + marker + ")"
	}
}
