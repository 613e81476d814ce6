package scraper

import "testing"

func TestNormalizeCompanyName_CaseAndSuffix(t *testing.T) {
	if got := NormalizeCompanyName("Acme Inc."); got != "acme" {
		t.Errorf("NormalizeCompanyName(Acme Inc.) = %q, want acme", got)
	}
	if got := NormalizeCompanyName("ACME"); got != "acme" {
		t.Errorf("NormalizeCompanyName(ACME) = %q, want acme", got)
	}
}

func TestFuzzyCompanyMatch_ShortTokenRejected(t *testing.T) {
	if fuzzyCompanyMatch("AI", "RAIL Company") {
		t.Error(`"AI" must not match "RAIL Company"`)
	}
}

func TestFuzzyCompanyMatch_SuffixVariant(t *testing.T) {
	if !fuzzyCompanyMatch("Proxify", "Proxify AB") {
		t.Error(`"Proxify" should match "Proxify AB"`)
	}
}

func TestFuzzyCompanyMatch_NoMidWordMatch(t *testing.T) {
	if fuzzyCompanyMatch("Lemon", "WaterLemon Co") {
		t.Error(`"Lemon" must not match "WaterLemon Co"`)
	}
}

func TestNormalizePostedDate_UnixSeconds(t *testing.T) {
	got := normalizePostedDate("1700000000")
	if got == "1700000000" {
		t.Error("expected unix-seconds timestamp to be converted to ISO")
	}
}

func TestNormalizePostedDate_UnixMillis(t *testing.T) {
	got := normalizePostedDate("1752761621698")
	if got[:4] != "2025" {
		t.Errorf("expected year 2025 for millis timestamp, got %q", got)
	}
}

func TestNormalizePostedDate_UnparseableVerbatim(t *testing.T) {
	if got := normalizePostedDate("not-a-date"); got != "not-a-date" {
		t.Errorf("expected unparseable input returned verbatim, got %q", got)
	}
}

func TestLooksBlocked_CloudflareWaitingPage(t *testing.T) {
	body := "<html><body>Just a moment...</body></html>"
	blocked, marker := looksBlocked(body)
	if !blocked {
		t.Fatal("expected cloudflare waiting page to be detected as blocked")
	}
	if blockedReasonFor(marker) != "Cloudflare waiting page detected" {
		t.Errorf("unexpected reason: %s", blockedReasonFor(marker))
	}
}

func TestLooksBlocked_OrdinaryHTMLNotBlocked(t *testing.T) {
	body := "<html><body><h1>Careers</h1></body></html>"
	if blocked, _ := looksBlocked(body); blocked {
		t.Error("ordinary HTML page must not be flagged as blocked")
	}
}

func TestCheckBlockedStatus_4xxRaisesBlocked(t *testing.T) {
	err := checkBlockedStatus(403, "Forbidden")
	if err == nil {
		t.Fatal("expected 403 to raise ErrScrapeBlocked")
	}
}

func TestCheckBlockedStatus_2xxPasses(t *testing.T) {
	if err := checkBlockedStatus(200, "OK"); err != nil {
		t.Errorf("unexpected error for 200: %v", err)
	}
}

func TestFormatThousands(t *testing.T) {
	if got := formatThousands(150000); got != "150,000" {
		t.Errorf("formatThousands(150000) = %q, want 150,000", got)
	}
}
