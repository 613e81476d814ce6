package model

import "fmt"

// ErrScrapeBlocked signals that a scrape's source must be disabled — the
// caller (a processor) is expected to call the Source Registry's
// disable_source_with_tags rather than simply retry (§4.2, §7).
type ErrScrapeBlocked struct {
	Reason string
	Tags   []string
}

func (e *ErrScrapeBlocked) Error() string {
	return fmt.Sprintf("scrape blocked: %s", e.Reason)
}

// NewScrapeBlocked builds an ErrScrapeBlocked carrying the disable tags a
// caller should merge into the source (§4.2.4, §7).
func NewScrapeBlocked(reason string, tags ...string) *ErrScrapeBlocked {
	return &ErrScrapeBlocked{Reason: reason, Tags: tags}
}

// ErrSpawnRefused is returned (as a non-fatal signal, not a Go error to
// propagate) when spawn_item_safely declines to create a child (§4.8, §7).
type ErrSpawnRefused struct {
	Reason string
}

func (e *ErrSpawnRefused) Error() string {
	return fmt.Sprintf("spawn refused: %s", e.Reason)
}

// ErrInvalidConfig wraps a Source-config validation failure (C1.validate, §7).
type ErrInvalidConfig struct {
	Msg string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config: %s", e.Msg)
}

// ErrInitialization signals a missing required policy/config value at
// process startup; callers should fail fast (§7).
type ErrInitialization struct {
	Msg string
}

func (e *ErrInitialization) Error() string {
	return fmt.Sprintf("initialization error: %s", e.Msg)
}
