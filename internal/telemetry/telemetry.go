// Package telemetry emits the structured per-stage record §4.9.1 requires:
// {doc_id, stage, status, duration_ms}. It has no state of its own — it is
// a thin wrapper so every caller logs a stage transition the same shape,
// the way hire.ai's scraper core logs a uniform {job, status, duration} line
// around each fetch.
package telemetry

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Record runs fn, then logs one {doc_id, stage, status, duration_ms} entry
// against log and returns fn's error unchanged.
func Record(log *logrus.Entry, docID, stage string, fn func() error) error {
	started := time.Now()
	err := fn()

	status := "ok"
	if err != nil {
		status = "error"
	}
	log.WithFields(logrus.Fields{
		"doc_id": docID, "stage": stage, "status": status,
		"duration_ms": time.Since(started).Milliseconds(),
	}).Info("stage complete")

	return err
}
