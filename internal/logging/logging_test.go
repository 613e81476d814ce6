package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfoAndTextFormatter(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	logger := New()
	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level by default, got %s", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("expected TextFormatter by default, got %T", logger.Formatter)
	}
}

func TestNewHonorsLogLevelAndFormatEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	logger := New()
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %s", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Errorf("expected JSONFormatter, got %T", logger.Formatter)
	}
}

func TestComponentTagsEntry(t *testing.T) {
	entry := Component(New(), "worker")
	if entry.Data["component"] != "worker" {
		t.Errorf("expected component field set, got %v", entry.Data)
	}
}
