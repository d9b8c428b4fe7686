package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/csafsync/csafsync/internal/observability"
)

func TestInitCLILogger(t *testing.T) {
	t.Run("CLI logger creation", func(t *testing.T) {
		observability.InitCLILogger("test-service", "info", false)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}

		observability.CLILogger.Info("Test CLI log message",
			zap.String("test", "value"))
	})

	t.Run("Logger with verbose mode", func(t *testing.T) {
		observability.InitCLILogger("verbose-test", "info", true)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}

		observability.CLILogger.Debug("Debug message",
			zap.String("mode", "verbose"))
	})

	t.Run("Debug level from config", func(t *testing.T) {
		logger, err := logging.NewCLI("level-test")
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}

		logger.SetLevel(logging.DEBUG)
		logger.Debug("Debug message", zap.String("level", "debug"))
	})
}
