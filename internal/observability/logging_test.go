package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/installer-orchestrator/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	app := config.AppConfig{Name: "installer-orchestrator", Env: "test", Version: "dev"}
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"bogus": zapcore.InfoLevel,
		"":      zapcore.InfoLevel,
	}
	for raw, want := range cases {
		logger, err := NewLogger(config.LoggerConfig{Level: raw}, app)
		if err != nil {
			t.Fatalf("level %q: %v", raw, err)
		}
		if !logger.Core().Enabled(want) {
			t.Errorf("level %q: %s not enabled", raw, want)
		}
		if want > zapcore.DebugLevel && logger.Core().Enabled(want-1) {
			t.Errorf("level %q: %s should be disabled", raw, want-1)
		}
	}
}
