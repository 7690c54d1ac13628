package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		debug   bool
		debugOn bool
		errorOn bool
	}{
		{debug: false, debugOn: false, errorOn: true},
		{debug: true, debugOn: true, errorOn: true},
	}
	for _, tt := range tests {
		l := New(tt.debug)
		if got := l.Core().Enabled(zapcore.DebugLevel); got != tt.debugOn {
			t.Fatalf("debug=%v: debug enabled = %v", tt.debug, got)
		}
		if got := l.Core().Enabled(zapcore.ErrorLevel); got != tt.errorOn {
			t.Fatalf("debug=%v: error enabled = %v", tt.debug, got)
		}
		if !l.Core().Enabled(zapcore.InfoLevel) {
			t.Fatalf("debug=%v: info must be enabled", tt.debug)
		}
	}
}
