package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/flagstore"
)

func TestLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Debug("stale update ignored", flagstore.Fields{"key": "k", "stored": 5})
	l.Error("conditional write failed", flagstore.Fields{"err": errors.New("boom")})
	l.Info("no fields", nil)

	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].ContextMap()["key"] != "k" {
		t.Fatalf("debug entry = %+v", entries[0])
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["err"] != "boom" {
		t.Fatalf("error entry = %+v", entries[1].ContextMap())
	}
	if len(entries[2].Context) != 0 {
		t.Fatalf("nil Fields produced context %v", entries[2].Context)
	}
}
