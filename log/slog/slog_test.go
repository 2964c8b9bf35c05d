package slog

import (
	"bytes"
	"encoding/json"
	stdslog "log/slog"
	"testing"

	"github.com/unkn0wn-root/flagstore"
)

func TestWritesLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewJSONHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})
	l := Logger{L: stdslog.New(h)}

	l.Warn("re-read after stale update failed", flagstore.Fields{"ns": "features", "key": "k"})

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not one JSON record: %v (%q)", err, buf.String())
	}
	if rec["level"] != "WARN" || rec["ns"] != "features" || rec["key"] != "k" {
		t.Fatalf("record = %v", rec)
	}
}
