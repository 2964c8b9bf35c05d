package flagstore

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// recordFields starts the field set every per-record log line carries.
func recordFields(ns, key string) Fields {
	return Fields{"ns": ns, "key": key}
}

// with adds one field and returns f for chaining.
func (f Fields) with(k string, v any) Fields {
	f[k] = v
	return f
}

// Logger is the leveled logger the store writes to. Adapters for zap, logrus
// and slog live under log/. A nil Logger in Options disables logging.
//
// Conflicts and stale updates go to Debug; failed store calls go to Error.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
