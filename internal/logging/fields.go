package logging

import "github.com/arloliu/leadsync/types"

// fieldLogger prepends a fixed set of key-value pairs to every log call.
type fieldLogger struct {
	base   types.Logger
	fields []any
}

// With returns a logger that adds keysAndValues to every message.
//
// Used to key transition events by collection, shard and candidate ID without
// repeating the fields at each call site. Nested calls accumulate fields.
//
// Parameters:
//   - logger: Base logger (nil yields a no-op logger)
//   - keysAndValues: Fields to bind
//
// Returns:
//   - types.Logger: Logger with bound fields
func With(logger types.Logger, keysAndValues ...any) types.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if len(keysAndValues) == 0 {
		return logger
	}

	if fl, ok := logger.(*fieldLogger); ok {
		merged := make([]any, 0, len(fl.fields)+len(keysAndValues))
		merged = append(merged, fl.fields...)
		merged = append(merged, keysAndValues...)

		return &fieldLogger{base: fl.base, fields: merged}
	}

	return &fieldLogger{base: logger, fields: append([]any(nil), keysAndValues...)}
}

func (l *fieldLogger) join(keysAndValues []any) []any {
	out := make([]any, 0, len(l.fields)+len(keysAndValues))
	out = append(out, l.fields...)

	return append(out, keysAndValues...)
}

func (l *fieldLogger) Debug(msg string, keysAndValues ...any) {
	l.base.Debug(msg, l.join(keysAndValues)...)
}

func (l *fieldLogger) Info(msg string, keysAndValues ...any) {
	l.base.Info(msg, l.join(keysAndValues)...)
}

func (l *fieldLogger) Warn(msg string, keysAndValues ...any) {
	l.base.Warn(msg, l.join(keysAndValues)...)
}

func (l *fieldLogger) Error(msg string, keysAndValues ...any) {
	l.base.Error(msg, l.join(keysAndValues)...)
}

func (l *fieldLogger) Fatal(msg string, keysAndValues ...any) {
	l.base.Fatal(msg, l.join(keysAndValues)...)
}
