package dbpool

import "go.uber.org/zap"

// LogFunc is the pool's only side channel for diagnostics. It must be
// non-blocking and safe for concurrent invocation; the pool never
// synchronizes around it. data carries event-specific fields (worker
// index, slot age, and similar) for structured sinks.
type LogFunc func(message string, data map[string]any)

// noopLog is used when Options.LogFunc is nil.
func noopLog(string, map[string]any) {}

// ZapLogFunc adapts a *zap.Logger to a LogFunc, the way this pool's
// demo binary and every pack implementation that logs connection-pool
// events (e.g. the o3willard-AI-SSSonector and dependable-call-exchange
// pool packages) wires its logger: one structured Info call per event,
// fields derived from the data map.
func ZapLogFunc(logger *zap.Logger) LogFunc {
	if logger == nil {
		return noopLog
	}
	return func(message string, data map[string]any) {
		fields := make([]zap.Field, 0, len(data))
		for k, v := range data {
			fields = append(fields, zap.Any(k, v))
		}
		logger.Info(message, fields...)
	}
}
