package acme

import "go.uber.org/zap"

// noopLogger is used when a caller does not supply one via WithLogger, so the
// rest of the engine can log unconditionally without nil checks.
func noopLogger() *zap.Logger {
	return zap.NewNop()
}
