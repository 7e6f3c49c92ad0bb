// Package logger builds the structured loggers used across the cache service.
//
// Loggers are plain [log/slog] loggers. [New] writes JSON (or text) to stdout at
// the configured level and optionally forwards warnings and errors to Sentry.
// When the DSN is empty or Sentry fails to initialize, logging continues on
// stdout only, so the same code path works in development and production.
//
// Context extractors add request-scoped attributes on every record:
//
//	requestID := func(ctx context.Context) (slog.Attr, bool) {
//		if id := middleware.GetReqID(ctx); id != "" {
//			return slog.String("request_id", id), true
//		}
//		return slog.Attr{}, false
//	}
//	log := logger.New(cfg.Log, requestID)
//
// Library packages accept a *slog.Logger through options and fall back to
// [NewNope]; [Component] tags a logger with the component name.
package logger
