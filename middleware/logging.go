package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs computation start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *Request, next Handler) ([]byte, error) {
		logger.Info("computation started",
			slog.String("job_id", req.JobID.String()),
			slog.Int("payload_bytes", len(req.Payload)),
		)

		start := time.Now()
		value, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("computation rejected",
				slog.String("job_id", req.JobID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("computation completed",
				slog.String("job_id", req.JobID.String()),
				slog.Duration("elapsed", elapsed),
				slog.Int("proof_bytes", len(value)),
			)
		}

		return value, err
	}
}
