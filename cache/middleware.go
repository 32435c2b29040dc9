package cache

import (
	"context"
	"log/slog"

	"github.com/xraph/provepool/middleware"
)

// Middleware wraps compute calls with a proof cache. A hit returns the
// cached proof without invoking the prover; a successful miss stores the
// fresh proof. Cache errors are logged and otherwise ignored so a dead
// backend degrades to plain computation.
func Middleware(c Cache, logger *slog.Logger) middleware.Middleware {
	return func(ctx context.Context, req *middleware.Request, next middleware.Handler) ([]byte, error) {
		key := Key(req.Payload)

		proof, hit, err := c.Get(ctx, key)
		if err != nil {
			logger.Warn("proof cache lookup failed",
				slog.String("cache", c.Name()),
				slog.String("job_id", req.JobID.String()),
				slog.String("error", err.Error()),
			)
		} else if hit {
			logger.Debug("proof cache hit",
				slog.String("cache", c.Name()),
				slog.String("job_id", req.JobID.String()),
			)
			return proof, nil
		}

		proof, err = next(ctx)
		if err != nil {
			return nil, err
		}

		if putErr := c.Put(ctx, key, proof); putErr != nil {
			logger.Warn("proof cache store failed",
				slog.String("cache", c.Name()),
				slog.String("job_id", req.JobID.String()),
				slog.String("error", putErr.Error()),
			)
		}
		return proof, nil
	}
}
