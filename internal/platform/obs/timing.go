package obs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ctxKey string

const PassIDKey ctxKey = "pass_id"

// WithPassID tags ctx so every timed operation of a simulation pass logs the
// same pass_id.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, PassIDKey, passID)
}

func PassID(ctx context.Context) string {
	id, _ := ctx.Value(PassIDKey).(string)
	return id
}

// Time logs the duration of an operation when the returned func runs,
// typically as `defer obs.Time(ctx, logger, "op")(&err)`.
func Time(ctx context.Context, logger *zap.Logger, name string) func(errp *error) {
	start := time.Now()
	passID := PassID(ctx)

	return func(errp *error) {
		fields := []zap.Field{
			zap.String("pass_id", passID),
			zap.String("op", name),
			zap.Duration("dur", time.Since(start)),
		}

		if errp != nil && *errp != nil {
			logger.Error("operation failed", append(fields, zap.Error(*errp))...)
			return
		}
		logger.Info("operation finished", fields...)
	}
}
