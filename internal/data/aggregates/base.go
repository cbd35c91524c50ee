package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/promptchain-backend/internal/domain/aggregates"
	"github.com/yungbote/promptchain-backend/internal/pkg/dbctx"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

const tracerName = "github.com/yungbote/promptchain-backend/internal/data/aggregates"

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard

	// TxTimeout bounds each transaction attempt. Zero means no bound.
	TxTimeout time.Duration
	// MaxAttempts caps retries of retryable failures. Values below 1 mean a
	// single attempt.
	MaxAttempts int
	// RetryBaseDelay is the first backoff interval between attempts.
	RetryBaseDelay time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.MaxAttempts < 1 {
		d.MaxAttempts = 1
	}
	if d.RetryBaseDelay <= 0 {
		d.RetryBaseDelay = 25 * time.Millisecond
	}
	return d
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, op)
	defer span.End()

	attempts := 0
	err := retryWrite(ctx, deps, op, func() error {
		attempts++
		return runAttempt(ctx, deps, op, fn)
	})
	mapped := MapError(op, err)

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		span.RecordError(mapped)
		span.SetStatus(codes.Error, status)
	}
	span.SetAttributes(
		attribute.String("aggregate.status", status),
		attribute.Int("aggregate.attempts", attempts),
	)
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

// runAttempt executes one transaction, bounded by TxTimeout when set.
func runAttempt(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	if deps.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.TxTimeout)
		defer cancel()
	}
	return MapError(op, deps.Runner.InTx(ctx, fn))
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
