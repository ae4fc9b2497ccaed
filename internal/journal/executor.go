package journal

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/domain"
)

// Writer performs one version write against the target. Failures are
// reported as *domain.WriteError so the executor can tell transient
// rejections from structural ones.
type Writer interface {
	WriteVersion(ctx context.Context, op domain.WriteOp) error
}

// RetryPolicy bounds the backoff applied to transient write failures.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy suits rate-limited project-management APIs.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  2 * time.Minute,
	}
}

// Executor applies a reconciliation plan version by version. Writes happen
// strictly in version order; version N+1 is only attempted once N's outcome
// is known. A failed version is recorded with full detail and never aborts
// the remaining versions.
type Executor struct {
	writer Writer
	policy RetryPolicy
	logger *logrus.Entry
}

// NewExecutor creates an executor over the target-write collaborator.
func NewExecutor(writer Writer, policy RetryPolicy, logger *logrus.Logger) *Executor {
	return &Executor{
		writer: writer,
		policy: policy,
		logger: logger.WithField("component", "journal"),
	}
}

// Apply executes the plan and reports per-version outcomes. The report
// never claims full success while any version failed.
func (e *Executor) Apply(ctx context.Context, entityKey string, plan domain.ReconcilePlan) domain.EntityReport {
	report := domain.EntityReport{
		EntityKey:         entityKey,
		VersionsAttempted: len(plan.Ops),
		VersionsSkipped:   plan.Skipped,
	}

	// The write itself runs on a detached context so a run-level cancel
	// lets the current version finish instead of leaving a partial
	// sequence; cancellation is honored between versions and retries.
	writeCtx := context.WithoutCancel(ctx)

	for _, op := range plan.Ops {
		logger := e.logger.WithFields(logrus.Fields{
			"entity":  entityKey,
			"version": op.Version.Number,
			"mode":    op.Mode,
		})

		if err := ctx.Err(); err != nil {
			report.VersionsFailed = append(report.VersionsFailed, domain.VersionFailure{
				Version: op.Version.Number,
				Kind:    domain.WriteErrorTransientFailure,
				Message: "run cancelled before write",
			})
			logger.Warn("run cancelled before write")
			continue
		}

		if err := e.writeWithRetry(ctx, writeCtx, op); err != nil {
			failure := domain.VersionFailure{Version: op.Version.Number, Message: err.Error()}
			if writeErr, ok := domain.AsWriteError(err); ok {
				failure.Kind = writeErr.Kind
				failure.Message = writeErr.Message
			} else {
				failure.Kind = domain.WriteErrorTransientFailure
			}
			report.VersionsFailed = append(report.VersionsFailed, failure)
			logger.WithError(err).Warn("version write failed")
			continue
		}

		report.VersionsSucceeded++
		logger.Debug("version written")
	}

	switch {
	case len(report.VersionsFailed) > 0:
		report.State = domain.EntityStatePartiallyComplete
	default:
		report.State = domain.EntityStateComplete
	}
	return report
}

// writeWithRetry retries transient failures with exponential backoff and
// treats structural rejections as terminal for this version.
func (e *Executor) writeWithRetry(ctx, writeCtx context.Context, op domain.WriteOp) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.policy.InitialInterval
	bo.MaxInterval = e.policy.MaxInterval
	bo.MaxElapsedTime = e.policy.MaxElapsedTime

	return backoff.Retry(func() error {
		err := e.writer.WriteVersion(writeCtx, op)
		if err == nil {
			return nil
		}
		if writeErr, ok := domain.AsWriteError(err); ok && !writeErr.Transient() {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
