package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/audit"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/logging"
)

const (
	SweepActionSkipped = "skipped"
	SweepActionFailed  = "failed"
)

// SweepRenewals runs AutoRenewIfNeeded with threshold on every stored token
// whose platform supports renewal. A failing record never aborts the sweep.
// A threshold <= 0 selects the batch threshold.
func (c *Coordinator) SweepRenewals(ctx context.Context, threshold time.Duration, logger logging.InternalLogger) (*SweepReport, error) {
	if threshold <= 0 {
		threshold = c.batchThreshold
	}
	if logger == nil {
		logger = logging.NewZLogger(*log.Ctx(ctx))
	}

	auditEntry := c.newAuditEntry(ctx, core.ActionTokenSweep)

	records, err := c.store.List(ctx)
	if err != nil {
		c.logAudit(ctx, &auditEntry, err)
		return nil, fmt.Errorf("listing tokens: %w", err)
	}

	report := &SweepReport{
		StartedAt:        c.now(),
		ThresholdSeconds: int64(threshold / time.Second),
		Outcomes:         make([]SweepOutcome, 0, len(records)),
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			auditEntry.Metadata = sweepMetadata(report)
			c.logAudit(ctx, &auditEntry, err)
			return report, err
		}

		outcome := SweepOutcome{Source: rec.Source, Platform: rec.Platform}
		if _, err := c.renewer(rec.Platform); err != nil {
			outcome.Action = SweepActionSkipped
			outcome.Reason = err.Error()
			report.Skipped++
			report.Outcomes = append(report.Outcomes, outcome)
			continue
		}

		res, err := c.AutoRenewIfNeeded(ctx, rec.Token, threshold)
		switch {
		case err != nil:
			outcome.Action = SweepActionFailed
			outcome.Reason = err.Error()
			report.Failed++

			var notRenewable *core.TokenNotRenewableError
			if errors.As(err, &notRenewable) {
				logger.Warn("token of source %s is no longer valid, the account has to be linked again", rec.Source)
			} else {
				logger.Error("renewing token of source %s failed: %v", rec.Source, err)
			}
		case res.Action == ActionRefreshed:
			outcome.Action = ActionRefreshed
			outcome.ExtensionSeconds = res.ExtensionSeconds
			report.Renewed++
			logger.Info("renewed token of source %s (fingerprint %s)", rec.Source, audit.Fingerprint(res.NewToken))
		default:
			outcome.Action = res.Action
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	auditEntry.Metadata = sweepMetadata(report)
	c.logAudit(ctx, &auditEntry, nil)

	logger.Info("renewal sweep finished: %d tokens, %d renewed, %d skipped, %d failed",
		len(records), report.Renewed, report.Skipped, report.Failed)
	return report, nil
}

func sweepMetadata(report *SweepReport) map[string]any {
	return map[string]any{
		"threshold_seconds": report.ThresholdSeconds,
		"renewed":           report.Renewed,
		"skipped":           report.Skipped,
		"failed":            report.Failed,
	}
}
