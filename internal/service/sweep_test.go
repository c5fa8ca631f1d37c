package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/logging"
)

type collectingLogger struct {
	infos, warns, errors []string
}

func (c *collectingLogger) Info(format string, _ ...any)  { c.infos = append(c.infos, format) }
func (c *collectingLogger) Warn(format string, _ ...any)  { c.warns = append(c.warns, format) }
func (c *collectingLogger) Error(format string, _ ...any) { c.errors = append(c.errors, format) }

var _ logging.InternalLogger = (*collectingLogger)(nil)

func TestSweepRenewals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	save := func(token string, source core.Source, expiresAt *time.Time) {
		require.NoError(t, f.store.Save(ctx, core.TokenRecord{
			Token:     token,
			Source:    source,
			Platform:  source.Platform(),
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		}))
	}

	save("DUE", core.SourceWhatsAppOAuth, at(now.Add(12*time.Hour)))
	save("FRESH", core.SourceManual, at(now.Add(30*24*time.Hour)))
	save("DEAD", core.SourcePageToken, at(now.Add(time.Hour)))
	save("IG", core.SourceInstagramLogin, at(now.Add(time.Hour)))

	f.whatsapp.setIntrospection("DUE", &core.Introspection{IsValid: true, ExpiresAt: at(now.Add(12 * time.Hour))})
	f.whatsapp.setIntrospection("FRESH", &core.Introspection{IsValid: true, ExpiresAt: at(now.Add(30 * 24 * time.Hour))})
	f.whatsapp.setIntrospection("DEAD", &core.Introspection{IsValid: false})

	logger := &collectingLogger{}
	report, err := f.coord.SweepRenewals(ctx, 0, logger)
	require.NoError(t, err)

	assert.Equal(t, int64(86400), report.ThresholdSeconds)
	assert.Equal(t, 1, report.Renewed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Outcomes, 4)

	bySource := map[core.Source]SweepOutcome{}
	for _, o := range report.Outcomes {
		bySource[o.Source] = o
	}
	assert.Equal(t, ActionRefreshed, bySource[core.SourceWhatsAppOAuth].Action)
	assert.Equal(t, ActionNoRefreshNeeded, bySource[core.SourceManual].Action)
	assert.Equal(t, SweepActionFailed, bySource[core.SourcePageToken].Action)
	assert.Equal(t, SweepActionSkipped, bySource[core.SourceInstagramLogin].Action)

	assert.Equal(t, 1, f.whatsapp.calls())
	assert.Len(t, logger.warns, 1)
	assert.Empty(t, logger.errors)

	current, err := f.coord.GetToken(ctx, core.SourceWhatsAppOAuth)
	require.NoError(t, err)
	assert.Equal(t, "DUE-renewed", current.Token)

	entries, err := f.auditor.Find(func(e core.AuditEntry) bool {
		return e.Action == core.ActionTokenSweep
	}, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].Metadata["renewed"])
}

func TestSweepRenewals_CancelledContext(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), core.TokenRecord{
		Token: "X", Source: core.SourceWhatsAppOAuth, Platform: core.PlatformWhatsApp,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.coord.SweepRenewals(ctx, time.Hour, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Empty(t, report.Outcomes)

	entries, err := f.auditor.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, core.ActionTokenSweep, entries[0].Action)
	assert.False(t, entries[0].Success)
	assert.Equal(t, context.Canceled.Error(), entries[0].Error)
	assert.Equal(t, 0, entries[0].Metadata["renewed"])
}
