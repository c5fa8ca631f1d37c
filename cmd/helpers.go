package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/pkg/client"
)

var (
	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✘")

	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

func applyTableFormat(t table.Writer) {
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatUpper
	t.Style().Options.SeparateRows = false
}

// logError logs err with the correlation id of the failed request and returns it.
func logError(err error, correlation, msg string) error {
	ev := log.Error().Err(err)
	if correlation != "" {
		ev = ev.Str("correlation_id", correlation)
	}

	var apiErr client.APIError
	if errors.As(err, &apiErr) {
		ev = ev.Int("status", apiErr.StatusCode)
		if apiErr.UpstreamStatus != 0 {
			ev = ev.Str("platform", string(apiErr.Platform)).
				Int("upstream_status", apiErr.UpstreamStatus).
				Str("upstream_body", apiErr.UpstreamBody)
		}
	}
	if errors.Is(err, client.ErrInvalidSession) {
		log.Warn().Msg("The admin token is invalid or expired, mint a new one with 'linkgate admin-token'.")
	}

	ev.Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func formatExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "never"
	}
	left := time.Until(*expiresAt).Round(time.Second)
	if left < 0 {
		return color.RedString("expired %s ago", -left)
	}
	if left < 24*time.Hour {
		return color.YellowString("in %s", left)
	}
	return fmt.Sprintf("in %s", left)
}

func formatSeconds(secs *int64) string {
	if secs == nil {
		return "n/a"
	}
	return (time.Duration(*secs) * time.Second).String()
}
