package cmd

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/pkg/client"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Administrative audit commands",
	Long:  `View the audit log of token operations. Requires an admin token (linkgate admin-token).`,
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Retrieve and display audit log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, err := cmd.Flags().GetUint("limit")
		if err != nil {
			return err
		}
		action, _ := cmd.Flags().GetString("action")
		source, _ := cmd.Flags().GetString("source")
		correlationID, _ := cmd.Flags().GetString("correlation-id")

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Fetching audit log...")
		audits, correlation, err := cli.ListAudits(cmd.Context(), client.ListAuditsOpts{
			Limit:         limit,
			CorrelationID: correlationID,
			Action:        action,
			Source:        core.Source(source),
		})
		if err != nil {
			return logError(err, correlation, "failed to fetch audit log")
		}

		log.Info().Msgf("Retrieved %d audit entries", len(audits))

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Time", "ID", "Action", "Platform", "Source", "Owner", "OK", "Fingerprint", "Error",
		})
		for _, e := range audits {
			status := greenCheck
			if !e.Success {
				status = redCross
			}
			t.AppendRow(table.Row{
				e.Time.Format(time.RFC3339),
				e.ID,
				e.Action,
				e.Platform,
				e.Source,
				e.OwnerID,
				status,
				truncate(e.TokenFingerprint, 12),
				truncate(e.Error, 50),
			})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditLogCmd)

	auditLogCmd.Flags().UintP("limit", "n", 25, "Number of audit entries to retrieve")
	auditLogCmd.Flags().String("action", "", "Only show entries of this action (e.g. token.renew)")
	auditLogCmd.Flags().String("source", "", "Only show entries of this source")
	auditLogCmd.Flags().String("correlation-id", "", "Only show entries of this request")
}
