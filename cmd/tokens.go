package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/service"
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"token"},
	Short:   "Manage the tokens held by the server",
	Long:    `List, inspect and renew stored tokens. Requires an admin token (linkgate admin-token).`,
}

var tokensListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored tokens, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		views, correlation, err := cli.ListTokens(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to list tokens")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Source", "Platform", "Owner", "Kind", "Token", "Issued", "Expires"})
		for _, v := range views {
			expires := formatExpiry(v.ExpiresAt)
			if v.IsExpired {
				expires = redCross + " " + expires
			}
			t.AppendRow(table.Row{
				bold(v.Source),
				v.Platform,
				v.OwnerID,
				v.Kind,
				fmt.Sprintf("%s %s", v.TokenPreview, faint(fmt.Sprintf("(%d)", v.TokenLength))),
				v.IssuedAt.Format(time.RFC3339),
				expires,
			})
		}
		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var tokensGetCmd = &cobra.Command{
	Use:   "get SOURCE",
	Short: "Print the current token of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		detail, correlation, err := cli.GetToken(cmd.Context(), core.Source(args[0]))
		if err != nil {
			return logError(err, correlation, "failed to get token")
		}

		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Println(detail.Token)
			return nil
		}

		fmt.Println(bold("\n── " + string(detail.Source) + " ──"))
		fmt.Printf("  %s: %s\n", faint("Platform"), detail.Platform)
		fmt.Printf("  %s:    %s\n", faint("Owner"), detail.OwnerID)
		fmt.Printf("  %s:     %s\n", faint("Kind"), detail.Kind)
		fmt.Printf("  %s:   %s\n", faint("Issued"), detail.IssuedAt.Format(time.RFC3339))
		fmt.Printf("  %s:  %s\n", faint("Expires"), formatExpiry(detail.ExpiresAt))
		fmt.Printf("  %s:    %s\n", faint("Token"), detail.Token)
		return nil
	},
}

var tokensInspectCmd = &cobra.Command{
	Use:   "inspect TOKEN",
	Short: "Ask the issuing platform about a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		platform, _ := cmd.Flags().GetString("platform")
		in, correlation, err := cli.InspectToken(cmd.Context(), args[0], core.Platform(platform))
		if err != nil {
			return logError(err, correlation, "failed to inspect token")
		}

		valid := redCross + " invalid"
		if in.IsValid {
			valid = greenCheck + " valid"
		}
		fmt.Println(bold("\n── Token Introspection ──"))
		fmt.Printf("  %s: %s\n", faint("Platform"), in.Platform)
		fmt.Printf("  %s:   %s\n", faint("Status"), valid)
		fmt.Printf("  %s:    %s\n", faint("Owner"), in.OwnerID)
		fmt.Printf("  %s:  %s\n", faint("Expires"), formatExpiry(in.ExpiresAt))
		fmt.Printf("  %s:   %s\n", faint("Scopes"), strings.Join(in.Scopes, ", "))
		if in.AppID != "" {
			fmt.Printf("  %s:   %s (%s)\n", faint("App ID"), in.AppID, in.Type)
		}
		return nil
	},
}

var tokensRenewCmd = &cobra.Command{
	Use:   "renew TOKEN",
	Short: "Exchange a token for a fresh long-lived one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		res, correlation, err := cli.RenewToken(cmd.Context(), args[0])
		if err != nil {
			return logError(err, correlation, "failed to renew token")
		}

		log.Info().Msgf("%s token renewed, now expires %s (extended by %s)",
			greenCheck, formatExpiry(res.NewExpiresAt), formatSeconds(res.ExtensionSeconds))
		if res.Record != nil {
			fmt.Println(res.Record.Token)
		}
		return nil
	},
}

var tokensAutoRenewCmd = &cobra.Command{
	Use:   "auto-renew TOKEN",
	Short: "Renew a token only if it expires within the threshold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		threshold, _ := cmd.Flags().GetDuration("threshold")
		res, correlation, err := cli.AutoRenewToken(cmd.Context(), args[0], threshold)
		if err != nil {
			return logError(err, correlation, "failed to auto-renew token")
		}

		if res.Action == service.ActionNoRefreshNeeded {
			log.Info().Msgf("%s no renewal needed, %s left", greenCheck, formatSeconds(res.SecondsUntilExpiry))
			return nil
		}
		log.Info().Msgf("%s token renewed, now expires %s (extended by %s)",
			greenCheck, formatExpiry(res.ExpiresAt), formatSeconds(res.ExtensionSeconds))
		fmt.Println(res.NewToken)
		return nil
	},
}

var tokensSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Renew every stored token that expires within the threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		threshold, _ := cmd.Flags().GetDuration("threshold")
		report, correlation, err := cli.Sweep(cmd.Context(), threshold)
		if err != nil {
			return logError(err, correlation, "renewal sweep failed")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Source", "Platform", "Action", "Extension", "Reason"})
		for _, o := range report.Outcomes {
			action := o.Action
			switch o.Action {
			case service.ActionRefreshed:
				action = greenCheck + " " + action
			case service.SweepActionFailed:
				action = redCross + " " + action
			case service.SweepActionSkipped:
				action = color.New(color.Faint).Sprint(action)
			}
			t.AppendRow(table.Row{
				bold(o.Source),
				o.Platform,
				action,
				formatSeconds(o.ExtensionSeconds),
				truncate(o.Reason, 60),
			})
		}
		applyTableFormat(t)
		t.Render()

		log.Info().Msgf("%d renewed, %d skipped, %d failed", report.Renewed, report.Skipped, report.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.AddCommand(tokensListCmd, tokensGetCmd, tokensInspectCmd,
		tokensRenewCmd, tokensAutoRenewCmd, tokensSweepCmd)

	tokensGetCmd.Flags().Bool("raw", false, "Print only the token")
	tokensInspectCmd.Flags().StringP("platform", "p", "", "Platform to ask (default: the platform the token was stored for)")
	tokensAutoRenewCmd.Flags().Duration("threshold", 0, "Renew if the token expires within this duration (default: server strict threshold)")
	tokensSweepCmd.Flags().Duration("threshold", 0, "Renew tokens expiring within this duration (default: server batch threshold)")
}
