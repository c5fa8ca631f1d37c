package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darmiel/linkgate/internal/api/middleware"
)

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Mint an admin token for the admin API",
	Long: `Signs an HS256 token with the admin.signing_key of the configuration file.
Pass it with --token or LINKGATE_TOKEN to the other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Admin.SigningKey == "" {
			return fmt.Errorf("admin.signing_key is not configured")
		}

		ttl, _ := cmd.Flags().GetDuration("ttl")
		if ttl <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}
		subject, _ := cmd.Flags().GetString("subject")
		if subject == "" {
			if host, err := os.Hostname(); err == nil {
				subject = host
			}
		}

		token, err := middleware.MintAdminToken([]byte(cfg.Admin.SigningKey), subject, ttl)
		if err != nil {
			return fmt.Errorf("signing admin token: %w", err)
		}

		log.Info().
			Str("subject", subject).
			Time("expires_at", time.Now().Add(ttl)).
			Msg("Minted admin token")
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminTokenCmd)

	adminTokenCmd.Flags().Duration("ttl", time.Hour, "Validity of the token")
	adminTokenCmd.Flags().String("subject", "", "Subject of the token (default: hostname)")
}
