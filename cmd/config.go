package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Interact with the configuration",
	Long:  `Utilities for validating the LinkGate service configuration`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			log.Error().Err(err).Str("file", cfgFile).Msg("Configuration is invalid.")
			return err
		}

		platforms := make([]string, 0, len(cfg.Platforms))
		for _, p := range cfg.Platforms {
			platforms = append(platforms, p.Type)
		}
		log.Info().
			Str("file", cfgFile).
			Str("store", cfg.Store.Type).
			Strs("platforms", platforms).
			Bool("sweep", cfg.Renewal.Sweep.Enabled).
			Bool("admin_api", cfg.Admin.SigningKey != "").
			Msg("Configuration is valid.")
		fmt.Printf("%s %s is valid\n", greenCheck, cfgFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
}
