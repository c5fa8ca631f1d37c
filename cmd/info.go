package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/darmiel/linkgate/internal/api"
	"github.com/darmiel/linkgate/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the LinkGate installation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if f.RemoteAddr == "" && viper.GetString(ServerAddrKey) == "" {
			return infoLocally()
		}
		return infoRemote(cmd)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func infoRemote(cmd *cobra.Command) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}
	log.Info().Msg("Fetching build info from server...")
	info, correlation, err := cli.Info(cmd.Context())
	if err != nil {
		return logError(err, correlation, "failed to get info from server")
	}
	printInfo(info)
	return nil
}

func infoLocally() error {
	log.Info().Msg("Showing local build info...")
	printInfo(&api.AboutResponse{Info: buildinfo.GetBuildInfo()})
	return nil
}

func printInfo(info *api.AboutResponse) {
	fmt.Println(bold("\n── LinkGate Build Information ──"))
	fmt.Printf("  %s:    %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:     %s\n", faint("Commit"), info.CommitHash)
	for _, p := range info.Platforms {
		fmt.Printf("  %s:   %s (exchange=%t renew=%t introspect=%t authorize=%t)\n",
			faint("Platform"), bold(p.Platform), p.Exchange, p.Renew, p.Introspect, p.Authorize)
	}
}
