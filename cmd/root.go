package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/darmiel/linkgate/internal/buildinfo"
	"github.com/darmiel/linkgate/internal/config"
	"github.com/darmiel/linkgate/internal/logging"
)

// global flags
var (
	userConfig string
	cfgFile    string
	envFile    string
)

const (
	ServerAddrKey = "server"
	AuthTokenKey  = "token"

	DefaultConfigFile = "linkgate.yaml"
)

var f = NewFactory()

var rootCmd = &cobra.Command{
	Use:   "linkgate",
	Short: fmt.Sprintf("LinkGate (version: %s, commit: %s)", buildinfo.Version, buildinfo.CommitHash),
	Long: `LinkGate links merchant accounts on WhatsApp Business, Instagram and Tienda Nube.
It exchanges OAuth codes for access tokens, keeps track of their expiry
and renews Graph API tokens before they run out.`,
	Version: buildinfo.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envErr := config.LoadDotEnv(envFile)
		configPath, configErr := initConfig()
		logging.Init(nil)
		// handle errors after logging is initialized
		if envErr != nil {
			return envErr
		}
		if configErr != nil {
			return configErr
		}
		if configPath != "" {
			log.Debug().Msgf("using user config file: %s", configPath)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	// setup pre-flag logger
	logging.InitDefault()

	flags := rootCmd.PersistentFlags()

	flags.StringVar(&userConfig, "user-config", "",
		"User configuration file for default values (default is $HOME/.linkgate.yaml)")
	flags.StringVarP(&cfgFile, "config", "c", DefaultConfigFile, "LinkGate service configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Environment file loaded before the configuration")

	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	bindFlag(flags, logging.LevelKey, "log-level")

	flags.String("log-format", "console", "Log format (console, json)")
	bindFlag(flags, logging.FormatKey, "log-format")

	flags.Bool("no-color", false, "Disable color output")
	bindFlag(flags, logging.NoColorKey, "no-color")

	flags.StringVar(&f.RemoteAddr, "server", "", "Address of the remote LinkGate server")
	bindFlag(flags, ServerAddrKey, "server")

	flags.String("token", "", "Admin token for the remote server (see admin-token)")
	bindFlag(flags, AuthTokenKey, "token")

	viper.SetEnvPrefix("LINKGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))

	viper.AutomaticEnv()

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func bindFlag(flags *pflag.FlagSet, key, name string) {
	_ = viper.BindPFlag(key, flags.Lookup(name))
}

func initConfig() (string, error) {
	if userConfig != "" {
		viper.SetConfigFile(userConfig)
	} else {
		// search order: current dir, $HOME, XDG config
		viper.AddConfigPath(".")

		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		if dir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(dir + "/linkgate")
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".linkgate")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundError) {
			return "", err
		}
		return "", nil
	}
	return viper.ConfigFileUsed(), nil
}
