package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// Options configures the global logger. Zero values fall back to viper.
type Options struct {
	Level   string
	Format  string
	NoColor bool
	Output  io.Writer
}

// InitDefault sets up a console logger used before flags are parsed.
func InitDefault() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.DefaultContextLogger = &log.Logger
}

// Init configures the global logger from opts, or from the viper keys if opts is nil.
func Init(opts *Options) {
	if opts == nil {
		opts = &Options{
			Level:   viper.GetString(LevelKey),
			Format:  viper.GetString(FormatKey),
			NoColor: viper.GetBool(NoColorKey),
		}
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = opts.Output
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        opts.Output,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	// loggers taken from a context without one fall back to the global logger
	zerolog.DefaultContextLogger = &log.Logger
}
