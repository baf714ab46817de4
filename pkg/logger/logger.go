// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment selects the log format and level.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// ParseEnvironment maps an APP_ENV value to an Environment. Unknown values
// are treated as development.
func ParseEnvironment(s string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Production:
		return Production
	case Test:
		return Test
	default:
		return Development
	}
}

type Options struct {
	Environment Environment
	Output      io.Writer
}

var DefaultOptions = &Options{
	Environment: Development,
}

func safe(opts ...Options) *Options {
	if len(opts) == 0 {
		return DefaultOptions
	}
	return &opts[0]
}

// Init replaces log.Logger. Production writes JSON at info level, test only
// reports errors, and anything else gets a console writer at debug level.
func Init(opts ...Options) {
	o := safe(opts...)
	out := o.Output
	if out == nil {
		out = os.Stderr
	}

	switch o.Environment {
	case Production:
		log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	case Test:
		log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(zerolog.ErrorLevel)
	default:
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Caller().Logger()
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
}
