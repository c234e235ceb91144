// Package logger holds the process-wide zerolog instance.
//
// main calls Init once with the configured level and format; everything else
// either calls Get or asks for a Component logger, which tags entries with
// the subsystem that wrote them.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options is read once by Init.
type Options struct {
	// Level names the lowest level written. Unknown or empty names mean info.
	Level string
	// Pretty switches to zerolog's console writer for local development.
	// Production keeps the default JSON lines.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service and Env, when set, become static fields on every entry.
	Service string
	Env     string
}

var (
	root  zerolog.Logger
	ready bool
	once  sync.Once
)

// Init builds the shared logger. Calls after the first return the existing
// logger and ignore opts.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		root = build(opts)
		ready = true
	})
	return root
}

func build(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := opts.Output
	if w == nil {
		w = os.Stdout
	}
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	level := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)

	fields := zerolog.New(w).Level(level).With().Timestamp()
	if opts.Service != "" {
		fields = fields.Str("service", opts.Service)
	}
	if opts.Env != "" {
		fields = fields.Str("env", opts.Env)
	}
	return fields.Caller().Logger()
}

// Get returns the shared logger and panics when Init has not run.
func Get() zerolog.Logger {
	if !ready {
		panic("logger: Get() called before Init()")
	}
	return root
}

// Component returns the shared logger with a "component" field set to name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset discards the shared logger. Tests only.
func Reset() {
	once = sync.Once{}
	root = zerolog.Logger{}
	ready = false
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

// levelAliases covers spellings zerolog.ParseLevel does not know.
var levelAliases = map[string]string{
	"warning": "warn",
}

// parseLevel accepts zerolog's level names plus the aliases above, and falls
// back to info for anything else.
func parseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := levelAliases[name]; ok {
		name = alias
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}
