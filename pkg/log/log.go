package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger zerolog.Logger
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger
func Init(cfg Config) {
	// Set log level
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Use JSON or console output
	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// Component creates a child logger tagged with a component field; it is
// the entry point most raftcore packages use to get their own logger
// (e.g. log.Component("grpctransport"), log.Component("filestore")).
func Component(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithComponent is an alias of Component kept for call sites that prefer
// the explicit "With" spelling.
func WithComponent(component string) zerolog.Logger {
	return Component(component)
}

// WithServerID annotates a logger with server_id field, identifying the
// local raft server a log line belongs to.
func WithServerID(logger zerolog.Logger, id uint64) zerolog.Logger {
	return logger.With().Uint64("server_id", id).Logger()
}

// WithTerm annotates a logger with the current term, the single most
// useful piece of context for diagnosing a Raft log.
func WithTerm(logger zerolog.Logger, term uint64) zerolog.Logger {
	return logger.With().Uint64("term", term).Logger()
}

// WithRole annotates a logger with the local server's current role
// (follower/candidate/leader).
func WithRole(logger zerolog.Logger, role string) zerolog.Logger {
	return logger.With().Str("role", role).Logger()
}

// WithPeer annotates a logger with a peer server id, used throughout
// replication and election logging.
func WithPeer(logger zerolog.Logger, peerID uint64) zerolog.Logger {
	return logger.With().Uint64("peer_id", peerID).Logger()
}

// WithRequest annotates a logger with a client request id, so a request's
// lifecycle (accept, commit, apply, callback) can be grepped end to end.
func WithRequest(logger zerolog.Logger, requestID string) zerolog.Logger {
	return logger.With().Str("request_id", requestID).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) {
	Logger.Fatal().Msg(msg)
}
