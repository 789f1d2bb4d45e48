package parser

import (
	"log/slog"
	"time"

	"github.com/aledsdavies/gounit/core/naming"
)

// ParserOpt represents a parser configuration option
type ParserOpt func(*ParserConfig)

// TelemetryMode controls telemetry collection
type TelemetryMode int

const (
	TelemetryOff    TelemetryMode = iota // Zero overhead (default)
	TelemetryBasic                       // Counts only
	TelemetryTiming                      // Counts + timing per phase
)

// ParserConfig holds parser configuration
type ParserConfig struct {
	namer     naming.ScopeNamer
	source    string
	logger    *slog.Logger
	telemetry TelemetryMode
}

func defaultConfig() ParserConfig {
	return ParserConfig{
		namer:  naming.Fixed(naming.DefaultRoot),
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithScopeNamer sets the namer used for the outer scope when the
// specification has no suite clause. Defaults to naming.Fixed("tests").
func WithScopeNamer(namer naming.ScopeNamer) ParserOpt {
	return func(c *ParserConfig) {
		if namer != nil {
			c.namer = namer
		}
	}
}

// WithSourceName records the file name in the Root and in error messages
func WithSourceName(name string) ParserOpt {
	return func(c *ParserConfig) {
		c.source = name
	}
}

// WithLogger enables debug tracing of the parse and of the lexer
func WithLogger(logger *slog.Logger) ParserOpt {
	return func(c *ParserConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetryBasic enables basic telemetry (counts only)
func WithTelemetryBasic() ParserOpt {
	return func(c *ParserConfig) {
		c.telemetry = TelemetryBasic
	}
}

// WithTelemetryTiming enables timing telemetry (counts + timing per phase)
func WithTelemetryTiming() ParserOpt {
	return func(c *ParserConfig) {
		c.telemetry = TelemetryTiming
	}
}

// ParseTelemetry holds parser metrics
type ParseTelemetry struct {
	LexTime       time.Duration // Time spent lexing
	ParseTime     time.Duration // Time spent parsing and validating bodies
	TotalTime     time.Duration
	TokenCount    int
	DescribeCount int
	TestCount     int
	HookCount     int
}

// LogValue lets telemetry be passed straight to slog
func (t *ParseTelemetry) LogValue() slog.Value {
	if t == nil {
		return slog.Value{}
	}
	attrs := []slog.Attr{
		slog.Int("tokens", t.TokenCount),
		slog.Int("describes", t.DescribeCount),
		slog.Int("tests", t.TestCount),
		slog.Int("hooks", t.HookCount),
	}
	if t.TotalTime > 0 {
		attrs = append(attrs,
			slog.Duration("lex", t.LexTime),
			slog.Duration("parse", t.ParseTime),
			slog.Duration("total", t.TotalTime))
	}
	return slog.GroupValue(attrs...)
}
