// Package logging builds the engine's structured logger.
//
// The repository this package is grounded on (see DESIGN.md) split
// dev/console and prod/JSON logging behind build tags and a zerolog
// package-level logger; its go.mod
// actually declares go.uber.org/zap as the logging dependency (zerolog is
// imported but never required — see DESIGN.md), so this package keeps the
// same dev/prod split but both uses and returns the declared zap logger as
// an injected *zap.SugaredLogger rather than a package global, so the
// engine stays embeddable as a library.
package logging

import (
	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode selects the logging configuration.
type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

// New builds a *zap.SugaredLogger for mode. A level that zap.ParseAtomicLevel
// recognizes replaces the mode's default level (debug for dev, info for
// prod); an empty or unrecognized level keeps that default.
func New(mode Mode, level string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if mode == ModeDev {
		cfg = zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = coloredLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err == nil {
			cfg.Level = parsed
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Noop returns a logger that discards everything, for tests and callers
// that don't want to wire a real sink.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

var levelColors = map[zapcore.Level]*color.Color{
	zapcore.DebugLevel:  color.New(color.FgMagenta),
	zapcore.InfoLevel:   color.New(color.FgCyan),
	zapcore.WarnLevel:   color.New(color.FgYellow),
	zapcore.ErrorLevel:  color.New(color.FgRed),
	zapcore.DPanicLevel: color.New(color.FgRed, color.Bold),
	zapcore.PanicLevel:  color.New(color.FgRed, color.Bold),
	zapcore.FatalLevel:  color.New(color.FgRed, color.Bold),
}

// coloredLevelEncoder gives dev-mode console output the same accent
// coloring the teacher's dev logger got from fatih/color, adapted from a
// zerolog ConsoleWriter formatter to a zapcore.LevelEncoder.
func coloredLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	c, ok := levelColors[l]
	if !ok {
		enc.AppendString(l.CapitalString())
		return
	}
	enc.AppendString(c.Sprint(l.CapitalString()))
}
