package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects the backend and encoding of a logger built by New.
type Format string

const (
	// FormatConsole renders human readable lines through console-slog.
	FormatConsole Format = "console"
	// FormatJSON writes slog JSON records.
	FormatJSON Format = "json"
	// FormatZap writes zap production JSON records.
	FormatZap Format = "zap"
)

// ParseFormat converts a format name to a Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(name); f {
	case FormatConsole, FormatJSON, FormatZap:
		return f, nil
	default:
		return "", fmt.Errorf("logger: unknown format %q", name)
	}
}

// FileOutput describes a size-rotated log file.
type FileOutput struct {
	Path       string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Options configures New.
type Options struct {
	Level     LogLevel
	Format    Format
	AddSource bool
	// File, when its Path is set, replaces the writer passed to New.
	File FileOutput
}

// New creates a logger writing to w, or to the rotated file of opts.File.
//
// The returned closer releases the log file; it is nil when there is no file.
func New(w io.Writer, opts Options) (Logger, io.Closer, error) {
	var closer io.Closer
	if opts.File.Path != "" {
		lumber, err := newRotatedFile(opts.File)
		if err != nil {
			return nil, nil, err
		}
		w, closer = lumber, lumber
	}

	switch opts.Format {
	case FormatJSON:
		return NewSlogWriter(w, opts.Level, opts.AddSource, false), closer, nil
	case FormatZap:
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

		return NewZap(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), opts.Level), closer, nil
	case FormatConsole, "":
		return NewSlogWriter(w, opts.Level, opts.AddSource, true), closer, nil
	default:
		if closer != nil {
			_ = closer.Close()
		}

		return nil, nil, fmt.Errorf("logger: unknown format %q", opts.Format)
	}
}

func newRotatedFile(f FileOutput) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return nil, fmt.Errorf("logger: failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   f.Path,
		MaxSize:    f.MaxSize,
		MaxBackups: f.MaxBackups,
		MaxAge:     f.MaxAge,
		Compress:   f.Compress,
	}, nil
}
