package main

import (
	"fmt"
	"io"

	"github.com/arloliu/go-gcode/logger"
)

// newLogger builds the logger described by ls. Records go to stderr unless a
// log file is set.
func newLogger(ls *LogSettings, stderr io.Writer) (logger.Logger, io.Closer, error) {
	level, ok := logger.ParseLevel(ls.Level)
	if !ok {
		return nil, nil, fmt.Errorf("invalid log level: %s", ls.Level)
	}

	format, err := logger.ParseFormat(ls.Format)
	if err != nil {
		return nil, nil, err
	}

	return logger.New(stderr, logger.Options{
		Level:  level,
		Format: format,
		File: logger.FileOutput{
			Path:       ls.File,
			MaxSize:    ls.MaxSize,
			MaxBackups: ls.MaxBackups,
			MaxAge:     ls.MaxAge,
			Compress:   ls.Compress,
		},
	})
}
