package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/constant"
)

func FromConfig(conf config.Log) zerolog.Logger {
	level, err := zerolog.ParseLevel(conf.Level)
	if nil != err {
		panic("invalid logging level: " + conf.Level)
	}

	var out io.Writer
	switch strings.ToLower(conf.Format) {
	case "json":
		out = os.Stderr
	case "pretty":
		out = newConsoleWriter()
	default:
		panic("invalid logging format: " + conf.Format)
	}

	if len(conf.File.Path) > 0 {
		out = zerolog.MultiLevelWriter(out, newFileWriter(conf.File))
	}

	return newLogger(out).Level(level)
}

func NewDefault() zerolog.Logger {
	return newLogger(newConsoleWriter()).Level(zerolog.InfoLevel)
}

func newLogger(out io.Writer) zerolog.Logger {
	return zerolog.
		New(out).
		Hook(stackHook{}).
		With().
		Timestamp().
		Str("version", constant.Version).
		Str("compile_time", constant.CompileTime).
		Logger()
}

func newConsoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{ //nolint:exhaustruct
		Out:          os.Stderr,
		TimeFormat:   time.RFC3339,
		TimeLocation: time.UTC,
	}
}

func newFileWriter(conf config.LogFile) *lumberjack.Logger {
	return &lumberjack.Logger{ //nolint:exhaustruct
		Filename:   conf.Path,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
		Compress:   conf.Compress,
	}
}
