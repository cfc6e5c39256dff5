package ulogger

import (
	"io"
	"os"

	"github.com/ordishs/gocore"
)

type Options struct {
	loggerType string
	logLevel   string
	writer     io.Writer
}

type Option func(*Options)

func DefaultOptions() *Options {
	loggerType, _ := gocore.Config().Get("logger_type", "zerolog")
	logLevel, _ := gocore.Config().Get("log_level", "INFO")

	return &Options{
		loggerType: loggerType,
		logLevel:   logLevel,
		writer:     os.Stdout,
	}
}

func WithLevel(logLevel string) Option {
	return func(o *Options) {
		o.logLevel = logLevel
	}
}

func WithLoggerType(loggerType string) Option {
	return func(o *Options) {
		o.loggerType = loggerType
	}
}

func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.writer = w
	}
}
