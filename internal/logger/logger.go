package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lagostransit/crowdroutes-backend/internal/config"
)

// New builds the application logger. Output is JSON to stdout; when a log
// file is configured it is duplicated to a size-rotated file.
func New(cfg config.ServerConfig, logCfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	out := io.Writer(os.Stdout)
	if logCfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   logCfg.File,
			MaxSize:    logCfg.MaxSizeMB,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotator)
	}
	log.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return log
}
