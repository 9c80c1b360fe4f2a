package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the log section.
func NewLogger(c *Config) *logrus.Logger {
	logg := logrus.New()
	logg.SetOutput(os.Stdout)
	if c.Log.Format == "text" {
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logg.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
		logg.WithField("level", c.Log.Level).Warn("unknown log level, using info")
	}
	logg.SetLevel(level)
	return logg
}

// LogError logs err with the module/function it came from.
func LogError(logger logrus.FieldLogger, moduleName, funcName string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
