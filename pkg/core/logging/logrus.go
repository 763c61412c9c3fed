// Package logging holds the process-wide logrus logger used by the pipeline stages.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

// Configure adjusts the shared logger. An unknown level keeps the current one.
func Configure(level string, out io.Writer) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logg.SetLevel(lvl)
	}
	if out != nil {
		logg.SetOutput(out)
	}
}

// Discard returns a logger that drops everything. Tests use it to keep output quiet.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Stage returns an entry tagged with the pipeline stage and run id.
func Stage(logger logrus.FieldLogger, stage string, runID string) *logrus.Entry {
	if logger == nil {
		logger = logg
	}
	return logger.WithFields(logrus.Fields{
		"stage":  stage,
		"run_id": runID,
	})
}

func LogError(logger logrus.FieldLogger, moduleName string, funcName string, context string, data any, err error) {
	if logger == nil {
		logger = logg
	}
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
