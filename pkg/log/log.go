package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the process-wide logger. Call once from main.
func Setup(debug bool) {
	logrus.SetOutput(os.Stdout)

	level := logrus.InfoLevel
	if debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "15:04:05.000",
		FullTimestamp:   true,
	})
}

func Debug(args ...any) {
	logrus.Debug(args...)
}

func Debugf(format string, args ...any) {
	logrus.Debugf(format, args...)
}

func Info(args ...any) {
	logrus.Info(args...)
}

func Infof(format string, args ...any) {
	logrus.Infof(format, args...)
}

func Warn(args ...any) {
	logrus.Warn(args...)
}

func Warnf(format string, args ...any) {
	logrus.Warnf(format, args...)
}

func Error(args ...any) {
	logrus.Error(args...)
}

func Errorf(format string, args ...any) {
	logrus.Errorf(format, args...)
}

func Fatal(args ...any) {
	logrus.Fatal(args...)
}

func Fatalf(format string, args ...any) {
	logrus.Fatalf(format, args...)
}
