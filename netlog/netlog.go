// Package netlog is the stack's logging facade: a structured
// github.com/sirupsen/logrus backend (the library the
// runZeroInc-conniver example imports directly for its own logging),
// presented through the same Debug/Info/Warn/Error/Success helpers and
// startup banner the teacher repo's pkg/logger exposes. Log lines are
// colored by logrus; Banner and Section print plain text.
package netlog

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var base = logrus.New()

func init() {
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   true,
	})
	base.SetLevel(logrus.DebugLevel)
}

// SetLevel sets the minimum log level by name ("debug", "info", "warn", "error").
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)
}

// Fields is a shorthand alias so callers don't need to import logrus directly.
type Fields = logrus.Fields

// Layer returns an entry pre-tagged with the originating layer name,
// the idiom every layer in this stack uses to log
// ("physical", "link", "network", "transport").
func Layer(name string) *logrus.Entry {
	return base.WithField("layer", name)
}

// Debug logs at debug level with no fields attached.
func Debug(format string, args ...interface{}) { base.Debugf(format, args...) }

// Info logs at info level with no fields attached.
func Info(format string, args ...interface{}) { base.Infof(format, args...) }

// Warn logs at warn level with no fields attached.
func Warn(format string, args ...interface{}) { base.Warnf(format, args...) }

// Error logs at error level with no fields attached.
func Error(format string, args ...interface{}) { base.Errorf(format, args...) }

// Success logs at info level, styled the same as the teacher's
// colored "success" helper.
func Success(format string, args ...interface{}) {
	base.WithField("result", "ok").Infof(format, args...)
}

// Fatal logs at error level and exits the process.
func Fatal(format string, args ...interface{}) {
	base.Errorf(format, args...)
	os.Exit(1)
}

// Section prints a boxed section header to stdout, same presentation
// as the teacher's pkg/logger.Section — this is terminal decoration,
// not structured logging, so it bypasses logrus.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════"
	fmt.Printf("\n╔%s╗\n║ %-57s ║\n╚%s╝\n\n", border, title, border)
}

// Banner prints the application startup banner.
func Banner(title, version string) {
	fmt.Printf("\n%s\nversion %s\n\n", title, version)
}
