// Package logging provides the bridge's structured logging setup: a single
// global logrus.Logger with stream-split output, ported from the teacher's
// common/logging.go OutputSplitter convention.
package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// outputSplitter routes error-level (and above) records to stderr and
// everything else to stdout, matching the teacher's common.OutputSplitter.
type outputSplitter struct{}

// stderrLevelMarkers match error, fatal and panic records in both the text
// and the JSON formats Configure can select.
var stderrLevelMarkers = [][]byte{
	[]byte("level=error"), []byte("level=fatal"), []byte("level=panic"),
	[]byte(`"level":"error"`), []byte(`"level":"fatal"`), []byte(`"level":"panic"`),
}

func (outputSplitter) Write(p []byte) (int, error) {
	for _, marker := range stderrLevelMarkers {
		if bytes.Contains(p, marker) {
			return os.Stderr.Write(p)
		}
	}
	return os.Stdout.Write(p)
}

// Logger is the bridge-wide logger instance. Configure sets its level and
// format once at startup; packages should call Entry to get a tagged child.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(outputSplitter{})
}

// Configure sets the logger's level and format; an unparseable level falls
// back to info. format is "json" or anything else for text.
func Configure(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	if format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Entry returns a *logrus.Entry pre-tagged with component, the convention
// every long-running goroutine (Feeder, Worker, Controller, Watcher,
// ClientPool) uses to identify its log lines.
func Entry(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// MessageID tags an entry with the MESSAGE_ID field the original Python
// process attaches via extra={'MESSAGE_ID': ...} for worker errors, drops,
// and bridge start/stop events.
func MessageID(entry *logrus.Entry, id string) *logrus.Entry {
	return entry.WithField("MESSAGE_ID", id)
}
