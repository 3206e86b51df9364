package report

import (
	action "github.com/goliatone/go-action"
)

// Log writes every report to a logger at error level.
type Log struct {
	logger action.Logger
}

func NewLog(logger action.Logger) *Log {
	return &Log{logger: action.NormalizeLogger(logger)}
}

func (l *Log) Report(err error, title, detail string) {
	if err == nil {
		return
	}
	l.logger.Error("action failure reported", "title", title, "detail", detail, "error", err)
}

// Multi fans a report out to several reporters. One failing reporter
// does not stop the others.
type Multi []action.Reporter

func (m Multi) Report(err error, title, detail string) {
	for _, r := range m {
		action.SafeReport(r, err, title, detail)
	}
}
