package action

// Reporter is the fire-and-forget channel user-code failures go to.
type Reporter interface {
	Report(err error, title, detail string)
}

// ReporterFunc adapts a function into a Reporter.
type ReporterFunc func(err error, title, detail string)

// Report satisfies Reporter.
func (f ReporterFunc) Report(err error, title, detail string) {
	f(err, title, detail)
}

// NopReporter drops every report.
type NopReporter struct{}

func (NopReporter) Report(error, string, string) {}

// SafeReport forwards to r and swallows anything the reporter panics
// with, so reporting can never break the caller.
func SafeReport(r Reporter, err error, title, detail string) {
	if r == nil || err == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	r.Report(err, title, detail)
}
