package report

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Sentry sends reports to a sentry hub with title and detail as tags.
type Sentry struct {
	hub  *sentry.Hub
	tags map[string]string
}

// NewSentry reports through hub, or the current hub when nil.
func NewSentry(hub *sentry.Hub, tags map[string]string) *Sentry {
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	return &Sentry{hub: hub, tags: copied}
}

// NewSentryClient creates a dedicated client and hub.
func NewSentryClient(opts sentry.ClientOptions, tags map[string]string) (*Sentry, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return NewSentry(sentry.NewHub(client, sentry.NewScope()), tags), nil
}

func (s *Sentry) Report(err error, title, detail string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		for k, v := range s.tags {
			scope.SetTag(k, v)
		}
		scope.SetTag("action", title)
		scope.SetTag("stage", detail)
		scope.SetFingerprint([]string{"{{ default }}", title, detail})
		s.hub.CaptureException(err)
	})
}

// Flush waits for buffered events.
func (s *Sentry) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}
