package expose

import "strings"

// CLIConfig describes how an action appears as a CLI subcommand.
type CLIConfig struct {
	Name        string
	Description string
	Group       string
	Aliases     []string
	Hidden      bool
}

// BuildTags renders the kong struct tags for the command.
func (opts CLIConfig) BuildTags() []string {
	var tags []string
	if len(opts.Aliases) > 0 {
		tags = append(tags, "aliases:"+strings.Join(opts.Aliases, ","))
	}
	if opts.Hidden {
		tags = append(tags, `hidden:""`)
	}
	return tags
}

// CronConfig describes a recurring invocation of an action.
type CronConfig struct {
	Expression    string
	Owner         string
	MaxRetries    int
	StopOnFailure bool
}

// Exposure is optional metadata for UIs and consoles that list actions.
// The zero value is safe: not listed and read-only.
type Exposure struct {
	Listed      bool
	Tags        []string
	Permissions []string
	// Mutates signals side effects; false implies read-only.
	Mutates bool
}

// CLIAction is implemented by flows that want a CLI subcommand.
type CLIAction interface {
	CLIOptions() CLIConfig
}

// CronAction is implemented by flows that run on a schedule.
type CronAction interface {
	CronOptions() CronConfig
}

// ExposableAction is implemented by flows that carry listing metadata.
type ExposableAction interface {
	Exposure() Exposure
}

// ExposureOf returns the metadata of v when it implements ExposableAction.
func ExposureOf(v any) (Exposure, bool) {
	exposable, ok := v.(ExposableAction)
	if !ok {
		return Exposure{}, false
	}
	return exposable.Exposure(), true
}
