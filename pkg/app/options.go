package app

import (
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/vensim/pkg/log"
)

// NamedFlagSetOptions is implemented by the option aggregate of a command.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section for help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in derived values after flags and config are applied.
	Complete() error

	// Validate checks every option and aggregates the problems.
	Validate() error
}

// LogOptionsProvider is implemented by options that carry logger settings.
// The App initializes the process logger from them before running.
type LogOptionsProvider interface {
	LogOptions() *log.Options
}
