// Copyright 2025 The Autopeer Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// Output encodings.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options configures the process logger. Each field maps to a --log.* flag.
type Options struct {
	// Name prefixes every entry, typically the VEN id or the binary name.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Level is one of debug, info, warn or error. It can be changed at
	// runtime through a watched config file.
	Level string `json:"level,omitempty" mapstructure:"level"`

	Format        string `json:"format,omitempty" mapstructure:"format"`
	EnableColor   bool   `json:"enable-color,omitempty" mapstructure:"enable-color"`
	DisableCaller bool   `json:"disable-caller,omitempty" mapstructure:"disable-caller"`

	// CallerSkip is 2 for calls through the package-level functions.
	CallerSkip int `json:"caller-skip,omitempty" mapstructure:"caller-skip"`

	// OutputPaths accepts files as well as "stdout" and "stderr".
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
}

func NewOptions() *Options {
	return &Options{
		Level:       zapcore.InfoLevel.String(),
		Format:      FormatConsole,
		EnableColor: true,
		CallerSkip:  2,
		OutputPaths: []string{"stdout"},
	}
}

func (o *Options) Validate() []error {
	var errs []error

	if _, err := zapcore.ParseLevel(o.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid --log.level %q", o.Level))
	}
	switch o.Format {
	case FormatConsole, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid --log.format %q, must be %q or %q", o.Format, FormatConsole, FormatJSON))
	}
	if o.CallerSkip < 0 {
		errs = append(errs, errors.New("--log.caller-skip must not be negative"))
	}

	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "Logger name added to every entry.")
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum level: debug, info, warn or error.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Output encoding: console or json.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colorize levels in console output.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the file:line of the caller.")
	fs.IntVar(&o.CallerSkip, "log.caller-skip", o.CallerSkip, "Stack frames to skip when annotating the caller.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Where to write entries, e.g. stdout or /var/log/ven-agent.log.")
}
