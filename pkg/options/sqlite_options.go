package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SQLiteOptions)(nil)

// SQLiteOptions configures an embedded SQLite database.
type SQLiteOptions struct {
	// Path of the database file. ":memory:" keeps everything in memory.
	Path string `json:"path" mapstructure:"path"`

	// BusyTimeout is how long a writer waits for a lock held by another connection.
	BusyTimeout time.Duration `json:"busy-timeout" mapstructure:"busy-timeout"`

	// Retention drops rows older than this. Zero keeps everything.
	Retention time.Duration `json:"retention" mapstructure:"retention"`
}

func NewSQLiteOptions() *SQLiteOptions {
	return &SQLiteOptions{
		Path:        "vensim.db",
		BusyTimeout: 5 * time.Second,
		Retention:   7 * 24 * time.Hour,
	}
}

func (o *SQLiteOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if o.Path == "" {
		errs = append(errs, errors.New("--sqlite.path is required"))
	}
	if o.BusyTimeout < 0 {
		errs = append(errs, errors.New("--sqlite.busy-timeout must not be negative"))
	}
	if o.Retention < 0 {
		errs = append(errs, errors.New("--sqlite.retention must not be negative"))
	}
	return errs
}

func (o *SQLiteOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Path, "sqlite.path", o.Path, "Path of the SQLite database file.")
	fs.DurationVar(&o.BusyTimeout, "sqlite.busy-timeout", o.BusyTimeout, "How long to wait for a locked database.")
	fs.DurationVar(&o.Retention, "sqlite.retention", o.Retention, "Delete recorded rows older than this (0 keeps everything).")
}
