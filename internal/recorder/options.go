package recorder

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/vensim/pkg/options"
)

var _ options.IOptions = (*RecorderOptions)(nil)

// RecorderOptions tunes how VEN traffic is consumed.
type RecorderOptions struct {
	// ShareGroup, when set, consumes through an MQTT v5 shared subscription
	// so several recorders split the traffic.
	ShareGroup string `json:"share-group" mapstructure:"share-group"`

	// PurgeInterval is how often rows older than the retention are removed.
	PurgeInterval time.Duration `json:"purge-interval" mapstructure:"purge-interval"`

	// WriteTimeout bounds one insert.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
}

func NewRecorderOptions() *RecorderOptions {
	return &RecorderOptions{
		PurgeInterval: time.Hour,
		WriteTimeout:  5 * time.Second,
	}
}

func (o *RecorderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}
	if strings.ContainsAny(o.ShareGroup, "/+#") {
		errs = append(errs, errors.New("--recorder.share-group must not contain '/', '+' or '#'"))
	}
	if o.PurgeInterval <= 0 {
		errs = append(errs, errors.New("--recorder.purge-interval must be positive"))
	}
	if o.WriteTimeout <= 0 {
		errs = append(errs, errors.New("--recorder.write-timeout must be positive"))
	}
	return errs
}

func (o *RecorderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ShareGroup, "recorder.share-group", o.ShareGroup, "Shared subscription group; empty subscribes directly.")
	fs.DurationVar(&o.PurgeInterval, "recorder.purge-interval", o.PurgeInterval, "How often expired rows are deleted.")
	fs.DurationVar(&o.WriteTimeout, "recorder.write-timeout", o.WriteTimeout, "Timeout of a single database write.")
}
