package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/vensim/internal/recorder"
	"github.com/autopeer-io/vensim/pkg/app"
	"github.com/autopeer-io/vensim/pkg/log"
	"github.com/autopeer-io/vensim/pkg/options"
)

type RecorderOptions struct {
	Recorder      *recorder.RecorderOptions `json:"recorder" mapstructure:"recorder"`
	MqttOptions   *options.MqttOptions      `json:"mqtt" mapstructure:"mqtt"`
	SQLiteOptions *options.SQLiteOptions    `json:"sqlite" mapstructure:"sqlite"`
	HttpOptions   *options.HttpOptions      `json:"http" mapstructure:"http"`
	Log           *log.Options              `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*RecorderOptions)(nil)
	_ app.LogOptionsProvider  = (*RecorderOptions)(nil)
)

func NewRecorderOptions() *RecorderOptions {
	o := &RecorderOptions{
		Recorder:      recorder.NewRecorderOptions(),
		MqttOptions:   options.NewMqttOptions(),
		SQLiteOptions: options.NewSQLiteOptions(),
		HttpOptions:   options.NewRecorderHttpOptions(),
		Log:           log.NewOptions(),
	}
	o.Log.Name = "ven-recorder"
	return o
}

func (o *RecorderOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.Recorder.AddFlags(fss.FlagSet("recorder"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.SQLiteOptions.AddFlags(fss.FlagSet("sqlite"))
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *RecorderOptions) Complete() error {
	return nil
}

func (o *RecorderOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.Recorder.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.SQLiteOptions.Validate()...)
	// An empty address disables the query API.
	if o.HttpOptions.Addr != "" {
		errs = append(errs, o.HttpOptions.Validate()...)
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *RecorderOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *RecorderOptions) Config() *recorder.Config {
	return &recorder.Config{
		RecorderOptions: o.Recorder,
		MqttOptions:     o.MqttOptions,
		SQLiteOptions:   o.SQLiteOptions,
		HttpOptions:     o.HttpOptions,
	}
}
