package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/vensim/pkg/log"
	"github.com/autopeer-io/vensim/pkg/options"
)

type testOptions struct {
	MqttOptions *options.MqttOptions `mapstructure:"mqtt"`
	Log         *log.Options         `mapstructure:"log"`

	completed bool
}

func newTestOptions() *testOptions {
	return &testOptions{
		MqttOptions: options.NewMqttOptions(),
		Log:         log.NewOptions(),
	}
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *testOptions) LogOptions() *log.Options { return o.Log }

func run(t *testing.T, opts *testOptions, args ...string) (bool, error) {
	t.Helper()
	ran := false
	a := NewApp("ven-test", "test app",
		WithOptions(opts),
		WithDefaultValidArgs(),
		WithRunFunc(func() error {
			ran = true
			return nil
		}),
	)
	cmd := a.Command()
	cmd.SetArgs(args)
	return ran, cmd.Execute()
}

func TestFlagsReachOptions(t *testing.T) {
	opts := newTestOptions()
	ran, err := run(t, opts, "--mqtt.broker=tcp://broker:1883", "--mqtt.keep-alive=30s", "--log.level=debug")
	require.NoError(t, err)

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "tcp://broker:1883", opts.MqttOptions.Broker)
	assert.Equal(t, 30*time.Second, opts.MqttOptions.KeepAlive)
	assert.Equal(t, "debug", opts.Log.Level)
}

func TestEnvironmentOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "ven-test.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
mqtt:
  broker: tcp://from-file:1883
  topic-root: site-a/ven
log:
  level: warn
`), 0o600))
	t.Setenv("VEN_TEST_MQTT_BROKER", "tcp://from-env:1883")

	opts := newTestOptions()
	_, err := run(t, opts, "--config", cfg)
	require.NoError(t, err)

	assert.Equal(t, "tcp://from-env:1883", opts.MqttOptions.Broker)
	assert.Equal(t, "site-a/ven", opts.MqttOptions.TopicRoot)
	assert.Equal(t, "warn", opts.Log.Level)
}

func TestFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("VEN_TEST_MQTT_BROKER", "tcp://from-env:1883")

	opts := newTestOptions()
	_, err := run(t, opts, "--mqtt.broker=tcp://from-flag:1883")
	require.NoError(t, err)
	assert.Equal(t, "tcp://from-flag:1883", opts.MqttOptions.Broker)
}

func TestValidationStopsRun(t *testing.T) {
	opts := newTestOptions()
	ran, err := run(t, opts, "--mqtt.broker=nohost", "--log.format=xml")
	require.Error(t, err)
	assert.False(t, ran)

	var agg utilerrors.Aggregate
	require.True(t, errors.As(err, &agg))
	assert.Len(t, agg.Errors(), 2)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := run(t, newTestOptions(), "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRejectsPositionalArgs(t *testing.T) {
	ran, err := run(t, newTestOptions(), "extra")
	assert.Error(t, err)
	assert.False(t, ran)
}
