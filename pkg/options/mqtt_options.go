package options

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/vensim/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/vensim/pkg/mqtt/topic"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions contains configuration for MQTT client and topics.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// Client behavior
	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReconnectBackoff time.Duration `json:"reconnect-backoff" mapstructure:"reconnect-backoff"`
	SessionExpiry    uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart       bool          `json:"clean-start" mapstructure:"clean-start"`

	// Pre-issued credentials, e.g. an AWS IoT thing certificate.
	CAFile     string `json:"ca-file" mapstructure:"ca-file"`
	CertFile   string `json:"cert-file" mapstructure:"cert-file"`
	KeyFile    string `json:"key-file" mapstructure:"key-file"`
	ServerName string `json:"server-name" mapstructure:"server-name"`

	// InsecureSkipVerify controls whether a client verifies the server's certificate chain and host name.
	// If true, TLS accepts any certificate presented by the server and any host name in that certificate.
	// In this mode, TLS is susceptible to man-in-the-middle attacks. This should be used only for testing.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// Topic Topology definition
	// Using prefixes allows us to construct topics like: {TopicRoot}/{segment}/{id}
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`

	// ShadowPrefix is the namespace of the device-shadow topics.
	ShadowPrefix string `json:"shadow-prefix" mapstructure:"shadow-prefix"`

	// Debug logs the paho client internals.
	Debug bool `json:"debug" mapstructure:"debug"`
}

// NewMqttOptions creates a new MqttOptions with default values.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:           "tcp://localhost:1883",
		KeepAlive:        60 * time.Second,
		ConnectTimeout:   5 * time.Second,
		ReconnectBackoff: 3 * time.Second,
		SessionExpiry:    60,
		CleanStart:       true,
		TopicRoot:        "ven",
		ShadowPrefix:     mqtttopic.DefaultShadowPrefix,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MqttOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.Broker == "" {
		errs = append(errs, errors.New("--mqtt.broker is required"))
	} else if u, err := url.Parse(o.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("--mqtt.broker %q must look like scheme://host:port", o.Broker))
	}
	if (o.CertFile == "") != (o.KeyFile == "") {
		errs = append(errs, errors.New("--mqtt.cert-file and --mqtt.key-file must be set together"))
	}
	if o.KeepAlive < 0 || o.KeepAlive > 65535*time.Second {
		errs = append(errs, fmt.Errorf("--mqtt.keep-alive %s is out of range", o.KeepAlive))
	}
	if o.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("--mqtt.connect-timeout must be positive"))
	}
	if o.ReconnectBackoff <= 0 {
		errs = append(errs, errors.New("--mqtt.reconnect-backoff must be positive"))
	}

	return errs
}

// AddFlags adds flags for MqttOptions to the specified FlagSet.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "The URL of the MQTT broker, e.g. tcp://host:1883 or mqtts://host:8883.")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Explicit Client ID (optional, usually generated).")

	fs.DurationVar(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "MQTT Keep Alive interval.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for establishing MQTT connection.")
	fs.DurationVar(&o.ReconnectBackoff, "mqtt.reconnect-backoff", o.ReconnectBackoff, "Delay between reconnection attempts.")
	fs.Uint32Var(&o.SessionExpiry, "mqtt.session-expiry", o.SessionExpiry, "MQTT Session Expiry Interval in seconds.")
	fs.BoolVar(&o.CleanStart, "mqtt.clean-start", o.CleanStart, "Start a clean session on the first connection.")

	fs.StringVar(&o.CAFile, "mqtt.ca-file", o.CAFile, "PEM file with the CA certificates trusted for the broker.")
	fs.StringVar(&o.CertFile, "mqtt.cert-file", o.CertFile, "PEM client certificate file.")
	fs.StringVar(&o.KeyFile, "mqtt.key-file", o.KeyFile, "PEM private key file of the client certificate.")
	fs.StringVar(&o.ServerName, "mqtt.server-name", o.ServerName, "Override the TLS server name.")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "If true, skips the TLS certificate verification.")

	// Topics
	fs.StringVar(&o.TopicRoot, "mqtt.topic-root", o.TopicRoot, "Topic prefix of the VEN channels.")
	fs.StringVar(&o.ShadowPrefix, "mqtt.shadow-prefix", o.ShadowPrefix, "Topic prefix of the device shadow.")

	fs.BoolVar(&o.Debug, "mqtt.debug", o.Debug, "Log MQTT client internals at debug level.")
}

func (o *MqttOptions) ToClientConfig() *mqtt.ClientConfig {
	return &mqtt.ClientConfig{
		BrokerURL:        o.Broker,
		Username:         o.Username,
		Password:         o.Password,
		ClientID:         o.ClientID,
		KeepAlive:        uint16(o.KeepAlive.Seconds()),
		SessionExpiry:    o.SessionExpiry,
		ConnectTimeout:   o.ConnectTimeout,
		ReconnectBackoff: o.ReconnectBackoff,
		CleanStart:       o.CleanStart,
		TLS: mqtt.TLSConfig{
			CAFile:             o.CAFile,
			CertFile:           o.CertFile,
			KeyFile:            o.KeyFile,
			ServerName:         o.ServerName,
			InsecureSkipVerify: o.InsecureSkipVerify,
		},
		Debug: o.Debug,
	}
}
