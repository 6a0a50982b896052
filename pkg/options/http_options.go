package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*HttpOptions)(nil)

const (
	// DefaultVenHTTPAddr is where a VEN agent serves its control surface.
	DefaultVenHTTPAddr = "127.0.0.1:8080"
	// DefaultRecorderHTTPAddr is where the recorder serves its query API. It
	// sits one port above the agent so both can share a host.
	DefaultRecorderHTTPAddr = "127.0.0.1:8081"
)

// HttpOptions configures the loopback JSON API of a VEN agent or of the
// recorder.
type HttpOptions struct {
	// Network is the listener family: tcp, tcp4 or tcp6.
	Network string `json:"network" mapstructure:"network"`

	// Addr is host:port of the listener.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout bounds reading request headers.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewHttpOptions returns the agent's control surface defaults.
func NewHttpOptions() *HttpOptions {
	return &HttpOptions{
		Network: "tcp",
		Addr:    DefaultVenHTTPAddr,
		Timeout: 10 * time.Second,
	}
}

// NewRecorderHttpOptions returns the recorder query API defaults.
func NewRecorderHttpOptions() *HttpOptions {
	o := NewHttpOptions()
	o.Addr = DefaultRecorderHTTPAddr
	return o
}

// Validate checks the listener settings given on the command line or in the
// config file.
func (o *HttpOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error

	switch o.Network {
	case "tcp", "tcp4", "tcp6":
	default:
		errs = append(errs, fmt.Errorf("http.network %q must be tcp, tcp4 or tcp6", o.Network))
	}
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive, got %s", o.Timeout))
	}

	return errs
}

// AddFlags registers the http.* flags on fs.
func (o *HttpOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, "http.network", o.Network, "Listener network for the JSON API (tcp, tcp4 or tcp6).")
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "host:port of the JSON API. Keep it on loopback; the API has no authentication.")
	fs.DurationVar(&o.Timeout, "http.timeout", o.Timeout, "Header read timeout of the API server.")
}
