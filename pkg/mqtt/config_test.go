package mqtt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigValidate(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "client.crt")
	keyFile := filepath.Join(dir, "client.key")
	require.NoError(t, os.WriteFile(certFile, []byte("cert"), 0o600))
	require.NoError(t, os.WriteFile(keyFile, []byte("key"), 0o600))

	tests := []struct {
		name    string
		cfg     ClientConfig
		wantErr string
	}{
		{"ok plain", ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ven-1"}, ""},
		{"missing broker", ClientConfig{ClientID: "ven-1"}, "broker url is required"},
		{"no host", ClientConfig{BrokerURL: "localhost", ClientID: "ven-1"}, "scheme://host:port"},
		{"missing client id", ClientConfig{BrokerURL: "tcp://localhost:1883"}, "client id is required"},
		{"tls without credentials", ClientConfig{BrokerURL: "mqtts://broker:8883", ClientID: "ven-1"}, "credentials are required"},
		{"tls with username", ClientConfig{BrokerURL: "mqtts://broker:8883", ClientID: "ven-1", Username: "u"}, ""},
		{
			"tls with cert",
			ClientConfig{BrokerURL: "mqtts://broker:8883", ClientID: "ven-1", TLS: TLSConfig{CertFile: certFile, KeyFile: keyFile}},
			"",
		},
		{
			"cert without key",
			ClientConfig{BrokerURL: "mqtts://broker:8883", ClientID: "ven-1", TLS: TLSConfig{CertFile: certFile}},
			"must be set together",
		},
		{
			"missing ca file",
			ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ven-1", TLS: TLSConfig{CAFile: filepath.Join(dir, "nope.pem")}},
			"tls file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSetDefaultConfig(t *testing.T) {
	cfg := &ClientConfig{}
	setDefaultConfig(cfg)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReconnectBackoff)
	assert.EqualValues(t, 60, cfg.KeepAlive)
}

func TestNewClientStartsDisconnected(t *testing.T) {
	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://localhost:1883", ClientID: "ven-1"})
	require.NoError(t, err)
	assert.False(t, c.IsConnected())
	assert.Equal(t, StateDisconnected, c.State())
}
