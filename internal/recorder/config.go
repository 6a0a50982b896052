package recorder

import (
	"fmt"
	"os"
	"time"

	rhttp "github.com/autopeer-io/vensim/internal/recorder/server/http"
	"github.com/autopeer-io/vensim/internal/recorder/store"
	"github.com/autopeer-io/vensim/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/vensim/pkg/mqtt/topic"
	"github.com/autopeer-io/vensim/pkg/options"
)

type Config struct {
	RecorderOptions *RecorderOptions
	MqttOptions     *options.MqttOptions
	SQLiteOptions   *options.SQLiteOptions
	HttpOptions     *options.HttpOptions
}

func (cfg *Config) NewRecorder() (*Recorder, error) {
	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = clientID(time.Now())
	}
	client, err := mqtt.NewClient(mqttConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	db, err := store.Open(cfg.SQLiteOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.SQLiteOptions.Path, err)
	}

	r := New(client, mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot), db, cfg.SQLiteOptions.Retention, cfg.RecorderOptions)
	if cfg.HttpOptions != nil && cfg.HttpOptions.Addr != "" {
		r.AddServer(rhttp.NewServer(cfg.HttpOptions, db, client.IsConnected))
	}
	return r, nil
}

func clientID(now time.Time) string {
	host, _ := os.Hostname()
	if host == "" {
		host = "local"
	}
	return fmt.Sprintf("ven-recorder-%s-%d", host, now.UnixMilli())
}
