package ven

import (
	"fmt"
	"time"

	"github.com/autopeer-io/vensim/internal/pkg/metrics"
	"github.com/autopeer-io/vensim/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/vensim/internal/ven/command"
	"github.com/autopeer-io/vensim/internal/ven/device"
	"github.com/autopeer-io/vensim/internal/ven/hub"
	vhttp "github.com/autopeer-io/vensim/internal/ven/server/http"
	"github.com/autopeer-io/vensim/internal/ven/telemetry"
	"github.com/autopeer-io/vensim/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/vensim/pkg/mqtt/topic"
	"github.com/autopeer-io/vensim/pkg/options"
)

type Config struct {
	VenOptions  *VenOptions
	MqttOptions *options.MqttOptions
	HttpOptions *options.HttpOptions
}

func (cfg *Config) NewAgent() (*Agent, error) {
	vo := cfg.VenOptions

	circuits, err := vo.Roster()
	if err != nil {
		return nil, err
	}
	st, err := device.NewState(vo.ID, circuits, vo.InitialBaseKW())
	if err != nil {
		return nil, fmt.Errorf("failed to build device state: %w", err)
	}
	store := device.NewStore(st)

	mqttClient, topicBuilder, err := cfg.initMqttClientAndTopicBuilder(vo.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to init mqtt client: %w", err)
	}

	h := hub.New(vo.ID, mqttClient, topicBuilder,
		hub.WithThingName(vo.Thing()),
		hub.WithPublishTimeout(vo.PublishTimeout),
		hub.WithShadowBuilder(mqtttopic.NewShadowBuilder(cfg.MqttOptions.ShadowPrefix)),
	)
	dispatcher := command.NewDispatcher(vo.ID, store, h, command.WithRuntimeConfig(vo.RuntimeConfig()))

	loop, err := telemetry.New(vo.TelemetryConfig(), store, h)
	if err != nil {
		return nil, err
	}

	return &Agent{
		venID:      vo.ID,
		store:      store,
		hub:        h,
		dispatcher: dispatcher,
		loop:       loop,
		http:       vhttp.NewServer(cfg.HttpOptions, dispatcher, store, h.IsConnected),
	}, nil
}

func (cfg *Config) initMqttClientAndTopicBuilder(vid string) (mqtt.Client, *mqtttopic.Builder, error) {
	topicBuilder := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)

	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = clientID(vid, time.Now())
	}

	mqttConfig.WillTopic = topicBuilder.Build(paths.Status, vid)
	mqttConfig.WillPayload = hub.OfflinePresence(vid)
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	mqttClient, err := mqtt.NewClient(mqttConfig, mqtt.WithStateListener(observeConnection))
	if err != nil {
		return nil, nil, err
	}

	return mqttClient, topicBuilder, nil
}

// clientID is unique per process so a restarted VEN does not take over, and
// get kicked by, a session the broker still holds for the old one.
func clientID(vid string, now time.Time) string {
	return fmt.Sprintf("%s-%d", vid, now.UnixMilli())
}

func observeConnection(_, to string) {
	if to == mqtt.StateConnected {
		metrics.BrokerConnected.Set(1)
		return
	}
	metrics.BrokerConnected.Set(0)
}
