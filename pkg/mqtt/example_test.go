package mqtt_test

import (
	"context"
	"fmt"
	"time"

	"github.com/autopeer-io/vensim/pkg/log"
	"github.com/autopeer-io/vensim/pkg/mqtt"
)

func ExampleClient() {
	cfg := &mqtt.ClientConfig{
		BrokerURL:      "tcp://localhost:1883",
		ClientID:       fmt.Sprintf("ven-example-%d", time.Now().UnixMilli()),
		KeepAlive:      30,
		ConnectTimeout: 5 * time.Second,
		CleanStart:     true,
	}

	client, err := mqtt.NewClient(cfg, mqtt.WithStateListener(func(from, to string) {
		fmt.Printf("connection %s -> %s\n", from, to)
	}))
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Subscriptions may be registered before the connection is up.
	_ = client.Subscribe(ctx, "ven/ack/+", 1, func(_ context.Context, topic string, payload []byte) {
		fmt.Printf("ack on %s: %s\n", topic, payload)
	})

	if err := client.Start(ctx); err != nil {
		log.Error(err, "Failed to start MQTT client")
		return
	}
	defer client.Disconnect(context.Background())

	if err := client.AwaitConnection(ctx); err != nil {
		log.Error(err, "Broker not reachable")
		return
	}

	if err := client.Publish(ctx, "ven/cmd/ven-example", 1, false, []byte(`{"op":"ping","corr_id":"c-1"}`)); err != nil {
		log.Error(err, "Failed to publish")
	}
}
