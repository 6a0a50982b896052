package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/vensim/cmd/ven-recorder/app/options"
	"github.com/autopeer-io/vensim/pkg/app"
)

const commandName = "ven-recorder"

func NewApp() *app.App {
	opts := options.NewRecorderOptions()
	return app.NewApp(
		commandName,
		"Record VEN telemetry, acknowledgments and event reports",
		app.WithDescription(`The recorder subscribes to the topics every VEN publishes on and stores
telemetry, load snapshots, command acknowledgments and DR event reports in a
SQLite database. Rows older than the retention period are purged.`),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithWatchConfig(),
		app.WithRunFunc(func() error {
			ctx := genericapiserver.SetupSignalContext()

			r, err := opts.Config().NewRecorder()
			if err != nil {
				return fmt.Errorf("failed to create recorder: %w", err)
			}
			return r.Run(ctx)
		}),
	)
}
