// Package app implements venctl, the operator CLI of a simulated VEN.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/autopeer-io/vensim/internal/venctl"
	"github.com/autopeer-io/vensim/pkg/options"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type globalOptions struct {
	v *viper.Viper
}

func (g *globalOptions) server() string         { return g.v.GetString("server") }
func (g *globalOptions) recorder() string       { return g.v.GetString("recorder") }
func (g *globalOptions) timeout() time.Duration { return g.v.GetDuration("timeout") }
func (g *globalOptions) output() string         { return g.v.GetString("output") }

func (g *globalOptions) client() (*venctl.Client, error) {
	return venctl.NewClient(g.server(), g.timeout())
}

func (g *globalOptions) recorderClient() (*venctl.Client, error) {
	return venctl.NewClient(g.recorder(), g.timeout())
}

// NewCommand returns the venctl root command. Every global flag can also be
// set through a VENCTL_ environment variable, e.g. VENCTL_SERVER.
func NewCommand() *cobra.Command {
	g := &globalOptions{v: viper.New()}

	cmd := &cobra.Command{
		Use:          "venctl",
		Short:        "Operate a simulated VEN through its local control API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch g.output() {
			case outputTable, outputJSON:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want %s or %s)", g.output(), outputTable, outputJSON)
			}
		},
	}

	fs := cmd.PersistentFlags()
	fs.String("server", "http://"+options.DefaultVenHTTPAddr, "Address of the VEN control API.")
	fs.String("recorder", "http://"+options.DefaultRecorderHTTPAddr, "Address of the recorder API.")
	fs.Duration("timeout", 10*time.Second, "Request timeout.")
	fs.StringP("output", "o", outputTable, "Output format: table or json.")

	g.v.SetEnvPrefix("VENCTL")
	g.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	g.v.AutomaticEnv()
	_ = g.v.BindPFlags(fs)

	cmd.AddCommand(
		newStatusCommand(g),
		newCircuitsCommand(g),
		newCircuitCommand(g),
		newEventCommand(g),
	)
	return cmd
}

func requestContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
