package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	vhttp "github.com/autopeer-io/vensim/internal/ven/server/http"
	"github.com/autopeer-io/vensim/internal/venctl"
)

func newStatusCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show power, the active event and every circuit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			st, err := c.State(requestContext(cmd))
			if err != nil {
				return err
			}
			if g.output() == outputJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printState(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newCircuitsCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "circuits",
		Short: "List circuits with their draw and shed capability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			circuits, err := c.Circuits(requestContext(cmd))
			if err != nil {
				return err
			}
			if g.output() == outputJSON {
				return printJSON(cmd.OutOrStdout(), circuits)
			}
			printCircuits(cmd.OutOrStdout(), circuits)
			return nil
		},
	}
}

func newCircuitCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circuit",
		Short: "Switch a circuit on or off",
	}

	toggle := func(enabled bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			v, err := c.Toggle(requestContext(cmd), args[0], enabled)
			if err != nil {
				return err
			}
			if g.output() == outputJSON {
				return printJSON(cmd.OutOrStdout(), v)
			}
			printCircuits(cmd.OutOrStdout(), []vhttp.CircuitView{*v})
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable CIRCUIT_ID",
			Short: "Switch a circuit on",
			Args:  cobra.ExactArgs(1),
			RunE:  toggle(true),
		},
		&cobra.Command{
			Use:   "disable CIRCUIT_ID",
			Short: "Switch a circuit off",
			Args:  cobra.ExactArgs(1),
			RunE:  toggle(false),
		},
	)
	return cmd
}

func newEventCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Trigger, restore and review demand-response events",
	}
	cmd.AddCommand(newTriggerCommand(g), newRestoreCommand(g), newHistoryCommand(g))
	return cmd
}

func newTriggerCommand(g *globalOptions) *cobra.Command {
	var req venctl.TriggerRequest

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Start a load shedding event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.ShedKW <= 0 {
				return errors.New("--shed-kw must be positive")
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			ack, err := c.Trigger(requestContext(cmd), req)
			if ack != nil {
				if perr := printAck(cmd.OutOrStdout(), g.output(), ack); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&req.EventID, "id", "", "Event id. Generated by the VEN when empty.")
	fs.Float64Var(&req.ShedKW, "shed-kw", 0, "Requested reduction in kW.")
	fs.DurationVar(&req.Duration, "duration", 0, "Event duration. The VEN default applies when zero.")
	return cmd
}

func newRestoreCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "End the active event and restore every circuit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			ack, err := c.Restore(requestContext(cmd))
			if ack != nil {
				if perr := printAck(cmd.OutOrStdout(), g.output(), ack); perr != nil {
					return perr
				}
			}
			return err
		},
	}
}

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var (
		venID string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished events stored by the recorder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := requestContext(cmd)
			if venID == "" {
				c, err := g.client()
				if err != nil {
					return err
				}
				st, err := c.State(ctx)
				if err != nil {
					return fmt.Errorf("--ven not set and the VEN id could not be read: %w", err)
				}
				venID = st.VenID
			}

			rc, err := g.recorderClient()
			if err != nil {
				return err
			}
			events, err := rc.Events(ctx, venID, limit)
			if err != nil {
				return err
			}
			if g.output() == outputJSON {
				return printJSON(cmd.OutOrStdout(), events)
			}
			printHistory(cmd.OutOrStdout(), events)
			return nil
		},
	}

	cmd.Flags().StringVar(&venID, "ven", "", "VEN id. Read from the VEN when empty.")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events.")
	return cmd
}
