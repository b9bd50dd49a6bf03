package commands

import (
	"errors"
	"fmt"

	"github.com/de-tools/account-review/pkg/services/history"
	"github.com/spf13/cobra"
)

type RunsCmd struct {
	rt      *Runtime
	clients []string
	limit   int
}

func NewRunsCmd(rt *Runtime) *cobra.Command {
	rc := &RunsCmd{rt: rt}
	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded runs, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rc.run,
	}

	cmd.Flags().StringSliceVar(&rc.clients, "client", nil, "Only runs of these client ids")
	cmd.Flags().IntVar(&rc.limit, "limit", 20, "Maximum number of runs listed")

	return cmd
}

func (rc *RunsCmd) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := rc.rt.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 1 {
		run, err := a.History.Get(ctx, args[0])
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read run: %w", err)
		}
		return rc.rt.Reporter.Run(run, nil)
	}

	runs, err := a.History.List(ctx, rc.clients, rc.limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	return rc.rt.Reporter.Runs(runs)
}
