package commands

import (
	"fmt"

	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/loader"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/services/review"
	"github.com/spf13/cobra"
)

type RunCmd struct {
	rt        *Runtime
	clientID  string
	month     string
	outputDir string
	modules   []string
	skipDeck  bool
}

func NewRunCmd(rt *Runtime) *cobra.Command {
	rc := &RunCmd{rt: rt}
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run the account review for one extract",
		Args:  cobra.ExactArgs(1),
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.clientID, "client", "", "Client id (default: taken from the ODD file name)")
	cmd.Flags().StringVar(&rc.month, "month", "", "Reporting month as YYYY.MM (default: from the file name, else the current month)")
	cmd.Flags().StringVar(&rc.outputDir, "output", "", "Output base directory (default: paths.output_dir)")
	cmd.Flags().StringSliceVar(&rc.modules, "modules", nil, "Run only these module ids, in this order")
	cmd.Flags().BoolVar(&rc.skipDeck, "skip-deck", false, "Do not write the deck outline")

	return cmd
}

func (rc *RunCmd) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	file := args[0]

	clientID, name, month := identify(file, rc.clientID, rc.month)
	if clientID == "" {
		return fault.Config(map[string]any{"file": file}, "client id not given and not found in file name")
	}
	month, err := loader.ResolveMonth(month, rc.rt.now())
	if err != nil {
		return fault.Wrap(fault.KindConfig, err, "invalid month")
	}

	a, err := rc.rt.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.Reviewer(rc.outputDir, rc.options())
	if err != nil {
		return err
	}

	run, pc := svc.Review(ctx, review.Job{
		InputPath: file,
		Client:    rc.rt.clientInfo(ctx, clientID, name, month),
	})
	if err := rc.rt.Reporter.Run(run, pc.ExportLog); err != nil {
		return err
	}
	if run.Status != domain.RunStatusSucceeded {
		if run.Cause != nil {
			return run.Cause
		}
		return fmt.Errorf("run %s failed: %s", run.ID, run.Error)
	}
	return nil
}

func (rc *RunCmd) options() pipeline.Options {
	return pipeline.Options{
		Modules:  firstNonEmpty(rc.modules, rc.rt.Settings.Pipeline.Modules),
		SkipDeck: rc.skipDeck || rc.rt.Settings.Pipeline.SkipDeck,
	}
}
