package commands

import (
	"fmt"

	"github.com/de-tools/account-review/pkg/batch"
	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/loader"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/services/review"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type BatchCmd struct {
	rt        *Runtime
	month     string
	workers   int
	outputDir string
	modules   []string
	clients   []string
	skipDeck  bool
}

func NewBatchCmd(rt *Runtime) *cobra.Command {
	bc := &BatchCmd{rt: rt}
	cmd := &cobra.Command{
		Use:   "batch [dir]",
		Short: "Run the account review for every extract of a month",
		Args:  cobra.MaximumNArgs(1),
		RunE:  bc.run,
	}

	cmd.Flags().StringVar(&bc.month, "month", "", "Reporting month as YYYY.MM (default: current month)")
	cmd.Flags().IntVar(&bc.workers, "workers", 0, "Clients processed at once (default: pipeline.max_workers)")
	cmd.Flags().StringVar(&bc.outputDir, "output", "", "Output base directory (default: paths.output_dir)")
	cmd.Flags().StringSliceVar(&bc.modules, "modules", nil, "Run only these module ids, in this order")
	cmd.Flags().StringSliceVar(&bc.clients, "clients", nil, "Only process these client ids")
	cmd.Flags().BoolVar(&bc.skipDeck, "skip-deck", false, "Do not write deck outlines")

	return cmd
}

func (bc *BatchCmd) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := zerolog.Ctx(ctx)

	dir := bc.rt.Settings.Paths.InputDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return fault.Config(nil, "no input directory given and paths.input_dir is not set")
	}
	month, err := loader.ResolveMonth(bc.month, bc.rt.now())
	if err != nil {
		return fault.Wrap(fault.KindConfig, err, "invalid month")
	}

	found, err := batch.Scan(dir, month)
	if err != nil {
		return err
	}
	jobs := bc.jobs(cmd, found, month)
	if len(jobs) == 0 {
		logger.Warn().Str("dir", dir).Str("month", month).Msg("no extracts found")
		fmt.Fprintf(cmd.OutOrStdout(), "No extracts found for %s in %s\n", month, dir)
		return nil
	}

	a, err := bc.rt.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.Reviewer(bc.outputDir, pipeline.Options{
		Modules:  firstNonEmpty(bc.modules, bc.rt.Settings.Pipeline.Modules),
		SkipDeck: bc.skipDeck || bc.rt.Settings.Pipeline.SkipDeck,
	})
	if err != nil {
		return err
	}

	workers := bc.workers
	if workers <= 0 {
		workers = bc.rt.Settings.Pipeline.MaxWorkers
	}
	results := batch.Run(ctx, svc, jobs, workers)
	if err := bc.rt.Reporter.Batch(results); err != nil {
		return err
	}
	if failed := len(results) - batch.Succeeded(results); failed > 0 {
		return fmt.Errorf("%d of %d clients failed", failed, len(results))
	}
	return nil
}

func (bc *BatchCmd) jobs(cmd *cobra.Command, found []batch.Scanned, month string) []review.Job {
	keep := map[string]bool{}
	for _, id := range bc.clients {
		keep[id] = true
	}
	jobs := make([]review.Job, 0, len(found))
	for _, f := range found {
		if len(keep) > 0 && !keep[f.ClientID] {
			continue
		}
		jobs = append(jobs, review.Job{
			InputPath: f.Path,
			Client:    bc.rt.clientInfo(cmd.Context(), f.ClientID, f.ClientName, month),
		})
	}
	return jobs
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
