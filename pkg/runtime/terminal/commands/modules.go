package commands

import (
	"github.com/de-tools/account-review/pkg/analytics/catalog"
	"github.com/de-tools/account-review/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

func NewModulesCmd(reporter *export.Reporter) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List analysis modules in execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := catalog.Load(cmd.Context())
			if err != nil {
				return err
			}
			return reporter.Modules(registry.Ordered(cmd.Context()))
		},
	}
}
