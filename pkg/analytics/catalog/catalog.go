// Package catalog lists every analysis package and loads them into a registry.
package catalog

import (
	"context"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/attrition"
	"github.com/de-tools/account-review/pkg/analytics/dctr"
	"github.com/de-tools/account-review/pkg/analytics/insights"
	"github.com/de-tools/account-review/pkg/analytics/overview"
	"github.com/de-tools/account-review/pkg/analytics/rege"
	"github.com/de-tools/account-review/pkg/analytics/value"
	"github.com/rs/zerolog"
)

// Units returns the registration unit of every analysis package.
func Units() []analytics.Unit {
	return []analytics.Unit{
		overview.Unit,
		dctr.Unit,
		rege.Unit,
		attrition.Unit,
		value.Unit,
		insights.Unit,
	}
}

// Load builds a registry in canonical order holding every module. A unit
// that fails to load is reported in the returned error; the modules of the
// others stay registered.
func Load(ctx context.Context) (analytics.Registry, error) {
	r := analytics.NewRegistry(analytics.DefaultOrder)
	err := r.Discover(ctx, Units())
	for _, p := range r.CheckOrder() {
		zerolog.Ctx(ctx).Warn().Str("problem", p).Msg("module order")
	}
	return r, err
}
