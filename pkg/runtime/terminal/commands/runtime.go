package commands

import (
	"context"
	"time"

	"github.com/de-tools/account-review/pkg/app"
	"github.com/de-tools/account-review/pkg/config"
	"github.com/de-tools/account-review/pkg/loader"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/runtime/terminal/export"
	"github.com/rs/zerolog"
)

// Runtime is shared by every command. Settings is filled in by the root
// command before any subcommand runs.
type Runtime struct {
	Settings *config.Settings
	Reporter *export.Reporter
	Open     func(ctx context.Context, settings *config.Settings) (*app.App, error)
	Now      func() time.Time
}

func (rt *Runtime) now() time.Time {
	if rt.Now == nil {
		return time.Now()
	}
	return rt.Now()
}

func (rt *Runtime) open(ctx context.Context) (*app.App, error) {
	if rt.Open == nil {
		return app.Open(ctx, rt.Settings)
	}
	return rt.Open(ctx, rt.Settings)
}

// clientInfo resolves the configuration of a client. An unconfigured client
// runs with empty eligibility settings, so eligibility-based modules skip.
func (rt *Runtime) clientInfo(ctx context.Context, id, name, month string) domain.ClientInfo {
	cfg, err := rt.Settings.Client(id)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Str("client", id).Msg("client not configured, running without eligibility settings")
		cfg = config.ClientConfig{}
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cfg.ClientInfo(id, month)
}

// identify fills in client id, name and month from an ODD file name when
// they were not given.
func identify(file, clientID, month string) (string, string, string) {
	name := ""
	if odd, ok := loader.ParseODDName(file); ok {
		if clientID == "" {
			clientID = odd.ClientID
		}
		if month == "" {
			month = odd.Month()
		}
		if clientID == odd.ClientID {
			name = odd.ClientName
		}
	}
	return clientID, name, month
}
