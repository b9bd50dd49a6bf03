package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/de-tools/account-review/pkg/archive"
	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "ARS"

type Settings struct {
	Paths    Paths                   `mapstructure:"paths"`
	Pipeline Pipeline                `mapstructure:"pipeline"`
	Logging  Logging                 `mapstructure:"logging"`
	Archive  Archive                 `mapstructure:"archive"`
	Server   Server                  `mapstructure:"server"`
	Clients  map[string]ClientConfig `mapstructure:"clients" validate:"dive"`
}

type Paths struct {
	OutputDir string `mapstructure:"output_dir" validate:"required"`
	InputDir  string `mapstructure:"input_dir"`
	HistoryDB string `mapstructure:"history_db" validate:"required"`
}

type Pipeline struct {
	MaxWorkers int      `mapstructure:"max_workers" validate:"min=1,max=32"`
	SkipDeck   bool     `mapstructure:"skip_deck"`
	Modules    []string `mapstructure:"modules"`
}

type Logging struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool   `mapstructure:"pretty"`
}

type Archive struct {
	Kind    string `mapstructure:"kind" validate:"omitempty,oneof=local s3"`
	Dir     string `mapstructure:"dir" validate:"required_if=Kind local"`
	Bucket  string `mapstructure:"bucket" validate:"required_if=Kind s3"`
	Prefix  string `mapstructure:"prefix"`
	Profile string `mapstructure:"profile"`
	Region  string `mapstructure:"region"`
}

type Server struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// ClientConfig is the per-institution part of the settings file, keyed by
// client id.
type ClientConfig struct {
	Name                 string   `mapstructure:"name"`
	EligibleStatusCodes  []string `mapstructure:"eligible_status_codes"`
	EligibleProductCodes []string `mapstructure:"eligible_product_codes"`
	EligibleMailable     []string `mapstructure:"eligible_mailable"`
	NSFODFee             float64  `mapstructure:"nsf_od_fee" validate:"gte=0"`
	ICRate               float64  `mapstructure:"ic_rate" validate:"gte=0,lte=1"`
	DebitIndicator       string   `mapstructure:"debit_indicator"`
	RegEOptIn            []string `mapstructure:"reg_e_opt_in"`
	RegEColumn           string   `mapstructure:"reg_e_column"`
	AssignedCSM          string   `mapstructure:"assigned_csm"`
}

// ClientInfo builds the immutable run identity for this client and month.
func (c ClientConfig) ClientInfo(id, month string) domain.ClientInfo {
	return domain.ClientInfo{
		ID:                   id,
		Name:                 c.Name,
		Month:                month,
		EligibleStatusCodes:  append([]string(nil), c.EligibleStatusCodes...),
		EligibleProductCodes: append([]string(nil), c.EligibleProductCodes...),
		EligibleMailable:     append([]string(nil), c.EligibleMailable...),
		NSFODFee:             c.NSFODFee,
		ICRate:               c.ICRate,
		DebitIndicator:       c.DebitIndicator,
		RegEOptIn:            append([]string(nil), c.RegEOptIn...),
		RegEColumn:           c.RegEColumn,
		AssignedCSM:          c.AssignedCSM,
	}
}

// Client returns the configuration of client id.
func (s *Settings) Client(id string) (ClientConfig, error) {
	c, ok := s.Clients[strings.ToLower(id)]
	if !ok {
		ids := make([]string, 0, len(s.Clients))
		for k := range s.Clients {
			ids = append(ids, k)
		}
		sort.Strings(ids)
		return ClientConfig{}, fault.Config(
			map[string]any{"client": id, "available": ids},
			"client %s is not configured", id,
		)
	}
	return c, nil
}

func (a Archive) Settings() archive.Settings {
	return archive.Settings{
		Kind:    a.Kind,
		Dir:     a.Dir,
		Bucket:  a.Bucket,
		Prefix:  a.Prefix,
		Profile: a.Profile,
		Region:  a.Region,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.input_dir", "")
	v.SetDefault("paths.history_db", "ars_history.db")
	v.SetDefault("pipeline.max_workers", 4)
	v.SetDefault("pipeline.skip_deck", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("archive.kind", "")
	v.SetDefault("archive.dir", "")
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("archive.profile", "")
	v.SetDefault("archive.region", "")
	v.SetDefault("server.addr", "127.0.0.1:8080")
}

// Load reads settings from path (YAML or JSON) layered over defaults, with
// ARS_-prefixed environment variables taking precedence. An empty path
// loads defaults and environment only.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fault.Wrap(fault.KindConfig, err, "failed to read config file")
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fault.Wrap(fault.KindConfig, err, "failed to parse settings")
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks settings and reports every invalid field at once.
func Validate(s *Settings) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fault.Wrap(fault.KindConfig, err, "validate settings")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fault.Config(map[string]any{"fields": fields}, "invalid settings: %s", strings.Join(fields, ", "))
}
