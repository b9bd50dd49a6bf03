package overview

import (
	"context"
	"fmt"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/rs/zerolog"
)

// StatCodes is A1, the stat code distribution.
type StatCodes struct {
	analytics.Base
}

func NewStatCodes() *StatCodes {
	return &StatCodes{Base: analytics.Base{
		ModuleID: "overview.stat_codes",
		Name:     "Stat Code Distribution",
		Sect:     section,
		Columns:  []string{pipeline.ColStatCode, pipeline.ColBusiness},
	}}
}

func (m *StatCodes) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("A1: stat code distribution")
	s := distribution(pc.Data, pipeline.ColStatCode, pipeline.ColStatCode)

	res := analytics.Success("A1", "Stat Code Distribution")
	res.Tables = map[string]*table.Sheet{"Summary": s}
	res.Notes = topNote(s, "stat code")
	return []domain.AnalysisResult{res}, nil
}

// ProductCodes is A2, the product code distribution.
type ProductCodes struct {
	analytics.Base
}

func NewProductCodes() *ProductCodes {
	return &ProductCodes{Base: analytics.Base{
		ModuleID: "overview.product_codes",
		Name:     "Product Code Distribution",
		Sect:     section,
		Columns:  []string{pipeline.ColProductCode, pipeline.ColBusiness},
	}}
}

func (m *ProductCodes) Run(ctx context.Context, pc *pipeline.Context) ([]domain.AnalysisResult, error) {
	zerolog.Ctx(ctx).Info().Str("client", pc.Client.ID).Msg("A2: product code distribution")
	s := distribution(pc.Data, pipeline.ColProductCode, pipeline.ColProductCode)

	res := analytics.Success("A2", "Product Code Distribution")
	res.Tables = map[string]*table.Sheet{"Summary": s}
	res.Notes = topNote(s, "product code")
	return []domain.AnalysisResult{res}, nil
}

func topNote(s *table.Sheet, what string) string {
	if s.Empty() {
		return fmt.Sprintf("No %s data.", what)
	}
	top := s.Rows()[0]
	return fmt.Sprintf("Top %s %s: %.0f accounts (%.1f%%).", what, top.Label, top.Values[0], top.Values[1]*100)
}
