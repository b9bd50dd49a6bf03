package rege

import (
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/analytics/analyticstest"
	"github.com/de-tools/account-review/pkg/analytics/results"
	"github.com/de-tools/account-review/pkg/calc"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	pc := analyticstest.Context(t)
	m := NewStatus()
	require.Empty(t, m.Validate(pc))

	res, err := m.Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)
	require.Len(t, res, 3)

	re := results.GetRegE1(pc)
	assert.True(t, re.Present)
	assert.Equal(t, 8, re.TotalBase)
	assert.Equal(t, 4, re.OptedIn)
	assert.Equal(t, 4, re.OptedOut)
	assert.Equal(t, 0.5, re.OptInRate)
	assert.Equal(t, 0.0, re.L12MRate)

	yearly := analyticstest.Slide(t, res, "A8.2").Tables["Yearly"]
	v, ok := yearly.Value(calc.TotalLabel, colRate)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	ages := analyticstest.Slide(t, res, "A8.4").Tables
	require.Contains(t, ages, "Account Age")
	require.Contains(t, ages, "Holder Age")
	assert.Equal(t, len(calc.RegEHolderAge.Rules)+1, ages["Holder Age"].Len())
	v, _ = ages["Holder Age"].Value(calc.TotalLabel, colTotal)
	assert.Equal(t, 8.0, v)
}

func TestStatus_LastTwelveMonthsBoundary(t *testing.T) {
	f, err := table.New(
		table.NewStringColumn(pipeline.ColStatCode, []string{"O", "O", "O"}, nil),
		table.NewStringColumn(pipeline.ColBusiness, []string{"No", "No", "No"}, nil),
		table.NewStringColumn(pipeline.ColDebit, []string{"Yes", "Yes", "No"}, nil),
		table.NewDateColumn(pipeline.ColDateOpened, []time.Time{
			time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		}),
		table.NewStringColumn(analyticstest.RegECol, []string{"Y", "N", "N"}, nil),
	)
	require.NoError(t, err)
	client := domain.ClientInfo{ID: "1453", Month: "2025.12", EligibleStatusCodes: []string{"O"}, RegEOptIn: []string{"Y"}}
	pc := analyticstest.ContextFor(t, client, f)

	_, err = NewStatus().Run(analyticstest.Ctx(t), pc)
	require.NoError(t, err)

	re := results.GetRegE1(pc)
	assert.Equal(t, 2, re.TotalBase)
	assert.Equal(t, 0.5, re.OptInRate)
	assert.Equal(t, 1.0, re.L12MRate)
}

func TestStatus_Prerequisites(t *testing.T) {
	t.Run("no opt-in codes", func(t *testing.T) {
		client := analyticstest.Client()
		client.RegEOptIn = nil
		pc := analyticstest.ContextFor(t, client, analyticstest.Accounts(t))

		_, err := NewStatus().Run(analyticstest.Ctx(t), pc)
		assert.ErrorContains(t, err, "opt-in codes")
		assert.False(t, results.GetRegE1(pc).Present)
	})

	t.Run("configured column missing", func(t *testing.T) {
		client := analyticstest.Client()
		client.RegEColumn = "Reg E Code 1999.01"
		pc := analyticstest.ContextFor(t, client, analyticstest.Accounts(t))

		_, err := NewStatus().Run(analyticstest.Ctx(t), pc)
		assert.ErrorContains(t, err, "not in data")
	})
}

func TestDetectColumn(t *testing.T) {
	f, err := table.New(
		table.NewStringColumn("Reg E Code 2025.11", []string{"Y"}, nil),
		table.NewStringColumn("Branch", []string{"N"}, nil),
		table.NewStringColumn("Reg E Code 2025.09", []string{"N"}, nil),
	)
	require.NoError(t, err)
	assert.Equal(t, "Reg E Code 2025.11", DetectColumn(f))

	none, err := table.New(table.NewStringColumn("Branch", []string{"N"}, nil))
	require.NoError(t, err)
	assert.Equal(t, "", DetectColumn(none))
}
