package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/rent-ledger/internal/models"
)

func sampleDocument() Document {
	months := make([]models.MonthlyResult, 12)
	for i := range months {
		months[i] = models.MonthlyResult{Month: i + 1}
	}
	months[0] = models.MonthlyResult{
		Month:          1,
		TotalExpected:  decimal.RequireFromString("1500"),
		TotalCollected: decimal.RequireFromString("1000"),
		OverdueAmount:  decimal.RequireFromString("500"),
		OverdueCount:   1,
		CollectionRate: 67,
		AvgDelayDays:   3,
		ActiveLeases:   2,
	}
	return Document{
		TeamID:      "2f1c6a8e-5d1b-4f7a-9a51-0c4f2f1b6e11",
		Year:        2025,
		GeneratedAt: time.Date(2025, 2, 10, 12, 0, 0, 0, time.UTC),
		Months:      months,
		Summary: models.YearSummary{
			Year:           2025,
			TotalExpected:  decimal.RequireFromString("1500"),
			TotalCollected: decimal.RequireFromString("1000"),
			OverdueAmount:  decimal.RequireFromString("500"),
			OverdueCount:   1,
			CollectionRate: 67,
			TotalExpenses:  decimal.RequireFromString("200"),
			NetIncome:      decimal.RequireFromString("800"),
		},
		Profitability: models.ProfitabilityReport{
			Year: 2025,
			Properties: []models.PropertyProfitability{{
				PropertyID:      "p1",
				PropertyAddress: "1 Main St & Annex",
				TotalRevenue:    decimal.RequireFromString("1000"),
				TotalExpenses:   decimal.RequireFromString("200"),
				NetProfit:       decimal.RequireFromString("800"),
				ProfitMargin:    decimal.RequireFromString("80"),
			}},
		},
	}
}

func TestExportRoundTrip(t *testing.T) {
	e := NewExporter("secret")
	var buf bytes.Buffer
	_, err := e.WriteTo(&buf, sampleDocument())
	require.NoError(t, err)

	raw := buf.Bytes()
	require.NoError(t, e.Verify(raw))

	got, err := Decode(raw)
	require.NoError(t, err)
	want := sampleDocument()

	assert.Equal(t, want.TeamID, got.TeamID)
	assert.Equal(t, want.Year, got.Year)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	require.Len(t, got.Months, 12)
	assert.True(t, got.Months[0].TotalExpected.Equal(want.Months[0].TotalExpected))
	assert.Equal(t, 1, got.Months[0].OverdueCount)
	assert.Equal(t, 67, got.Months[0].CollectionRate)
	assert.Equal(t, 2, got.Months[0].ActiveLeases)
	assert.True(t, got.Summary.NetIncome.Equal(want.Summary.NetIncome))
	assert.Equal(t, 1, got.Summary.OverdueCount)
	require.Len(t, got.Profitability.Properties, 1)
	assert.Equal(t, "1 Main St & Annex", got.Profitability.Properties[0].PropertyAddress)
	assert.True(t, got.Profitability.Properties[0].ProfitMargin.Equal(decimal.NewFromInt(80)))
}

func TestVerifyRejectsTampering(t *testing.T) {
	e := NewExporter("secret")
	var buf bytes.Buffer
	_, err := e.WriteTo(&buf, sampleDocument())
	require.NoError(t, err)

	tampered := strings.Replace(buf.String(), "<collected>1000.00</collected>", "<collected>1500.00</collected>", 1)
	require.NotEqual(t, buf.String(), tampered)
	assert.ErrorIs(t, e.Verify([]byte(tampered)), ErrBadSignature)

	assert.ErrorIs(t, NewExporter("other").Verify(buf.Bytes()), ErrBadSignature)
	assert.Error(t, e.Verify([]byte("<notxml")))
	assert.ErrorIs(t, e.Verify([]byte("<rentLedger/>")), ErrBadSignature)
}

func TestAmountsUseTwoDecimals(t *testing.T) {
	doc := NewExporter("secret").Build(sampleDocument())
	el := doc.FindElement("/rentLedger/body/months/month/expected")
	require.NotNil(t, el)
	assert.Equal(t, "1500.00", el.Text())
}
