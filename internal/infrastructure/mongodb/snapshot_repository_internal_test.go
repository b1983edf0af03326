package mongodb

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/lapublica/pipeline-api/internal/domain/entity"
)

func TestSnapshotDocument_ConservaImportes(t *testing.T) {
	in := &entity.PipelineStatsSnapshot{
		ID:        "s1",
		CompanyID: "c1",
		TakenAt:   time.Date(2024, 4, 10, 2, 0, 0, 0, time.UTC),
		Counts:    map[string]int{"draft": 2, "paid": 1},
		Amounts: map[string]decimal.Decimal{
			"draft": decimal.RequireFromString("1250.50"),
			"paid":  decimal.RequireFromString("0"),
		},
		OverdueCount:   1,
		OverdueAmount:  decimal.RequireFromString("99.99"),
		ConversionRate: decimal.RequireFromString("0.3333"),
	}

	doc, err := toDocument(in)
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var back snapshotDocument
	require.NoError(t, bson.Unmarshal(raw, &back))

	out, err := fromDocument(back)
	require.NoError(t, err)
	assert.Equal(t, in.CompanyID, out.CompanyID)
	assert.True(t, in.TakenAt.Equal(out.TakenAt))
	assert.Equal(t, in.Counts, out.Counts)
	assert.True(t, in.Amounts["draft"].Equal(out.Amounts["draft"]))
	assert.True(t, in.OverdueAmount.Equal(out.OverdueAmount))
	assert.Equal(t, "0.3333", out.ConversionRate.String())
}

func TestFromDocument_SinContadores(t *testing.T) {
	in := &entity.PipelineStatsSnapshot{ID: "s1", CompanyID: "c1"}
	doc, err := toDocument(in)
	require.NoError(t, err)
	doc.Counts = nil

	out, err := fromDocument(doc)
	require.NoError(t, err)
	assert.NotNil(t, out.Counts)
	assert.Empty(t, out.Amounts)
	assert.True(t, out.OverdueAmount.IsZero())
}
