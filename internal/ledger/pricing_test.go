package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost_KnownModel(t *testing.T) {
	// 1M prompt tokens at haiku input rate is exactly the table price.
	cost := CalculateCost("anthropic/claude-haiku-4-5", 1_000_000, 0)
	assert.Equal(t, 0.8, cost)

	cost = CalculateCost("anthropic/claude-haiku-4-5", 0, 1_000_000)
	assert.Equal(t, 4.0, cost)
}

func TestCalculateCost_DottedAlias(t *testing.T) {
	dashed := CalculateCost("anthropic/claude-sonnet-4-6", 500_000, 100_000)
	dotted := CalculateCost("anthropic/claude-sonnet-4.6", 500_000, 100_000)
	assert.Equal(t, dashed, dotted)
}

func TestCalculateCost_UnknownModelIsFree(t *testing.T) {
	assert.Equal(t, 0.0, CalculateCost("mystery/model-9000", 5_000_000, 5_000_000))
	assert.Equal(t, 0.0, CalculateCost("", 1_000_000, 0))
}

func TestGetModelPricing_Unknown(t *testing.T) {
	p := GetModelPricing("not-a-model")
	assert.Equal(t, 0.0, p.InputPerMTok)
	assert.Equal(t, 0.0, p.OutputPerMTok)
}
