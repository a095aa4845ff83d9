package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawalFee(t *testing.T) {
	t.Run("splits at the configured basis points", func(t *testing.T) {
		fee, net := WithdrawalFee(5000, 250)
		assert.Equal(t, int64(125), fee)
		assert.Equal(t, int64(4875), net)
	})

	t.Run("truncates toward zero", func(t *testing.T) {
		fee, net := WithdrawalFee(39, 250)
		assert.Zero(t, fee)
		assert.Equal(t, int64(39), net)
	})

	t.Run("zero fee takes nothing", func(t *testing.T) {
		fee, net := WithdrawalFee(5000, 0)
		assert.Zero(t, fee)
		assert.Equal(t, int64(5000), net)
	})

	t.Run("exact for the full amount range", func(t *testing.T) {
		fee, net := WithdrawalFee(math.MaxInt64, 250)
		assert.Equal(t, int64(230584300921369395), fee)
		assert.Equal(t, int64(8992787735933406412), net)
		assert.Equal(t, int64(math.MaxInt64), fee+net)
	})
}

func TestCampaignProgress(t *testing.T) {
	assert.Equal(t, uint8(0), CampaignProgress(0, 1000))
	assert.Equal(t, uint8(50), CampaignProgress(500, 1000))
	assert.Equal(t, uint8(100), CampaignProgress(1500, 1000))
	assert.Equal(t, uint8(0), CampaignProgress(500, 0))
}
