package evm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlockRanges(t *testing.T) {
	assert.Equal(t, [][2]uint64{{0, 999}, {1000, 1999}, {2000, 2500}}, blockRanges(0, 2500, 1000))
	assert.Equal(t, [][2]uint64{{5, 5}}, blockRanges(5, 5, 1000))
	assert.Equal(t, [][2]uint64{{1, 1000}}, blockRanges(1, 1000, 1000))
	assert.Nil(t, blockRanges(10, 5, 1000))
	assert.Nil(t, blockRanges(0, 5, 0))
}

func TestGasHelpers(t *testing.T) {
	assert.Equal(t, uint64(23100), gasLimitWithBuffer(21000))
	assert.Equal(t, int64(131), maxFeePerGas(big.NewInt(100), big.NewInt(1)).Int64())
}
