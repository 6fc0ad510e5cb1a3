package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestNewSignerFromHex(t *testing.T) {
	plain, err := NewSignerFromHex(testKey)
	require.NoError(t, err)

	prefixed, err := NewSignerFromHex("0x" + testKey)
	require.NoError(t, err)
	assert.Equal(t, plain.Address(), prefixed.Address())

	_, err = NewSignerFromHex("not-a-key")
	assert.Error(t, err)
}

func TestSignTx(t *testing.T) {
	s, err := NewSignerFromHex(testKey)
	require.NoError(t, err)

	chainID := big.NewInt(11155931)
	to := common.HexToAddress("0x302D51b6d19a0dC8dD4893e383cC9240B51a03Ca")
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     1,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1e15),
	})

	signed, err := s.SignTx(tx, chainID)
	require.NoError(t, err)

	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
}
