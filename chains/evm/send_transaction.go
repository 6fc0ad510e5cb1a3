package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/chains/evm/signer"
)

// GasPriceData represents the gas price data for EIP-1559 transactions.
type GasPriceData struct {
	MaxFeePerGas         *big.Int // The maximum fee per gas.
	MaxPriorityFeePerGas *big.Int // The maximum priority fee per gas.
}

// gasLimitWithBuffer adds 10% to the estimated gas.
func gasLimitWithBuffer(estimated uint64) uint64 {
	return estimated + estimated/10
}

// prepareTransaction prepares an EIP-1559 or legacy transaction depending on the chain TxType.
//
// Parameters:
// - ctx: the context for managing the request.
// - from: the sender, used for gas estimation.
// - nonce: the nonce for the transaction.
// - to: the recipient address of the transaction.
// - value: the amount of wei to send with the transaction.
// - data: the input data for the transaction.
//
// Returns:
// - *ethtypes.Transaction: the prepared transaction.
// - error: an error if the gas estimation, gas price retrieval, or client initialization fails.
func (e *evm) prepareTransaction(ctx context.Context, from common.Address, nonce uint64, to common.Address, value *big.Int, data []byte) (*ethtypes.Transaction, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	estimatedGas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to estimate gas")
		return nil, errors.Wrap(err, "failed to estimate gas")
	}
	gasLimit := gasLimitWithBuffer(estimatedGas)

	if e.config.TxType == TxTypeEIP1559 {
		gasPriceData, err := e.getEIP1559GasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get EIP-1559 gas price")
		}

		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(e.config.ChainID),
			Nonce:     nonce,
			GasFeeCap: gasPriceData.MaxFeePerGas,
			GasTipCap: gasPriceData.MaxPriorityFeePerGas,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		}), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	}), nil
}

// getEIP1559GasPrice derives fee caps from the latest base fee and the suggested tip.
func (e *evm) getEIP1559GasPrice(ctx context.Context) (*GasPriceData, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	suggestedTip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		e.logger.WithError(err).Error("Failed to get suggested gas tip")
		suggestedTip = big.NewInt(1)
	}
	if suggestedTip.Sign() == 0 {
		suggestedTip = big.NewInt(1)
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		e.logger.WithField("chain", e.config.Name).WithError(err).Warn("Failed to get header by number")
		return nil, errors.Wrap(err, "failed to get header by number")
	}
	if header.BaseFee == nil {
		return nil, errors.New("base fee is nil")
	}

	return &GasPriceData{
		MaxFeePerGas:         maxFeePerGas(header.BaseFee, suggestedTip),
		MaxPriorityFeePerGas: suggestedTip,
	}, nil
}

// maxFeePerGas is 130% of the base fee plus the tip.
func maxFeePerGas(baseFee, tip *big.Int) *big.Int {
	buffered := new(big.Int).Mul(baseFee, big.NewInt(130))
	buffered.Div(buffered, big.NewInt(100))
	return buffered.Add(buffered, tip)
}

// signAndSendTransaction signs and broadcasts tx.
func (e *evm) signAndSendTransaction(ctx context.Context, s signer.Signer, tx *ethtypes.Transaction) (*ethtypes.Transaction, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	signedTx, err := s.SignTx(tx, new(big.Int).SetUint64(e.config.ChainID))
	if err != nil {
		e.logger.WithError(err).Error("Failed to sign transaction")
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	if err = client.SendTransaction(ctx, signedTx); err != nil {
		e.logger.WithError(err).Error("Failed to send transaction")
		return nil, errors.Wrap(err, "failed to send transaction")
	}

	e.logger.WithFields(logrus.Fields{
		"chain":  e.config.Name,
		"txHash": signedTx.Hash().Hex(),
		"nonce":  signedTx.Nonce(),
	}).Debug("Transaction broadcast")
	return signedTx, nil
}
