package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AriseABI is the ABI of the aRISE points contract.
const AriseABI = `[
	{"type":"function","name":"sayArise","inputs":[],"outputs":[],"stateMutability":"payable"},
	{"type":"function","name":"processTransactionHash","inputs":[{"name":"transactionHash","type":"bytes32","internalType":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"awardSocialSharePoints","inputs":[{"name":"user","type":"address","internalType":"address"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"awardEthTransferPoints","inputs":[{"name":"recipient","type":"address","internalType":"address"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"burnPoints","inputs":[{"name":"amount","type":"uint256","internalType":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"getUserPoints","inputs":[{"name":"user","type":"address","internalType":"address"}],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"getUserAriseCount","inputs":[{"name":"user","type":"address","internalType":"address"}],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"getTotalAriseCount","inputs":[],"outputs":[{"name":"","type":"uint256","internalType":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"isTransactionHashUsed","inputs":[{"name":"transactionHash","type":"bytes32","internalType":"bytes32"}],"outputs":[{"name":"","type":"bool","internalType":"bool"}],"stateMutability":"view"},
	{"type":"event","name":"AriseSaid","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true,"internalType":"address"}]},
	{"type":"event","name":"PointsAwarded","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true,"internalType":"address"},{"name":"points","type":"uint256","indexed":false,"internalType":"uint256"},{"name":"action","type":"string","indexed":false,"internalType":"string"}]}
]`

func parseAriseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(AriseABI))
	if err != nil {
		return abi.ABI{}, errors.Wrap(err, "failed to parse contract ABI")
	}
	return parsed, nil
}

// SayArise submits the payable sayArise call.
func (e *evm) SayArise(ctx context.Context, value *big.Int) (common.Hash, error) {
	return e.transact(ctx, "sayArise", value)
}

// AwardSocialSharePoints credits user for a social share.
func (e *evm) AwardSocialSharePoints(ctx context.Context, user common.Address) (common.Hash, error) {
	return e.transact(ctx, "awardSocialSharePoints", nil, user)
}

// AwardEthTransferPoints credits the sender for a transfer to recipient.
func (e *evm) AwardEthTransferPoints(ctx context.Context, recipient common.Address) (common.Hash, error) {
	return e.transact(ctx, "awardEthTransferPoints", nil, recipient)
}

// ProcessTransactionHash asks the contract to credit a confirmed transfer.
func (e *evm) ProcessTransactionHash(ctx context.Context, txHash common.Hash) (common.Hash, error) {
	return e.transact(ctx, "processTransactionHash", nil, [32]byte(txHash))
}

// BurnPoints burns amount points of the connected account.
func (e *evm) BurnPoints(ctx context.Context, amount *big.Int) (common.Hash, error) {
	return e.transact(ctx, "burnPoints", nil, amount)
}

// GetUserPoints returns the points of user.
func (e *evm) GetUserPoints(ctx context.Context, user common.Address) (*big.Int, error) {
	return e.callUint(ctx, "getUserPoints", user)
}

// GetUserAriseCount returns how many times user said aRISE.
func (e *evm) GetUserAriseCount(ctx context.Context, user common.Address) (*big.Int, error) {
	return e.callUint(ctx, "getUserAriseCount", user)
}

// GetTotalAriseCount returns the global aRISE count.
func (e *evm) GetTotalAriseCount(ctx context.Context) (*big.Int, error) {
	return e.callUint(ctx, "getTotalAriseCount")
}

// IsTransactionHashUsed reports whether txHash was already credited.
func (e *evm) IsTransactionHashUsed(ctx context.Context, txHash common.Hash) (bool, error) {
	out, err := e.call(ctx, "isTransactionHashUsed", [32]byte(txHash))
	if err != nil {
		return false, err
	}

	used, ok := out[0].(bool)
	if !ok {
		return false, errors.Errorf("unexpected isTransactionHashUsed output %T", out[0])
	}
	return used, nil
}

func (e *evm) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := e.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}

	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected %s output %T", method, out[0])
	}
	return v, nil
}

// call runs a read-only contract method against the latest block.
func (e *evm) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := e.contractABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}

	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &e.contractAddress,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}
	if len(result) == 0 {
		return nil, errors.Errorf("empty result from %s call", method)
	}

	out, err := e.contractABI.Unpack(method, result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s", method)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no outputs from %s", method)
	}
	return out, nil
}

// transact sends a state-changing contract call from the connected wallet.
func (e *evm) transact(ctx context.Context, method string, value *big.Int, args ...interface{}) (common.Hash, error) {
	data, err := e.contractABI.Pack(method, args...)
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "failed to pack %s", method)
	}

	if value == nil {
		value = big.NewInt(0)
	}

	hash, err := e.SendTransaction(ctx, e.contractAddress, value, data)
	if err != nil {
		return common.Hash{}, errors.Wrapf(err, "failed to send %s", method)
	}

	e.logger.WithFields(logrus.Fields{
		"chain":  e.config.Name,
		"method": method,
		"txHash": hash.Hex(),
	}).Info("Contract transaction sent")
	return hash, nil
}
