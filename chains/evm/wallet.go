package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/chains/evm/signer"
	customErrors "github.com/ClipFinance/arise-lib/common/errors"
)

// Connect loads the configured key and records the chain id served by the
// RPC. A mismatch with the configured chain is reported by ChainID, not here.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - common.Address: the connected account.
// - error: ErrWalletNotConnected without a key, or an RPC error.
func (e *evm) Connect(ctx context.Context) (common.Address, error) {
	if e.config.PrivateKey == "" {
		return common.Address{}, errors.Wrap(customErrors.ErrWalletNotConnected, "no private key configured")
	}

	s, err := signer.NewSignerFromHex(e.config.PrivateKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to create signer")
	}

	client, err := e.getClient()
	if err != nil {
		return common.Address{}, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to get chain id")
	}

	e.signerMutex.Lock()
	e.signer = s
	e.connected = true
	e.walletChainID = chainID.Uint64()
	e.signerMutex.Unlock()

	log := e.logger.WithFields(logrus.Fields{
		"chain":   e.config.Name,
		"address": s.Address().Hex(),
		"chainId": chainID.Uint64(),
	})
	if chainID.Uint64() != e.config.ChainID {
		log.Warnf("Wallet is on chain %d, expected %d", chainID.Uint64(), e.config.ChainID)
	} else {
		log.Info("Wallet connected")
	}
	return s.Address(), nil
}

// Disconnect forgets the signer.
func (e *evm) Disconnect() {
	e.signerMutex.Lock()
	defer e.signerMutex.Unlock()
	e.signer = nil
	e.connected = false
	e.walletChainID = 0
}

// IsConnected reports whether a signer is loaded.
func (e *evm) IsConnected() bool {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()
	return e.connected
}

// Address returns the connected account.
func (e *evm) Address() (common.Address, bool) {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()
	if !e.connected || e.signer == nil {
		return common.Address{}, false
	}
	return e.signer.Address(), true
}

// ChainID returns the chain id the wallet is connected to, 0 when disconnected.
func (e *evm) ChainID() uint64 {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()
	return e.walletChainID
}

// SendTransaction builds, signs and broadcasts a transaction from the connected account.
//
// Parameters:
// - ctx: the context for managing the request.
// - to: the recipient address.
// - value: the amount of wei to send.
// - data: the call data, nil for plain transfers.
//
// Returns:
// - common.Hash: the transaction hash.
// - error: ErrWalletNotConnected when no signer is loaded, or an RPC error.
func (e *evm) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	e.signerMutex.RLock()
	s := e.signer
	e.signerMutex.RUnlock()

	if s == nil {
		return common.Hash{}, customErrors.ErrWalletNotConnected
	}

	client, err := e.getClient()
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := client.PendingNonceAt(ctx, s.Address())
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to get nonce")
	}

	tx, err := e.prepareTransaction(ctx, s.Address(), nonce, to, value, data)
	if err != nil {
		return common.Hash{}, err
	}

	signed, err := e.signAndSendTransaction(ctx, s, tx)
	if err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}
