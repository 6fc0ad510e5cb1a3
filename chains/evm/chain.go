package evm

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ClipFinance/arise-lib/chains/evm/signer"
	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/connectionmonitor"
)

const (
	// TxTypeLegacy represents the legacy transaction type.
	TxTypeLegacy = 0
	// TxTypeEIP1559 represents the EIP-1559 transaction type.
	TxTypeEIP1559 = 2

	// receiptPollInterval is the HTTP polling interval of WaitForReceipt.
	receiptPollInterval = 2 * time.Second
	// blockTimeCacheSize bounds the header timestamp cache.
	blockTimeCacheSize = 4096
)

// evm is the RISE chain implementation on top of go-ethereum.
type evm struct {
	config          *types.ChainConfig // Chain configuration.
	logger          *logrus.Logger     // Logger for logging events.
	contractABI     abi.ABI            // Parsed aRISE contract ABI.
	contractAddress common.Address     // aRISE contract address.
	blockTimes      *lru.Cache         // Block number to header timestamp.

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex      // Mutex for client.
	client      *ethclient.Client // Ethereum client.

	signerMutex   sync.RWMutex  // Mutex for signer and wallet state.
	signer        signer.Signer // Signer for signing transactions.
	connected     bool          // Whether the wallet is connected.
	walletChainID uint64        // Chain id served by the RPC at connect time.

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

// NewEvmChain dials the RPC endpoint and returns the chain collaborator.
//
// Parameters:
// - ctx: the context for managing the connection monitor.
// - config: the chain configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.Chain: a new EVM chain instance.
// - error: an error if any issue occurs during creation.
func NewEvmChain(ctx context.Context, config *types.ChainConfig, logger *logrus.Logger) (types.Chain, error) {
	if config == nil || config.RpcUrl == "" {
		return nil, errors.Wrap(customErrors.ErrInvalidConfig, "rpc url is required")
	}
	if !common.IsHexAddress(config.ContractAddress) {
		return nil, errors.Wrapf(customErrors.ErrInvalidConfig, "invalid contract address %q", config.ContractAddress)
	}

	client, err := ethclient.DialContext(ctx, config.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	chain, err := newEvm(config, logger, client)
	if err != nil {
		client.Close()
		return nil, err
	}

	if err := chain.initMonitor(ctx); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	logger.WithFields(logrus.Fields{
		"chain":    config.Name,
		"chainId":  config.ChainID,
		"mode":     types.GetSubscriptionMode(config.RpcUrl).String(),
		"contract": chain.contractAddress.Hex(),
	}).Info("Connected to chain")

	return chain, nil
}

func newEvm(config *types.ChainConfig, logger *logrus.Logger, client *ethclient.Client) (*evm, error) {
	parsed, err := parseAriseABI()
	if err != nil {
		return nil, err
	}

	blockTimes, err := lru.New(blockTimeCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create block time cache")
	}

	if config.WaitNBlocks == 0 {
		config.WaitNBlocks = 1
	}

	return &evm{
		config:          config,
		logger:          logger,
		contractABI:     parsed,
		contractAddress: common.HexToAddress(config.ContractAddress),
		blockTimes:      blockTimes,
		client:          client,
	}, nil
}

// Config returns the chain configuration.
func (e *evm) Config() *types.ChainConfig {
	return e.config
}

// Close stops the connection monitor and closes the client.
func (e *evm) Close() {
	e.monitorMutex.Lock()
	if e.monitor != nil {
		e.monitor.Stop()
		e.monitor = nil
	}
	e.monitorMutex.Unlock()

	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()
}

// getClient returns the current client or ErrClientNotInitialized.
func (e *evm) getClient() (*ethclient.Client, error) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	if e.client == nil {
		return nil, customErrors.ErrClientNotInitialized
	}
	return e.client, nil
}
