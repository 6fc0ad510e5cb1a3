package types

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ChainConfig holds the configuration of the chain the dApp talks to.
//
// Fields:
// - Name: the name of the chain.
// - ChainID: the unique identifier for the chain.
// - RpcUrl: the URL for the chain's RPC endpoint.
// - ContractAddress: the address of the aRISE contract.
// - ExplorerUrl: the base URL of the block explorer.
// - DeployBlock: the block the contract was deployed at, used as the history sync start.
// - TxType: the type of transactions supported by the chain.
// - WaitNBlocks: the number of blocks to wait for transaction confirmation.
// - PrivateKey: the private key for signing transactions.
type ChainConfig struct {
	Name            string
	ChainID         uint64
	RpcUrl          string
	ContractAddress string
	ExplorerUrl     string
	DeployBlock     uint64
	TxType          uint64
	WaitNBlocks     uint64
	PrivateKey      string
}

// ExplorerTxURL returns the explorer page of the given transaction.
func (c *ChainConfig) ExplorerTxURL(hash common.Hash) string {
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(c.ExplorerUrl, "/"), hash.Hex())
}

// ShortHash abbreviates a hash as 0x1234...abcd.
func ShortHash(hash common.Hash) string {
	h := hash.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// ShortAddress abbreviates an address as 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	a := addr.Hex()
	return a[:6] + "..." + a[len(a)-4:]
}

// ReceiptProvider provides direct receipt lookups.
type ReceiptProvider interface {
	// TransactionReceipt returns the receipt of a mined transaction.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - hash: the transaction hash.
	//
	// Returns:
	// - *ethtypes.Receipt: the receipt.
	// - error: ethereum.NotFound when the transaction is not mined yet, or a provider error.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error)
}

// ReceiptWaiter blocks until a transaction has the requested confirmations.
type ReceiptWaiter interface {
	// WaitForReceipt waits for the receipt of a transaction.
	//
	// Parameters:
	// - ctx: the context for managing the wait.
	// - hash: the transaction hash.
	// - confirmations: the minimum number of blocks including the receipt's block.
	//
	// Returns:
	// - *ethtypes.Receipt: the receipt once confirmed.
	// - error: an error if the context ends or the provider fails.
	WaitForReceipt(ctx context.Context, hash common.Hash, confirmations uint64) (*ethtypes.Receipt, error)
}

// WalletProvider supplies the connected account and signs transactions.
type WalletProvider interface {
	Connect(ctx context.Context) (common.Address, error)
	Disconnect()
	IsConnected() bool
	Address() (common.Address, bool)
	ChainID() uint64

	// SendTransaction signs and broadcasts a transaction.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - to: the recipient address.
	// - value: the amount of wei to send.
	// - data: the call data, nil for plain transfers.
	//
	// Returns:
	// - common.Hash: the hash of the broadcast transaction.
	// - error: an error if signing or broadcasting fails.
	SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// AriseContract is the boundary of the aRISE smart contract.
type AriseContract interface {
	SayArise(ctx context.Context, value *big.Int) (common.Hash, error)
	AwardSocialSharePoints(ctx context.Context, user common.Address) (common.Hash, error)
	AwardEthTransferPoints(ctx context.Context, recipient common.Address) (common.Hash, error)
	ProcessTransactionHash(ctx context.Context, txHash common.Hash) (common.Hash, error)
	BurnPoints(ctx context.Context, amount *big.Int) (common.Hash, error)

	GetUserPoints(ctx context.Context, user common.Address) (*big.Int, error)
	GetUserAriseCount(ctx context.Context, user common.Address) (*big.Int, error)
	GetTotalAriseCount(ctx context.Context) (*big.Int, error)
	IsTransactionHashUsed(ctx context.Context, txHash common.Hash) (bool, error)
}

// EventSource reads and watches contract events.
type EventSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockTime(ctx context.Context, number uint64) (time.Time, error)

	// FilterPointsAwarded returns the PointsAwarded events of a user in [from, to].
	FilterPointsAwarded(ctx context.Context, user common.Address, from, to uint64) ([]PointsAwardedEvent, error)

	// WatchPointsAwarded streams PointsAwarded events of a user until ctx ends.
	WatchPointsAwarded(ctx context.Context, user common.Address, sink chan<- PointsAwardedEvent) error

	// WatchAriseSaid streams AriseSaid events until ctx ends.
	WatchAriseSaid(ctx context.Context, sink chan<- AriseSaidEvent) error
}

// Chain combines all chain-specific functionality.
type Chain interface {
	ReceiptProvider
	ReceiptWaiter
	WalletProvider
	AriseContract
	EventSource

	Config() *ChainConfig
	Close()
}
