package dapp

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
)

type sentTx struct {
	to    common.Address
	value *big.Int
}

// fakeChain mines every transaction immediately.
type fakeChain struct {
	mu        sync.Mutex
	cfg       types.ChainConfig
	addr      common.Address
	chainID   uint64
	connected bool
	nonce     byte

	points   *big.Int
	reverted map[common.Hash]bool
	used     map[common.Hash]bool

	sent      []sentTx
	sayArise  int
	shares    int
	burned    []*big.Int
	processed []common.Hash
	sendErr   error

	ariseEvents []types.AriseSaidEvent
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		cfg: types.ChainConfig{
			Name:        "RISE Testnet",
			ChainID:     11155931,
			ExplorerUrl: "https://explorer.testnet.riselabs.xyz",
			WaitNBlocks: 1,
		},
		addr:     common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		chainID:  11155931,
		points:   big.NewInt(100),
		reverted: make(map[common.Hash]bool),
		used:     make(map[common.Hash]bool),
	}
}

func (f *fakeChain) nextHashLocked() common.Hash {
	f.nonce++
	return common.BytesToHash([]byte{0xee, f.nonce})
}

func (f *fakeChain) receipt(hash common.Hash) *ethtypes.Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := ethtypes.ReceiptStatusSuccessful
	if f.reverted[hash] {
		status = ethtypes.ReceiptStatusFailed
	}
	return &ethtypes.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(10)}
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	return f.receipt(hash), nil
}

func (f *fakeChain) WaitForReceipt(_ context.Context, hash common.Hash, _ uint64) (*ethtypes.Receipt, error) {
	return f.receipt(hash), nil
}

func (f *fakeChain) Connect(context.Context) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return f.addr, nil
}

func (f *fakeChain) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *fakeChain) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChain) Address() (common.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addr, f.connected
}

func (f *fakeChain) ChainID() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID
}

func (f *fakeChain) SendTransaction(_ context.Context, to common.Address, value *big.Int, _ []byte) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.sent = append(f.sent, sentTx{to: to, value: value})
	return f.nextHashLocked(), nil
}

func (f *fakeChain) SayArise(_ context.Context, value *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return common.Hash{}, customErrors.ErrWalletNotConnected
	}
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.sayArise++
	f.points.Add(f.points, big.NewInt(10))
	return f.nextHashLocked(), nil
}

func (f *fakeChain) AwardSocialSharePoints(context.Context, common.Address) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shares++
	f.points.Add(f.points, big.NewInt(10))
	return f.nextHashLocked(), nil
}

func (f *fakeChain) AwardEthTransferPoints(context.Context, common.Address) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextHashLocked(), nil
}

func (f *fakeChain) ProcessTransactionHash(_ context.Context, txHash common.Hash) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, txHash)
	f.used[txHash] = true
	f.points.Add(f.points, big.NewInt(5))
	return f.nextHashLocked(), nil
}

func (f *fakeChain) BurnPoints(_ context.Context, amount *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.burned = append(f.burned, amount)
	f.points.Sub(f.points, amount)
	return f.nextHashLocked(), nil
}

func (f *fakeChain) GetUserPoints(context.Context, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.points), nil
}

func (f *fakeChain) GetUserAriseCount(context.Context, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(int64(f.sayArise)), nil
}

func (f *fakeChain) GetTotalAriseCount(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(int64(f.sayArise) + 40), nil
}

func (f *fakeChain) IsTransactionHashUsed(_ context.Context, txHash common.Hash) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used[txHash], nil
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return 10, nil
}

func (f *fakeChain) BlockTime(_ context.Context, number uint64) (time.Time, error) {
	return time.Unix(int64(number)*2, 0).UTC(), nil
}

func (f *fakeChain) FilterPointsAwarded(context.Context, common.Address, uint64, uint64) ([]types.PointsAwardedEvent, error) {
	return nil, nil
}

func (f *fakeChain) WatchPointsAwarded(ctx context.Context, _ common.Address, _ chan<- types.PointsAwardedEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeChain) WatchAriseSaid(ctx context.Context, sink chan<- types.AriseSaidEvent) error {
	f.mu.Lock()
	events := append([]types.AriseSaidEvent(nil), f.ariseEvents...)
	f.mu.Unlock()

	for _, ev := range events {
		select {
		case sink <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeChain) Config() *types.ChainConfig {
	return &f.cfg
}

func (f *fakeChain) Close() {}
