package dapp

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/cooldown"
	"github.com/ClipFinance/arise-lib/notify"
	"github.com/ClipFinance/arise-lib/points"
	"github.com/ClipFinance/arise-lib/tracker"
)

const seenAriseSize = 1024

// Service runs the user actions of the dApp against the chain.
type Service struct {
	chain    types.Chain
	tracker  *tracker.Tracker
	gate     *cooldown.Gate
	mirror   *points.Mirror
	history  *points.History
	sink     notify.Sink
	throttle *notify.Throttle
	logger   *logrus.Logger
	confirm  ConfirmFunc
}

// ConfirmFunc asks the wallet owner to approve a transaction described by
// description. Returning false rejects it.
type ConfirmFunc func(ctx context.Context, description string) bool

// Counts is the per-user and global aRISE count.
type Counts struct {
	User  *big.Int
	Total *big.Int
}

// Tracker returns the transaction tracker.
func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}

// Connect connects the wallet and starts mirroring its points.
func (s *Service) Connect(ctx context.Context) (common.Address, error) {
	addr, err := s.chain.Connect(ctx)
	if err != nil {
		return common.Address{}, s.report(err)
	}

	if err := s.mirror.Start(ctx, addr); err != nil {
		s.logger.WithFields(logrus.Fields{
			"address": addr.Hex(),
			"error":   err,
		}).Warn("Failed to start points mirror")
	}

	if s.chain.ChainID() != s.chain.Config().ChainID {
		_ = s.report(customErrors.ErrWrongNetwork)
	}

	notify.Notice{
		Severity:    notify.SeveritySuccess,
		Title:       "Wallet Connected",
		Description: types.ShortAddress(addr),
	}.Send(s.sink)
	return addr, nil
}

// Disconnect stops the mirror, clears the tracker and forgets the wallet.
func (s *Service) Disconnect() {
	s.mirror.Stop()
	s.tracker.Clear()
	s.chain.Disconnect()
}

// Points returns the mirrored points of the connected wallet.
func (s *Service) Points(ctx context.Context) (*big.Int, error) {
	if _, err := s.requireWallet(); err != nil {
		return nil, s.report(err)
	}

	total, err := s.mirror.Refresh(ctx)
	if err != nil {
		return nil, s.report(err)
	}
	return total, nil
}

// Cooldown returns the cooldown state of the connected wallet.
func (s *Service) Cooldown(ctx context.Context) (cooldown.State, error) {
	addr, err := s.requireWallet()
	if err != nil {
		return cooldown.State{}, s.report(err)
	}
	return s.gate.Check(ctx, addr)
}

// History syncs and returns a page of the connected wallet's points history.
//
// Parameters:
// - ctx: the context for managing the request.
// - order: the sort order.
// - page: the 1-based page number, clamped to the available pages.
//
// Returns:
// - points.Page: the requested page.
// - error: ErrNotImplemented when no history is configured, or a sync error.
func (s *Service) History(ctx context.Context, order points.SortOrder, page int) (points.Page, error) {
	addr, err := s.requireWallet()
	if err != nil {
		return points.Page{}, s.report(err)
	}
	if s.history == nil {
		return points.Page{}, customErrors.ErrNotImplemented
	}

	if _, err := s.history.Sync(ctx, addr); err != nil {
		return points.Page{}, s.report(err)
	}
	return s.history.List(ctx, addr, order, page)
}

// Counts returns the connected wallet's and the global aRISE count.
func (s *Service) Counts(ctx context.Context) (Counts, error) {
	addr, err := s.requireWallet()
	if err != nil {
		return Counts{}, s.report(err)
	}

	user, err := s.chain.GetUserAriseCount(ctx, addr)
	if err != nil {
		return Counts{}, s.report(err)
	}
	total, err := s.chain.GetTotalAriseCount(ctx)
	if err != nil {
		return Counts{}, s.report(err)
	}
	return Counts{User: user, Total: total}, nil
}

// WatchArise shows a toast for every distinct AriseSaid event until ctx ends.
func (s *Service) WatchArise(ctx context.Context) error {
	seen, err := lru.New(seenAriseSize)
	if err != nil {
		return errors.Wrap(err, "failed to create event cache")
	}

	events := make(chan types.AriseSaidEvent, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.chain.WatchAriseSaid(ctx, events)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				return errors.Wrap(err, "aRISE subscription ended")
			}
			return ctx.Err()
		case ev := <-events:
			// resubscribes replay logs already shown
			if dup, _ := seen.ContainsOrAdd(ev.Key(), struct{}{}); dup {
				continue
			}
			notify.Notice{
				Severity:    notify.SeverityInfo,
				Title:       "New aRISE!",
				Description: "User: " + types.ShortAddress(ev.User),
			}.SendThrottled(s.sink, s.throttle)
		}
	}
}

// Track follows an arbitrary transaction hash.
func (s *Service) Track(hash common.Hash) {
	s.tracker.Track(hash, nil)
}

// requireWallet returns the connected address or ErrWalletNotConnected.
func (s *Service) requireWallet() (common.Address, error) {
	addr, ok := s.chain.Address()
	if !ok || !s.chain.IsConnected() {
		return common.Address{}, customErrors.ErrWalletNotConnected
	}
	return addr, nil
}

// approve runs the confirm step and returns ErrUserRejected when the
// owner declines.
func (s *Service) approve(ctx context.Context, description string) error {
	if s.confirm == nil || s.confirm(ctx, description) {
		return nil
	}
	s.logger.WithField("request", description).Info("Transaction rejected")
	return errors.Wrap(customErrors.ErrUserRejected, description)
}

// report shows the notice describing err and returns err.
func (s *Service) report(err error) error {
	if err == nil {
		return nil
	}
	s.logger.WithError(err).Debug("Action failed")
	notify.DescribeError(err).Send(s.sink)
	return err
}
