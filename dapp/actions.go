package dapp

import (
	"context"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/notify"
)

const (
	// MinBurnAmount is the smallest number of points that can be burned.
	MinBurnAmount = 1000
	// etherDecimals is the number of decimals of the native token.
	etherDecimals = 18
)

var (
	// SayAriseValue is the payment attached to sayArise, 0.001 ETH.
	SayAriseValue = big.NewInt(1e15)

	addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// Platform is a social network a share can be posted to.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformTelegram Platform = "telegram"
)

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(strings.ToLower(s)); p {
	case PlatformTwitter, PlatformTelegram:
		return p, nil
	case "x":
		return PlatformTwitter, nil
	default:
		return "", errors.Errorf("unknown platform %q", s)
	}
}

// SayArise sends the payable sayArise call and tracks it. On success the
// cooldown starts and the points are refreshed.
//
// Parameters:
// - ctx: the context for managing the submission.
//
// Returns:
// - common.Hash: the submitted transaction.
// - error: ErrWalletNotConnected, ErrWrongNetwork, ErrOnCooldown, ErrUserRejected or a submission error.
func (s *Service) SayArise(ctx context.Context) (common.Hash, error) {
	addr, err := s.requireWallet()
	if err != nil {
		return common.Hash{}, s.report(err)
	}
	if s.chain.ChainID() != s.chain.Config().ChainID {
		return common.Hash{}, s.report(customErrors.ErrWrongNetwork)
	}

	state, err := s.gate.Check(ctx, addr)
	if err != nil {
		return common.Hash{}, s.report(err)
	}
	if state.OnCooldown {
		return common.Hash{}, s.report(errors.Wrapf(customErrors.ErrOnCooldown, "%s remaining", state.Formatted()))
	}

	if err := s.approve(ctx, "Say aRISE for "+FormatEther(SayAriseValue)+" ETH"); err != nil {
		return common.Hash{}, s.report(err)
	}

	hash, err := s.chain.SayArise(ctx, SayAriseValue)
	if err != nil {
		return common.Hash{}, s.report(err)
	}

	s.sent(hash, types.ActionSayArise)
	s.tracker.Track(hash, func(ctx context.Context, _ *ethtypes.Receipt) {
		if err := s.gate.Start(ctx, addr); err != nil {
			s.logger.WithError(err).Warn("Failed to start cooldown")
		}
		s.refreshPoints(ctx)
	})
	return hash, nil
}

// Transfer sends amount ETH to recipient and, once confirmed, asks the
// contract to credit the transfer unless it was already credited.
//
// Parameters:
// - ctx: the context for managing the submission.
// - recipient: the 0x-prefixed recipient address.
// - amount: the decimal ETH amount, at most 18 decimals.
//
// Returns:
// - common.Hash: the submitted transfer.
// - error: ErrInvalidAddress or ErrInvalidAmount before any network call, or a submission error.
func (s *Service) Transfer(ctx context.Context, recipient, amount string) (common.Hash, error) {
	if _, err := s.requireWallet(); err != nil {
		return common.Hash{}, s.report(err)
	}

	to, err := ParseRecipient(recipient)
	if err != nil {
		return common.Hash{}, s.report(err)
	}
	value, err := ParseEther(amount)
	if err != nil {
		return common.Hash{}, s.report(err)
	}

	if err := s.approve(ctx, "Send "+FormatEther(value)+" ETH to "+to.Hex()); err != nil {
		return common.Hash{}, s.report(err)
	}

	hash, err := s.chain.SendTransaction(ctx, to, value, nil)
	if err != nil {
		return common.Hash{}, s.report(err)
	}

	notify.Notice{
		Severity:    notify.SeverityInfo,
		Title:       "Transaction Sent",
		Description: "Waiting for confirmation...",
	}.Send(s.sink)

	s.tracker.Track(hash, func(ctx context.Context, _ *ethtypes.Receipt) {
		s.creditTransfer(ctx, hash)
	})
	return hash, nil
}

// creditTransfer submits processTransactionHash for a confirmed transfer.
func (s *Service) creditTransfer(ctx context.Context, hash common.Hash) {
	log := s.logger.WithField("txHash", hash.Hex())

	used, err := s.chain.IsTransactionHashUsed(ctx, hash)
	if err != nil {
		log.WithError(err).Warn("Failed to check transfer credit")
		return
	}
	if used {
		log.Debug("Transfer already credited")
		s.refreshPoints(ctx)
		return
	}

	creditHash, err := s.chain.ProcessTransactionHash(ctx, hash)
	if err != nil {
		_ = s.report(err)
		return
	}

	log.WithField("creditTxHash", creditHash.Hex()).Info("Transfer credit submitted")
	s.tracker.Track(creditHash, func(ctx context.Context, _ *ethtypes.Receipt) {
		s.refreshPoints(ctx)
	})
}

// Share awards the social share points, waits for the receipt and returns
// the share URL of platform.
//
// Parameters:
// - ctx: the context for managing the submission and the wait.
// - platform: where the post is shared.
// - text: the post text.
// - link: the shared link.
//
// Returns:
// - string: the intent URL to open.
// - error: ErrWalletNotConnected, a submission error or ErrTransactionReverted.
func (s *Service) Share(ctx context.Context, platform Platform, text, link string) (string, error) {
	addr, err := s.requireWallet()
	if err != nil {
		return "", s.report(err)
	}

	shareURL, err := ShareURL(platform, text, link)
	if err != nil {
		return "", err
	}

	if err := s.approve(ctx, "Claim social share points on "+string(platform)); err != nil {
		return "", s.report(err)
	}

	hash, err := s.chain.AwardSocialSharePoints(ctx, addr)
	if err != nil {
		return "", s.report(err)
	}

	receipt, err := s.chain.WaitForReceipt(ctx, hash, s.chain.Config().WaitNBlocks)
	if err != nil {
		return "", s.report(err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return "", s.report(customErrors.ErrTransactionReverted)
	}

	notify.Notice{
		Severity:    notify.SeveritySuccess,
		Title:       "Points Updated",
		Description: "New Balance: +10 Points",
	}.Send(s.sink)
	s.refreshPoints(ctx)
	return shareURL, nil
}

// BurnPoints burns amount points of the connected wallet.
func (s *Service) BurnPoints(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if _, err := s.requireWallet(); err != nil {
		return common.Hash{}, s.report(err)
	}
	if amount == nil || amount.Cmp(big.NewInt(MinBurnAmount)) < 0 {
		return common.Hash{}, s.report(customErrors.ErrBurnBelowMinimum)
	}

	if err := s.approve(ctx, "Burn "+amount.String()+" points"); err != nil {
		return common.Hash{}, s.report(err)
	}

	hash, err := s.chain.BurnPoints(ctx, amount)
	if err != nil {
		return common.Hash{}, s.report(err)
	}

	s.sent(hash, types.ActionBurn)
	s.tracker.Track(hash, func(ctx context.Context, _ *ethtypes.Receipt) {
		s.refreshPoints(ctx)
	})
	return hash, nil
}

func (s *Service) sent(hash common.Hash, action types.ActionType) {
	s.logger.WithFields(logrus.Fields{
		"txHash": hash.Hex(),
		"action": string(action),
	}).Info("Transaction submitted")

	notify.Notice{
		Severity:    notify.SeverityInfo,
		Title:       "Transaction Sent",
		Description: s.chain.Config().ExplorerTxURL(hash),
	}.Send(s.sink)
}

func (s *Service) refreshPoints(ctx context.Context) {
	if _, err := s.mirror.Refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to refresh points")
	}
}

// ParseRecipient validates a 0x-prefixed 20 byte hex address.
func ParseRecipient(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !addressPattern.MatchString(s) {
		return common.Address{}, errors.Wrapf(customErrors.ErrInvalidAddress, "%q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseEther converts a decimal ETH amount to wei. The amount must be
// positive with at most 18 decimals.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrapf(customErrors.ErrInvalidAmount, "%q", s)
	}
	if !d.IsPositive() {
		return nil, errors.Wrap(customErrors.ErrInvalidAmount, "amount must be greater than 0")
	}

	wei := d.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, errors.Wrap(customErrors.ErrInvalidAmount, "too many decimals")
	}
	return wei.BigInt(), nil
}

// FormatEther renders a wei amount as decimal ETH.
func FormatEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

// ShareURL returns the intent URL posting text and link on platform.
func ShareURL(platform Platform, text, link string) (string, error) {
	switch platform {
	case PlatformTwitter:
		return "https://twitter.com/intent/tweet?text=" + encodeComponent(text) + "&url=" + encodeComponent(link), nil
	case PlatformTelegram:
		return "https://t.me/share/url?url=" + encodeComponent(link) + "&text=" + encodeComponent(text), nil
	default:
		return "", errors.Errorf("unknown platform %q", platform)
	}
}

func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
