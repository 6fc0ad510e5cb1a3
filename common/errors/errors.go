package errors

import "github.com/pkg/errors"

var (
	ErrWalletNotConnected    = errors.New("wallet not connected")
	ErrUserRejected          = errors.New("user rejected the request")
	ErrWrongNetwork          = errors.New("wrong network")
	ErrInvalidAddress        = errors.New("invalid recipient address")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrBurnBelowMinimum      = errors.New("burn amount below minimum")
	ErrOnCooldown            = errors.New("action is on cooldown")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrTransactionReverted   = errors.New("transaction reverted")
	ErrConfirmationExhausted = errors.New("unable to confirm transaction status")
	ErrConfirmationTimeout   = errors.New("transaction not confirmed in time")
	ErrClientNotInitialized  = errors.New("client not initialized")
	ErrInvalidConfig         = errors.New("invalid chain configuration")
	ErrNotImplemented        = errors.New("functionality not implemented")
)
