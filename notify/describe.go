package notify

import (
	"strings"

	"github.com/pkg/errors"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
)

// DescribeError converts an error raised by a user action into the notice shown for it.
func DescribeError(err error) Notice {
	if err == nil {
		return Notice{Severity: SeverityError, Title: "Unknown Error", Description: "An unexpected error occurred"}
	}

	switch {
	case errors.Is(err, customErrors.ErrWalletNotConnected):
		return Notice{Severity: SeverityError, Title: "Wallet Not Connected", Description: "Please connect your wallet first"}
	case errors.Is(err, customErrors.ErrUserRejected):
		return Notice{Severity: SeverityWarning, Title: "Transaction Rejected", Description: "You rejected the transaction"}
	case errors.Is(err, customErrors.ErrWrongNetwork):
		return Notice{Severity: SeverityError, Title: "Wrong Network", Description: "Please switch to RISE Chain testnet"}
	case errors.Is(err, customErrors.ErrInvalidAddress):
		return Notice{Severity: SeverityError, Title: "Invalid Address", Description: "Please enter a valid recipient address"}
	case errors.Is(err, customErrors.ErrInvalidAmount):
		return Notice{Severity: SeverityError, Title: "Invalid Amount", Description: "Please enter a valid amount"}
	case errors.Is(err, customErrors.ErrBurnBelowMinimum):
		return Notice{Severity: SeverityError, Title: "Invalid Amount", Description: "Minimum burn amount is 1000 points"}
	case errors.Is(err, customErrors.ErrOnCooldown):
		return Notice{Severity: SeverityWarning, Title: "Cooldown Active", Description: "You can say aRISE again once the cooldown ends"}
	case errors.Is(err, customErrors.ErrInsufficientFunds):
		return Notice{Severity: SeverityError, Title: "Insufficient Funds", Description: "Please ensure you have enough RISE tokens"}
	case errors.Is(err, customErrors.ErrTransactionReverted):
		return Notice{Severity: SeverityError, Title: "Transaction failed", Description: "Transaction reverted"}
	case errors.Is(err, customErrors.ErrConfirmationExhausted):
		return Notice{Severity: SeverityError, Title: "Connection Error", Description: ConfirmationExhaustedMessage}
	case errors.Is(err, customErrors.ErrConfirmationTimeout):
		return Notice{Severity: SeverityError, Title: "Transaction Pending", Description: "Transaction not confirmed in time. Please check the explorer manually."}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return Notice{Severity: SeverityError, Title: "Insufficient Funds", Description: "Please ensure you have enough RISE tokens"}
	case strings.Contains(msg, "user rejected"):
		return Notice{Severity: SeverityWarning, Title: "Transaction Rejected", Description: "You rejected the transaction"}
	case strings.Contains(msg, "network"):
		return Notice{Severity: SeverityError, Title: "Network Error", Description: "Please check your internet connection"}
	case strings.Contains(msg, "chain"):
		return Notice{Severity: SeverityError, Title: "Wrong Network", Description: "Please switch to RISE Chain testnet"}
	}

	return Notice{Severity: SeverityError, Title: "Transaction Failed", Description: err.Error()}
}

// ConfirmationExhaustedMessage is shown when receipt polling gives up after repeated provider errors.
const ConfirmationExhaustedMessage = "Unable to confirm transaction status. Please check the explorer manually."
