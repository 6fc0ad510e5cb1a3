package types

// TransactionStatus is the lifecycle state of a tracked transaction.
type TransactionStatus string

const (
	// TxIdle means nothing is being tracked.
	TxIdle TransactionStatus = "idle"
	// TxPending means a hash was received and no terminal signal has arrived yet.
	TxPending TransactionStatus = "pending"
	// TxSuccess means a successful receipt was observed.
	TxSuccess TransactionStatus = "success"
	// TxError means confirmation failed, timed out or the transaction reverted.
	TxError TransactionStatus = "error"
)

// IsTerminal reports whether no further transition can happen for the current hash.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxSuccess || s == TxError
}

// String returns the string representation of the status.
func (s TransactionStatus) String() string {
	return string(s)
}

// ActionType is the tag the contract attaches to every points award.
type ActionType string

const (
	ActionSayArise    ActionType = "sayArise"
	ActionEthTransfer ActionType = "ethTransfer"
	ActionSocialShare ActionType = "socialShare"
	ActionBurn        ActionType = "burn"
	ActionUnknown     ActionType = "unknown"
)

// ParseActionType converts the on-chain action string to ActionType.
func ParseActionType(s string) ActionType {
	switch ActionType(s) {
	case ActionSayArise, ActionEthTransfer, ActionSocialShare, ActionBurn:
		return ActionType(s)
	default:
		return ActionUnknown
	}
}

// Label returns the human readable label used in history listings.
func (a ActionType) Label() string {
	switch a {
	case ActionSayArise:
		return "Said aRISE"
	case ActionEthTransfer:
		return "Sent ETH"
	case ActionSocialShare:
		return "Shared on Social Media"
	case ActionBurn:
		return "Burned Points"
	default:
		return "Unknown Action"
	}
}
