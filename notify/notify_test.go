package notify

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
)

func TestThrottle(t *testing.T) {
	clk := clock.NewMock()
	th := NewThrottle(DefaultWindow, clk)

	assert.True(t, th.Allow())
	clk.Add(5 * time.Second)
	assert.False(t, th.Allow(), "second notice within the window is suppressed")

	// suppressed notices do not extend the window
	clk.Add(6 * time.Second)
	assert.True(t, th.Allow())

	clk.Add(11 * time.Second)
	assert.True(t, th.Allow())
}

func TestSendThrottled(t *testing.T) {
	clk := clock.NewMock()
	th := NewThrottle(DefaultWindow, clk)
	rec := &Recorder{}

	n := Notice{Severity: SeveritySuccess, Title: "Transaction confirmed!", Description: "Block: 10"}
	assert.True(t, n.SendThrottled(rec, th))
	assert.False(t, n.SendThrottled(rec, th))
	require.Len(t, rec.Notices(), 1)
	assert.Equal(t, n, rec.Notices()[0])
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		severity Severity
		title    string
		desc     string
	}{
		{"wallet", errors.Wrap(customErrors.ErrWalletNotConnected, "say arise"), SeverityError, "Wallet Not Connected", "Please connect your wallet first"},
		{"rejected sentinel", customErrors.ErrUserRejected, SeverityWarning, "Transaction Rejected", "You rejected the transaction"},
		{"burn minimum", customErrors.ErrBurnBelowMinimum, SeverityError, "Invalid Amount", "Minimum burn amount is 1000 points"},
		{"exhausted", customErrors.ErrConfirmationExhausted, SeverityError, "Connection Error", ConfirmationExhaustedMessage},
		{"funds substring", errors.New("insufficient funds for gas * price + value"), SeverityError, "Insufficient Funds", "Please ensure you have enough RISE tokens"},
		{"rejected substring", errors.New("User rejected the request."), SeverityWarning, "Transaction Rejected", "You rejected the transaction"},
		{"network substring", errors.New("network unreachable"), SeverityError, "Network Error", "Please check your internet connection"},
		{"chain substring", errors.New("invalid chain id for signer"), SeverityError, "Wrong Network", "Please switch to RISE Chain testnet"},
		{"generic", errors.New("execution reverted: cooldown"), SeverityError, "Transaction Failed", "execution reverted: cooldown"},
		{"nil", nil, SeverityError, "Unknown Error", "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := DescribeError(tt.err)
			assert.Equal(t, tt.severity, n.Severity)
			assert.Equal(t, tt.title, n.Title)
			assert.Equal(t, tt.desc, n.Description)
		})
	}
}

func TestNoticeSendRoutesSeverity(t *testing.T) {
	rec := &Recorder{}
	Notice{Severity: SeverityWarning, Title: "a"}.Send(rec)
	Notice{Severity: SeverityInfo, Title: "b"}.Send(rec)
	Notice{Title: "c"}.Send(rec)

	got := rec.Notices()
	require.Len(t, got, 3)
	assert.Equal(t, SeverityWarning, got[0].Severity)
	assert.Equal(t, SeverityInfo, got[1].Severity)
	assert.Equal(t, SeverityError, got[2].Severity)
}
