package tracker

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestZeroConfigTakesDefaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{}.withDefaults())
}

func TestNegativeConfigDisablesLimits(t *testing.T) {
	cfg := Config{MinCheckSpacing: -1, MaxPollDuration: -1}.withDefaults()
	assert.Zero(t, cfg.MinCheckSpacing)
	assert.Zero(t, cfg.MaxPollDuration)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}

func TestZeroConfigKeepsCheckSpacing(t *testing.T) {
	f := newFixture(t, Config{}, notFound)
	h := common.HexToHash("0x12")
	f.tracker.Track(h, nil)

	f.clk.Add(5 * time.Second)
	assert.Eventually(t, func() bool { return f.receipts.Calls(h) == 1 }, eventually, time.Millisecond)
	assert.Equal(t, 5*time.Second, f.tracker.cfg.MinCheckSpacing)
	assert.Equal(t, 10*time.Minute, f.tracker.cfg.MaxPollDuration)
}
