package types

import (
	"sync"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// Subscription wraps log subscription data.
//
// Fields:
// - Subscription: the event subscription.
// - EventChan: the channel to receive Ethereum logs.
// - sync.Mutex: the mutex to protect access to the subscription data.
type Subscription struct {
	Subscription event.Subscription
	EventChan    chan ethtypes.Log
	sync.Mutex
}

// Close unsubscribes. The log channel is left to the garbage collector because
// the RPC client may still be writing to it.
func (s *Subscription) Close() {
	s.Lock()
	defer s.Unlock()

	if s.Subscription != nil {
		s.Subscription.Unsubscribe()
		s.Subscription = nil
	}
}

// Err returns the error channel of the active subscription, or nil when there is none.
func (s *Subscription) Err() <-chan error {
	s.Lock()
	defer s.Unlock()

	if s.Subscription == nil {
		return nil
	}
	return s.Subscription.Err()
}
