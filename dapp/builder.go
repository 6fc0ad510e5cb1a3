package dapp

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	customErrors "github.com/ClipFinance/arise-lib/common/errors"
	"github.com/ClipFinance/arise-lib/common/types"
	"github.com/ClipFinance/arise-lib/cooldown"
	"github.com/ClipFinance/arise-lib/notify"
	"github.com/ClipFinance/arise-lib/points"
	"github.com/ClipFinance/arise-lib/tracker"
)

// ServiceBuilder assembles a Service from its collaborators.
type ServiceBuilder struct {
	chain    types.Chain      // Chain collaborator.
	tracker  *tracker.Tracker // Transaction lifecycle tracker.
	gate     *cooldown.Gate   // aRISE cooldown gate.
	mirror   *points.Mirror   // Points mirror.
	history  *points.History  // Points history, optional.
	sink     notify.Sink      // Toast sink.
	throttle *notify.Throttle // Process-wide toast throttle.
	logger   *logrus.Logger   // Logger for logging events.
	confirm  ConfirmFunc      // Approval step before signing, optional.
}

// NewServiceBuilder creates a new builder for chain.
//
// Parameters:
// - chain: the chain collaborator.
//
// Returns:
// - *ServiceBuilder: a new ServiceBuilder instance.
func NewServiceBuilder(chain types.Chain) *ServiceBuilder {
	return &ServiceBuilder{chain: chain}
}

// WithTracker sets the transaction tracker.
func (b *ServiceBuilder) WithTracker(t *tracker.Tracker) *ServiceBuilder {
	b.tracker = t
	return b
}

// WithCooldown sets the cooldown gate.
func (b *ServiceBuilder) WithCooldown(gate *cooldown.Gate) *ServiceBuilder {
	b.gate = gate
	return b
}

// WithMirror sets the points mirror.
func (b *ServiceBuilder) WithMirror(mirror *points.Mirror) *ServiceBuilder {
	b.mirror = mirror
	return b
}

// WithHistory sets the points history.
func (b *ServiceBuilder) WithHistory(history *points.History) *ServiceBuilder {
	b.history = history
	return b
}

// WithNotifications sets the toast sink and the throttle shared with the tracker.
//
// Parameters:
// - sink: the toast sink.
// - throttle: the throttle, nil shows every toast.
//
// Returns:
// - *ServiceBuilder: the updated ServiceBuilder instance.
func (b *ServiceBuilder) WithNotifications(sink notify.Sink, throttle *notify.Throttle) *ServiceBuilder {
	b.sink = sink
	b.throttle = throttle
	return b
}

// WithConfirm sets the approval step run before every signed
// transaction. Without one every transaction is approved.
func (b *ServiceBuilder) WithConfirm(confirm ConfirmFunc) *ServiceBuilder {
	b.confirm = confirm
	return b
}

// WithLogger sets the logger.
func (b *ServiceBuilder) WithLogger(logger *logrus.Logger) *ServiceBuilder {
	b.logger = logger
	return b
}

// Build creates the service.
//
// Returns:
// - *Service: the assembled service.
// - error: ErrNotImplemented when a required collaborator is missing.
func (b *ServiceBuilder) Build() (*Service, error) {
	switch {
	case b.chain == nil:
		return nil, errors.Wrap(customErrors.ErrNotImplemented, "chain is required")
	case b.tracker == nil:
		return nil, errors.Wrap(customErrors.ErrNotImplemented, "tracker is required")
	case b.gate == nil:
		return nil, errors.Wrap(customErrors.ErrNotImplemented, "cooldown gate is required")
	case b.mirror == nil:
		return nil, errors.Wrap(customErrors.ErrNotImplemented, "points mirror is required")
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sink := b.sink
	if sink == nil {
		sink = notify.NewLogSink(logger)
	}

	return &Service{
		chain:    b.chain,
		tracker:  b.tracker,
		gate:     b.gate,
		mirror:   b.mirror,
		history:  b.history,
		sink:     sink,
		throttle: b.throttle,
		logger:   logger,
		confirm:  b.confirm,
	}, nil
}
