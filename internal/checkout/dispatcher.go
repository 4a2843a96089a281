package checkout

import (
	"context"
	"time"

	"checkout-orchestrator/internal/model"
)

// Capabilities are client-side facts reported with a submit, such as
// whether a wallet payment sheet can be shown on this device.
type Capabilities struct {
	WalletAvailable bool `json:"wallet_available"`
}

// Dispatcher routes a payment to its rail strategy and enforces the
// regeneration cooldown for rails that mint reusable resources.
type Dispatcher struct {
	strategies map[model.Rail]Strategy
	cooldown   *Cooldown
	now        func() time.Time
}

func NewDispatcher(cooldown *Cooldown, now func() time.Time, strategies ...Strategy) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{
		strategies: make(map[model.Rail]Strategy, len(strategies)),
		cooldown:   cooldown,
		now:        now,
	}
	for _, s := range strategies {
		d.strategies[s.Spec().Rail] = s
	}
	return d
}

func (d *Dispatcher) Spec(rail model.Rail) (RailSpec, bool) {
	s, ok := d.strategies[rail]
	if !ok {
		return RailSpec{}, false
	}
	return s.Spec(), true
}

// Offered reports whether rail may be presented for this partition and
// device.
func (d *Dispatcher) Offered(rail model.Rail, partition model.Partition, caps Capabilities) bool {
	spec, ok := d.Spec(rail)
	if !ok {
		return false
	}
	if spec.NeedsWallet && !caps.WalletAvailable {
		return false
	}
	if spec.PhysicalOnly && partition != model.PartitionPhysical {
		return false
	}
	return true
}

func (d *Dispatcher) Available(partition model.Partition, caps Capabilities) []model.Rail {
	var rails []model.Rail
	for _, rail := range model.Rails {
		if d.Offered(rail, partition, caps) {
			rails = append(rails, rail)
		}
	}
	return rails
}

// CooldownRemaining returns how long until orderID may mint a new resource.
func (d *Dispatcher) CooldownRemaining(orderID string) time.Duration {
	return d.cooldown.Remaining(orderID, d.now())
}

// Dispatch issues the rail-specific payment request for an existing order.
func (d *Dispatcher) Dispatch(ctx context.Context, rail model.Rail, in *DispatchInput) (*Outcome, error) {
	if in.OrderID == "" {
		panic("checkout: payment dispatched without an order id")
	}

	s, ok := d.strategies[rail]
	if !ok {
		return nil, &RailUnavailableError{Rail: rail}
	}
	spec := s.Spec()

	if spec.MintsResource {
		if remaining := d.cooldown.Remaining(in.OrderID, d.now()); remaining > 0 {
			return nil, &ResourceCooldownError{OrderID: in.OrderID, Remaining: remaining}
		}
	}

	out, err := s.Issue(ctx, in)
	if err != nil {
		return nil, err
	}

	if spec.MintsResource {
		d.cooldown.Mark(in.OrderID, d.now())
	}
	return out, nil
}
