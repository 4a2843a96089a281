package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/push"

	"github.com/shopspring/decimal"
)

type State int

const (
	StateNone State = iota
	StateOrderCreated
	StateResourceIssued
	StateConfirmed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateOrderCreated:
		return "order_created"
	case StateResourceIssued:
		return "resource_issued"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// allowed lists the states each state may move to. Any state may start a
// new order attempt.
var allowed = map[State][]State{
	StateNone:           {StateOrderCreated},
	StateOrderCreated:   {StateOrderCreated, StateResourceIssued, StateFailed, StateNone},
	StateResourceIssued: {StateOrderCreated, StateResourceIssued, StateConfirmed, StateFailed},
	StateConfirmed:      {StateOrderCreated, StateNone},
	StateFailed:         {StateOrderCreated, StateNone},
}

// attempt is one dispatched payment for one order.
type attempt struct {
	orderID   string
	partition model.Partition
	spec      RailSpec
	amounts   Amounts
	discount  *model.DiscountToken

	resource *model.PaymentResource
	sheet    *WalletSheet
	sub      *push.Subscription
	stop     context.CancelFunc
}

func (a *attempt) paymentID() string {
	if a.resource != nil {
		return a.resource.PaymentID
	}
	return ""
}

// release leaves the payment room and stops the confirmation watcher.
func (a *attempt) release() {
	if a.stop != nil {
		a.stop()
	}
	if a.sub != nil {
		a.sub.Leave()
	}
}

type SubmitInput struct {
	Partition    model.Partition
	Rail         model.Rail
	AddressID    string
	Regenerate   bool
	Capabilities Capabilities
}

type SubmitResult struct {
	OrderID         string
	OrderCreated    bool
	State           State
	Amounts         Amounts
	Resource        *model.PaymentResource
	Sheet           *WalletSheet
	Result          *Result
	CooldownSeconds int
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	State           State             `json:"state"`
	OrderID         string            `json:"order_id,omitempty"`
	PaymentID       string            `json:"payment_id,omitempty"`
	Rail            model.Rail        `json:"rail,omitempty"`
	DiscountTokenID string            `json:"discount_token_id,omitempty"`
	CooldownSeconds int               `json:"cooldown_seconds"`
	Result          *Result           `json:"result,omitempty"`
	Error           string            `json:"error,omitempty"`
	Jobs            map[string]string `json:"jobs,omitempty"`
}

// Session is the checkout state machine for one user:
// none -> order_created -> resource_issued -> confirmed | failed.
// It owns the payment room subscription, the confirmation watcher and the
// job poller, and tears them down on Close.
type Session struct {
	userID     string
	cfg        Config
	deps       Deps
	dispatcher *Dispatcher
	finalizer  *Finalizer
	balances   *BalanceCache
	logger     *slog.Logger

	ctx  context.Context
	stop context.CancelFunc

	busy     atomic.Bool
	ledger   *OrderLedger
	discount DiscountSelector
	poller   *JobPoller

	mu      sync.Mutex
	state   State
	current *attempt
	owned   []model.DiscountToken
	result  *Result
	lastErr error
	jobs    map[string]string
	closed  bool
}

func newSession(parent context.Context, userID string, cfg Config, deps Deps, dispatcher *Dispatcher, finalizer *Finalizer, balances *BalanceCache) *Session {
	ctx, stop := context.WithCancel(parent)
	s := &Session{
		userID:     userID,
		cfg:        cfg,
		deps:       deps,
		dispatcher: dispatcher,
		finalizer:  finalizer,
		balances:   balances,
		logger:     cfg.Logger.With("user_id", userID),
		ctx:        ctx,
		stop:       stop,
		ledger:     NewOrderLedger(deps.Orders),
		jobs:       make(map[string]string),
	}
	s.poller = NewJobPoller(deps.Jobs, cfg.PollInterval, s.onJobUpdate, s.logger)
	return s
}

func (s *Session) UserID() string { return s.userID }

// otherPaymentLive reports whether a payment code issued for a partition
// other than p is still awaiting confirmation.
func (s *Session) otherPaymentLive(p model.Partition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateResourceIssued && s.current != nil && s.current.partition != p
}

// transition must be called with s.mu held.
func (s *Session) transition(to State) error {
	for _, next := range allowed[s.state] {
		if next == to {
			s.logger.Debug("checkout transition", "from", s.state, "to", to)
			s.state = to
			return nil
		}
	}
	return &TransitionError{From: s.state, To: to}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Amounts prices the partition's current cart with the active discount.
func (s *Session) Amounts(ctx context.Context, partition model.Partition) (Amounts, error) {
	items, err := s.deps.Cart.LineItems(ctx, s.userID, partition)
	if err != nil {
		return Amounts{}, fmt.Errorf("load cart: %w", err)
	}
	return Calculate(items, s.discount.Percent()), nil
}

// AvailableRails lists the rails to offer for partition on this device.
func (s *Session) AvailableRails(partition model.Partition, caps Capabilities) []model.Rail {
	return s.dispatcher.Available(partition, caps)
}

// Submit creates or reuses the order for the current cart and dispatches
// the payment on the chosen rail. Only one submit runs at a time.
func (s *Session) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer s.busy.Store(false)

	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if !in.Partition.Valid() {
		return nil, fmt.Errorf("unknown checkout partition %q", in.Partition)
	}
	spec, ok := s.dispatcher.Spec(in.Rail)
	if !ok || !s.dispatcher.Offered(in.Rail, in.Partition, in.Capabilities) {
		return nil, &RailUnavailableError{Rail: in.Rail}
	}
	if s.otherPaymentLive(in.Partition) {
		return nil, ErrPaymentPending
	}

	items, err := s.deps.Cart.LineItems(ctx, s.userID, in.Partition)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(items) == 0 {
		return nil, &OrderCreationError{Err: ErrEmptyCart}
	}
	if in.Partition == model.PartitionKiosk && len(items) != 1 {
		return nil, &OrderCreationError{Err: fmt.Errorf("kiosk checkout takes exactly one item, got %d", len(items))}
	}

	var token *model.DiscountToken
	pct := decimal.Zero
	if t, ok := s.discount.Active(); ok {
		token = &t
		pct = t.DiscountPercent
	}
	amounts := Calculate(items, pct)

	if spec.Unit == model.UnitLedger {
		if err := s.checkBalance(ctx, amounts); err != nil {
			return nil, err
		}
	}

	orderID, created, err := s.ledger.EnsureOrder(ctx, &OrderRequest{
		UserID:    s.userID,
		Partition: in.Partition,
		Rail:      in.Rail,
		Unit:      spec.Unit,
		Method:    spec.Method,
		Items:     items,
		Amounts:   amounts,
		Discount:  token,
		AddressID: in.AddressID,
	})
	if err != nil {
		s.logger.Warn("order creation failed", "error", err)
		return nil, err
	}

	res := &SubmitResult{
		OrderID:      orderID,
		OrderCreated: created,
		Amounts:      amounts,
	}

	s.mu.Lock()
	if cur := s.current; !in.Regenerate &&
		s.state == StateResourceIssued &&
		cur != nil && cur.orderID == orderID && cur.spec.Rail == in.Rail &&
		(cur.resource != nil || cur.sheet != nil) {
		res.State = s.state
		res.Resource = cur.resource
		res.Sheet = cur.sheet
		s.mu.Unlock()
		res.CooldownSeconds = cooldownSeconds(s.dispatcher, orderID)
		return res, nil
	}
	// A live attempt keeps listening until a replacement is issued, so a
	// rejected regeneration cannot drop its confirmation.
	if s.state != StateResourceIssued {
		if err := s.transition(StateOrderCreated); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.mu.Unlock()

	out, err := s.dispatcher.Dispatch(ctx, in.Rail, &DispatchInput{
		OrderID:  orderID,
		UserID:   s.userID,
		Currency: s.cfg.Currency,
		Amounts:  amounts,
	})
	if err != nil {
		s.logger.Warn("payment dispatch failed", "order_id", orderID, "rail", in.Rail, "error", err)
		return nil, err
	}

	att := &attempt{
		orderID:   orderID,
		partition: in.Partition,
		spec:      spec,
		amounts:   amounts,
		discount:  token,
		resource:  out.Resource,
		sheet:     out.Sheet,
	}
	if out.Sync != nil {
		att.resource = &model.PaymentResource{
			PaymentID: out.Sync.PaymentID,
			Rail:      in.Rail,
			Status:    out.Sync.Status,
		}
	}
	if err := s.issue(att); err != nil {
		return nil, err
	}
	res.Resource = out.Resource
	res.Sheet = out.Sheet

	if out.Sync != nil {
		res.Result = s.confirm(ctx, att, out.Sync.PaymentID, out.Sync.Status)
	}

	res.State = s.State()
	res.CooldownSeconds = cooldownSeconds(s.dispatcher, orderID)
	return res, nil
}

func cooldownSeconds(d *Dispatcher, orderID string) int {
	remaining := d.CooldownRemaining(orderID)
	if remaining <= 0 {
		return 0
	}
	return (&ResourceCooldownError{Remaining: remaining}).Seconds()
}

// checkBalance rejects a ledger payment the user cannot cover before any
// order or transfer call is made.
func (s *Session) checkBalance(ctx context.Context, amounts Amounts) error {
	balance, ok := s.balances.Get(s.userID)
	if !ok {
		var err error
		balance, err = s.deps.Balances.FetchBalance(ctx, s.userID)
		if err != nil {
			return fmt.Errorf("fetch balance: %w", err)
		}
		s.balances.Set(s.userID, balance)
	}
	if balance.LessThan(amounts.TotalTokens) {
		return &InsufficientBalanceError{Balance: balance, Required: amounts.TotalTokens}
	}
	return nil
}

// issue makes att the current attempt and, for push rails, joins the
// payment room and starts the confirmation watcher.
func (s *Session) issue(att *attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := s.transition(StateResourceIssued); err != nil {
		return err
	}
	if prev := s.current; prev != nil {
		prev.release()
	}
	s.current = att
	s.result = nil
	s.lastErr = nil

	if att.spec.Protocol == ProtocolPush && att.resource != nil && s.deps.Notifier != nil {
		att.sub = s.deps.Notifier.Join(s.userID, att.resource.PaymentID)
		ctx, stop := context.WithCancel(s.ctx)
		att.stop = stop
		go s.watch(ctx, att)
	}
	return nil
}

// confirm settles att. It returns nil when att is no longer current or was
// already confirmed, which makes duplicate confirmations no-ops.
func (s *Session) confirm(ctx context.Context, att *attempt, paymentID string, status model.PaymentStatus) *Result {
	s.mu.Lock()
	if s.closed || s.current != att {
		s.mu.Unlock()
		return nil
	}
	if err := s.transition(StateConfirmed); err != nil {
		s.mu.Unlock()
		s.logger.Debug("ignoring confirmation", "order_id", att.orderID, "error", err)
		return nil
	}
	s.mu.Unlock()

	report := s.finalizer.Settle(ctx, &Settlement{
		UserID:        s.userID,
		OrderID:       att.orderID,
		PaymentID:     paymentID,
		Rail:          att.spec.Rail,
		Partition:     att.partition,
		Status:        status,
		TotalTokens:   att.amounts.TotalTokens,
		DiscountToken: att.discount,
		Discount:      &s.discount,
		Ledger:        s.ledger,
		OnTokens:      s.setOwned,
	})

	if report.Duplicate {
		att.release()
		return nil
	}

	s.mu.Lock()
	s.result = &report.Result
	s.mu.Unlock()
	att.release()
	return &report.Result
}

func (s *Session) fail(ctx context.Context, att *attempt, err error) {
	s.mu.Lock()
	if s.closed || s.current != att {
		s.mu.Unlock()
		return
	}
	if terr := s.transition(StateFailed); terr != nil {
		s.mu.Unlock()
		return
	}
	s.lastErr = err
	s.mu.Unlock()

	att.release()
	s.logger.Warn("payment failed", "order_id", att.orderID, "payment_id", att.paymentID(), "error", err)

	if s.deps.Results != nil {
		s.deps.Results.Show(ctx, s.userID, Result{
			OrderID:   att.orderID,
			PaymentID: att.paymentID(),
			Status:    model.PaymentFailed,
			OrderType: att.partition,
		})
	}
}

// CompleteWalletSheet is the wallet sheet callback. An empty nonce means the
// user dismissed the sheet.
func (s *Session) CompleteWalletSheet(ctx context.Context, nonce string) (*Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSubmitInProgress
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	att := s.current
	if s.closed || att == nil || att.sheet == nil || s.state != StateResourceIssued {
		s.mu.Unlock()
		return nil, ErrNoWalletSheet
	}
	s.mu.Unlock()

	if nonce == "" {
		err := &RailError{Rail: att.spec.Rail, Message: "wallet payment cancelled", Err: errors.New("sheet dismissed")}
		s.fail(ctx, att, err)
		return nil, err
	}

	paymentID, err := s.deps.Wallet.Charge(ctx, att.orderID, nonce, att.amounts.TotalFiat)
	if err != nil {
		rerr := &RailError{Rail: att.spec.Rail, Message: "wallet payment was declined", Err: err}
		s.fail(ctx, att, rerr)
		return nil, rerr
	}
	s.mu.Lock()
	att.resource = &model.PaymentResource{PaymentID: paymentID, Rail: att.spec.Rail, Status: model.PaymentPaid}
	s.mu.Unlock()

	return s.confirm(ctx, att, paymentID, model.PaymentPaid), nil
}

// SelectDiscount toggles the owned token tokenID and reports whether a
// discount is active afterwards.
func (s *Session) SelectDiscount(ctx context.Context, tokenID string) (bool, error) {
	token, err := s.ownedToken(ctx, tokenID)
	if err != nil {
		return false, err
	}
	return s.discount.Toggle(token)
}

func (s *Session) ActiveDiscount() (model.DiscountToken, bool) {
	return s.discount.Active()
}

func (s *Session) ownedToken(ctx context.Context, tokenID string) (model.DiscountToken, error) {
	find := func() (model.DiscountToken, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, t := range s.owned {
			if t.TokenID == tokenID && t.OwnerID == s.userID {
				return t, true
			}
		}
		return model.DiscountToken{}, false
	}

	if t, ok := find(); ok {
		return t, nil
	}
	if err := s.RefreshTokens(ctx); err != nil {
		return model.DiscountToken{}, err
	}
	if t, ok := find(); ok {
		return t, nil
	}
	return model.DiscountToken{}, ErrTokenNotOwned
}

// RefreshTokens reloads the user's owned discount tokens.
func (s *Session) RefreshTokens(ctx context.Context) error {
	owned, err := s.deps.Tokens.OwnedTokens(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("load owned tokens: %w", err)
	}
	s.setOwned(owned)
	return nil
}

func (s *Session) setOwned(tokens []model.DiscountToken) {
	s.mu.Lock()
	s.owned = tokens
	s.mu.Unlock()
}

// RefreshBalance re-reads the authoritative ledger balance.
func (s *Session) RefreshBalance(ctx context.Context) error {
	balance, err := s.deps.Balances.FetchBalance(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	s.balances.Set(s.userID, balance)
	return nil
}

// CartChanged invalidates the order baseline so the next submit prices and
// orders the new cart content.
func (s *Session) CartChanged() {
	s.ledger.Invalidate()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOrderCreated {
		_ = s.transition(StateNone)
	}
}

// WatchJob starts polling a generation job if it is processing.
func (s *Session) WatchJob(jobID, status string) bool {
	if s.isClosed() {
		return false
	}
	s.mu.Lock()
	s.jobs[jobID] = status
	s.mu.Unlock()
	return s.poller.Watch(s.ctx, jobID, status)
}

// PollingJob returns the job currently being polled, if any.
func (s *Session) PollingJob() (string, bool) {
	return s.poller.Running()
}

func (s *Session) onJobUpdate(u JobUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.jobs[u.JobID] = u.Status
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:  s.state,
		Result: s.result,
		Jobs:   make(map[string]string, len(s.jobs)),
	}
	for id, status := range s.jobs {
		snap.Jobs[id] = status
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	if att := s.current; att != nil {
		snap.OrderID = att.orderID
		snap.PaymentID = att.paymentID()
		snap.Rail = att.spec.Rail
	}
	s.mu.Unlock()

	if t, ok := s.discount.Active(); ok {
		snap.DiscountTokenID = t.TokenID
	}
	if snap.OrderID != "" {
		snap.CooldownSeconds = cooldownSeconds(s.dispatcher, snap.OrderID)
	}
	return snap
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close leaves the payment room and stops the watcher and poller. No
// confirmation is handled afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	att := s.current
	s.mu.Unlock()

	s.stop()
	if att != nil {
		att.release()
	}
	s.poller.Cancel()
}
