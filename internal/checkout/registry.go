// Package checkout orchestrates a cart checkout: pricing, order
// create-or-reuse, rail dispatch, confirmation and exactly-once settlement.
package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"checkout-orchestrator/internal/model"
)

type Config struct {
	Currency            string
	PlatformAccountID   string
	RegenerateCooldown  time.Duration
	PollInterval        time.Duration
	ConfirmationTimeout time.Duration
	ReconcileMaxElapsed time.Duration
	CooldownCacheSize   int
	Now                 func() time.Time
	Logger              *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Currency:            "USD",
		PlatformAccountID:   "platform",
		RegenerateCooldown:  60 * time.Second,
		PollInterval:        5 * time.Second,
		ConfirmationTimeout: 10 * time.Minute,
		ReconcileMaxElapsed: 2 * time.Minute,
		CooldownCacheSize:   4096,
	}
}

// Deps are the collaborators a checkout talks to. Wallet and Statuses may
// be nil: the wallet sheet rail is then not offered and unconfirmed
// payments time out without a reconcile.
type Deps struct {
	Cart     CartProvider
	Orders   OrderService
	Payments PaymentResourceService
	Statuses PaymentStatusChecker
	Ledger   LedgerService
	Tokens   TokenService
	Balances BalanceService
	Wallet   WalletGateway
	Jobs     JobStatusService
	Notifier Notifier
	Results  ResultSink
}

// Registry owns one Session per user.
type Registry struct {
	cfg        Config
	deps       Deps
	dispatcher *Dispatcher
	finalizer  *Finalizer
	balances   *BalanceCache
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	strategies := []Strategy{
		NewRedirectStrategy(model.RailQRRedirect, "qr", "checkout", true, deps.Payments),
		NewRedirectStrategy(model.RailCardRedirect, "card", "checkout", false, deps.Payments),
		NewRedirectStrategy(model.RailWalletSheetQR, "wallet_qr", "mobile_handoff", true, deps.Payments),
		NewRedirectStrategy(model.RailOnChainCrypto, "crypto", "checkout", true, deps.Payments),
		NewLedgerStrategy(deps.Ledger, cfg.PlatformAccountID),
		NewCashOnDeliveryStrategy(),
	}
	if deps.Wallet != nil {
		strategies = append(strategies, NewWalletSheetStrategy(deps.Wallet))
	}

	balances := NewBalanceCache()
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cfg:        cfg,
		deps:       deps,
		dispatcher: NewDispatcher(NewCooldown(cfg.RegenerateCooldown, cfg.CooldownCacheSize), cfg.Now, strategies...),
		finalizer:  NewFinalizer(deps, balances, cfg.Logger),
		balances:   balances,
		logger:     cfg.Logger,
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*Session),
	}
}

func (r *Registry) Dispatcher() *Dispatcher { return r.dispatcher }

func (r *Registry) Balances() *BalanceCache { return r.balances }

// Session returns the user's session, creating it on first use.
func (r *Registry) Session(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := newSession(r.ctx, userID, r.cfg, r.deps, r.dispatcher, r.finalizer, r.balances)
	r.sessions[userID] = s
	return s
}

func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// CartChanged invalidates the user's order baseline. It must be called
// synchronously for every cart mutation.
func (r *Registry) CartChanged(userID string) {
	if s, ok := r.Lookup(userID); ok {
		s.CartChanged()
	}
}

// End tears the user's session down and forgets it.
func (r *Registry) End(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Close tears down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	r.cancel()
}
