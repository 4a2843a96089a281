package checkout

import (
	"context"
	"errors"

	"checkout-orchestrator/internal/model"

	"github.com/google/uuid"
)

// Protocol is how a rail learns that its payment finished.
type Protocol int

const (
	// ProtocolPush waits for a status event in the user's payment room.
	ProtocolPush Protocol = iota
	// ProtocolSheet treats the wallet sheet callback as the confirmation.
	ProtocolSheet
	// ProtocolSync gets the terminal result from the dispatch call itself.
	ProtocolSync
)

type RailSpec struct {
	Rail     model.Rail
	Unit     model.CurrencyUnit
	Method   string
	Protocol Protocol
	// MintsResource rails produce a reusable link or code and are subject
	// to the regeneration cooldown.
	MintsResource bool
	// PhysicalOnly rails are only offered for the physical partition.
	PhysicalOnly bool
	// NeedsWallet rails are only offered when the client reports wallet
	// capability.
	NeedsWallet bool
}

type DispatchInput struct {
	OrderID  string
	UserID   string
	Currency string
	Amounts  Amounts
}

// SyncResult is the terminal result of a synchronous rail.
type SyncResult struct {
	PaymentID string
	Status    model.PaymentStatus
	Message   string
}

// Outcome of a dispatch; exactly one field is set.
type Outcome struct {
	Resource *model.PaymentResource
	Sheet    *WalletSheet
	Sync     *SyncResult
}

// Strategy implements the rail-specific part of a dispatch: the request
// shape and which confirmation protocol follows.
type Strategy interface {
	Spec() RailSpec
	Issue(ctx context.Context, in *DispatchInput) (*Outcome, error)
}

type redirectStrategy struct {
	spec     RailSpec
	payments PaymentResourceService
	purpose  string
	withQR   bool
}

// NewRedirectStrategy builds a rail that mints a processor-hosted resource
// (redirect link, QR code or hosted invoice) confirmed over push.
func NewRedirectStrategy(rail model.Rail, method, purpose string, withQR bool, payments PaymentResourceService) Strategy {
	return &redirectStrategy{
		spec: RailSpec{
			Rail:          rail,
			Unit:          model.UnitFiat,
			Method:        method,
			Protocol:      ProtocolPush,
			MintsResource: true,
		},
		payments: payments,
		purpose:  purpose,
		withQR:   withQR,
	}
}

func (s *redirectStrategy) Spec() RailSpec { return s.spec }

func (s *redirectStrategy) Issue(ctx context.Context, in *DispatchInput) (*Outcome, error) {
	res, err := s.payments.CreatePaymentResource(ctx, &model.PaymentResourceRequest{
		Rail:     s.spec.Rail,
		Amount:   in.Amounts.FiatMinorUnits(),
		Currency: in.Currency,
		OrderID:  in.OrderID,
		UserID:   in.UserID,
		Method:   s.spec.Method,
		Purpose:  s.purpose,
		WithQR:   s.withQR,
	})
	if err != nil {
		return nil, &RailError{Rail: s.spec.Rail, Message: "could not create payment, please try again", Err: err}
	}
	if res == nil || res.PaymentID == "" {
		return nil, &RailError{Rail: s.spec.Rail, Message: "payment provider returned no payment", Err: errors.New("empty payment id")}
	}
	res.Rail = s.spec.Rail
	if res.Status == "" {
		res.Status = model.PaymentPending
	}
	return &Outcome{Resource: res}, nil
}

type ledgerStrategy struct {
	ledger          LedgerService
	platformAccount string
}

func NewLedgerStrategy(ledger LedgerService, platformAccount string) Strategy {
	return &ledgerStrategy{ledger: ledger, platformAccount: platformAccount}
}

func (s *ledgerStrategy) Spec() RailSpec {
	return RailSpec{
		Rail:     model.RailLedgerTransfer,
		Unit:     model.UnitLedger,
		Method:   "ledger",
		Protocol: ProtocolSync,
	}
}

func (s *ledgerStrategy) Issue(ctx context.Context, in *DispatchInput) (*Outcome, error) {
	res, err := s.ledger.Transfer(ctx, &model.TransferRequest{
		Amount:     in.Amounts.TotalTokens,
		FromUserID: in.UserID,
		ToUserID:   s.platformAccount,
		OrderID:    in.OrderID,
	})
	if err != nil {
		return nil, &RailError{Rail: model.RailLedgerTransfer, Message: "token transfer failed, please try again", Err: err}
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "token transfer was declined"
		}
		return nil, &RailError{Rail: model.RailLedgerTransfer, Message: msg, Err: errors.New("transfer declined")}
	}
	return &Outcome{Sync: &SyncResult{
		PaymentID: res.PaymentID,
		Status:    model.PaymentPaid,
		Message:   res.Message,
	}}, nil
}

type walletSheetStrategy struct {
	wallet WalletGateway
}

func NewWalletSheetStrategy(wallet WalletGateway) Strategy {
	return &walletSheetStrategy{wallet: wallet}
}

func (s *walletSheetStrategy) Spec() RailSpec {
	return RailSpec{
		Rail:        model.RailWalletSheetPush,
		Unit:        model.UnitFiat,
		Method:      "wallet_push",
		Protocol:    ProtocolSheet,
		NeedsWallet: true,
	}
}

func (s *walletSheetStrategy) Issue(ctx context.Context, in *DispatchInput) (*Outcome, error) {
	sheet, err := s.wallet.PrepareSheet(ctx, in.OrderID, in.Amounts.TotalFiat, in.Currency)
	if err != nil {
		return nil, &RailError{Rail: model.RailWalletSheetPush, Message: "wallet is not ready, please try again", Err: err}
	}
	return &Outcome{Sheet: sheet}, nil
}

type cashStrategy struct{}

func NewCashOnDeliveryStrategy() Strategy {
	return cashStrategy{}
}

func (cashStrategy) Spec() RailSpec {
	return RailSpec{
		Rail:         model.RailCashOnDelivery,
		Unit:         model.UnitFiat,
		Method:       "cod",
		Protocol:     ProtocolSync,
		PhysicalOnly: true,
	}
}

func (cashStrategy) Issue(_ context.Context, _ *DispatchInput) (*Outcome, error) {
	return &Outcome{Sync: &SyncResult{
		PaymentID: uuid.NewString(),
		Status:    model.PaymentCashPending,
	}}, nil
}
