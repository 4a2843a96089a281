package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"checkout-orchestrator/internal/client"
	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/push"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.OpenDatabase("sqlite:file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type fakePaypal struct {
	mu        sync.Mutex
	created   []*client.CreatePaypalOrderRequest
	captures  []string
	status    string
	badSig    bool
	createErr error
}

func (f *fakePaypal) CreateOrder(_ context.Context, req *client.CreatePaypalOrderRequest) (*client.CreateOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	id := fmt.Sprintf("PP-%d", len(f.created))
	return &client.CreateOrderResponse{
		OrderID:    id,
		ApproveURL: "https://paypal.example/checkoutnow?token=" + id,
	}, nil
}

func (f *fakePaypal) GetOrder(_ context.Context, paypalOrderID string) (*model.PaypalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.PaypalResult{ID: paypalOrderID, Status: f.status}, nil
}

func (f *fakePaypal) CaptureOrder(_ context.Context, paypalOrderID string) (*client.CaptureOrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, paypalOrderID)
	return &client.CaptureOrderResponse{Status: "COMPLETED", CaptureID: "CAP-" + paypalOrderID}, nil
}

func (f *fakePaypal) VerifyWebhookSignature(context.Context, http.Header, []byte) error {
	if f.badSig {
		return errors.New("signature verification failed")
	}
	return nil
}

func (f *fakePaypal) Captures() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.captures...)
}

type fakeCrypto struct {
	mu       sync.Mutex
	invoices []*client.CreateInvoiceRequest
	status   model.PaymentStatus
	badSig   bool
}

func (f *fakeCrypto) CreateInvoice(_ context.Context, req *client.CreateInvoiceRequest) (*model.CryptoInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, req)
	id := fmt.Sprintf("inv-%d", len(f.invoices))
	return &model.CryptoInvoice{ID: id, InvoiceURL: "https://crypto.example/" + id}, nil
}

func (f *fakeCrypto) InvoiceStatus(context.Context, string) (model.PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeCrypto) VerifyIPN([]byte, string) error {
	if f.badSig {
		return client.ErrInvalidSignature
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []push.Event
}

func (p *recordingPublisher) Publish(ev push.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return 1
}

func (p *recordingPublisher) Events() []push.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]push.Event(nil), p.events...)
}
