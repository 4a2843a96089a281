package repository

import (
	"context"
	"time"

	"checkout-orchestrator/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error)
	FindByProviderRef(ctx context.Context, provider, ref string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, paymentID, status string) (bool, error)
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{db: db}
}

func (r *paymentRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	return r.conn(tx).WithContext(ctx).Create(payment).Error
}

func (r *paymentRepoImpl) FindByPaymentID(ctx context.Context, paymentID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepoImpl) FindByProviderRef(ctx context.Context, provider, ref string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_ref = ?", provider, ref).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus moves a pending payment to status and reports whether this
// call made the change. Terminal payments are never rewritten.
func (r *paymentRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, paymentID, status string) (bool, error) {
	result := r.conn(tx).WithContext(ctx).Model(&model.Payment{}).
		Where("payment_id = ? AND status = ?", paymentID, string(model.PaymentPending)).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
