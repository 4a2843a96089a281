package service

import (
	"context"
	"errors"
	"fmt"

	"checkout-orchestrator/internal/model"
	"checkout-orchestrator/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNoItems         = errors.New("order has no items")
	ErrAddressRequired = errors.New("shipping address required for physical items")
	ErrInvalidQuantity = errors.New("item quantity must be positive")
	ErrNegativeTotal   = errors.New("order total must not be negative")
)

type OrderService interface {
	CreateOrder(ctx context.Context, payload *model.OrderPayload) (string, error)
	MarkSettled(ctx context.Context, orderID, paymentID string) (bool, error)
	Supersede(ctx context.Context, orderID string) error
	GetOrder(ctx context.Context, orderID string) (*model.Order, []*model.OrderItem, error)
}

type orderServiceImpl struct {
	db        *gorm.DB
	orderRepo repository.OrderRepository
}

func NewOrderService(db *gorm.DB, orderRepo repository.OrderRepository) OrderService {
	return &orderServiceImpl{
		db:        db,
		orderRepo: orderRepo,
	}
}

func validatePayload(p *model.OrderPayload) error {
	if p.UserID == "" {
		return errors.New("order has no user")
	}
	if len(p.Items) == 0 {
		return ErrNoItems
	}
	shippable := false
	for _, item := range p.Items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuantity, item.ProductID)
		}
		if item.RequiresShipping() {
			shippable = true
		}
	}
	if p.Partition == model.PartitionPhysical && shippable && p.AddressID == "" {
		return ErrAddressRequired
	}
	if p.Total.IsNegative() {
		return ErrNegativeTotal
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *orderServiceImpl) CreateOrder(ctx context.Context, payload *model.OrderPayload) (string, error) {
	if err := validatePayload(payload); err != nil {
		return "", err
	}

	orderID := uuid.NewString()
	order := &model.Order{
		OrderID:         orderID,
		UserID:          payload.UserID,
		LineItemsHash:   payload.LineItemsHash,
		Partition:       string(payload.Partition),
		CurrencyUnit:    string(payload.CurrencyUnit),
		PaymentMethod:   payload.PaymentMethod,
		TotalFiat:       payload.TotalFiat,
		TotalTokens:     payload.TotalTokens,
		DiscountPercent: payload.DiscountPercent,
		DiscountAmount:  payload.DiscountAmount,
		DiscountTokenID: optional(payload.DiscountTokenID),
		AddressID:       optional(payload.AddressID),
		Status:          model.OrderStatusPending,
	}

	orderItems := make([]*model.OrderItem, len(payload.Items))
	for i, item := range payload.Items {
		orderItems[i] = &model.OrderItem{
			OrderID:        orderID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitFiatPrice:  item.UnitFiatPrice,
			UnitTokenPrice: item.UnitTokenPrice,
			IsDigital:      item.IsDigital,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}
		if err := s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
			return fmt.Errorf("store order items in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return orderID, nil
}

func (s *orderServiceImpl) MarkSettled(ctx context.Context, orderID, paymentID string) (bool, error) {
	changed, err := s.orderRepo.MarkSettled(ctx, nil, orderID, paymentID)
	if err != nil {
		return false, fmt.Errorf("mark order settled: %w", err)
	}
	return changed, nil
}

func (s *orderServiceImpl) Supersede(ctx context.Context, orderID string) error {
	if _, err := s.orderRepo.MarkFailed(ctx, nil, orderID); err != nil {
		return fmt.Errorf("supersede order: %w", err)
	}
	return nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID string) (*model.Order, []*model.OrderItem, error) {
	order, err := s.orderRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("find order: %w", err)
	}
	items, err := s.orderRepo.GetOrderItems(ctx, nil, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("get order items: %w", err)
	}
	return order, items, nil
}
