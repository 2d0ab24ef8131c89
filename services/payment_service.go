package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/agrimarket/models"
	"gorm.io/gorm"
)

// PaymentService reads payments. They are written by BidService.RecordPayment
// together with the Paid transition.
type PaymentService struct {
	db *gorm.DB
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{
		db: db,
	}
}

// PaymentTotal is price per unit times weight, rounded to paise.
func PaymentTotal(bidAmount, orderWeight float64) float64 {
	total, _ := decimal.NewFromFloat(bidAmount).
		Mul(decimal.NewFromFloat(orderWeight)).
		Round(2).
		Float64()
	return total
}

// GetPaymentByBidID returns the payment for a bid the viewer can see.
func (s *PaymentService) GetPaymentByBidID(ctx context.Context, bidID, viewerID uint, role string) (*models.Payment, error) {
	var bid models.Bid
	if err := s.db.WithContext(ctx).First(&bid, bidID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to find bid: %w", err)
	}
	if !canView(&bid, viewerID, role) {
		return nil, forbidden("not allowed to view this payment")
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("bid_id = ?", bidID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}
