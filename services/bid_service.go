package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
	"github.com/yeremiapane/agrimarket/utils"
	"gorm.io/gorm"
)

const errBidUnavailable = "bid no longer available"

// BidService owns the bid state machine. Every transition is a status
// compare-and-set inside a transaction; the notifications it produces are
// written in the same transaction and pushed after commit, under a per-bid
// lock so pushes for one bid leave in transition order.
type BidService struct {
	db    *gorm.DB
	hub   Dispatcher
	locks *keyedMutex
	now   func() time.Time
}

func NewBidService(db *gorm.DB, hub Dispatcher) *BidService {
	if hub == nil {
		hub = NopDispatcher{}
	}
	return &BidService{db: db, hub: hub, locks: newKeyedMutex(), now: time.Now}
}

type PlaceBidInput struct {
	MerchantID  uint
	ProductID   uint
	BidAmount   float64
	OrderWeight float64
}

// PlaceBid records a Pending bid and tells the farmer about it.
func (s *BidService) PlaceBid(ctx context.Context, in PlaceBidInput) (*models.Bid, error) {
	if in.BidAmount <= 0 {
		return nil, invalid("bid_amount", "must be greater than zero")
	}
	if in.OrderWeight <= 0 {
		return nil, invalid("order_weight", "must be greater than zero")
	}

	var (
		bid  models.Bid
		note models.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var merchant models.User
		if err := tx.First(&merchant, in.MerchantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to load merchant: %w", err)
		}
		if merchant.Role != models.RoleMerchant {
			return forbidden("only merchants can place bids")
		}

		var product models.Product
		if err := tx.First(&product, in.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to load product: %w", err)
		}

		amount := decimal.NewFromFloat(in.BidAmount)
		listed := decimal.NewFromFloat(product.Price)
		if amount.LessThan(listed) {
			return invalid("bid_amount", "%s is below the listed price of %s",
				utils.FormatRupees(in.BidAmount), utils.FormatRupees(product.Price))
		}
		if decimal.NewFromFloat(in.OrderWeight).GreaterThan(decimal.NewFromFloat(product.Quantity)) {
			return invalid("order_weight", "only %s %s available",
				decimal.NewFromFloat(product.Quantity).String(), product.Unit)
		}

		bid = models.Bid{
			ProductID:     product.ID,
			ProductName:   product.Name,
			BidAmount:     in.BidAmount,
			OrderWeight:   in.OrderWeight,
			FarmerID:      product.FarmerID,
			MerchantID:    merchant.ID,
			MerchantName:  merchant.Name,
			MerchantPhone: merchant.Phone,
			Status:        models.BidPending,
		}
		if err := tx.Create(&bid).Error; err != nil {
			return fmt.Errorf("failed to create bid: %w", err)
		}

		note = newNotification(bid.FarmerID, notifyroute.TypeNewBid, "New bid received",
			fmt.Sprintf("%s bid %s/%s for %s %s of %s", merchant.Name,
				utils.FormatRupees(bid.BidAmount), product.Unit, weightString(bid.OrderWeight), product.Unit, product.Name),
			bid.ID,
			notifyroute.NewBidPayload{
				BidID:       idString(bid.ID),
				ItemID:      idString(product.ID),
				MerchantID:  idString(merchant.ID),
				ProductName: product.Name,
				Amount:      bid.BidAmount,
			})
		if err := tx.Create(&note).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Bid locks are never taken inside a transaction; the id only exists now.
	unlock := s.locks.Lock(bid.ID)
	defer unlock()

	utils.InfoLogger.WithFields(logrus.Fields{
		"bid_id":      bid.ID,
		"product_id":  bid.ProductID,
		"merchant_id": bid.MerchantID,
		"amount":      bid.BidAmount,
		"weight":      bid.OrderWeight,
	}).Info("Bid placed")

	pushNotifications(s.hub, []models.Notification{note})
	s.hub.Dispatch(bid.FarmerID, EventBidUpdate, bid)
	return &bid, nil
}

// AcceptBid moves a Pending bid to Accepted and takes its weight off the
// product. Of two bids competing for the last stock only one can win; the
// other gets an InvalidStateError.
func (s *BidService) AcceptBid(ctx context.Context, bidID, farmerID uint) (*models.Bid, error) {
	return s.transition(ctx, transition{
		bidID: bidID,
		from:  []models.BidStatus{models.BidPending},
		to:    models.BidAccepted,
		authorize: func(b *models.Bid) error {
			if b.FarmerID != farmerID {
				return forbidden("only the product owner can accept this bid")
			}
			return nil
		},
		apply: func(tx *gorm.DB, b *models.Bid) ([]models.Notification, error) {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND quantity >= ?", b.ProductID, b.OrderWeight).
				Update("quantity", gorm.Expr("quantity - ?", b.OrderWeight))
			if res.Error != nil {
				return nil, fmt.Errorf("failed to reserve quantity: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil, &InvalidStateError{Entity: "bid", Message: errBidUnavailable}
			}
			return []models.Notification{
				newNotification(b.MerchantID, notifyroute.TypeBidAccepted, "Bid accepted",
					fmt.Sprintf("Your bid of %s for %s was accepted", utils.FormatRupees(b.BidAmount), b.ProductName),
					b.ID, bidUpdatePayload(b)),
			}, nil
		},
	})
}

func (s *BidService) RejectBid(ctx context.Context, bidID, farmerID uint) (*models.Bid, error) {
	return s.transition(ctx, rejectTransition(bidID, farmerID, ""))
}

// rejectTransition is Pending -> Rejected by the product owner. reason, when
// set, is appended to the merchant's message.
func rejectTransition(bidID, farmerID uint, reason string) transition {
	return transition{
		bidID: bidID,
		from:  []models.BidStatus{models.BidPending},
		to:    models.BidRejected,
		authorize: func(b *models.Bid) error {
			if b.FarmerID != farmerID {
				return forbidden("only the product owner can reject this bid")
			}
			return nil
		},
		apply: func(_ *gorm.DB, b *models.Bid) ([]models.Notification, error) {
			msg := fmt.Sprintf("Your bid of %s for %s was rejected", utils.FormatRupees(b.BidAmount), b.ProductName)
			if reason != "" {
				msg += ": " + reason
			}
			return []models.Notification{
				newNotification(b.MerchantID, notifyroute.TypeBidRejected, "Bid rejected", msg,
					b.ID, bidUpdatePayload(b)),
			}, nil
		},
	}
}

// ConfirmBid is the merchant committing to an accepted bid.
func (s *BidService) ConfirmBid(ctx context.Context, bidID, merchantID uint) (*models.Bid, error) {
	return s.transition(ctx, transition{
		bidID: bidID,
		from:  []models.BidStatus{models.BidAccepted},
		to:    models.BidConfirmed,
		authorize: func(b *models.Bid) error {
			if b.MerchantID != merchantID {
				return forbidden("only the bidding merchant can confirm this bid")
			}
			return nil
		},
		apply: func(_ *gorm.DB, b *models.Bid) ([]models.Notification, error) {
			return []models.Notification{
				newNotification(b.FarmerID, notifyroute.TypeOrderConfirmed, "Order confirmed",
					fmt.Sprintf("%s confirmed the order for %s", b.MerchantName, b.ProductName),
					b.ID, bidUpdatePayload(b)),
			}, nil
		},
	})
}

type PaymentInput struct {
	Method    string
	Reference string
}

// RecordPayment marks an Accepted or Confirmed bid as Paid and stores the
// payment. Only the bidding merchant or an admin may record it.
func (s *BidService) RecordPayment(ctx context.Context, bidID, actorID uint, role string, in PaymentInput) (*models.Bid, *models.Payment, error) {
	method := in.Method
	if method == "" {
		method = "bank_transfer"
	}
	var payment models.Payment
	bid, err := s.transition(ctx, transition{
		bidID: bidID,
		from:  []models.BidStatus{models.BidAccepted, models.BidConfirmed},
		to:    models.BidPaid,
		authorize: func(b *models.Bid) error {
			if role != models.RoleAdmin && b.MerchantID != actorID {
				return forbidden("only the bidding merchant can pay for this bid")
			}
			return nil
		},
		apply: func(tx *gorm.DB, b *models.Bid) ([]models.Notification, error) {
			payment = models.Payment{
				BidID:     b.ID,
				Amount:    PaymentTotal(b.BidAmount, b.OrderWeight),
				Method:    method,
				Reference: in.Reference,
				PaidAt:    s.now(),
			}
			if err := tx.Create(&payment).Error; err != nil {
				return nil, fmt.Errorf("failed to create payment: %w", err)
			}
			total := utils.FormatRupees(payment.Amount)
			return []models.Notification{
				newNotification(b.FarmerID, notifyroute.TypePaymentReceived, "Payment received",
					fmt.Sprintf("%s paid %s for %s", b.MerchantName, total, b.ProductName),
					b.ID, bidUpdatePayload(b)),
				newNotification(b.MerchantID, notifyroute.TypeOrderConfirmed, "Order confirmed",
					fmt.Sprintf("Payment of %s for %s recorded", total, b.ProductName),
					b.ID, bidUpdatePayload(b)),
			}, nil
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return bid, &payment, nil
}

// MarkDelivered closes a paid bid.
func (s *BidService) MarkDelivered(ctx context.Context, bidID uint) (*models.Bid, error) {
	return s.transition(ctx, transition{
		bidID: bidID,
		from:  []models.BidStatus{models.BidPaid},
		to:    models.BidDelivered,
		apply: func(_ *gorm.DB, b *models.Bid) ([]models.Notification, error) {
			p := notifyroute.CollectionPayload{BidID: idString(b.ID)}
			msg := fmt.Sprintf("Delivery of %s %s completed", weightString(b.OrderWeight), b.ProductName)
			return []models.Notification{
				newNotification(b.FarmerID, notifyroute.TypeCollectionUpdate, "Order delivered", msg, b.ID, p),
				newNotification(b.MerchantID, notifyroute.TypeCollectionUpdate, "Order delivered", msg, b.ID, p),
			}, nil
		},
	})
}

// CancelBid withdraws an Accepted or Confirmed bid and gives its weight back
// to the product. Either party may cancel; the other is told.
func (s *BidService) CancelBid(ctx context.Context, bidID, actorID uint) (*models.Bid, error) {
	return s.transition(ctx, transition{
		bidID: bidID,
		from:  []models.BidStatus{models.BidAccepted, models.BidConfirmed},
		to:    models.BidCancelled,
		authorize: func(b *models.Bid) error {
			if b.FarmerID != actorID && b.MerchantID != actorID {
				return forbidden("only the farmer or merchant on this bid can cancel it")
			}
			return nil
		},
		apply: func(tx *gorm.DB, b *models.Bid) ([]models.Notification, error) {
			res := tx.Model(&models.Product{}).
				Where("id = ?", b.ProductID).
				Update("quantity", gorm.Expr("quantity + ?", b.OrderWeight))
			if res.Error != nil {
				return nil, fmt.Errorf("failed to restore quantity: %w", res.Error)
			}
			counterpart := b.MerchantID
			if actorID == b.MerchantID {
				counterpart = b.FarmerID
			}
			// bidId only: with a merchantId the router would treat it as a new bid.
			return []models.Notification{
				newNotification(counterpart, notifyroute.TypeGeneral, "Order cancelled",
					fmt.Sprintf("The order for %s was cancelled", b.ProductName),
					b.ID, notifyroute.GeneralPayload{BidID: idString(b.ID)}),
			}, nil
		},
	})
}

// GetBid returns a bid the viewer is allowed to see.
func (s *BidService) GetBid(ctx context.Context, bidID, viewerID uint, role string) (*models.Bid, error) {
	var bid models.Bid
	if err := s.db.WithContext(ctx).First(&bid, bidID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to load bid: %w", err)
	}
	if !canView(&bid, viewerID, role) {
		return nil, forbidden("not allowed to view this bid")
	}
	return &bid, nil
}

type BidFilter struct {
	ViewerID  uint
	Role      string
	Status    models.BidStatus
	ProductID uint
	Page      int
	PerPage   int
}

// ListBids scopes bids by role: farmers see bids on their products, merchants
// their own, transporters bids awaiting or past delivery, admin everything.
func (s *BidService) ListBids(ctx context.Context, f BidFilter) ([]models.Bid, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Bid{})
	switch f.Role {
	case models.RoleFarmer:
		q = q.Where("farmer_id = ?", f.ViewerID)
	case models.RoleMerchant:
		q = q.Where("merchant_id = ?", f.ViewerID)
	case models.RoleTransporter:
		q = q.Where("status IN ?", []models.BidStatus{models.BidPaid, models.BidDelivered})
	case models.RoleAdmin:
	default:
		return nil, 0, forbidden("unknown role %q", f.Role)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ProductID != 0 {
		q = q.Where("product_id = ?", f.ProductID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bids: %w", err)
	}
	page, perPage := NormalizePage(f.Page, f.PerPage)
	bids := make([]models.Bid, 0)
	if err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&bids).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, total, nil
}

type transition struct {
	bidID     uint
	from      []models.BidStatus
	to        models.BidStatus
	authorize func(*models.Bid) error
	apply     func(tx *gorm.DB, b *models.Bid) ([]models.Notification, error)
}

func (s *BidService) transition(ctx context.Context, t transition) (*models.Bid, error) {
	unlock := s.locks.Lock(t.bidID)
	defer unlock()

	var done bidStep
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		done, err = s.step(tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.publish(done)
	return &done.bid, nil
}

// bidStep is one transition applied in a transaction: the bid after the
// change and the notifications written with it.
type bidStep struct {
	bid   models.Bid
	from  models.BidStatus
	notes []models.Notification
}

// step runs t inside tx. The caller holds the bid's lock.
func (s *BidService) step(tx *gorm.DB, t transition) (bidStep, error) {
	var bid models.Bid
	if err := tx.First(&bid, t.bidID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return bidStep{}, ErrBidNotFound
		}
		return bidStep{}, fmt.Errorf("failed to load bid: %w", err)
	}
	if t.authorize != nil {
		if err := t.authorize(&bid); err != nil {
			return bidStep{}, err
		}
	}
	if !statusIn(bid.Status, t.from) {
		return bidStep{}, &InvalidStateError{
			Entity:  "bid",
			Current: string(bid.Status),
			Message: fmt.Sprintf("cannot move bid to %s", t.to),
		}
	}

	from := bid.Status
	now := s.now()
	res := tx.Model(&models.Bid{}).
		Where("id = ? AND status = ?", bid.ID, from).
		Updates(map[string]interface{}{"status": t.to, "updated_at": now})
	if res.Error != nil {
		return bidStep{}, fmt.Errorf("failed to update bid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return bidStep{}, &InvalidStateError{Entity: "bid", Message: errBidUnavailable}
	}
	bid.Status = t.to
	bid.UpdatedAt = now

	var notes []models.Notification
	if t.apply != nil {
		var err error
		if notes, err = t.apply(tx, &bid); err != nil {
			return bidStep{}, err
		}
	}
	if len(notes) > 0 {
		if err := tx.Create(&notes).Error; err != nil {
			return bidStep{}, fmt.Errorf("failed to create notifications: %w", err)
		}
	}
	return bidStep{bid: bid, from: from, notes: notes}, nil
}

// publish logs a committed step and pushes what it produced. The caller
// still holds the bid's lock.
func (s *BidService) publish(done bidStep) {
	utils.InfoLogger.WithFields(logrus.Fields{
		"bid_id": done.bid.ID,
		"from":   done.from,
		"to":     done.bid.Status,
	}).Info("Bid transition")

	pushNotifications(s.hub, done.notes)
	s.hub.Dispatch(done.bid.FarmerID, EventBidUpdate, done.bid)
	s.hub.Dispatch(done.bid.MerchantID, EventBidUpdate, done.bid)
}

func statusIn(s models.BidStatus, set []models.BidStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func canView(b *models.Bid, viewerID uint, role string) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleFarmer:
		return b.FarmerID == viewerID
	case models.RoleMerchant:
		return b.MerchantID == viewerID
	case models.RoleTransporter:
		return b.Status == models.BidPaid || b.Status == models.BidDelivered
	}
	return false
}

func bidUpdatePayload(b *models.Bid) notifyroute.BidUpdatePayload {
	return notifyroute.BidUpdatePayload{
		BidID:       idString(b.ID),
		ItemID:      idString(b.ProductID),
		ProductName: b.ProductName,
		Amount:      b.BidAmount,
	}
}

func weightString(w float64) string {
	return decimal.NewFromFloat(w).String()
}

// NormalizePage clamps paging input: page starts at 1, perPage defaults to
// 20 and is capped at 100.
func NormalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}
