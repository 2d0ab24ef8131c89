package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/agrimarket/models"
	"gorm.io/gorm"
)

// activeBidStatuses hold quantity taken from a product.
var activeBidStatuses = []models.BidStatus{models.BidAccepted, models.BidConfirmed, models.BidPaid}

type ProductService struct {
	db   *gorm.DB
	hub  Broadcaster
	bids *BidService
}

// NewProductService needs the bid service because removing a listing
// rejects the bids still waiting on it.
func NewProductService(db *gorm.DB, hub Broadcaster, bids *BidService) *ProductService {
	if hub == nil {
		hub = NopDispatcher{}
	}
	return &ProductService{db: db, hub: hub, bids: bids}
}

type ProductInput struct {
	Name        string
	Description string
	Unit        string
	Price       float64
	Quantity    float64
}

func (in *ProductInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Unit = strings.TrimSpace(in.Unit)
	if in.Unit == "" {
		in.Unit = "kg"
	}
	switch {
	case in.Name == "":
		return invalid("name", "is required")
	case in.Price <= 0:
		return invalid("price", "must be greater than zero")
	case in.Quantity < 0:
		return invalid("quantity", "must not be negative")
	}
	return nil
}

func (s *ProductService) CreateProduct(ctx context.Context, farmerID uint, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Quantity == 0 {
		return nil, invalid("quantity", "must be greater than zero")
	}
	db := s.db.WithContext(ctx)

	var farmer models.User
	if err := db.First(&farmer, farmerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load farmer: %w", err)
	}
	if farmer.Role != models.RoleFarmer {
		return nil, forbidden("only farmers can list products")
	}

	p := models.Product{
		FarmerID:    farmerID,
		Name:        in.Name,
		Description: in.Description,
		Unit:        in.Unit,
		Price:       in.Price,
		Quantity:    in.Quantity,
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	// merchants watching the market see new listings without polling
	s.hub.Broadcast(models.RoleMerchant, EventProductListed, p)
	return &p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Preload("Farmer").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &p, nil
}

type ProductFilter struct {
	FarmerID      uint
	Search        string
	AvailableOnly bool
	Page          int
	PerPage       int
}

func (s *ProductService) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Product{})
	if f.FarmerID != 0 {
		q = q.Where("farmer_id = ?", f.FarmerID)
	}
	if f.AvailableOnly {
		q = q.Where("quantity > 0")
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	page, perPage := NormalizePage(f.Page, f.PerPage)
	products := make([]models.Product, 0)
	if err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// UpdateProduct replaces the editable fields of a listing. Quantity is the
// new available amount; weight held by accepted bids is not included.
func (s *ProductService) UpdateProduct(ctx context.Context, id, farmerID uint, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var p models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to load product: %w", err)
		}
		if p.FarmerID != farmerID {
			return forbidden("only the owner can edit this product")
		}
		p.Name = in.Name
		p.Description = in.Description
		p.Unit = in.Unit
		p.Price = in.Price
		p.Quantity = in.Quantity
		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes a listing that has no bid in progress. Pending bids
// on it are rejected through the normal reject transition first, so each
// merchant is told.
func (s *ProductService) DeleteProduct(ctx context.Context, id, farmerID uint) error {
	var pending []uint
	if err := s.db.WithContext(ctx).Model(&models.Bid{}).
		Where("product_id = ? AND status = ?", id, models.BidPending).
		Order("id ASC").
		Pluck("id", &pending).Error; err != nil {
		return fmt.Errorf("failed to load pending bids: %w", err)
	}
	// ascending ids, before the transaction, like every other bid lock
	unlocks := make([]func(), 0, len(pending))
	for _, bidID := range pending {
		unlocks = append(unlocks, s.bids.locks.Lock(bidID))
	}
	defer func() {
		for _, unlock := range unlocks {
			unlock()
		}
	}()

	var rejected []bidStep
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Product
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to load product: %w", err)
		}
		if p.FarmerID != farmerID {
			return forbidden("only the owner can delete this product")
		}

		var active int64
		if err := tx.Model(&models.Bid{}).
			Where("product_id = ? AND status IN ?", id, activeBidStatuses).
			Count(&active).Error; err != nil {
			return fmt.Errorf("failed to count bids: %w", err)
		}
		if active > 0 {
			return &InvalidStateError{Entity: "product", Message: "product has bids in progress"}
		}

		for _, bidID := range pending {
			done, err := s.bids.step(tx, rejectTransition(bidID, farmerID, "the listing was removed"))
			if IsInvalidState(err) {
				// already settled by the farmer
				continue
			}
			if err != nil {
				return err
			}
			rejected = append(rejected, done)
		}

		var late int64
		if err := tx.Model(&models.Bid{}).
			Where("product_id = ? AND status = ?", id, models.BidPending).
			Count(&late).Error; err != nil {
			return fmt.Errorf("failed to count bids: %w", err)
		}
		if late > 0 {
			return &InvalidStateError{Entity: "product", Message: "new bids arrived, try again"}
		}

		if err := tx.Delete(&p).Error; err != nil {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, done := range rejected {
		s.bids.publish(done)
	}
	return nil
}
