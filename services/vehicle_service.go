package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
	"github.com/yeremiapane/agrimarket/utils"
	"gorm.io/gorm"
)

// bookingTransitions lists the statuses each booking status may move to.
var bookingTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:   {models.BookingConfirmed, models.BookingRejected, models.BookingCancelled},
	models.BookingConfirmed: {models.BookingInTransit, models.BookingCancelled},
	models.BookingInTransit: {models.BookingCompleted},
}

type VehicleService struct {
	db    *gorm.DB
	hub   Dispatcher
	locks *keyedMutex
}

func NewVehicleService(db *gorm.DB, hub Dispatcher) *VehicleService {
	if hub == nil {
		hub = NopDispatcher{}
	}
	return &VehicleService{db: db, hub: hub, locks: newKeyedMutex()}
}

type VehicleInput struct {
	VehicleType    string
	RegistrationNo string
	CapacityKg     float64
	PricePerKm     float64
}

func (s *VehicleService) RegisterVehicle(ctx context.Context, transporterID uint, in VehicleInput) (*models.Vehicle, error) {
	in.VehicleType = strings.TrimSpace(in.VehicleType)
	in.RegistrationNo = strings.ToUpper(strings.TrimSpace(in.RegistrationNo))
	switch {
	case in.VehicleType == "":
		return nil, invalid("vehicle_type", "is required")
	case in.RegistrationNo == "":
		return nil, invalid("registration_no", "is required")
	case in.CapacityKg <= 0:
		return nil, invalid("capacity_kg", "must be greater than zero")
	case in.PricePerKm < 0:
		return nil, invalid("price_per_km", "must not be negative")
	}

	db := s.db.WithContext(ctx)
	var owner models.User
	if err := db.First(&owner, transporterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load transporter: %w", err)
	}
	if owner.Role != models.RoleTransporter {
		return nil, forbidden("only transporters can register vehicles")
	}

	var existing int64
	if err := db.Model(&models.Vehicle{}).Where("registration_no = ?", in.RegistrationNo).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if existing > 0 {
		return nil, invalid("registration_no", "%s is already registered", in.RegistrationNo)
	}

	v := models.Vehicle{
		TransporterID:  transporterID,
		VehicleType:    in.VehicleType,
		RegistrationNo: in.RegistrationNo,
		CapacityKg:     in.CapacityKg,
		PricePerKm:     in.PricePerKm,
		Available:      true,
	}
	if err := db.Create(&v).Error; err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	return &v, nil
}

type VehicleFilter struct {
	TransporterID uint
	AvailableOnly bool
	MinCapacityKg float64
}

func (s *VehicleService) ListVehicles(ctx context.Context, f VehicleFilter) ([]models.Vehicle, error) {
	q := s.db.WithContext(ctx).Model(&models.Vehicle{})
	if f.TransporterID != 0 {
		q = q.Where("transporter_id = ?", f.TransporterID)
	}
	if f.AvailableOnly {
		q = q.Where("available = ?", true)
	}
	if f.MinCapacityKg > 0 {
		q = q.Where("capacity_kg >= ?", f.MinCapacityKg)
	}
	vehicles := make([]models.Vehicle, 0)
	if err := q.Order("id ASC").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

type BookingInput struct {
	BookedBy    uint
	VehicleID   uint
	BidID       *uint
	Pickup      string
	Dropoff     string
	ScheduledAt time.Time
}

// BookVehicle requests a vehicle. The transporter is notified and decides
// through UpdateBookingStatus.
func (s *VehicleService) BookVehicle(ctx context.Context, in BookingInput) (*models.VehicleBooking, error) {
	in.Pickup = strings.TrimSpace(in.Pickup)
	in.Dropoff = strings.TrimSpace(in.Dropoff)
	if in.Pickup == "" {
		return nil, invalid("pickup", "is required")
	}
	if in.Dropoff == "" {
		return nil, invalid("dropoff", "is required")
	}
	if in.ScheduledAt.IsZero() {
		in.ScheduledAt = time.Now()
	}

	var (
		booking models.VehicleBooking
		note    models.Notification
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v models.Vehicle
		if err := tx.First(&v, in.VehicleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVehicleNotFound
			}
			return fmt.Errorf("failed to load vehicle: %w", err)
		}
		if !v.Available {
			return &InvalidStateError{Entity: "vehicle", Message: "vehicle is not available"}
		}
		if v.TransporterID == in.BookedBy {
			return invalid("vehicle_id", "cannot book your own vehicle")
		}
		if in.BidID != nil {
			var bid models.Bid
			if err := tx.First(&bid, *in.BidID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrBidNotFound
				}
				return fmt.Errorf("failed to load bid: %w", err)
			}
			if bid.FarmerID != in.BookedBy && bid.MerchantID != in.BookedBy {
				return forbidden("not a party to bid %d", bid.ID)
			}
		}

		booking = models.VehicleBooking{
			VehicleID:     v.ID,
			TransporterID: v.TransporterID,
			BookedBy:      in.BookedBy,
			BidID:         in.BidID,
			Pickup:        in.Pickup,
			Dropoff:       in.Dropoff,
			ScheduledAt:   in.ScheduledAt,
			Status:        models.BookingPending,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		note = newNotification(v.TransporterID, notifyroute.TypeVehicleBooked, "Vehicle booked",
			fmt.Sprintf("%s booked for %s to %s", v.RegistrationNo, booking.Pickup, booking.Dropoff),
			booking.ID, notifyroute.VehiclePayload{VehicleID: idString(v.ID), BookingID: idString(booking.ID)})
		if err := tx.Create(&note).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"vehicle_id": booking.VehicleID,
		"booked_by":  booking.BookedBy,
	}).Info("Vehicle booked")

	pushNotifications(s.hub, []models.Notification{note})
	s.hub.Dispatch(booking.TransporterID, EventBookingUpdate, booking)
	return &booking, nil
}

// UpdateBookingStatus moves a booking along. The transporter drives every
// step; the booker may only cancel. The vehicle is held while the booking is
// confirmed or in transit.
func (s *VehicleService) UpdateBookingStatus(ctx context.Context, bookingID, actorID uint, to models.BookingStatus) (*models.VehicleBooking, error) {
	switch to {
	case models.BookingConfirmed, models.BookingRejected, models.BookingInTransit,
		models.BookingCompleted, models.BookingCancelled:
	default:
		return nil, invalid("status", "unknown booking status %q", to)
	}

	unlock := s.locks.Lock(bookingID)
	defer unlock()

	var (
		booking models.VehicleBooking
		note    models.Notification
		from    models.BookingStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, bookingID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBookingNotFound
			}
			return fmt.Errorf("failed to load booking: %w", err)
		}
		switch actorID {
		case booking.TransporterID:
		case booking.BookedBy:
			if to != models.BookingCancelled {
				return forbidden("only the transporter can set a booking to %s", to)
			}
		default:
			return forbidden("not a party to this booking")
		}
		if !bookingStatusIn(to, bookingTransitions[booking.Status]) {
			return &InvalidStateError{
				Entity:  "booking",
				Current: string(booking.Status),
				Message: fmt.Sprintf("cannot move booking to %s", to),
			}
		}

		from = booking.Status
		res := tx.Model(&models.VehicleBooking{}).
			Where("id = ? AND status = ?", booking.ID, from).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
		if res.Error != nil {
			return fmt.Errorf("failed to update booking: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &InvalidStateError{Entity: "booking", Message: "booking changed, reload and retry"}
		}
		booking.Status = to

		if err := holdVehicle(tx, booking.VehicleID, from, to); err != nil {
			return err
		}

		recipient := booking.BookedBy
		if actorID == booking.BookedBy {
			recipient = booking.TransporterID
		}
		note = newNotification(recipient, notifyroute.TypeVehicleStatusUpdate, "Booking "+strings.ReplaceAll(string(to), "_", " "),
			fmt.Sprintf("Booking #%d is now %s", booking.ID, strings.ReplaceAll(string(to), "_", " ")),
			booking.ID, notifyroute.VehiclePayload{VehicleID: idString(booking.VehicleID), BookingID: idString(booking.ID)})
		if err := tx.Create(&note).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"from":       from,
		"to":         booking.Status,
	}).Info("Booking transition")

	pushNotifications(s.hub, []models.Notification{note})
	s.hub.Dispatch(booking.BookedBy, EventBookingUpdate, booking)
	s.hub.Dispatch(booking.TransporterID, EventBookingUpdate, booking)
	return &booking, nil
}

// ListBookings returns bookings the user booked, or for transporters the
// bookings on their vehicles. Admin sees all.
func (s *VehicleService) ListBookings(ctx context.Context, userID uint, role string) ([]models.VehicleBooking, error) {
	q := s.db.WithContext(ctx).Preload("Vehicle")
	switch role {
	case models.RoleAdmin:
	case models.RoleTransporter:
		q = q.Where("transporter_id = ?", userID)
	default:
		q = q.Where("booked_by = ?", userID)
	}
	bookings := make([]models.VehicleBooking, 0)
	if err := q.Order("scheduled_at DESC, id DESC").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// holdVehicle flips availability for transitions into and out of the active
// statuses. Taking a vehicle that another booking already holds fails.
func holdVehicle(tx *gorm.DB, vehicleID uint, from, to models.BookingStatus) error {
	wasActive := from == models.BookingConfirmed || from == models.BookingInTransit
	isActive := to == models.BookingConfirmed || to == models.BookingInTransit
	switch {
	case isActive && !wasActive:
		res := tx.Model(&models.Vehicle{}).
			Where("id = ? AND available = ?", vehicleID, true).
			Update("available", false)
		if res.Error != nil {
			return fmt.Errorf("failed to reserve vehicle: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &InvalidStateError{Entity: "vehicle", Message: "vehicle is not available"}
		}
	case wasActive && !isActive:
		if err := tx.Model(&models.Vehicle{}).
			Where("id = ?", vehicleID).
			Update("available", true).Error; err != nil {
			return fmt.Errorf("failed to release vehicle: %w", err)
		}
	}
	return nil
}

func bookingStatusIn(s models.BookingStatus, set []models.BookingStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
