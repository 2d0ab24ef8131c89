package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/services"
	"github.com/yeremiapane/agrimarket/utils"
)

type VehicleController struct {
	Vehicles *services.VehicleService
}

func NewVehicleController(vehicles *services.VehicleService) *VehicleController {
	return &VehicleController{Vehicles: vehicles}
}

func (vc *VehicleController) RegisterVehicle(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	var body struct {
		VehicleType    string  `json:"vehicle_type" binding:"required"`
		RegistrationNo string  `json:"registration_no" binding:"required"`
		CapacityKg     float64 `json:"capacity_kg" binding:"required,gt=0"`
		PricePerKm     float64 `json:"price_per_km" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	v, err := vc.Vehicles.RegisterVehicle(c.Request.Context(), userID, services.VehicleInput{
		VehicleType:    body.VehicleType,
		RegistrationNo: body.RegistrationNo,
		CapacityKg:     body.CapacityKg,
		PricePerKm:     body.PricePerKm,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Vehicle registered", v)
}

// GetVehicles supports ?available=true, ?transporter_id and ?min_capacity.
func (vc *VehicleController) GetVehicles(c *gin.Context) {
	minCap, _ := strconv.ParseFloat(c.Query("min_capacity"), 64)
	vehicles, err := vc.Vehicles.ListVehicles(c.Request.Context(), services.VehicleFilter{
		TransporterID: queryUint(c, "transporter_id"),
		AvailableOnly: c.Query("available") == "true",
		MinCapacityKg: minCap,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Vehicles", vehicles)
}

func (vc *VehicleController) BookVehicle(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	var body struct {
		VehicleID   uint       `json:"vehicle_id" binding:"required"`
		BidID       *uint      `json:"bid_id"`
		Pickup      string     `json:"pickup" binding:"required"`
		Dropoff     string     `json:"dropoff" binding:"required"`
		ScheduledAt *time.Time `json:"scheduled_at"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	in := services.BookingInput{
		BookedBy:  userID,
		VehicleID: body.VehicleID,
		BidID:     body.BidID,
		Pickup:    body.Pickup,
		Dropoff:   body.Dropoff,
	}
	if body.ScheduledAt != nil {
		in.ScheduledAt = *body.ScheduledAt
	}
	booking, err := vc.Vehicles.BookVehicle(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Vehicle booked", booking)
}

func (vc *VehicleController) GetBookings(c *gin.Context) {
	userID, role, ok := mustUser(c)
	if !ok {
		return
	}
	bookings, err := vc.Vehicles.ListBookings(c.Request.Context(), userID, role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Vehicle bookings", bookings)
}

func (vc *VehicleController) UpdateBookingStatus(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	booking, err := vc.Vehicles.UpdateBookingStatus(c.Request.Context(), id, userID, models.BookingStatus(body.Status))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Booking updated", booking)
}
