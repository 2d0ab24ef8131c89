package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/services"
	"github.com/yeremiapane/agrimarket/utils"
)

type BidController struct {
	Bids     *services.BidService
	Payments *services.PaymentService
}

func NewBidController(bids *services.BidService, payments *services.PaymentService) *BidController {
	return &BidController{Bids: bids, Payments: payments}
}

// PlaceBid -> merchant offers a price per unit for a weight of a product.
func (bc *BidController) PlaceBid(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	var body struct {
		ProductID   uint    `json:"product_id" binding:"required"`
		BidAmount   float64 `json:"bid_amount" binding:"required"`
		OrderWeight float64 `json:"order_weight" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	bid, err := bc.Bids.PlaceBid(c.Request.Context(), services.PlaceBidInput{
		MerchantID:  userID,
		ProductID:   body.ProductID,
		BidAmount:   body.BidAmount,
		OrderWeight: body.OrderWeight,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Bid placed", bid)
}

// GetBids supports ?status, ?product_id and paging, scoped to the caller.
func (bc *BidController) GetBids(c *gin.Context) {
	userID, role, ok := mustUser(c)
	if !ok {
		return
	}
	f := services.BidFilter{
		ViewerID:  userID,
		Role:      role,
		Status:    models.BidStatus(c.Query("status")),
		ProductID: queryUint(c, "product_id"),
	}
	f.Page, f.PerPage = services.NormalizePage(queryInt(c, "page", 1), queryInt(c, "per_page", 20))
	bids, total, err := bc.Bids.ListBids(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSONWithMeta(c, http.StatusOK, "Bids", bids, utils.NewMeta(f.Page, f.PerPage, total))
}

func (bc *BidController) GetBidByID(c *gin.Context) {
	userID, role, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	bid, err := bc.Bids.GetBid(c.Request.Context(), id, userID, role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bid detail", bid)
}

func (bc *BidController) AcceptBid(c *gin.Context) {
	bc.act(c, "Bid accepted", bc.Bids.AcceptBid)
}

func (bc *BidController) RejectBid(c *gin.Context) {
	bc.act(c, "Bid rejected", bc.Bids.RejectBid)
}

func (bc *BidController) ConfirmBid(c *gin.Context) {
	bc.act(c, "Order confirmed", bc.Bids.ConfirmBid)
}

func (bc *BidController) CancelBid(c *gin.Context) {
	bc.act(c, "Order cancelled", bc.Bids.CancelBid)
}

// MarkDelivered -> transporter (or admin) closes a paid order.
func (bc *BidController) MarkDelivered(c *gin.Context) {
	bc.act(c, "Order delivered", func(ctx context.Context, bidID, _ uint) (*models.Bid, error) {
		return bc.Bids.MarkDelivered(ctx, bidID)
	})
}

type bidAction func(ctx context.Context, bidID, actorID uint) (*models.Bid, error)

func (bc *BidController) act(c *gin.Context, message string, fn bidAction) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	bid, err := fn(c.Request.Context(), id, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, bid)
}

// RecordPayment -> the bidding merchant (or admin) records payment for an
// accepted or confirmed bid.
func (bc *BidController) RecordPayment(c *gin.Context) {
	userID, role, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body struct {
		Method    string `json:"method" binding:"omitempty,oneof=bank_transfer upi cash cheque"`
		Reference string `json:"reference" binding:"max=128"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	bid, payment, err := bc.Bids.RecordPayment(c.Request.Context(), id, userID, role, services.PaymentInput{
		Method:    body.Method,
		Reference: body.Reference,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment recorded", gin.H{
		"bid":     bid,
		"payment": payment,
	})
}

func (bc *BidController) GetPayment(c *gin.Context) {
	userID, role, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	payment, err := bc.Payments.GetPaymentByBidID(c.Request.Context(), id, userID, role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}
