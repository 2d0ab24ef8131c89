package notifyroute

import (
	"fmt"
	"strconv"
)

// Metadata keys as stored on a notification.
const (
	KeyBidID       = "bidId"
	KeyItemID      = "itemId"
	KeyChatUserID  = "chatUserId"
	KeyVehicleID   = "vehicleId"
	KeyBookingID   = "bookingId"
	KeyMerchantID  = "merchantId"
	KeyAmount      = "amount"
	KeyProductName = "productName"
)

// Payload is the typed view of a notification's metadata. The set of
// implementations is closed; see the variants below.
type Payload interface {
	isPayload()
}

// NewBidPayload accompanies newBid notifications sent to the farmer.
type NewBidPayload struct {
	BidID       string
	ItemID      string
	MerchantID  string
	ProductName string
	Amount      float64
}

// BidUpdatePayload accompanies accept/reject/payment/order notifications.
type BidUpdatePayload struct {
	BidID       string
	ItemID      string
	ProductName string
	Amount      float64
}

type ChatMessagePayload struct {
	ChatUserID string
}

type VehiclePayload struct {
	VehicleID string
	BookingID string
}

type CollectionPayload struct {
	BidID string
}

// GeneralPayload keeps the fields that older producers put on untyped
// notifications. A bidId together with a merchantId marks a bid that was
// under-classified as general.
type GeneralPayload struct {
	BidID      string
	MerchantID string
	ItemID     string
}

func (NewBidPayload) isPayload()      {}
func (BidUpdatePayload) isPayload()   {}
func (ChatMessagePayload) isPayload() {}
func (VehiclePayload) isPayload()     {}
func (CollectionPayload) isPayload()  {}
func (GeneralPayload) isPayload()     {}

// PayloadFromMetadata decodes stored metadata into the variant that belongs
// to t. Aliases are honoured; unknown types decode as GeneralPayload.
func PayloadFromMetadata(t Type, m map[string]interface{}) Payload {
	c, _ := Canonical(t)
	switch c {
	case TypeNewBid:
		return NewBidPayload{
			BidID:       str(m, KeyBidID),
			ItemID:      str(m, KeyItemID),
			MerchantID:  str(m, KeyMerchantID),
			ProductName: str(m, KeyProductName),
			Amount:      num(m, KeyAmount),
		}
	case TypeBidAccepted, TypeBidRejected, TypePaymentReceived, TypeOrderConfirmed:
		return BidUpdatePayload{
			BidID:       str(m, KeyBidID),
			ItemID:      str(m, KeyItemID),
			ProductName: str(m, KeyProductName),
			Amount:      num(m, KeyAmount),
		}
	case TypeChatMessage:
		return ChatMessagePayload{ChatUserID: str(m, KeyChatUserID)}
	case TypeVehicleBooked, TypeVehicleStatusUpdate:
		return VehiclePayload{VehicleID: str(m, KeyVehicleID), BookingID: str(m, KeyBookingID)}
	case TypeCollectionUpdate:
		return CollectionPayload{BidID: str(m, KeyBidID)}
	default:
		return GeneralPayload{
			BidID:      str(m, KeyBidID),
			MerchantID: str(m, KeyMerchantID),
			ItemID:     str(m, KeyItemID),
		}
	}
}

// Metadata is the inverse of PayloadFromMetadata. Empty fields are omitted.
func Metadata(p Payload) map[string]interface{} {
	m := map[string]interface{}{}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	switch v := p.(type) {
	case NewBidPayload:
		put(KeyBidID, v.BidID)
		put(KeyItemID, v.ItemID)
		put(KeyMerchantID, v.MerchantID)
		put(KeyProductName, v.ProductName)
		m[KeyAmount] = v.Amount
	case BidUpdatePayload:
		put(KeyBidID, v.BidID)
		put(KeyItemID, v.ItemID)
		put(KeyProductName, v.ProductName)
		m[KeyAmount] = v.Amount
	case ChatMessagePayload:
		put(KeyChatUserID, v.ChatUserID)
	case VehiclePayload:
		put(KeyVehicleID, v.VehicleID)
		put(KeyBookingID, v.BookingID)
	case CollectionPayload:
		put(KeyBidID, v.BidID)
	case GeneralPayload:
		put(KeyBidID, v.BidID)
		put(KeyMerchantID, v.MerchantID)
		put(KeyItemID, v.ItemID)
	}
	return m
}

// field extracts one routing field from a payload. Variants that do not
// carry the field yield "".
func field(p Payload, key string) string {
	switch v := p.(type) {
	case NewBidPayload:
		switch key {
		case KeyBidID:
			return v.BidID
		case KeyItemID:
			return v.ItemID
		case KeyMerchantID:
			return v.MerchantID
		}
	case BidUpdatePayload:
		switch key {
		case KeyBidID:
			return v.BidID
		case KeyItemID:
			return v.ItemID
		}
	case ChatMessagePayload:
		if key == KeyChatUserID {
			return v.ChatUserID
		}
	case VehiclePayload:
		switch key {
		case KeyVehicleID:
			return v.VehicleID
		case KeyBookingID:
			return v.BookingID
		}
	case CollectionPayload:
		if key == KeyBidID {
			return v.BidID
		}
	case GeneralPayload:
		switch key {
		case KeyBidID:
			return v.BidID
		case KeyMerchantID:
			return v.MerchantID
		case KeyItemID:
			return v.ItemID
		}
	}
	return ""
}

func str(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	default:
		return fmt.Sprint(x)
	}
}

func num(m map[string]interface{}, key string) float64 {
	switch x := m[key].(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case uint:
		return float64(x)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err == nil {
			return f
		}
	}
	return 0
}
