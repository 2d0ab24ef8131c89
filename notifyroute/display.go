package notifyroute

// DisplayProps describe how a notification is drawn in the feed. Lower
// Priority is more urgent.
type DisplayProps struct {
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Priority   int    `json:"priority"`
	ActionText string `json:"action_text"`
}

var displays = map[Type]DisplayProps{
	TypeNewBid:              {Icon: "gavel", Color: "#2e7d32", Priority: 1, ActionText: "Review bid"},
	TypeBidAccepted:         {Icon: "check-circle", Color: "#1b5e20", Priority: 1, ActionText: "View order"},
	TypePaymentReceived:     {Icon: "wallet", Color: "#00695c", Priority: 1, ActionText: "View payment"},
	TypeBidRejected:         {Icon: "x-circle", Color: "#c62828", Priority: 2, ActionText: "View bids"},
	TypeOrderConfirmed:      {Icon: "clipboard-check", Color: "#1565c0", Priority: 2, ActionText: "View order"},
	TypeVehicleBooked:       {Icon: "truck", Color: "#ef6c00", Priority: 2, ActionText: "View booking"},
	TypeChatMessage:         {Icon: "message-circle", Color: "#6a1b9a", Priority: 3, ActionText: "Reply"},
	TypeVehicleStatusUpdate: {Icon: "navigation", Color: "#f9a825", Priority: 3, ActionText: "Track vehicle"},
	TypeCollectionUpdate:    {Icon: "package", Color: "#4e342e", Priority: 4, ActionText: "View collection"},
	TypeGeneral:             {Icon: "bell", Color: "#546e7a", Priority: 5, ActionText: "Open"},
}

// Display returns the display descriptor for t, falling back to general.
func Display(t Type) DisplayProps {
	c, known := Canonical(t)
	if !known {
		return displays[TypeGeneral]
	}
	return displays[c]
}
